package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "Asia/Taipei"
	defaultDateLayout = "2006/01/02"
	configPathEnv     = "REPORTDESK_CONFIG"
	apiKeyEnv         = "API_KEY"
	modelEnv          = "REPORTDESK_MODEL"
	llmBaseURLEnv     = "REPORTDESK_LLM_BASE_URL"
	rss2jsonKeyEnv    = "RSS2JSON_API_KEY"
	relayURLEnv       = "MAIL_RELAY_URL"
	relayTokenEnv     = "MAIL_RELAY_TOKEN"
	logLevelEnv       = "LOG_LEVEL"

	// MailModeSimulated acknowledges sends without delivering.
	MailModeSimulated = "simulated"
	// MailModeRelay posts composed reports to an HTTP mail relay.
	MailModeRelay = "relay"
)

const defaultSites = `(site:news.cnyes.com/ OR site:fund.cnyes.com/IPO/ OR site:cmoney.tw/notes/?navId=cmoney_official OR site:moneydj.com/funddj/fundMarket.djhtm?a=broncho-1 OR site:fundsin.com.tw OR site:macromicro.me OR site:stockfeel.com.tw OR site:udn.com/news/cate/2/6645 OR site:finance.technews.tw OR site:fx168news.com OR finance.ettoday.net OR tw.stock.yahoo.com OR ctee.com.tw/livenews OR site:tw.tradingview.com/news/providers/reuters/ OR site:zh.cn.nikkei.com/ OR today.line.me/tw/ OR site:ctee.com.tw/wealth/fund OR site:news.google.com)`

const defaultKeywords = `(intitle:資金流向 OR intitle:加碼 OR intitle:減碼 OR intitle:申購 OR intitle:贖回 OR intitle:募集 OR intitle:規模) AND (基金 OR ETF OR 債券 OR 股票型 OR 科技股 OR 美債 OR 高收益 OR AI OR 半導體 OR 機器人 OR 算力 OR 貿易戰 OR 關稅 OR 降息 OR 軟著陸 OR 地緣政治 OR 中東 OR 油價) AND (基金 OR ETF OR 投資展望 OR 經理人 OR 研報)`

// Config holds every setting the report desk needs.
type Config struct {
	Logging    LoggingConfig     `yaml:"logging"`
	Sender     SenderConfig      `yaml:"sender"`
	Recipients []RecipientConfig `yaml:"recipients"`
	Search     SearchConfig      `yaml:"search"`
	LLM        LLMConfig         `yaml:"llm"`
	Report     ReportConfig      `yaml:"report"`
	Mail       MailConfig        `yaml:"mail"`
}

// LoggingConfig controls slog output. The console owns stdout, so logs go to File.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SenderConfig is the From identity of outgoing reports.
type SenderConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// RecipientConfig is one distribution address. The first entry is the primary reviewer.
type RecipientConfig struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// SearchConfig holds the two static filter expressions and the proxy settings.
type SearchConfig struct {
	Sites    string        `yaml:"sites"`
	Keywords string        `yaml:"keywords"`
	Endpoint string        `yaml:"endpoint"`
	FeedURL  string        `yaml:"feedUrl"`
	APIKey   string        `yaml:"apiKey"`
	Language string        `yaml:"language"`
	Region   string        `yaml:"region"`
	Edition  string        `yaml:"edition"`
	Window   string        `yaml:"window"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LLMConfig defines how to reach the generative model.
type LLMConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	RPM         int           `yaml:"rpm"`
	Burst       int           `yaml:"burst"`
}

// ReportConfig holds presentation constants of the report itself.
type ReportConfig struct {
	FooterHTML string         `yaml:"footerHtml"`
	DateLayout string         `yaml:"dateLayout"`
	Timezone   string         `yaml:"timezone"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the report timezone string to a time.Location.
func (r ReportConfig) Location() *time.Location {
	if r.location != nil {
		return r.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MailConfig selects and configures the distribution backend.
type MailConfig struct {
	Mode           string        `yaml:"mode"`
	RelayURL       string        `yaml:"relayUrl"`
	RelayToken     string        `yaml:"relayToken"`
	ReviewDelay    time.Duration `yaml:"reviewDelay"`
	BroadcastDelay time.Duration `yaml:"broadcastDelay"`
	// AllowRawHTML skips the sanitization boundary for generated markup.
	AllowRawHTML bool `yaml:"allowRawHtml"`
}

// Load reads YAML configuration (if present) and applies environment overrides. path takes
// precedence over REPORTDESK_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports settings the workflow cannot run without.
func (c Config) Validate() error {
	var errs []error
	if len(c.Recipients) == 0 {
		errs = append(errs, errors.New("recipients: at least one recipient is required"))
	}
	for i, r := range c.Recipients {
		if strings.TrimSpace(r.Email) == "" {
			errs = append(errs, fmt.Errorf("recipients[%d]: email is required", i))
		}
	}
	if strings.TrimSpace(c.Search.Sites) == "" && strings.TrimSpace(c.Search.Keywords) == "" {
		errs = append(errs, errors.New("search: sites or keywords must be set"))
	}
	switch c.Mail.Mode {
	case MailModeSimulated:
	case MailModeRelay:
		if c.Mail.RelayURL == "" {
			errs = append(errs, errors.New("mail: relayUrl is required in relay mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("mail: unknown mode %q", c.Mail.Mode))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(modelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}

	if v := os.Getenv(rss2jsonKeyEnv); v != "" {
		c.Search.APIKey = v
	}

	if v := os.Getenv(relayURLEnv); v != "" {
		c.Mail.RelayURL = v
	}

	if v := os.Getenv(relayTokenEnv); v != "" {
		c.Mail.RelayToken = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Report.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	c.Report.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.Sender.Name != "" {
		base.Sender.Name = override.Sender.Name
	}
	if override.Sender.Email != "" {
		base.Sender.Email = override.Sender.Email
	}

	if len(override.Recipients) > 0 {
		base.Recipients = override.Recipients
	}

	if override.Search.Sites != "" {
		base.Search.Sites = override.Search.Sites
	}
	if override.Search.Keywords != "" {
		base.Search.Keywords = override.Search.Keywords
	}
	if override.Search.Endpoint != "" {
		base.Search.Endpoint = override.Search.Endpoint
	}
	if override.Search.FeedURL != "" {
		base.Search.FeedURL = override.Search.FeedURL
	}
	if override.Search.APIKey != "" {
		base.Search.APIKey = override.Search.APIKey
	}
	if override.Search.Language != "" {
		base.Search.Language = override.Search.Language
	}
	if override.Search.Region != "" {
		base.Search.Region = override.Search.Region
	}
	if override.Search.Edition != "" {
		base.Search.Edition = override.Search.Edition
	}
	if override.Search.Window != "" {
		base.Search.Window = override.Search.Window
	}
	if override.Search.Timeout > 0 {
		base.Search.Timeout = override.Search.Timeout
	}

	if override.LLM.BaseURL != "" {
		base.LLM.BaseURL = override.LLM.BaseURL
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.Temperature > 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}
	if override.LLM.RPM > 0 {
		base.LLM.RPM = override.LLM.RPM
	}
	if override.LLM.Burst > 0 {
		base.LLM.Burst = override.LLM.Burst
	}

	if override.Report.FooterHTML != "" {
		base.Report.FooterHTML = override.Report.FooterHTML
	}
	if override.Report.DateLayout != "" {
		base.Report.DateLayout = override.Report.DateLayout
	}
	if override.Report.Timezone != "" {
		base.Report.Timezone = override.Report.Timezone
	}

	if override.Mail.Mode != "" {
		base.Mail.Mode = override.Mail.Mode
	}
	if override.Mail.RelayURL != "" {
		base.Mail.RelayURL = override.Mail.RelayURL
	}
	if override.Mail.RelayToken != "" {
		base.Mail.RelayToken = override.Mail.RelayToken
	}
	if override.Mail.ReviewDelay > 0 {
		base.Mail.ReviewDelay = override.Mail.ReviewDelay
	}
	if override.Mail.BroadcastDelay > 0 {
		base.Mail.BroadcastDelay = override.Mail.BroadcastDelay
	}
	if override.Mail.AllowRawHTML {
		base.Mail.AllowRawHTML = true
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Sender:  SenderConfig{Name: "CMoneyFund"},
		Recipients: []RecipientConfig{
			{Email: "reviewer@example.com", Name: "主要審核人"},
			{Email: "subscriber@example.com", Name: "投資夥伴"},
		},
		Search: SearchConfig{
			Sites:    defaultSites,
			Keywords: defaultKeywords,
			Endpoint: "https://api.rss2json.com/v1/api.json",
			FeedURL:  "https://news.google.com/rss/search",
			Language: "zh-TW",
			Region:   "TW",
			Edition:  "TW:zh-Hant",
			Window:   "2d",
			Timeout:  15 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:       "gemini-3-flash-preview",
			Temperature: 0.4,
			Timeout:     90 * time.Second,
			RPM:         10,
			Burst:       1,
		},
		Report: ReportConfig{
			DateLayout: defaultDateLayout,
			Timezone:   defaultTimezone,
		},
		Mail: MailConfig{
			Mode:           MailModeSimulated,
			ReviewDelay:    1500 * time.Millisecond,
			BroadcastDelay: 2 * time.Second,
		},
	}
}
