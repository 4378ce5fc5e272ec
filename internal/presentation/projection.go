// Package presentation derives everything the operator console shows from a workflow state.
// Nothing here mutates state or talks to collaborators.
package presentation

import (
	"fmt"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/report"
)

// Action names an operator intent a control dispatches.
type Action string

const (
	ActionNone          Action = ""
	ActionFetch         Action = "fetch"
	ActionGenerate      Action = "generate"
	ActionSendToPrimary Action = "send_to_primary"
	ActionApproveAll    Action = "approve_and_send_all"
	ActionReset         Action = "reset"
	ActionDismissError  Action = "dismiss_error"
)

// Badge marks a step as done or failed.
type Badge string

const (
	BadgeNone   Badge = ""
	BadgeDone   Badge = "done"
	BadgeFailed Badge = "failed"
)

// Panel selects the main content area.
type Panel int

const (
	PanelEmpty Panel = iota
	PanelPreview
	PanelError
)

// Step is one of the three workflow cards.
type Step struct {
	Title     string
	Label     string
	Action    Action
	Enabled   bool
	Badge     Badge
	BadgeText string
	Hint      string
	Active    bool
}

// Preview is the email view of the current draft.
type Preview struct {
	Sender         string
	Subject        string
	RecipientLabel string
	RecipientValue string
	HTML           string
}

// ErrorPanel replaces the preview when there is no draft but an error is set.
type ErrorPanel struct {
	Title          string
	Message        string
	RetryAction    Action
	RetryLabel     string
	CredentialHint string
}

// Placeholder is shown before anything has been generated.
type Placeholder struct {
	Title string
	Hint  string
}

// Toast is the transient error notice.
type Toast struct {
	Title   string
	Message string
}

// RosterLine is one row of the recipient list.
type RosterLine struct {
	Initial string
	Name    string
	Email   string
	Role    string
	Primary bool
}

// View is the complete derived screen.
type View struct {
	Steps        [3]Step
	Panel        Panel
	Preview      *Preview
	Error        *ErrorPanel
	Placeholder  *Placeholder
	Toast        *Toast
	Log          []string
	LogEmpty     string
	Roster       []RosterLine
	Busy         bool
	ResetEnabled bool
}

// Directory is the static data the projection needs besides state.
type Directory struct {
	Roster   domain.Roster
	Composer *report.Composer
}

const (
	credentialHint = "請確認您的環境變數 API_KEY 已正確配置且具有 Gemini API 權限。"
	logTimeLayout  = "15:04:05"
)

// Project maps a state to its view. It is total: any state, including zero values, yields a view.
func Project(state domain.WorkflowState, dir Directory) View {
	composer := dir.Composer
	if composer == nil {
		composer = report.NewComposer(report.ComposerConfig{})
	}
	primary := dir.Roster.Primary()

	view := View{
		Steps:        [3]Step{fetchStep(state), generateStep(state), distributeStep(state, primary)},
		Busy:         state.Stage == domain.StageFetchingNews || state.Stage == domain.StageGeneratingReport || state.SendInFlight,
		ResetEnabled: true,
		LogEmpty:     "無活動日誌...",
		Log:          logLines(state.Log),
		Roster:       rosterLines(dir.Roster),
	}

	switch {
	case state.Draft != nil:
		view.Panel = PanelPreview
		view.Preview = preview(state, primary, composer)
	case state.Err != nil:
		view.Panel = PanelError
		view.Error = errorPanel(state)
	default:
		view.Panel = PanelEmpty
		view.Placeholder = &Placeholder{
			Title: "尚無報告初稿",
			Hint:  "請依照左側流程執行資料抓取與 AI 分析生成報告預覽。",
		}
	}

	if state.Err != nil {
		view.Toast = &Toast{Title: "系統錯誤", Message: state.Err.Message}
	}
	return view
}

func fetchStep(state domain.WorkflowState) Step {
	step := Step{
		Title:   "1. 抓取資料",
		Label:   "抓取今日市場新聞",
		Action:  ActionFetch,
		Enabled: state.CanFetch(),
		Active:  state.Stage == domain.StageFetchingNews,
	}
	if step.Active {
		step.Label = "抓取中..."
	}
	switch {
	case len(state.News) > 0:
		step.Badge, step.BadgeText = BadgeDone, "✓ 已抓取"
	case state.Idle() == domain.IdleFetchFailed:
		step.Badge, step.BadgeText = BadgeFailed, "✕ 失敗"
	}
	return step
}

func generateStep(state domain.WorkflowState) Step {
	step := Step{
		Title:   "2. AI 生成報告",
		Label:   "生成初稿報告",
		Action:  ActionGenerate,
		Enabled: state.CanGenerate(),
		Active:  state.Stage == domain.StageGeneratingReport,
	}
	switch {
	case step.Active:
		step.Label = "AI 分析中..."
	case state.Draft != nil:
		step.Label = "報告已生成"
	}
	switch {
	case state.Draft != nil:
		step.Badge, step.BadgeText = BadgeDone, "✓ 已生成"
	case state.Idle() == domain.IdleGenerationFailed:
		step.Badge, step.BadgeText = BadgeFailed, "✕ 失敗"
	}
	return step
}

func distributeStep(state domain.WorkflowState, primary domain.Recipient) Step {
	step := Step{Title: "3. 審核與分發"}
	switch state.Stage {
	case domain.StageReviewing:
		step.Action = ActionSendToPrimary
		step.Label = fmt.Sprintf("發送給 %s 審核", primary.DisplayName)
		step.Enabled = true
		step.Active = true
	case domain.StageSentToPrimary:
		step.Action = ActionApproveAll
		step.Label = "手動同意以密件 (BCC) 發送給全體"
		step.Enabled = true
		step.Active = true
		step.Hint = fmt.Sprintf("等待 %s 手動同意...", primary.DisplayName)
	case domain.StageCompleted:
		step.Badge, step.BadgeText = BadgeDone, "✓ 已完成"
		step.Hint = "報告已全數寄出！"
	case domain.StageIdle, domain.StageFetchingNews:
		if state.Draft == nil {
			step.Hint = "請先完成前兩步驟"
		}
	}
	if state.SendInFlight && step.Action != ActionNone {
		step.Enabled = false
		step.Label = "郵件寄送中..."
	}
	return step
}

// addressedToPrimary reports whether the preview is the reviewer copy.
func addressedToPrimary(stage domain.Stage) bool {
	return stage == domain.StageReviewing || stage == domain.StageSentToPrimary
}

func preview(state domain.WorkflowState, primary domain.Recipient, composer *report.Composer) *Preview {
	p := &Preview{
		Sender:         composer.SenderName(),
		RecipientLabel: "密件副本 (BCC):",
		RecipientValue: "全體收件人",
	}
	greeting := report.BroadcastGreetingName
	if addressedToPrimary(state.Stage) {
		p.RecipientLabel = "收件人:"
		p.RecipientValue = primary.DisplayName
		greeting = primary.DisplayName
	}
	env := composer.Preview(*state.Draft, greeting)
	p.Subject = env.Subject
	p.HTML = env.HTML
	return p
}

func errorPanel(state domain.WorkflowState) *ErrorPanel {
	panel := &ErrorPanel{Message: state.Err.Message}
	switch {
	case state.Idle() == domain.IdleFetchFailed:
		panel.Title = "新聞抓取失敗"
	case state.Err.Kind == domain.FailureSend:
		panel.Title = "郵件寄送失敗"
	default:
		panel.Title = "報告生成失敗"
	}
	switch {
	case state.CanGenerate():
		panel.RetryAction, panel.RetryLabel = ActionGenerate, "重新嘗試生成"
	case state.CanFetch():
		panel.RetryAction, panel.RetryLabel = ActionFetch, "重新抓取新聞"
	}
	if state.Err.CredentialRelated() {
		panel.CredentialHint = credentialHint
	}
	return panel
}

func logLines(entries []domain.LogEntry) []string {
	if len(entries) == 0 {
		return nil
	}
	lines := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("[%s] %s", entries[i].At.Format(logTimeLayout), entries[i].Message))
	}
	return lines
}

func rosterLines(roster domain.Roster) []RosterLine {
	all := roster.All()
	lines := make([]RosterLine, 0, len(all))
	for i, r := range all {
		line := RosterLine{
			Name:    r.DisplayName,
			Email:   r.Email,
			Role:    "密件收件人",
			Primary: i == 0,
		}
		if runes := []rune(r.DisplayName); len(runes) > 0 {
			line.Initial = string(runes[0])
		}
		if line.Primary {
			line.Role = "主要審核人"
		}
		lines = append(lines, line)
	}
	return lines
}
