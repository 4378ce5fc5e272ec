package usecase

import (
	"fmt"
	"strings"

	"ReportDesk/internal/domain"
)

// summaryDigestRunes bounds how much of each summary goes into the prompt.
const summaryDigestRunes = 100

const reportInstructions = `你是一位專業的基金經理人，請撰寫一份「基金市場報告」，讀者為基金投資客戶。

**撰寫規則：**
1. 從新聞資料中挑選 4-5 個最重要的市場議題進行分析。
2. HTML 標籤必須完整閉合；篇幅不足時請優先收尾，不可中斷在 HTML 結構中。
3. 全文約 900-1000 個中文字。
4. 不得直接提及任何加密貨幣名稱（例如比特幣、以太幣），一律以「數位資產」稱之。
5. 結尾的投資建議區塊必須列出 3-5 檔具體的基金名稱，並說明投資理由。
6. 只輸出純 HTML，不要使用 Markdown 代碼塊。

**HTML 版型：**

<div style="max-width: 600px; margin: 20px auto; font-family: 'Microsoft JhengHei', Arial, sans-serif; color: #444; line-height: 1.7; border: 1px solid #eee; border-radius: 16px; overflow: hidden;">
  <div style="background-color: #990000; padding: 40px 20px; text-align: center;">
    <div style="color: #fff; font-size: 16px; font-weight: bold;">基金市場報告</div>
    <div style="color: #fff; font-size: 18px; font-weight: bold; margin-top: 5px;">[18 字以內的副標題]</div>
    <div style="color: rgba(255,255,255,0.9); font-size: 14px; margin-top: 10px;">{{DATE}}</div>
  </div>
  <div style="padding: 30px 25px 10px 25px;">[約 100 字市場總覽，重點數據以 <strong style="color: #990000;">紅色高亮</strong> 標示，不需招呼語]</div>
  <div style="background-color: #f2f2f2; border-radius: 12px; padding: 20px; margin: 15px 25px;">
    <div style="font-size: 18px; color: #990000; font-weight: bold; margin-bottom: 10px;">[議題標題]</div>
    <div>[議題分析，共 4-5 張卡片]</div>
  </div>
  <div style="background-color: #f2f2f2; border-radius: 12px; padding: 20px; margin: 15px 25px;">
    <div style="font-size: 18px; color: #990000; font-weight: bold; margin-bottom: 10px;">精選基金投資</div>
    <div>[投資策略與 3-5 檔具體基金名稱及理由]</div>
  </div>
</div>

【新聞資料】：
`

// buildReportPrompt renders the instruction block followed by the news digest.
func buildReportPrompt(news []domain.NewsItem, dateLabel string) string {
	var sb strings.Builder
	sb.WriteString(strings.ReplaceAll(reportInstructions, "{{DATE}}", dateLabel))
	for i, item := range news {
		fmt.Fprintf(&sb, "[%d] %s\n摘要: %s\n---\n", i+1, item.Title, truncateRunes(item.Summary, summaryDigestRunes))
	}
	return sb.String()
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
