package usecase

// Operator-facing text, zh-TW.
const (
	msgSearchUnavailable = "新聞搜尋服務未設定。"
	msgSearchFailed      = "無法連線至新聞搜尋服務"
	msgSearchNotOK       = "無法從 RSS 服務獲取數據。"

	msgMissingCredential = "未設定 API Key，無法呼叫 AI 服務。"
	msgInvalidCredential = "API Key 無效或已被拒絕，請檢查設定。"
	msgEmptyResponse     = "AI 未回傳任何內容，請重試。"
	msgGenerationFailed  = "AI 報告生成失敗"
	msgInvalidNewsItem   = "新聞資料格式錯誤：第 %d 則缺少標題。"

	msgSendPrimaryFailed = "審核郵件寄送失敗"
	msgSendAllFailed     = "密件副本發送失敗"
	msgMailerMissing     = "郵件服務未設定。"

	logFetchStart     = "正在從 Google RSS 抓取新聞..."
	logFetchDone      = "成功抓取 %d 則新聞。"
	logFetchFailed    = "錯誤: %s"
	logGenerateStart  = "啟動 AI 市場分析報告生成 (使用 %s)..."
	logGenerateDone   = "報告生成成功，進入待審核狀態。"
	logGenerateFailed = "生成失敗: %s"
	logPrimaryStart   = "正在發送審核郵件至主要審核人: %s..."
	logPrimaryDone    = "郵件已寄送至 %s，等待審核。"
	logPrimaryFailed  = "審核郵件寄送失敗: %s"
	logApproveStart   = "審核通過！正在將正式報告以密件副本 (BCC) 發送給所有收件人..."
	logApproveDone    = "全部發送完畢，工作流程結束。"
	logApproveFailed  = "密件副本發送失敗: %s"
)
