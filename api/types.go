package api

// =============================================================================
// 💬 Chat API 类型
// =============================================================================

// Message 对话轮次
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest POST /chat 请求体
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// ChatResponse POST /chat 响应体
type ChatResponse struct {
	Reply string `json:"reply"`
}

// =============================================================================
// 🎙️ Voice API 类型
// =============================================================================

// VoiceStats 当前语音会话统计
type VoiceStats struct {
	ActiveSessions int  `json:"active_sessions"`
	Accepting      bool `json:"accepting"`
}
