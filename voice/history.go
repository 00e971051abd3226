package voice

import "github.com/MeriemTerki/Project2CS/types"

// History 是有界的对话历史。只保存 user / assistant 轮次，
// 超出上限的旧轮次直接丢弃。
type History struct {
	limit int
	turns []types.Message
}

// NewHistory 创建最多保留 limit 轮的历史，limit <= 0 时不限制
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Append 追加一轮对话，system 轮次被忽略
func (h *History) Append(msg types.Message) {
	if msg.Role == types.RoleSystem {
		return
	}
	h.turns = append(h.turns, msg)
	if h.limit > 0 && len(h.turns) > h.limit {
		h.turns = append([]types.Message(nil), h.turns[len(h.turns)-h.limit:]...)
	}
}

// Window 返回最近 n 轮的副本
func (h *History) Window(n int) []types.Message {
	return lastTurns(h.turns, n)
}

// Len 返回当前保存的轮数
func (h *History) Len() int {
	return len(h.turns)
}

// lastTurns 返回 messages 中最近 n 条非 system 消息的副本，n <= 0 时返回全部
func lastTurns(messages []types.Message, n int) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != types.RoleSystem {
			out = append(out, m)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
