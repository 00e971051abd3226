package voice

// EventKind 转写事件类别，同时也是发给客户端的消息 type
type EventKind string

const (
	EventInterim     EventKind = "transcript_interim"
	EventFinal       EventKind = "transcript_final"
	EventSpeechFinal EventKind = "speech_final"
)

// Event 是队列中的一条转写事件
type Event struct {
	Kind    EventKind `json:"type"`
	Content string    `json:"content"`
}

// 发给客户端的其他消息类型
const (
	MessageAssistant = "assistant"
	MessageFinish    = "finish"
)

// ClientMessage 是发给客户端的 JSON 消息
type ClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Message 把事件转换为客户端消息，内容原样保留
func (e Event) Message() ClientMessage {
	return ClientMessage{Type: string(e.Kind), Content: e.Content}
}
