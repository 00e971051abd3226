package speech

import (
	"encoding/json"
	"errors"
)

// ErrStreamClosed 在识别流关闭后继续写入时返回
var ErrStreamClosed = errors.New("speech: stream closed")

// ResultKind 识别结果类别
type ResultKind int

const (
	// ResultTranscript 带文本的转写结果（interim 或 final）
	ResultTranscript ResultKind = iota
	// ResultUtteranceEnd 基于静音检测的话语结束信号
	ResultUtteranceEnd
)

// String 返回结果类别名称
func (k ResultKind) String() string {
	switch k {
	case ResultTranscript:
		return "transcript"
	case ResultUtteranceEnd:
		return "utterance_end"
	default:
		return "unknown"
	}
}

// Result 是识别服务推送的一条结果
type Result struct {
	Kind ResultKind `json:"kind"`

	// Text 首选候选的转写文本，UtteranceEnd 时为空
	Text string `json:"text,omitempty"`

	// IsFinal 该段文本不会再被修订
	IsFinal bool `json:"is_final,omitempty"`

	// SpeechFinal 识别端判定整句话在词边界处结束
	SpeechFinal bool `json:"speech_final,omitempty"`
}

// ============================================================
// Deepgram live 协议消息
// ============================================================

const (
	deepgramTypeResults      = "Results"
	deepgramTypeUtteranceEnd = "UtteranceEnd"
	deepgramTypeMetadata     = "Metadata"
	deepgramTypeSpeechStart  = "SpeechStarted"
)

// deepgramLiveMessage 是服务端推送消息的公共外形
type deepgramLiveMessage struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	LastWordEnd float64 `json:"last_word_end,omitempty"`
}

// deepgramControl 是客户端发送的控制消息
type deepgramControl struct {
	Type string `json:"type"`
}

var (
	keepAliveMessage   = mustControl("KeepAlive")
	closeStreamMessage = mustControl("CloseStream")
)

func mustControl(kind string) []byte {
	data, err := json.Marshal(deepgramControl{Type: kind})
	if err != nil {
		panic(err)
	}
	return data
}

// parseLiveMessage 把一条服务端消息转换为 Result；不关心的消息返回 false
func parseLiveMessage(data []byte) (Result, bool, error) {
	var msg deepgramLiveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Result{}, false, err
	}

	switch msg.Type {
	case deepgramTypeResults:
		var text string
		if len(msg.Channel.Alternatives) > 0 {
			text = msg.Channel.Alternatives[0].Transcript
		}
		return Result{
			Kind:        ResultTranscript,
			Text:        text,
			IsFinal:     msg.IsFinal,
			SpeechFinal: msg.SpeechFinal,
		}, true, nil
	case deepgramTypeUtteranceEnd:
		return Result{Kind: ResultUtteranceEnd}, true, nil
	default:
		// Metadata / SpeechStarted 等消息忽略
		return Result{}, false, nil
	}
}
