package voice

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/metrics"
	"github.com/MeriemTerki/Project2CS/speech"
)

// =============================================================================
// 🧩 FragmentBuffer
// =============================================================================

// FragmentBuffer 累积等待结束的 final 片段。
// 词边界与静音两条路径可能同时触发，Flush 在锁内完成拼接与清空，
// 空缓冲返回 false，因此每句话只会产生一次 speech_final。
type FragmentBuffer struct {
	mu    sync.Mutex
	parts []string
}

// Append 追加一个片段
func (b *FragmentBuffer) Append(text string) {
	b.mu.Lock()
	b.parts = append(b.parts, text)
	b.mu.Unlock()
}

// Flush 以单个空格拼接所有片段并清空缓冲
func (b *FragmentBuffer) Flush() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.parts) == 0 {
		return "", false
	}
	joined := strings.Join(b.parts, " ")
	b.parts = nil
	return joined, true
}

// Len 返回当前片段数
func (b *FragmentBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.parts)
}

// =============================================================================
// 🎧 Transcriber
// =============================================================================

// Transcriber 把识别结果转换为转写事件，是事件队列的生产端
type Transcriber struct {
	buffer  *FragmentBuffer
	events  chan<- Event
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewTranscriber 创建 Transcriber，事件写入 events
func NewTranscriber(events chan<- Event, collector *metrics.Collector, logger *zap.Logger) *Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcriber{
		buffer:  &FragmentBuffer{},
		events:  events,
		metrics: collector,
		logger:  logger,
	}
}

// Buffer 返回片段缓冲
func (t *Transcriber) Buffer() *FragmentBuffer {
	return t.buffer
}

// Handle 处理一条识别结果。只有 ctx 结束时返回错误。
func (t *Transcriber) Handle(ctx context.Context, result speech.Result) error {
	switch result.Kind {
	case speech.ResultUtteranceEnd:
		return t.flush(ctx)

	case speech.ResultTranscript:
		if result.Text == "" {
			return nil
		}
		if !result.IsFinal {
			return t.emit(ctx, Event{Kind: EventInterim, Content: result.Text})
		}

		t.buffer.Append(result.Text)
		if err := t.emit(ctx, Event{Kind: EventFinal, Content: result.Text}); err != nil {
			return err
		}
		if result.SpeechFinal {
			return t.flush(ctx)
		}
		return nil

	default:
		return nil
	}
}

func (t *Transcriber) flush(ctx context.Context) error {
	utterance, ok := t.buffer.Flush()
	if !ok {
		return nil
	}
	return t.emit(ctx, Event{Kind: EventSpeechFinal, Content: utterance})
}

func (t *Transcriber) emit(ctx context.Context, ev Event) error {
	select {
	case t.events <- ev:
		t.metrics.RecordTranscriptEvent(string(ev.Kind))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
