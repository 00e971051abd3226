package voice

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/types"
)

// ReplyGenerator 根据对话生成回复，失败时自行兜底
type ReplyGenerator interface {
	Reply(ctx context.Context, messages []types.Message) string
}

// AudioOutput 播报回复
type AudioOutput interface {
	Speak(ctx context.Context, text string) error
}

// ConversationConfig 会话管理参数
type ConversationConfig struct {
	// MemorySize 拼接提示时使用的最近轮数
	MemorySize int
	// SystemPrompt 带 {context} 占位符的系统提示词模板
	SystemPrompt string
}

// Conversation 是事件队列的唯一消费端：按到达顺序逐条处理，
// 一轮回复的生成与播报结束后才处理下一条事件。
type Conversation struct {
	client    ClientConn
	responder ReplyGenerator
	speaker   AudioOutput
	detector  *TerminationDetector
	history   *History
	cfg       ConversationConfig
	logger    *zap.Logger

	finished bool
}

// NewConversation 创建会话管理器
func NewConversation(client ClientConn, responder ReplyGenerator, speaker AudioOutput, detector *TerminationDetector, cfg ConversationConfig, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MemorySize <= 0 {
		cfg.MemorySize = 10
	}
	return &Conversation{
		client:    client,
		responder: responder,
		speaker:   speaker,
		detector:  detector,
		history:   NewHistory(cfg.MemorySize),
		cfg:       cfg,
		logger:    logger,
	}
}

// History 返回对话历史
func (c *Conversation) History() *History {
	return c.history
}

// Finished 是否因告别语结束
func (c *Conversation) Finished() bool {
	return c.finished
}

// Run 消费事件直到识别到告别语、队列关闭或 ctx 结束。
// 前两种情况返回 nil。
func (c *Conversation) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			done, err := c.handle(ctx, ev)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (c *Conversation) handle(ctx context.Context, ev Event) (bool, error) {
	if ev.Kind != EventSpeechFinal {
		// 字幕原样转发
		return false, c.client.WriteJSON(ctx, ev.Message())
	}

	if c.detector.Match(NormalizeUtterance(ev.Content)) {
		c.finished = true
		c.logger.Info("termination phrase detected")
		if err := c.client.WriteJSON(ctx, ClientMessage{Type: MessageFinish}); err != nil {
			return true, err
		}
		return true, nil
	}

	c.history.Append(types.NewUserMessage(ev.Content))

	prompt := make([]types.Message, 0, c.cfg.MemorySize+1)
	prompt = append(prompt, types.NewSystemMessage(c.cfg.SystemPrompt))
	prompt = append(prompt, c.history.Window(c.cfg.MemorySize)...)

	reply := c.responder.Reply(ctx, prompt)
	c.history.Append(types.NewAssistantMessage(reply))

	if err := c.client.WriteJSON(ctx, ClientMessage{Type: MessageAssistant, Content: reply}); err != nil {
		return false, err
	}
	if err := c.speaker.Speak(ctx, reply); err != nil {
		return false, fmt.Errorf("speak reply: %w", err)
	}
	return false, nil
}
