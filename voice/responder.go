package voice

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/metrics"
	"github.com/MeriemTerki/Project2CS/internal/telemetry"
	"github.com/MeriemTerki/Project2CS/types"
)

// ContextPlaceholder 是系统提示词模板中检索上下文的占位符
const ContextPlaceholder = "{context}"

// DefaultFallbackReply 回复生成失败时返回给用户的文本
const DefaultFallbackReply = "Sorry, I encountered an error. Could you please repeat that?"

// ChatModel 对话补全模型
type ChatModel interface {
	Complete(ctx context.Context, req types.ChatRequest) (string, error)
}

// Retriever 上下文检索
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}

// ResponderConfig 回复生成参数
type ResponderConfig struct {
	SystemPrompt  string
	FallbackReply string
	MemorySize    int
	TopK          int
	Model         string
	Temperature   float32
	MaxTokens     int
}

// DefaultResponderConfig 返回默认参数，SystemPrompt 需要调用方提供
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		SystemPrompt:  ContextPlaceholder,
		FallbackReply: DefaultFallbackReply,
		MemorySize:    10,
		TopK:          3,
		Temperature:   0.7,
		MaxTokens:     150,
	}
}

// Responder 检索上下文并生成回复。多个会话可以共享同一个 Responder。
type Responder struct {
	model     ChatModel
	retriever Retriever
	cfg       ResponderConfig
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewResponder 创建回复生成器；retriever 为 nil 时不做检索，上下文为空
func NewResponder(model ChatModel, retriever Retriever, cfg ResponderConfig, collector *metrics.Collector, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultResponderConfig()
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = def.FallbackReply
	}
	if cfg.MemorySize <= 0 {
		cfg.MemorySize = def.MemorySize
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}

	return &Responder{
		model:     model,
		retriever: retriever,
		cfg:       cfg,
		metrics:   collector,
		logger:    logger.With(zap.String("component", "responder")),
	}
}

// FallbackReply 返回兜底文本
func (r *Responder) FallbackReply() string {
	return r.cfg.FallbackReply
}

// stageError 标记失败发生在哪一步
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Reply 根据对话生成回复。任何一步失败都返回兜底文本，不向上传播错误。
func (r *Responder) Reply(ctx context.Context, messages []types.Message) string {
	ctx, span := telemetry.StartSpan(ctx, "voice.reply")
	start := time.Now()

	reply, err := r.generate(ctx, messages)
	telemetry.EndSpan(span, err)
	r.metrics.RecordReply(time.Since(start))

	if err != nil {
		stage := "unknown"
		var se *stageError
		if errors.As(err, &se) {
			stage = se.stage
		}
		r.metrics.RecordFallback(stage)
		r.logger.Warn("reply generation failed, using fallback",
			zap.String("stage", stage),
			zap.Error(err),
		)
		return r.cfg.FallbackReply
	}
	return reply
}

func (r *Responder) generate(ctx context.Context, messages []types.Message) (string, error) {
	if len(messages) == 0 {
		return "", &stageError{stage: "input", err: errors.New("no messages")}
	}

	query := types.LastUserContent(messages)
	snippets, err := r.retrieve(ctx, query)
	if err != nil {
		return "", &stageError{stage: "retrieval", err: err}
	}

	prompt := r.BuildPrompt(messages, snippets)
	reply, err := r.model.Complete(ctx, types.ChatRequest{
		Model:       r.cfg.Model,
		Messages:    prompt,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
	if err != nil {
		return "", &stageError{stage: "llm", err: err}
	}
	return reply, nil
}

// retrieve 在独立 goroutine 中检索，调用方只等待结果或 ctx 结束
func (r *Responder) retrieve(ctx context.Context, query string) ([]string, error) {
	if r.retriever == nil {
		return nil, nil
	}

	type result struct {
		snippets []string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		snippets, err := r.retriever.Retrieve(ctx, query, r.cfg.TopK)
		done <- result{snippets: snippets, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.snippets) > r.cfg.TopK {
			res.snippets = res.snippets[:r.cfg.TopK]
		}
		return res.snippets, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BuildPrompt 组装最终提示：替换上下文后的 system 轮次在前，
// 随后是最近 MemorySize 轮非 system 消息。
// 输入中第一条 system 消息作为模板，没有时使用配置的模板。
func (r *Responder) BuildPrompt(messages []types.Message, snippets []string) []types.Message {
	template := r.cfg.SystemPrompt
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			template = m.Content
			break
		}
	}

	contextBlock := strings.Join(snippets, "\n")
	system := types.NewSystemMessage(strings.ReplaceAll(template, ContextPlaceholder, contextBlock))

	window := lastTurns(messages, r.cfg.MemorySize)
	prompt := make([]types.Message, 0, len(window)+1)
	prompt = append(prompt, system)
	return append(prompt, window...)
}
