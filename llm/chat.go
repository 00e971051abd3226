package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/metrics"
	"github.com/MeriemTerki/Project2CS/internal/retry"
	"github.com/MeriemTerki/Project2CS/internal/tlsutil"
	"github.com/MeriemTerki/Project2CS/types"
)

// Config 对话模型配置
type Config struct {
	Provider    string        `json:"provider" yaml:"provider"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float32       `json:"temperature" yaml:"temperature"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	// MaxRetries 可重试错误（429、5xx、超时）的重试次数，0 表示不重试
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DefaultConfig 返回 Groq 默认配置
func DefaultConfig() Config {
	return Config{
		Provider:    "groq",
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama3-8b-8192",
		Temperature: 0.7,
		MaxTokens:   150,
		Timeout:     30 * time.Second,
	}
}

// ChatClient 通过 OpenAI 兼容接口执行对话补全
type ChatClient struct {
	client  *openai.Client
	httpc   *http.Client
	cfg     Config
	retryer *retry.Retryer
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewChatClient 创建对话客户端；collector 可以为 nil
func NewChatClient(cfg Config, collector *metrics.Collector, logger *zap.Logger) *ChatClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	httpc := tlsutil.SecureHTTPClient(cfg.Timeout)
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = httpc

	logger = logger.With(zap.String("component", "llm"), zap.String("provider", cfg.Provider))
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries

	return &ChatClient{
		client:  openai.NewClientWithConfig(clientConfig),
		httpc:   httpc,
		cfg:     cfg,
		retryer: retry.New(policy, logger),
		metrics: collector,
		logger:  logger,
	}
}

func (c *ChatClient) Name() string { return c.cfg.Provider }

// Complete 执行一次非流式对话补全并返回第一个候选的文本。
// 请求中未设置的模型与采样参数使用客户端配置。
func (c *ChatClient) Complete(ctx context.Context, req types.ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	// duration 记录最后一次尝试的耗时
	var duration time.Duration
	resp, err := retry.DoValue(ctx, c.retryer, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		duration = time.Since(start)
		if err != nil {
			c.metrics.RecordLLMRequest(c.cfg.Provider, model, "error", duration)
			return resp, c.mapError(err)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		c.metrics.RecordLLMRequest(c.cfg.Provider, model, "empty", duration)
		return "", types.NewError(types.ErrUpstreamError, "empty chat response").WithProvider(c.cfg.Provider)
	}

	c.metrics.RecordLLMRequest(c.cfg.Provider, model, "success", duration)
	c.logger.Debug("chat completion finished",
		zap.String("model", model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", duration),
	)
	return resp.Choices[0].Message.Content, nil
}

// Close 释放空闲连接
func (c *ChatClient) Close() {
	c.httpc.CloseIdleConnections()
}

// mapError 把 go-openai 错误转换为 types.Error
func (c *ChatClient) mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrUpstreamTimeout, "chat completion timed out").
			WithCause(err).WithRetryable(true).WithProvider(c.cfg.Provider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message, err).WithProvider(c.cfg.Provider)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, "chat completion request failed", err).WithProvider(c.cfg.Provider)
	}

	return types.NewError(types.ErrUpstreamError, "chat completion failed").
		WithCause(err).WithRetryable(true).WithProvider(c.cfg.Provider)
}

func statusError(status int, message string, cause error) *types.Error {
	code := types.ErrUpstreamError
	retryable := status >= 500
	switch {
	case status == http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code = types.ErrInvalidRequest
	case status == http.StatusServiceUnavailable:
		code = types.ErrServiceUnavailable
	}
	return types.NewError(code, message).
		WithCause(cause).
		WithHTTPStatus(status).
		WithRetryable(retryable)
}
