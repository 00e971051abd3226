package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MeriemTerki/Project2CS/internal/tlsutil"
	"github.com/MeriemTerki/Project2CS/types"
)

// TTSClient 使用 Deepgram speak 接口执行流式语音合成
type TTSClient struct {
	cfg    TTSConfig
	client *http.Client
}

// NewTTSClient 创建语音合成客户端。
// Timeout 只约束到响应头返回为止，音频流本身的读取由调用方的 ctx 控制。
func NewTTSClient(cfg TTSConfig) *TTSClient {
	def := DefaultTTSConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	return &TTSClient{
		cfg:    cfg,
		client: tlsutil.StreamingHTTPClient(cfg.Timeout),
	}
}

// NewTTSClientWithHTTPClient 使用自定义 HTTP 客户端
func NewTTSClientWithHTTPClient(cfg TTSConfig, client *http.Client) *TTSClient {
	c := NewTTSClient(cfg)
	if client != nil {
		c.client = client
	}
	return c
}

func (c *TTSClient) Name() string { return "deepgram" }

type deepgramSpeakRequest struct {
	Text string `json:"text"`
}

// Synthesize 发起合成请求并返回音频流；调用方负责关闭
func (c *TTSClient) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse speak URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("model", c.cfg.Voice)
	endpoint.RawQuery = q.Encode()

	payload, err := json.Marshal(deepgramSpeakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal speak request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrTTSUnavailable, "deepgram speak request failed").
			WithCause(err).
			WithRetryable(true).
			WithProvider(c.Name())
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrTTSUnavailable,
			fmt.Sprintf("deepgram speak error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(errBody)))).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests).
			WithProvider(c.Name())
	}

	return resp.Body, nil
}

// CloseIdleConnections 释放空闲连接，会话结束时调用
func (c *TTSClient) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
