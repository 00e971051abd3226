package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MeriemTerki/Project2CS/internal/tlsutil"
	"github.com/MeriemTerki/Project2CS/types"
)

// CohereConfig 配置 Cohere 嵌入
type CohereConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// CohereEmbedder 通过 Cohere /v2/embed 生成查询向量
type CohereEmbedder struct {
	cfg    CohereConfig
	client *http.Client
}

// NewCohereEmbedder 创建 Cohere 嵌入器
func NewCohereEmbedder(cfg CohereConfig) *CohereEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if cfg.Model == "" {
		cfg.Model = "embed-english-v2.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &CohereEmbedder{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

type cohereEmbedRequest struct {
	Texts          []string `json:"texts"`
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type cohereEmbedResponse struct {
	ID         string `json:"id"`
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

// EmbedQuery 以 search_query 类型编码单条查询
func (e *CohereEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(cohereEmbedRequest{
		Texts:          []string{text},
		Model:          e.cfg.Model,
		InputType:      "search_query",
		EmbeddingTypes: []string{"float"},
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(e.cfg.BaseURL, "/") + "/v2/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrRetrieval, "cohere embed request failed").
			WithCause(err).WithRetryable(true).WithProvider("cohere")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrRetrieval,
			fmt.Sprintf("cohere embed failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests).
			WithProvider("cohere")
	}

	var cResp cohereEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return nil, fmt.Errorf("decode cohere response: %w", err)
	}
	if len(cResp.Embeddings.Float) == 0 || len(cResp.Embeddings.Float[0]) == 0 {
		return nil, types.NewError(types.ErrRetrieval, "cohere returned no embeddings").WithProvider("cohere")
	}
	return cResp.Embeddings.Float[0], nil
}
