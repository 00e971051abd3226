package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/tlsutil"
)

// PineconeConfig configures the Pinecone VectorStore implementation.
//
// Either BaseURL (data-plane host) or Index must be set; with only Index the
// host is resolved once through the controller API.
type PineconeConfig struct {
	APIKey    string        `json:"api_key"`
	Index     string        `json:"index,omitempty"`
	BaseURL   string        `json:"base_url,omitempty"`
	Namespace string        `json:"namespace,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`

	ControllerBaseURL string `json:"controller_base_url,omitempty"` // Default: https://api.pinecone.io

	// Metadata field that holds the snippet text.
	TextField string `json:"text_field,omitempty"` // Default: "text"
}

// PineconeStore implements VectorStore using Pinecone's REST API.
type PineconeStore struct {
	cfg    PineconeConfig
	logger *zap.Logger
	client *http.Client

	mu      sync.RWMutex
	baseURL string
}

// NewPineconeStore creates a Pinecone-backed VectorStore.
func NewPineconeStore(cfg PineconeConfig, logger *zap.Logger) *PineconeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ControllerBaseURL == "" {
		cfg.ControllerBaseURL = "https://api.pinecone.io"
	}
	if cfg.TextField == "" {
		cfg.TextField = "text"
	}

	return &PineconeStore{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "pinecone_store")),
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
	}
}

func (s *PineconeStore) Name() string { return "pinecone" }

// Check 解析数据面地址，用于就绪检查
func (s *PineconeStore) Check(ctx context.Context) error {
	_, err := s.resolveBaseURL(ctx)
	return err
}

func (s *PineconeStore) resolveBaseURL(ctx context.Context) (string, error) {
	s.mu.RLock()
	baseURL := s.baseURL
	s.mu.RUnlock()
	if baseURL != "" {
		return baseURL, nil
	}

	if strings.TrimSpace(s.cfg.Index) == "" {
		return "", fmt.Errorf("pinecone base_url is required when index is empty")
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", fmt.Errorf("pinecone api_key is required")
	}

	// GET /indexes/{index} 返回数据面 host
	controller := strings.TrimRight(strings.TrimSpace(s.cfg.ControllerBaseURL), "/")
	endpoint := fmt.Sprintf("%s/indexes/%s", controller, url.PathEscape(s.cfg.Index))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinecone describe index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("pinecone describe index failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var describe struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&describe); err != nil {
		return "", err
	}
	host := strings.TrimSpace(describe.Host)
	if host == "" {
		return "", fmt.Errorf("pinecone controller returned empty host for index %q", s.cfg.Index)
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	host = strings.TrimRight(host, "/")

	s.mu.Lock()
	s.baseURL = host
	s.mu.Unlock()

	s.logger.Debug("resolved pinecone host", zap.String("index", s.cfg.Index), zap.String("host", host))
	return host, nil
}

func (s *PineconeStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	baseURL, err := s.resolveBaseURL(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Search 查询 topK 条最相近的记录
func (s *PineconeStore) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	req := struct {
		Vector          []float32 `json:"vector"`
		TopK            int       `json:"topK"`
		Namespace       string    `json:"namespace,omitempty"`
		IncludeMetadata bool      `json:"includeMetadata"`
	}{
		Vector:          vector,
		TopK:            topK,
		Namespace:       strings.TrimSpace(s.cfg.Namespace),
		IncludeMetadata: true,
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float32        `json:"score"`
			Metadata map[string]any `json:"metadata,omitempty"`
		} `json:"matches"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := Match{ID: m.ID, Score: m.Score}
		if v, ok := m.Metadata[s.cfg.TextField].(string); ok {
			match.Text = v
		}
		out = append(out, match)
	}
	return out, nil
}

// Close 释放空闲连接
func (s *PineconeStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
