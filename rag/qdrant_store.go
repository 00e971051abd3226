package rag

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant VectorStore implementation.
type QdrantConfig struct {
	// URL 形如 https://example.qdrant.io:6334；未带端口时使用 gRPC 默认端口 6334
	URL        string `json:"url"`
	APIKey     string `json:"api_key,omitempty"`
	Collection string `json:"collection"`

	// Payload field that holds the snippet text.
	TextField string `json:"text_field,omitempty"` // Default: "text"
}

// QdrantStore implements VectorStore on the official Qdrant gRPC client.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	textField  string
	logger     *zap.Logger
}

// parseQdrantURL 拆出 host、port 与是否启用 TLS
func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	if strings.TrimSpace(raw) == "" {
		return "", 0, false, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port = 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

// NewQdrantStore creates a Qdrant-backed VectorStore.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if cfg.TextField == "" {
		cfg.TextField = "text"
	}

	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		textField:  cfg.TextField,
		logger:     logger.With(zap.String("component", "qdrant_store")),
	}, nil
}

func (s *QdrantStore) Name() string { return "qdrant" }

// Check 调用 Qdrant 健康检查接口
func (s *QdrantStore) Check(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// Search 查询 topK 条最相近的记录
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}
	return matchesFromPoints(points, s.textField), nil
}

// matchesFromPoints 把 Qdrant 返回的点转换为 Match
func matchesFromPoints(points []*qdrant.ScoredPoint, textField string) []Match {
	out := make([]Match, 0, len(points))
	for _, point := range points {
		match := Match{Score: point.GetScore()}
		if id := point.GetId(); id != nil {
			if uuid := id.GetUuid(); uuid != "" {
				match.ID = uuid
			} else {
				match.ID = strconv.FormatUint(id.GetNum(), 10)
			}
		}
		if v, ok := point.GetPayload()[textField]; ok {
			match.Text = v.GetStringValue()
		}
		out = append(out, match)
	}
	return out
}

// Close 关闭 gRPC 连接
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
