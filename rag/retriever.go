package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/metrics"
	"github.com/MeriemTerki/Project2CS/internal/telemetry"
)

// Retriever 组合嵌入与向量检索，返回相关文本片段
type Retriever struct {
	embedder Embedder
	store    VectorStore
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewRetriever 创建检索器；collector 可以为 nil
func NewRetriever(embedder Embedder, store VectorStore, collector *metrics.Collector, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "retriever"), zap.String("backend", store.Name())),
	}
}

// Retrieve 返回与 query 最相关的至多 topK 条片段
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (snippets []string, err error) {
	query = strings.TrimSpace(query)
	if query == "" || topK <= 0 {
		return nil, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "rag.retrieve")
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordRetrieval(r.store.Name(), status, time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.store.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}

	snippets = Texts(matches)
	r.logger.Debug("retrieved context",
		zap.Int("matches", len(matches)),
		zap.Int("snippets", len(snippets)),
		zap.Duration("duration", time.Since(start)),
	)
	return snippets, nil
}

// Close 关闭底层向量库
func (r *Retriever) Close() error {
	return r.store.Close()
}

// Name 用作健康检查名称
func (r *Retriever) Name() string { return "retrieval" }

type storeChecker interface {
	Check(ctx context.Context) error
}

// Check 检查向量库是否可用；不支持检查的后端视为可用
func (r *Retriever) Check(ctx context.Context) error {
	if c, ok := r.store.(storeChecker); ok {
		if err := c.Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", r.store.Name(), err)
		}
	}
	return nil
}
