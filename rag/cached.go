package rag

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/cache"
	"github.com/MeriemTerki/Project2CS/internal/metrics"
)

// SnippetRetriever 是检索器的最小接口
type SnippetRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}

// CachedRetriever 以规范化后的查询为键缓存检索结果。
// 缓存读写失败只记录日志，不影响检索本身。
type CachedRetriever struct {
	next    SnippetRetriever
	cache   *cache.Manager
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewCachedRetriever 创建带缓存的检索器
func NewCachedRetriever(next SnippetRetriever, manager *cache.Manager, ttl time.Duration, collector *metrics.Collector, logger *zap.Logger) *CachedRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRetriever{
		next:    next,
		cache:   manager,
		ttl:     ttl,
		metrics: collector,
		logger:  logger.With(zap.String("component", "retrieval_cache")),
	}
}

func (c *CachedRetriever) key(query string, topK int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	return c.cache.Key("retrieval", normalized, strconv.Itoa(topK))
}

// Retrieve 先查缓存，未命中时调用下游并回写
func (c *CachedRetriever) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	key := c.key(query, topK)

	var cached []string
	err := c.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		c.metrics.RecordCacheHit("retrieval")
		return cached, nil
	case cache.IsCacheMiss(err):
		c.metrics.RecordCacheMiss("retrieval")
	default:
		c.logger.Warn("retrieval cache read failed", zap.Error(err))
	}

	snippets, err := c.next.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetJSON(ctx, key, snippets, c.ttl); err != nil {
		c.logger.Warn("retrieval cache write failed", zap.Error(err))
	}
	return snippets, nil
}
