// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 会话指标
	sessionsActive  prometheus.Gauge
	sessionsTotal   *prometheus.CounterVec
	sessionDuration prometheus.Histogram

	// 转写与回复指标
	transcriptEvents *prometheus.CounterVec
	replyDuration    prometheus.Histogram
	replyFallbacks   *prometheus.CounterVec

	// 上游指标
	llmRequestsTotal       *prometheus.CounterVec
	llmRequestDuration     *prometheus.HistogramVec
	retrievalRequestsTotal *prometheus.CounterVec
	retrievalDuration      *prometheus.HistogramVec
	cacheHits              *prometheus.CounterVec
	cacheMisses            *prometheus.CounterVec

	// 合成指标
	ttsBytesTotal  prometheus.Counter
	ttsChunksTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg；reg 为 nil 时使用全局默认注册表。
// 同一注册表上重复注册同名指标会 panic，测试应为每个收集器使用独立的 prometheus.NewRegistry()。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 会话指标
	c.sessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voice_sessions_active",
			Help:      "Number of voice sessions currently connected",
		},
	)

	c.sessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_sessions_total",
			Help:      "Total number of voice sessions by outcome",
		},
		[]string{"outcome"}, // finished, disconnected, failed
	)

	c.sessionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "voice_session_duration_seconds",
			Help:      "Voice session lifetime in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// 转写与回复指标
	c.transcriptEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_total",
			Help:      "Total number of transcript events by kind",
		},
		[]string{"kind"},
	)

	c.replyDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_duration_seconds",
			Help:      "Time from speech-final to generated reply text",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	c.replyFallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_fallbacks_total",
			Help:      "Total number of fallback replies by failing stage",
		},
		[]string{"stage"}, // retrieval, llm
	)

	// 上游指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	c.retrievalRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_requests_total",
			Help:      "Total number of context retrieval requests",
		},
		[]string{"backend", "status"},
	)

	c.retrievalDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Context retrieval duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"backend"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 合成指标
	c.ttsBytesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_audio_bytes_total",
			Help:      "Total bytes of synthesized audio relayed to clients",
		},
	)

	c.ttsChunksTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_audio_chunks_total",
			Help:      "Total number of synthesized audio chunks relayed to clients",
		},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🎙️ 会话指标记录
// =============================================================================

// SessionStarted 记录会话开始
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
}

// SessionEnded 记录会话结束
func (c *Collector) SessionEnded(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
	c.sessionsTotal.WithLabelValues(outcome).Inc()
	c.sessionDuration.Observe(duration.Seconds())
}

// RecordTranscriptEvent 记录转写事件
func (c *Collector) RecordTranscriptEvent(kind string) {
	if c == nil {
		return
	}
	c.transcriptEvents.WithLabelValues(kind).Inc()
}

// RecordReply 记录一次回复生成
func (c *Collector) RecordReply(duration time.Duration) {
	if c == nil {
		return
	}
	c.replyDuration.Observe(duration.Seconds())
}

// RecordFallback 记录兜底回复
func (c *Collector) RecordFallback(stage string) {
	if c == nil {
		return
	}
	c.replyFallbacks.WithLabelValues(stage).Inc()
}

// =============================================================================
// 🤖 上游指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordRetrieval 记录检索请求
func (c *Collector) RecordRetrieval(backend, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.retrievalRequestsTotal.WithLabelValues(backend, status).Inc()
	c.retrievalDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🔊 合成指标记录
// =============================================================================

// RecordAudioChunk 记录一块下发的合成音频
func (c *Collector) RecordAudioChunk(size int) {
	if c == nil {
		return
	}
	c.ttsChunksTotal.Inc()
	c.ttsBytesTotal.Add(float64(size))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
