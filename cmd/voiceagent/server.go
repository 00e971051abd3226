package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/api/handlers"
	"github.com/MeriemTerki/Project2CS/config"
	"github.com/MeriemTerki/Project2CS/internal/cache"
	"github.com/MeriemTerki/Project2CS/internal/metrics"
	"github.com/MeriemTerki/Project2CS/internal/server"
	"github.com/MeriemTerki/Project2CS/internal/telemetry"
	"github.com/MeriemTerki/Project2CS/llm"
	"github.com/MeriemTerki/Project2CS/rag"
	"github.com/MeriemTerki/Project2CS/speech"
	"github.com/MeriemTerki/Project2CS/voice"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是语音评估服务的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler *handlers.HealthHandler
	chatHandler   *handlers.ChatHandler
	voiceHandler  *handlers.VoiceHandler

	// 依赖
	registry         *prometheus.Registry
	metricsCollector *metrics.Collector
	cacheManager     *cache.Manager
	retriever        *rag.Retriever
	chatClient       *llm.ChatClient
	liveClient       *speech.LiveClient
	responder        *voice.Responder
	terminator       *voice.TerminationDetector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器（每个 Server 独立注册表）
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metricsCollector = metrics.NewCollector("voiceagent", s.registry, s.logger)

	// 2. 初始化依赖与 Handlers
	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 4. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("retrieval_enabled", s.retriever != nil),
		zap.Bool("cache_enabled", s.cacheManager != nil),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers 初始化回复链路、语音链路与所有 handlers
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.logger).WithVersion(Version)

	// Redis 缓存（可选），不可用时降级为直连检索
	if s.cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = s.cfg.Redis.Addr
		cacheCfg.Password = s.cfg.Redis.Password
		cacheCfg.DB = s.cfg.Redis.DB
		if s.cfg.Redis.PoolSize > 0 {
			cacheCfg.PoolSize = s.cfg.Redis.PoolSize
		}
		cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns

		manager, err := cache.NewManager(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("Redis not available, retrieval cache disabled", zap.Error(err))
		} else {
			s.cacheManager = manager
			s.healthHandler.RegisterCheck(manager)
		}
	}

	// 上下文检索
	var retriever voice.Retriever
	if s.cfg.Retrieval.Enabled {
		r, err := rag.NewRetrieverFromConfig(s.cfg.Retrieval, s.metricsCollector, s.logger)
		if err != nil {
			return fmt.Errorf("create retriever: %w", err)
		}
		s.retriever = r
		s.healthHandler.RegisterCheck(r)
		retriever = r

		if s.cacheManager != nil && s.cfg.Retrieval.CacheTTL > 0 {
			retriever = rag.NewCachedRetriever(r, s.cacheManager, s.cfg.Retrieval.CacheTTL, s.metricsCollector, s.logger)
		}
	} else {
		s.logger.Info("Retrieval disabled, replies use an empty context")
	}

	// LLM
	s.chatClient = llm.NewChatClient(llm.Config{
		Provider:    s.cfg.LLM.Provider,
		APIKey:      s.cfg.LLM.APIKey,
		BaseURL:     s.cfg.LLM.BaseURL,
		Model:       s.cfg.LLM.Model,
		Temperature: float32(s.cfg.LLM.Temperature),
		MaxTokens:   s.cfg.LLM.MaxTokens,
		Timeout:     s.cfg.LLM.Timeout,
		MaxRetries:  s.cfg.LLM.MaxRetries,
	}, s.metricsCollector, s.logger)

	conv := s.cfg.Conversation
	s.responder = voice.NewResponder(s.chatClient, retriever, voice.ResponderConfig{
		SystemPrompt:  conv.SystemPrompt,
		FallbackReply: conv.FallbackReply,
		MemorySize:    conv.MemorySize,
		TopK:          s.cfg.Retrieval.TopK,
		Model:         s.cfg.LLM.Model,
		Temperature:   float32(s.cfg.LLM.Temperature),
		MaxTokens:     s.cfg.LLM.MaxTokens,
	}, s.metricsCollector, s.logger)

	terminator, err := voice.NewTerminationDetector(conv.TerminationPhrases)
	if err != nil {
		return fmt.Errorf("create termination detector: %w", err)
	}
	s.terminator = terminator

	// 语音链路
	s.liveClient = speech.NewLiveClient(s.liveConfig(), s.logger)

	s.chatHandler = handlers.NewChatHandler(s.responder, s.cfg.LLM.Timeout, s.logger)
	s.voiceHandler = handlers.NewVoiceHandler(s.newSession, handlers.VoiceConfig{
		AllowedOrigins: s.cfg.Server.CORSAllowedOrigins,
	}, s.logger)

	s.logger.Info("Handlers initialized",
		zap.String("llm_provider", s.chatClient.Name()),
		zap.String("llm_model", s.cfg.LLM.Model),
		zap.Strings("termination_phrases", terminator.Phrases()),
	)
	return nil
}

func (s *Server) liveConfig() speech.LiveConfig {
	dg := s.cfg.Deepgram
	cfg := speech.DefaultLiveConfig()
	cfg.APIKey = dg.APIKey
	if dg.ListenURL != "" {
		cfg.URL = dg.ListenURL
	}
	if dg.Model != "" {
		cfg.Model = dg.Model
	}
	if dg.Language != "" {
		cfg.Language = dg.Language
	}
	cfg.SmartFormat = dg.SmartFormat
	cfg.InterimResults = dg.InterimResults
	cfg.UtteranceEndMS = dg.UtteranceEndMS
	cfg.Endpointing = dg.Endpointing
	cfg.VADEvents = dg.VADEvents
	cfg.Encoding = dg.Encoding
	cfg.SampleRate = dg.SampleRate
	if dg.DialTimeout > 0 {
		cfg.DialTimeout = dg.DialTimeout
	}
	if dg.KeepAliveInterval > 0 {
		cfg.KeepAliveInterval = dg.KeepAliveInterval
	}
	if dg.FlushTimeout > 0 {
		cfg.FlushTimeout = dg.FlushTimeout
	}
	return cfg
}

func (s *Server) ttsConfig() speech.TTSConfig {
	dg := s.cfg.Deepgram
	cfg := speech.DefaultTTSConfig()
	cfg.APIKey = dg.APIKey
	if dg.SpeakURL != "" {
		cfg.URL = dg.SpeakURL
	}
	if dg.Voice != "" {
		cfg.Voice = dg.Voice
	}
	if dg.TTSTimeout > 0 {
		cfg.Timeout = dg.TTSTimeout
	}
	return cfg
}

// newSession 为每条连接创建会话；合成客户端归会话所有，识别客户端与回复链路共享
func (s *Server) newSession(client voice.ClientConn) *voice.Session {
	conv := s.cfg.Conversation
	return voice.NewSession(client, voice.SessionConfig{
		Conversation: voice.ConversationConfig{
			MemorySize:   conv.MemorySize,
			SystemPrompt: conv.SystemPrompt,
		},
		EventQueueSize: conv.EventQueueSize,
		AudioChunkSize: conv.AudioChunkSize,
	}, voice.SessionDeps{
		Recognizer:  voice.LiveRecognizer(s.liveClient),
		Synthesizer: speech.NewTTSClient(s.ttsConfig()),
		Responder:   s.responder,
		Terminator:  s.terminator,
		Metrics:     s.metricsCollector,
		Logger:      s.logger,
	})
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 语音与对话路由
	// ========================================
	mux.HandleFunc("/ws", s.voiceHandler.HandleWebsocket)
	mux.HandleFunc("/ws/stats", s.voiceHandler.HandleStats)
	mux.HandleFunc("/chat", s.chatHandler.HandleChat)

	// ========================================
	// 构建中间件链
	// ========================================
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)

	// /ws 在升级前清除读写超时，语音会话由自身的终止逻辑结束
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	// 被劫持的 WebSocket 连接不受 http.Server.Shutdown 管理
	s.httpManager.OnShutdown(s.voiceHandler.Shutdown)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号或任一监听端口异常，然后优雅关闭
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	s.waitForStop(quit)
	s.Shutdown()
}

// waitForStop 阻塞到收到信号或 HTTP / Metrics 服务异常退出
func (s *Server) waitForStop(quit <-chan os.Signal) {
	var httpErrs, metricsErrs <-chan error
	if s.httpManager != nil {
		httpErrs = s.httpManager.Errors()
	}
	if s.metricsManager != nil {
		metricsErrs = s.metricsManager.Errors()
	}

	select {
	case sig := <-quit:
		s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-httpErrs:
		s.logger.Error("HTTP server exited unexpectedly", zap.Error(err))
	case err := <-metricsErrs:
		s.logger.Error("Metrics server exited unexpectedly", zap.Error(err))
	}
}

// Shutdown 优雅关闭所有服务并释放依赖，可重复调用
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器（OnShutdown 停止所有语音会话）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 释放依赖
	if s.retriever != nil {
		if err := s.retriever.Close(); err != nil {
			s.logger.Error("Retriever close error", zap.Error(err))
		}
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Redis close error", zap.Error(err))
		}
	}
	if s.chatClient != nil {
		s.chatClient.Close()
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
