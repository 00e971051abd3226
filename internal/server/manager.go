package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config 单个监听端口的参数；零值字段由 DefaultConfig 补齐
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
}

// DefaultConfig 返回默认监听参数
func DefaultConfig() Config {
	return Config{
		Addr:              ":8000",
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = def.ReadHeaderTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

// Manager 持有一个 http.Server：后台监听，异常经 Errors 上报，由调用方决定是否整体停机。
type Manager struct {
	srv    *http.Server
	cfg    Config
	errs   chan error
	logger *zap.Logger

	mu      sync.RWMutex
	ln      net.Listener
	stopped bool
}

// NewManager 创建管理器，此时不监听端口
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	return &Manager{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		cfg:    cfg,
		errs:   make(chan error, 1),
		logger: logger.With(zap.String("component", "http_server"), zap.String("addr", cfg.Addr)),
	}
}

// Start 监听端口并在后台提供服务；同一个 Manager 只能启动一次
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.stopped:
		return errors.New("server is closed")
	case m.ln != nil:
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	m.ln = ln

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		select {
		case m.errs <- err:
		default:
		}
	}()

	m.logger.Info("listening", zap.String("bound", ln.Addr().String()))
	return nil
}

// OnShutdown 注册停机钩子，Shutdown 开始时在独立 goroutine 中执行。
// 被劫持的 websocket 连接不在 http.Server 的跟踪范围内，需要由钩子结束。
func (m *Manager) OnShutdown(fn func()) {
	m.srv.RegisterOnShutdown(fn)
}

// Shutdown 停止接收新连接并等待进行中的请求，最长等待 ShutdownTimeout。可重复调用。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Errors 返回后台服务异常；每个 Manager 最多上报一次
func (m *Manager) Errors() <-chan error {
	return m.errs
}

// Addr 启动后返回实际监听地址（":0" 解析为具体端口），否则返回配置地址
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ln != nil {
		return m.ln.Addr().String()
	}
	return m.cfg.Addr
}

// IsRunning 在 Shutdown 之前返回 true
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.stopped
}
