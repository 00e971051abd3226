package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/api"
	"github.com/MeriemTerki/Project2CS/internal/ctxkeys"
	"github.com/MeriemTerki/Project2CS/types"
	"github.com/MeriemTerki/Project2CS/voice"
)

// =============================================================================
// 🎙️ 语音会话 Handler
// =============================================================================

// DefaultAudioReadLimit 单帧上行音频的上限
const DefaultAudioReadLimit = 1 << 20

// SessionFactory 为一条已升级的连接创建会话
type SessionFactory func(client voice.ClientConn) *voice.Session

// VoiceConfig 语音端点参数
type VoiceConfig struct {
	// AllowedOrigins 与 CORS 配置一致，"*" 表示不校验来源
	AllowedOrigins []string
	// ReadLimit 单条 WebSocket 消息的最大字节数
	ReadLimit int64
}

// VoiceHandler 处理 /ws：升级连接并运行一次语音会话，直到会话结束
type VoiceHandler struct {
	newSession SessionFactory
	accept     websocket.AcceptOptions
	readLimit  int64
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[*voice.Session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewVoiceHandler 创建语音会话处理器
func NewVoiceHandler(factory SessionFactory, cfg VoiceConfig, logger *zap.Logger) *VoiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultAudioReadLimit
	}
	return &VoiceHandler{
		newSession: factory,
		accept:     acceptOptions(cfg.AllowedOrigins),
		readLimit:  cfg.ReadLimit,
		logger:     logger.With(zap.String("component", "voice_handler")),
		sessions:   make(map[*voice.Session]struct{}),
	}
}

// acceptOptions 把 CORS 来源转换为 websocket 的 host 匹配模式
func acceptOptions(origins []string) websocket.AcceptOptions {
	var opts websocket.AcceptOptions
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			opts.InsecureSkipVerify = true
			opts.OriginPatterns = nil
			return opts
		}
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o = strings.TrimRight(o, "/"); o != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, o)
		}
	}
	return opts
}

// HandleWebsocket 处理 GET /ws
func (h *VoiceHandler) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "server is shutting down", h.logger)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	// 会话时长不受 http.Server 读写超时限制
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	opts := h.accept
	conn, err := websocket.Accept(w, r, &opts)
	if err != nil {
		// Accept 已经写出错误响应
		h.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}
	conn.SetReadLimit(h.readLimit)

	session := h.newSession(voice.NewWebsocketClient(conn))
	if !h.track(session) {
		// 握手期间开始停机
		session.Stop()
	}
	defer h.untrack(session)

	logger := h.logger.With(zap.String("session_id", session.ID()))
	if id, ok := ctxkeys.RequestID(r.Context()); ok {
		logger = logger.With(zap.String("request_id", id))
	}
	logger.Info("voice client connected", zap.String("remote_addr", r.RemoteAddr))

	if err := session.Run(r.Context()); err != nil {
		logger.Error("voice session failed", zap.Error(err), zap.String("outcome", session.Outcome()))
		return
	}
	logger.Info("voice client finished", zap.String("outcome", session.Outcome()))
}

func (h *VoiceHandler) track(s *voice.Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
	return !h.closed
}

func (h *VoiceHandler) untrack(s *voice.Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// ActiveSessions 返回正在运行的会话数
func (h *VoiceHandler) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// HandleStats 处理 GET /ws/stats
func (h *VoiceHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	stats := api.VoiceStats{ActiveSessions: len(h.sessions), Accepting: !h.closed}
	h.mu.Unlock()
	WriteSuccess(w, stats)
}

// Shutdown 拒绝新连接并停止所有会话，等待处理器退出。
// 注册到 server.Manager.OnShutdown，被劫持的连接不受 http.Server.Shutdown 管理。
func (h *VoiceHandler) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*voice.Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	h.logger.Info("stopping voice sessions", zap.Int("active", len(sessions)))
	for _, s := range sessions {
		s.Stop()
	}
	h.wg.Wait()
}
