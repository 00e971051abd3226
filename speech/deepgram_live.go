package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/tlsutil"
)

// liveReadLimit 单条服务端消息的上限，Results 消息通常只有几 KB
const liveReadLimit = 1 << 20

// LiveClient 创建 Deepgram 实时转写会话
type LiveClient struct {
	cfg    LiveConfig
	httpc  *http.Client
	logger *zap.Logger
}

// NewLiveClient 创建实时转写客户端，未设置的字段使用默认值
func NewLiveClient(cfg LiveConfig, logger *zap.Logger) *LiveClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultLiveConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.ResultBuffer <= 0 {
		cfg.ResultBuffer = def.ResultBuffer
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}

	return &LiveClient{
		cfg:    cfg,
		httpc:  tlsutil.UpgradeHTTPClient(),
		logger: logger.With(zap.String("component", "deepgram_live")),
	}
}

func (c *LiveClient) Name() string { return "deepgram" }

// endpoint 根据配置拼接带查询参数的 listen 地址
func (c *LiveClient) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse listen URL: %w", err)
	}

	q := u.Query()
	q.Set("model", c.cfg.Model)
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	q.Set("smart_format", strconv.FormatBool(c.cfg.SmartFormat))
	q.Set("interim_results", strconv.FormatBool(c.cfg.InterimResults))
	q.Set("vad_events", strconv.FormatBool(c.cfg.VADEvents))
	if c.cfg.UtteranceEndMS > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(c.cfg.UtteranceEndMS))
	}
	if c.cfg.Endpointing > 0 {
		q.Set("endpointing", strconv.Itoa(c.cfg.Endpointing))
	}
	if c.cfg.Encoding != "" {
		q.Set("encoding", c.cfg.Encoding)
	}
	if c.cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(c.cfg.SampleRate))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open 建立实时转写会话；握手失败直接返回错误。
// ctx 只约束握手，连接建立后的生命周期由 Close 控制。
func (c *LiveClient) Open(ctx context.Context) (*LiveStream, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.cfg.APIKey)

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancelDial()

	conn, resp, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient: c.httpc,
		HTTPHeader: headers,
	})
	if err != nil {
		if resp != nil {
			// websocket.Dial 只保留响应体的前 1KB
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("deepgram connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("deepgram connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram connect: %w", err)
	}
	conn.SetReadLimit(liveReadLimit)

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &LiveStream{
		conn:         conn,
		results:      make(chan Result, c.cfg.ResultBuffer),
		done:         make(chan struct{}),
		ctx:          streamCtx,
		cancel:       cancel,
		flushTimeout: c.cfg.FlushTimeout,
		logger:       c.logger,
	}

	go s.readLoop()
	if c.cfg.KeepAliveInterval > 0 {
		go s.keepAliveLoop(c.cfg.KeepAliveInterval)
	}

	c.logger.Debug("deepgram stream opened", zap.String("model", c.cfg.Model))
	return s, nil
}

// =============================================================================
// 🎙️ LiveStream
// =============================================================================

// LiveStream 是一次实时转写会话。生命周期与客户端连接一致，不可重启。
// coder/websocket 的写方法可并发调用，读只在 readLoop 中进行。
type LiveStream struct {
	conn         *websocket.Conn
	results      chan Result
	done         chan struct{}
	closed       atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	flushTimeout time.Duration
	logger       *zap.Logger

	errMu   sync.Mutex
	readErr error
}

// isNormalClose 服务端按协议关闭（CloseStream 之后 Deepgram 以 1000 断开）
func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

func (s *LiveStream) readLoop() {
	defer func() {
		close(s.results)
		close(s.done)
	}()

	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			// 主动关闭或服务端正常结束都不算错误
			if !s.closed.Load() && !isNormalClose(err) {
				s.setErr(fmt.Errorf("deepgram read: %w", err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		result, ok, err := parseLiveMessage(data)
		if err != nil {
			s.logger.Debug("skip malformed deepgram message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.results <- result:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveStream) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.write(websocket.MessageText, keepAliveMessage); err != nil {
				s.logger.Debug("deepgram keepalive failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *LiveStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.readErr == nil {
		s.readErr = err
	}
}

// Err 返回导致结果通道关闭的异常；正常结束时为 nil
func (s *LiveStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

func (s *LiveStream) write(typ websocket.MessageType, data []byte) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	return s.conn.Write(s.ctx, typ, data)
}

// SendAudio 发送一帧二进制音频
func (s *LiveStream) SendAudio(data []byte) error {
	if err := s.write(websocket.MessageBinary, data); err != nil {
		if errors.Is(err, ErrStreamClosed) {
			return err
		}
		return fmt.Errorf("deepgram send audio: %w", err)
	}
	return nil
}

// Results 返回识别结果通道，会话结束时关闭
func (s *LiveStream) Results() <-chan Result {
	return s.results
}

// Done 返回会话结束信号
func (s *LiveStream) Done() <-chan struct{} {
	return s.done
}

// Close 结束识别会话，可重复调用。
//
// 先发送 CloseStream，再等待 Deepgram 刷新缓冲的结果并主动断开，最长 FlushTimeout；
// 超时后由客户端发起关闭握手。Close 只在会话拆除时调用，此时对话已经结束，
// 等待期间到达的结果会被读出并丢弃，不再投递给 Results() 的消费者。
func (s *LiveStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	writeCtx, cancelWrite := context.WithTimeout(s.ctx, time.Second)
	errStream := s.conn.Write(writeCtx, websocket.MessageText, closeStreamMessage)
	cancelWrite()

	if errStream != nil {
		s.logger.Debug("deepgram CloseStream not delivered", zap.Error(errStream))
	} else if dropped, flushed := s.drain(); dropped > 0 || !flushed {
		s.logger.Debug("deepgram stream drained",
			zap.Int("dropped_results", dropped),
			zap.Bool("server_closed", flushed),
		)
	}

	var errClose error
	select {
	case <-s.done:
		// 服务端已断开，只需释放底层连接
		_ = s.conn.CloseNow()
	default:
		errClose = s.conn.Close(websocket.StatusNormalClosure, "")
	}
	s.cancel()
	<-s.done

	if errClose != nil && !errors.Is(errClose, net.ErrClosed) && !isNormalClose(errClose) {
		return fmt.Errorf("deepgram close: %w", errClose)
	}
	return nil
}

// drain 读空结果通道直到服务端断开或超时。
// flushed 表示服务端在超时前完成了刷新并关闭连接。
func (s *LiveStream) drain() (dropped int, flushed bool) {
	timer := time.NewTimer(s.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-s.results:
			if !ok {
				return dropped, true
			}
			dropped++
		case <-timer.C:
			return dropped, false
		}
	}
}
