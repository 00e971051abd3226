package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MeriemTerki/Project2CS/internal/ctxkeys"
	"github.com/MeriemTerki/Project2CS/internal/metrics"
	"github.com/MeriemTerki/Project2CS/internal/telemetry"
	"github.com/MeriemTerki/Project2CS/speech"
	"github.com/MeriemTerki/Project2CS/types"
)

// RecognizerStream 是一次语音识别会话
type RecognizerStream interface {
	SendAudio(data []byte) error
	Results() <-chan speech.Result
	// Err 返回结果通道异常关闭的原因
	Err() error
	// Close 结束识别流并让服务端刷新缓冲，可重复调用
	Close() error
}

// Recognizer 打开识别会话
type Recognizer interface {
	Open(ctx context.Context) (RecognizerStream, error)
}

// RecognizerFunc 把函数适配为 Recognizer
type RecognizerFunc func(ctx context.Context) (RecognizerStream, error)

// Open 调用 f
func (f RecognizerFunc) Open(ctx context.Context) (RecognizerStream, error) { return f(ctx) }

// LiveRecognizer 把 Deepgram live 客户端适配为 Recognizer
func LiveRecognizer(client *speech.LiveClient) Recognizer {
	return RecognizerFunc(func(ctx context.Context) (RecognizerStream, error) {
		stream, err := client.Open(ctx)
		if err != nil {
			return nil, err
		}
		return stream, nil
	})
}

// SessionConfig 会话参数
type SessionConfig struct {
	Conversation   ConversationConfig
	EventQueueSize int
	AudioChunkSize int
}

// SessionDeps 会话依赖。Synthesizer 归会话所有，收尾时释放其空闲连接。
type SessionDeps struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Responder   ReplyGenerator
	Terminator  *TerminationDetector
	Metrics     *metrics.Collector
	Logger      *zap.Logger
}

// 会话结束原因
const (
	OutcomeFinished     = "finished"
	OutcomeDisconnected = "disconnected"
	OutcomeFailed       = "failed"
	OutcomeCancelled    = "cancelled"
)

// Session 编排一条客户端连接上的语音会话
type Session struct {
	id     string
	client ClientConn
	cfg    SessionConfig
	deps   SessionDeps
	logger *zap.Logger

	terminated atomic.Bool
	mu         sync.Mutex
	cancel     context.CancelFunc
	outcome    string
}

// NewSession 创建会话
func NewSession(client ClientConn, cfg SessionConfig, deps SessionDeps) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = 64
	}
	if cfg.AudioChunkSize <= 0 {
		cfg.AudioChunkSize = DefaultAudioChunkSize
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		client: client,
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(zap.String("component", "voice_session"), zap.String("session_id", id)),
	}
}

// ID 返回会话 ID
func (s *Session) ID() string { return s.id }

// Outcome 返回结束原因，Run 返回后有效
func (s *Session) Outcome() string { return s.outcome }

// Terminated 是否已发出终止信号
func (s *Session) Terminated() bool { return s.terminated.Load() }

// Stop 从外部结束会话，例如服务停机
func (s *Session) Stop() {
	s.terminate()
}

func (s *Session) terminate() {
	s.terminated.Store(true)
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run 运行会话直到结束。告别语、客户端断开与外部停止都返回 nil；
// 识别连接失败、合成失败等致命错误会取消其余任务并返回。
// 任何路径下都会关闭识别流、释放会话持有的 HTTP 连接并关闭客户端连接一次。
func (s *Session) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctxkeys.WithSessionID(ctx, s.id))
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	if s.terminated.Load() {
		cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "voice.session", attribute.String("session.id", s.id))
	start := time.Now()
	s.deps.Metrics.SessionStarted()
	s.logger.Info("voice session started")

	var stream RecognizerStream
	defer func() {
		s.teardown(stream)
		cancel()
		s.deps.Metrics.SessionEnded(s.outcome, time.Since(start))
		telemetry.EndSpan(span, err)
		s.logger.Info("voice session ended",
			zap.String("outcome", s.outcome),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	stream, err = s.deps.Recognizer.Open(ctx)
	if err != nil {
		stream = nil
		if s.terminated.Load() {
			s.outcome = OutcomeCancelled
			return nil
		}
		s.outcome = OutcomeFailed
		s.logger.Error("speech recognizer unavailable", zap.Error(err))
		return types.NewError(types.ErrSTTUnavailable, "failed to open speech recognition stream").WithCause(err)
	}

	events := make(chan Event, s.cfg.EventQueueSize)
	transcriber := NewTranscriber(events, s.deps.Metrics, s.logger)
	speaker := NewSpeaker(s.deps.Synthesizer, s.client, s.cfg.AudioChunkSize, s.deps.Metrics, s.logger)
	conversation := NewConversation(s.client, s.deps.Responder, speaker, s.deps.Terminator, s.cfg.Conversation, s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ingress(gctx, stream) })
	g.Go(func() error { return s.pump(gctx, stream, transcriber, events) })
	g.Go(func() error {
		// 会话管理返回即结束整个会话
		defer s.terminate()
		return conversation.Run(gctx, events)
	})

	err = g.Wait()
	return s.classify(err, conversation.Finished())
}

// ingress 把客户端音频转发给识别服务，直到终止或连接关闭
func (s *Session) ingress(ctx context.Context, stream RecognizerStream) error {
	for !s.terminated.Load() {
		frame, err := s.client.ReadAudio(ctx)
		if err != nil {
			if s.terminated.Load() {
				return nil
			}
			return err
		}
		if err := stream.SendAudio(frame); err != nil {
			if s.terminated.Load() {
				return nil
			}
			return types.NewError(types.ErrSTTUnavailable, "failed to forward audio").WithCause(err)
		}
	}
	return nil
}

// pump 把识别结果交给 Transcriber，结束时关闭事件队列
func (s *Session) pump(ctx context.Context, stream RecognizerStream, transcriber *Transcriber, events chan<- Event) error {
	defer close(events)

	results := stream.Results()
	for {
		select {
		case <-ctx.Done():
			return nil
		case result, ok := <-results:
			if !ok {
				if err := stream.Err(); err != nil && !s.terminated.Load() {
					return types.NewError(types.ErrSTTUnavailable, "speech recognition stream failed").WithCause(err)
				}
				return nil
			}
			if err := transcriber.Handle(ctx, result); err != nil {
				return nil
			}
		}
	}
}

// classify 区分正常结束与失败
func (s *Session) classify(err error, finished bool) error {
	switch {
	case err == nil && finished:
		s.outcome = OutcomeFinished
		return nil
	case err == nil:
		s.outcome = OutcomeCancelled
		return nil
	case errors.Is(err, ErrClientDisconnected):
		s.outcome = OutcomeDisconnected
		s.logger.Info("client disconnected")
		return nil
	case s.terminated.Load() && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		s.outcome = OutcomeCancelled
		return nil
	default:
		s.outcome = OutcomeFailed
		s.logger.Error("voice session failed", zap.Error(err))
		return err
	}
}

type idleCloser interface {
	CloseIdleConnections()
}

// teardown 释放会话资源，任何退出路径都会执行
func (s *Session) teardown(stream RecognizerStream) {
	if stream != nil {
		if err := stream.Close(); err != nil {
			s.logger.Debug("close recognizer stream", zap.Error(err))
		}
	}
	if c, ok := s.deps.Synthesizer.(idleCloser); ok {
		c.CloseIdleConnections()
	}

	reason := "session ended"
	if s.outcome == OutcomeFailed {
		reason = "internal error"
	}
	if err := s.client.Close(reason); err != nil {
		s.logger.Debug("close client connection", zap.Error(err))
	}
}
