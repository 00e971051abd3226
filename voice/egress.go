package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/internal/metrics"
	"github.com/MeriemTerki/Project2CS/types"
)

// DefaultAudioChunkSize 每个二进制音频消息的大小
const DefaultAudioChunkSize = 1024

// Synthesizer 流式语音合成
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Speaker 把合成音频按固定大小分块转发给客户端，边读边发
type Speaker struct {
	synth     Synthesizer
	client    ClientConn
	chunkSize int
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewSpeaker 创建 Speaker，chunkSize <= 0 时使用 1024
func NewSpeaker(synth Synthesizer, client ClientConn, chunkSize int, collector *metrics.Collector, logger *zap.Logger) *Speaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultAudioChunkSize
	}
	return &Speaker{
		synth:     synth,
		client:    client,
		chunkSize: chunkSize,
		metrics:   collector,
		logger:    logger,
	}
}

// Speak 合成 text 并转发音频。除最后一块外每块都是 chunkSize 字节。
// 合成失败返回错误，由调用方决定会话是否继续。
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		if types.GetErrorCode(err) == "" && !errors.Is(err, context.Canceled) {
			err = types.NewError(types.ErrTTSUnavailable, "speech synthesis failed").WithCause(err)
		}
		return fmt.Errorf("synthesize reply: %w", err)
	}
	defer audio.Close()

	buf := make([]byte, s.chunkSize)
	var chunks, total int
	for {
		n, readErr := io.ReadFull(audio, buf)
		if n > 0 {
			if err := s.client.WriteAudio(ctx, buf[:n]); err != nil {
				return err
			}
			chunks++
			total += n
			s.metrics.RecordAudioChunk(n)
		}

		switch {
		case readErr == nil:
			continue
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			s.logger.Debug("reply audio streamed", zap.Int("chunks", chunks), zap.Int("bytes", total))
			return nil
		default:
			return fmt.Errorf("read synthesized audio: %w", readErr)
		}
	}
}
