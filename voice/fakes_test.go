package voice

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/MeriemTerki/Project2CS/speech"
)

// --- fakeClient ---

type fakeClient struct {
	audio chan []byte

	mu       sync.Mutex
	messages []ClientMessage
	chunks   [][]byte
	order    []string

	writeErr   error
	closeCount atomic.Int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{audio: make(chan []byte, 16)}
}

func (c *fakeClient) ReadAudio(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.audio:
		if !ok {
			return nil, ErrClientDisconnected
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeClient) WriteJSON(ctx context.Context, msg ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.messages = append(c.messages, msg)
	c.order = append(c.order, msg.Type)
	return nil
}

func (c *fakeClient) WriteAudio(ctx context.Context, chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.chunks = append(c.chunks, append([]byte(nil), chunk...))
	c.order = append(c.order, "audio")
	return nil
}

func (c *fakeClient) Close(reason string) error {
	c.closeCount.Add(1)
	return nil
}

func (c *fakeClient) Messages() []ClientMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ClientMessage(nil), c.messages...)
}

func (c *fakeClient) Chunks() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.chunks...)
}

func (c *fakeClient) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// --- fakeStream ---

type fakeStream struct {
	results chan speech.Result

	mu   sync.Mutex
	sent [][]byte
	err  error

	closeCount atomic.Int32
}

func newFakeStream() *fakeStream {
	return &fakeStream{results: make(chan speech.Result, 32)}
}

func (s *fakeStream) SendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]byte(nil), data...))
	return nil
}

func (s *fakeStream) Results() <-chan speech.Result { return s.results }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() error {
	s.closeCount.Add(1)
	return nil
}

// fail 模拟识别连接异常中断
func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.results)
}

func (s *fakeStream) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *fakeStream) recognizer() Recognizer {
	return RecognizerFunc(func(ctx context.Context) (RecognizerStream, error) { return s, nil })
}

// --- fakeSynth ---

type fakeSynth struct {
	audio []byte
	err   error

	mu    sync.Mutex
	texts []string

	idleClosed atomic.Bool
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.audio)), nil
}

func (s *fakeSynth) CloseIdleConnections() { s.idleClosed.Store(true) }

func (s *fakeSynth) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func audioBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}
