package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/api"
	"github.com/MeriemTerki/Project2CS/speech"
	"github.com/MeriemTerki/Project2CS/testutil"
	"github.com/MeriemTerki/Project2CS/types"
	"github.com/MeriemTerki/Project2CS/voice"
)

// --- 测试替身 ---

type stubStream struct {
	results chan speech.Result

	mu   sync.Mutex
	sent [][]byte
	once sync.Once
}

func newStubStream() *stubStream {
	return &stubStream{results: make(chan speech.Result, 16)}
}

func (s *stubStream) SendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]byte(nil), data...))
	return nil
}

func (s *stubStream) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *stubStream) Results() <-chan speech.Result { return s.results }
func (s *stubStream) Err() error                    { return nil }

func (s *stubStream) Close() error {
	s.once.Do(func() { close(s.results) })
	return nil
}

type stubSynth struct{ audio []byte }

func (s stubSynth) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.audio)), nil
}

// voiceFixture 启动挂载 VoiceHandler 的测试服务器，每个会话的识别流通过 streams 交给测试
type voiceFixture struct {
	handler *VoiceHandler
	server  *httptest.Server
	streams chan *stubStream
}

func newVoiceFixture(t *testing.T) *voiceFixture {
	t.Helper()
	f := &voiceFixture{streams: make(chan *stubStream, 4)}

	detector, err := voice.NewTerminationDetector([]string{"goodbye", "bye"})
	require.NoError(t, err)
	responder := replyFunc(func(context.Context, []types.Message) string { return "How are you feeling?" })

	factory := func(client voice.ClientConn) *voice.Session {
		stream := newStubStream()
		f.streams <- stream
		return voice.NewSession(client, voice.SessionConfig{
			Conversation: voice.ConversationConfig{MemorySize: 10, SystemPrompt: "{context}"},
		}, voice.SessionDeps{
			Recognizer: voice.RecognizerFunc(func(context.Context) (voice.RecognizerStream, error) {
				return stream, nil
			}),
			Synthesizer: stubSynth{audio: make([]byte, 1500)},
			Responder:   responder,
			Terminator:  detector,
			Logger:      zap.NewNop(),
		})
	}

	f.handler = NewVoiceHandler(factory, VoiceConfig{AllowedOrigins: []string{"*"}}, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", f.handler.HandleWebsocket)
	mux.HandleFunc("/ws/stats", f.handler.HandleStats)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *voiceFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(testutil.TestContext(t), testutil.WSURL(f.server)+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func (f *voiceFixture) stream(t *testing.T) *stubStream {
	t.Helper()
	s, ok := testutil.WaitForChannel(f.streams, 2*time.Second)
	require.True(t, ok, "session was not created")
	return s
}

func readText(t *testing.T, ctx context.Context, conn *websocket.Conn) voice.ClientMessage {
	t.Helper()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	var msg voice.ClientMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// --- 测试 ---

func TestVoiceHandler_RoundTrip(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := testutil.TestContext(t)
	conn := f.dial(t)
	stream := f.stream(t)

	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3}))
	testutil.AssertEventuallyTrue(t, func() bool { return stream.Sent() == 1 }, 2*time.Second)

	stream.results <- speech.Result{Kind: speech.ResultTranscript, Text: "hello there", IsFinal: true, SpeechFinal: true}

	assert.Equal(t, voice.ClientMessage{Type: "transcript_final", Content: "hello there"}, readText(t, ctx, conn))
	assert.Equal(t, voice.ClientMessage{Type: "assistant", Content: "How are you feeling?"}, readText(t, ctx, conn))

	var sizes []int
	for range 2 {
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, websocket.MessageBinary, typ)
		sizes = append(sizes, len(data))
	}
	assert.Equal(t, []int{1024, 476}, sizes)

	stream.results <- speech.Result{Kind: speech.ResultTranscript, Text: "ok goodbye", IsFinal: true, SpeechFinal: true}
	assert.Equal(t, "transcript_final", readText(t, ctx, conn).Type)
	assert.Equal(t, voice.ClientMessage{Type: "finish"}, readText(t, ctx, conn))

	// finish 之后服务端关闭连接
	_, _, err := conn.Read(ctx)
	require.Error(t, err)

	testutil.AssertEventuallyTrue(t, func() bool { return f.handler.ActiveSessions() == 0 }, 2*time.Second)
}

func TestVoiceHandler_ShutdownStopsSessions(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := testutil.TestContext(t)
	conn := f.dial(t)
	f.stream(t)

	testutil.AssertEventuallyTrue(t, func() bool { return f.handler.ActiveSessions() == 1 }, 2*time.Second)

	done := make(chan struct{})
	go func() {
		f.handler.Shutdown()
		close(done)
	}()
	_, ok := testutil.WaitForChannel(done, 5*time.Second)
	require.True(t, ok, "shutdown did not return")
	assert.Equal(t, 0, f.handler.ActiveSessions())

	_, _, err := conn.Read(ctx)
	require.Error(t, err)

	// 停机后拒绝新连接
	resp, err := http.Get(f.server.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// 重复调用无副作用
	f.handler.Shutdown()
}

func TestVoiceHandler_HandleStats(t *testing.T) {
	f := newVoiceFixture(t)
	f.dial(t)
	f.stream(t)
	testutil.AssertEventuallyTrue(t, func() bool { return f.handler.ActiveSessions() == 1 }, 2*time.Second)

	resp, err := http.Get(f.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool           `json:"success"`
		Data    api.VoiceStats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, api.VoiceStats{ActiveSessions: 1, Accepting: true}, body.Data)
}

func TestVoiceHandler_RejectsPlainHTTP(t *testing.T) {
	f := newVoiceFixture(t)

	resp, err := http.Get(f.server.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.Equal(t, 0, f.handler.ActiveSessions())
}

func TestAcceptOptions(t *testing.T) {
	tests := []struct {
		name         string
		origins      []string
		wantPatterns []string
		wantSkip     bool
	}{
		{name: "empty", origins: nil},
		{name: "wildcard", origins: []string{"https://app.example.com", "*"}, wantSkip: true},
		{
			name:         "hosts",
			origins:      []string{"https://app.example.com/", " http://localhost:3000 ", ""},
			wantPatterns: []string{"app.example.com", "localhost:3000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := acceptOptions(tt.origins)
			assert.Equal(t, tt.wantSkip, opts.InsecureSkipVerify)
			assert.Equal(t, tt.wantPatterns, opts.OriginPatterns)
		})
	}
}
