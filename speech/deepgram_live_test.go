package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/testutil"
)

// fakeDeepgram 模拟 Deepgram live 服务端
type fakeDeepgram struct {
	srv *httptest.Server

	mu     sync.Mutex
	query  url.Values
	header http.Header

	audio   chan []byte
	control chan string
	send    chan []byte

	// flushOnClose 为 true 时收到 CloseStream 后先推送最后一条结果再正常断开，
	// 与真实服务行为一致；flushed 记录这次推送的写入结果
	flushOnClose atomic.Bool
	flushed      chan error
}

func newFakeDeepgram(t *testing.T) *fakeDeepgram {
	t.Helper()
	f := &fakeDeepgram{
		audio:   make(chan []byte, 16),
		control: make(chan string, 16),
		send:    make(chan []byte, 16),
		flushed: make(chan error, 1),
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.query = r.URL.Query()
		f.header = r.Header.Clone()
		f.mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-f.send:
					if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
						return
					}
				}
			}
		}()

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			switch typ {
			case websocket.MessageBinary:
				f.audio <- data
			case websocket.MessageText:
				f.control <- string(data)
				if f.flushOnClose.Load() && strings.Contains(string(data), "CloseStream") {
					f.flushed <- conn.Write(ctx, websocket.MessageText, resultsMessage("last words", true, true))
					_ = conn.Close(websocket.StatusNormalClosure, "")
					return
				}
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDeepgram) config() LiveConfig {
	cfg := DefaultLiveConfig()
	cfg.APIKey = "dg-test"
	cfg.URL = testutil.WSURL(f.srv) + "/v1/listen"
	cfg.KeepAliveInterval = 0
	cfg.FlushTimeout = 100 * time.Millisecond
	return cfg
}

func resultsMessage(text string, isFinal, speechFinal bool) []byte {
	return []byte(`{"type":"Results","channel":{"alternatives":[{"transcript":"` + text + `","confidence":0.9}]},"is_final":` +
		boolString(isFinal) + `,"speech_final":` + boolString(speechFinal) + `}`)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func nextResult(t *testing.T, s *LiveStream) Result {
	t.Helper()
	r, ok := testutil.WaitForChannel(s.Results(), 2*time.Second)
	require.True(t, ok, "timed out waiting for result")
	return r
}

// --- Open ---

func TestLiveClient_OpenSendsOptionsAndAuth(t *testing.T) {
	f := newFakeDeepgram(t)
	cfg := f.config()
	cfg.SampleRate = 16000
	cfg.Encoding = "linear16"

	stream, err := NewLiveClient(cfg, zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)
	defer stream.Close()

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "Token dg-test", f.header.Get("Authorization"))
	assert.Equal(t, "nova-2", f.query.Get("model"))
	assert.Equal(t, "en", f.query.Get("language"))
	assert.Equal(t, "true", f.query.Get("smart_format"))
	assert.Equal(t, "true", f.query.Get("interim_results"))
	assert.Equal(t, "true", f.query.Get("vad_events"))
	assert.Equal(t, "1000", f.query.Get("utterance_end_ms"))
	assert.Equal(t, "500", f.query.Get("endpointing"))
	assert.Equal(t, "linear16", f.query.Get("encoding"))
	assert.Equal(t, "16000", f.query.Get("sample_rate"))
}

func TestLiveClient_OpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := DefaultLiveConfig()
	cfg.URL = testutil.WSURL(srv)

	_, err := NewLiveClient(cfg, nil).Open(testutil.TestContext(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid credentials")
}

// --- 结果与音频 ---

func TestLiveStream_ResultsInOrder(t *testing.T) {
	f := newFakeDeepgram(t)
	stream, err := NewLiveClient(f.config(), zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)
	defer stream.Close()

	f.send <- resultsMessage("hel", false, false)
	f.send <- []byte(`{"type":"Metadata","request_id":"abc"}`)
	f.send <- resultsMessage("hello there", true, false)
	f.send <- []byte(`{"type":"SpeechStarted"}`)
	f.send <- resultsMessage("how are you", true, true)
	f.send <- []byte(`{"type":"UtteranceEnd","last_word_end":2.1}`)

	assert.Equal(t, Result{Kind: ResultTranscript, Text: "hel"}, nextResult(t, stream))
	assert.Equal(t, Result{Kind: ResultTranscript, Text: "hello there", IsFinal: true}, nextResult(t, stream))
	assert.Equal(t, Result{Kind: ResultTranscript, Text: "how are you", IsFinal: true, SpeechFinal: true}, nextResult(t, stream))
	assert.Equal(t, Result{Kind: ResultUtteranceEnd}, nextResult(t, stream))
}

func TestLiveStream_SendAudio(t *testing.T) {
	f := newFakeDeepgram(t)
	stream, err := NewLiveClient(f.config(), zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.SendAudio([]byte{1, 2, 3}))
	require.NoError(t, stream.SendAudio([]byte{4, 5}))

	first, ok := testutil.WaitForChannel(f.audio, 2*time.Second)
	require.True(t, ok)
	second, ok := testutil.WaitForChannel(f.audio, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, first)
	assert.Equal(t, []byte{4, 5}, second)
}

func TestLiveStream_CloseSendsCloseStream(t *testing.T) {
	f := newFakeDeepgram(t)
	stream, err := NewLiveClient(f.config(), zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)

	require.NoError(t, stream.Close())

	msg, ok := testutil.WaitForChannel(f.control, 2*time.Second)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"CloseStream"}`, msg)

	// 结果通道关闭
	_, open := <-stream.Results()
	assert.False(t, open)
	assert.NoError(t, stream.Err())

	assert.ErrorIs(t, stream.SendAudio([]byte{1}), ErrStreamClosed)
	assert.NoError(t, stream.Close())
}

func TestLiveStream_KeepAlive(t *testing.T) {
	f := newFakeDeepgram(t)
	cfg := f.config()
	cfg.KeepAliveInterval = 20 * time.Millisecond

	stream, err := NewLiveClient(cfg, zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)
	defer stream.Close()

	msg, ok := testutil.WaitForChannel(f.control, 2*time.Second)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"KeepAlive"}`, msg)
}

func TestLiveStream_CloseWaitsForServerFlush(t *testing.T) {
	f := newFakeDeepgram(t)
	f.flushOnClose.Store(true)
	cfg := f.config()
	cfg.FlushTimeout = 5 * time.Second

	stream, err := NewLiveClient(cfg, zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, stream.Close())

	// 服务端在客户端断开之前完成了最后一次推送
	flushErr, ok := testutil.WaitForChannel(f.flushed, 2*time.Second)
	require.True(t, ok)
	assert.NoError(t, flushErr)

	// 服务端主动断开后立即返回，而不是等满 FlushTimeout
	assert.Less(t, time.Since(start), 2*time.Second)
	<-stream.Done()
	assert.NoError(t, stream.Err())
}

func TestLiveStream_CloseGivesUpAfterFlushTimeout(t *testing.T) {
	f := newFakeDeepgram(t)
	cfg := f.config()
	cfg.FlushTimeout = 50 * time.Millisecond

	stream, err := NewLiveClient(cfg, zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)

	// 服务端收到 CloseStream 后不断开，客户端超时后发起关闭握手
	done := make(chan error, 1)
	go func() { done <- stream.Close() }()

	ctx := testutil.TestContextWithTimeout(t, 3*time.Second)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Close did not return after the flush timeout")
	}
}

func TestLiveStream_UnexpectedDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// 不发送关闭帧直接断开
		_ = conn.CloseNow()
	}))
	defer srv.Close()

	cfg := DefaultLiveConfig()
	cfg.URL = testutil.WSURL(srv)
	cfg.KeepAliveInterval = 0

	stream, err := NewLiveClient(cfg, zap.NewNop()).Open(testutil.TestContext(t))
	require.NoError(t, err)
	defer stream.Close()

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}
	assert.Error(t, stream.Err())
}

// --- 协议解析 ---

func TestParseLiveMessage(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   Result
		wantOK bool
		err    bool
	}{
		{
			name:   "interim",
			data:   string(resultsMessage("hi", false, false)),
			want:   Result{Kind: ResultTranscript, Text: "hi"},
			wantOK: true,
		},
		{
			name:   "empty alternatives",
			data:   `{"type":"Results","channel":{"alternatives":[]},"is_final":true}`,
			want:   Result{Kind: ResultTranscript, IsFinal: true},
			wantOK: true,
		},
		{name: "utterance end", data: `{"type":"UtteranceEnd"}`, want: Result{Kind: ResultUtteranceEnd}, wantOK: true},
		{name: "metadata", data: `{"type":"Metadata"}`},
		{name: "malformed", data: `{oops`, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := parseLiveMessage([]byte(tt.data))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResultKind_String(t *testing.T) {
	assert.Equal(t, "transcript", ResultTranscript.String())
	assert.Equal(t, "utterance_end", ResultUtteranceEnd.String())
	assert.Equal(t, "unknown", ResultKind(9).String())
}
