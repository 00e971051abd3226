package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/api"
	"github.com/MeriemTerki/Project2CS/testutil"
	"github.com/MeriemTerki/Project2CS/testutil/mocks"
	"github.com/MeriemTerki/Project2CS/types"
	"github.com/MeriemTerki/Project2CS/voice"
)

// replyFunc 内联回复生成器
type replyFunc func(ctx context.Context, messages []types.Message) string

func (f replyFunc) Reply(ctx context.Context, messages []types.Message) string {
	return f(ctx, messages)
}

func postChat(t *testing.T, h *ChatHandler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleChat(w, r)
	return w
}

func TestChatHandler_Reply(t *testing.T) {
	var got []types.Message
	h := NewChatHandler(replyFunc(func(ctx context.Context, messages []types.Message) string {
		got = messages
		return "That sounds hard. Want to talk about it?"
	}), time.Second, zap.NewNop())

	w := postChat(t, h, api.ChatRequest{Messages: []api.Message{
		{Role: "system", Content: "be kind {context}"},
		{Role: "User", Content: "I had a rough day"},
	}})

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ChatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "That sounds hard. Want to talk about it?", resp.Reply)

	testutil.AssertMessagesEqual(t, []types.Message{
		types.NewSystemMessage("be kind {context}"),
		types.NewUserMessage("I had a rough day"),
	}, got)
}

func TestChatHandler_UsesResponderFallback(t *testing.T) {
	model := mocks.NewMockChatModel("").WithError(types.NewError(types.ErrUpstreamError, "groq down"))
	responder := voice.NewResponder(model, nil, voice.DefaultResponderConfig(), nil, nil)
	h := NewChatHandler(responder, 0, nil)

	w := postChat(t, h, api.ChatRequest{Messages: []api.Message{{Role: "user", Content: "hello"}}})

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ChatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, voice.DefaultFallbackReply, resp.Reply)
	assert.Equal(t, 1, model.CallCount())
}

func TestChatHandler_Validation(t *testing.T) {
	h := NewChatHandler(replyFunc(func(context.Context, []types.Message) string {
		t.Fatal("responder must not be called")
		return ""
	}), 0, nil)

	tests := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{name: "empty messages", body: api.ChatRequest{}, wantMsg: "messages cannot be empty"},
		{
			name:    "unknown role",
			body:    api.ChatRequest{Messages: []api.Message{{Role: "tool", Content: "x"}}},
			wantMsg: "unsupported role",
		},
		{
			name:    "no user turn",
			body:    api.ChatRequest{Messages: []api.Message{{Role: "system", Content: "prompt"}}},
			wantMsg: "user message is required",
		},
		{
			name:    "unknown field",
			body:    map[string]any{"messages": []any{}, "model": "x"},
			wantMsg: "invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postChat(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.wantMsg)
		})
	}
}

func TestChatHandler_MethodAndContentType(t *testing.T) {
	h := NewChatHandler(replyFunc(func(context.Context, []types.Message) string { return "" }), 0, nil)

	w := httptest.NewRecorder()
	h.HandleChat(w, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"messages":[]}`))
	r.Header.Set("Content-Type", "text/plain")
	h.HandleChat(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Timeout(t *testing.T) {
	h := NewChatHandler(replyFunc(func(ctx context.Context, _ []types.Message) string {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
		return "ok"
	}), time.Minute, nil)

	w := postChat(t, h, api.ChatRequest{Messages: []api.Message{{Role: "user", Content: "hi"}}})
	assert.Equal(t, http.StatusOK, w.Code)
}
