package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/types"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		data       any
		wantStatus int
	}{
		{name: "simple object", data: map[string]string{"reply": "hello"}, wantStatus: http.StatusOK},
		{name: "array", data: []int{1, 2, 3}, wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.wantStatus, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *types.Error
		expectedStatus int
	}{
		{
			name:           "invalid request",
			err:            types.NewError(types.ErrInvalidRequest, "messages cannot be empty"),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "speech recognition unavailable",
			err:            types.NewError(types.ErrSTTUnavailable, "deepgram unreachable").WithRetryable(true),
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "explicit status wins",
			err:            types.NewError(types.ErrInternalError, "teapot").WithHTTPStatus(http.StatusTeapot),
			expectedStatus: http.StatusTeapot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.err.Code), resp.Error.Code)
			assert.Equal(t, tt.err.Message, resp.Error.Message)
			assert.Equal(t, tt.err.Retryable, resp.Error.Retryable)
		})
	}
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code       types.ErrorCode
		wantStatus int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrSessionClosed, http.StatusGone},
		{types.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{types.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{types.ErrSTTUnavailable, http.StatusServiceUnavailable},
		{types.ErrTTSUnavailable, http.StatusServiceUnavailable},
		{types.ErrUpstreamError, http.StatusBadGateway},
		{types.ErrRetrieval, http.StatusBadGateway},
		{types.ErrInternalError, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError}, // 默认
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantStatus int
	}{
		{name: "valid JSON", body: `{"name":"test","value":123}`},
		{name: "invalid JSON", body: `{"name":"test",}`, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"name":"test","unknown":"field"}`, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "empty body", body: "", wantErr: true, wantStatus: http.StatusBadRequest},
		{
			name:       "oversized body",
			body:       `{"name":"` + strings.Repeat("x", 2<<20) + `"}`,
			wantErr:    true,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			var r *http.Request
			if tt.body == "" {
				r = httptest.NewRequest(http.MethodPost, "/chat", http.NoBody)
			} else {
				r = httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(tt.body))
			}

			var result payload
			err := DecodeJSONBody(w, r, &result, zap.NewNop())

			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.wantStatus, w.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload{Name: "test", Value: 123}, result)
		})
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        bool
	}{
		{name: "application/json", contentType: "application/json", want: true},
		{name: "with charset", contentType: "application/json; charset=utf-8", want: true},
		{name: "uppercase charset", contentType: "application/json; charset=UTF-8", want: true},
		{name: "text/plain", contentType: "text/plain", want: false},
		{name: "empty", contentType: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/chat", nil)
			r.Header.Set("Content-Type", tt.contentType)

			assert.Equal(t, tt.want, ValidateContentType(w, r, zap.NewNop()))
		})
	}
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.False(t, rw.Written)

	rw.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)
	assert.True(t, rw.Written)

	// 再次写入应该被忽略
	rw.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)

	n, err := rw.Write([]byte("test"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, w, rw.Unwrap())
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())

	_, _, err := rw.Hijack()
	assert.Error(t, err)
	assert.False(t, rw.Written)
}
