package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	ctx := WithRequestID(context.Background(), "req-1")
	got, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", got)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")

	sid, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "sess-1", sid)

	rid, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", rid)
}
