package voice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeriemTerki/Project2CS/types"
)

func TestHistory_KeepsLastTurns(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 25; i++ {
		h.Append(types.NewUserMessage(fmt.Sprintf("turn %d", i)))
	}

	assert.Equal(t, 10, h.Len())
	window := h.Window(10)
	assert.Len(t, window, 10)
	assert.Equal(t, "turn 15", window[0].Content)
	assert.Equal(t, "turn 24", window[9].Content)

	w3 := h.Window(3)
	assert.Equal(t, "turn 22", w3[0].Content)
}

func TestHistory_IgnoresSystemTurns(t *testing.T) {
	h := NewHistory(4)
	h.Append(types.NewSystemMessage("sys"))
	h.Append(types.NewUserMessage("hi"))
	h.Append(types.NewAssistantMessage("hello"))

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, types.RoleUser, h.Window(0)[0].Role)
}

func TestHistory_WindowIsCopy(t *testing.T) {
	h := NewHistory(0)
	h.Append(types.NewUserMessage("a"))

	w := h.Window(0)
	w[0].Content = "mutated"
	assert.Equal(t, "a", h.Window(0)[0].Content)
}

func TestLastTurns(t *testing.T) {
	msgs := []types.Message{
		types.NewSystemMessage("sys"),
		types.NewUserMessage("u1"),
		types.NewAssistantMessage("a1"),
		types.NewUserMessage("u2"),
	}

	assert.Equal(t, msgs[1:], lastTurns(msgs, 0))
	assert.Equal(t, msgs[2:], lastTurns(msgs, 2))
	assert.Empty(t, lastTurns(nil, 3))
}
