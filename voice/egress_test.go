package voice

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/testutil"
	"github.com/MeriemTerki/Project2CS/types"
)

func chunkSizes(chunks [][]byte) []int {
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c)
	}
	return sizes
}

func TestSpeaker_StreamsFixedSizeChunks(t *testing.T) {
	tests := []struct {
		name  string
		bytes int
		want  []int
	}{
		{name: "partial last chunk", bytes: 2500, want: []int{1024, 1024, 452}},
		{name: "exact multiple", bytes: 2048, want: []int{1024, 1024}},
		{name: "smaller than chunk", bytes: 10, want: []int{10}},
		{name: "empty audio", bytes: 0, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audio := audioBytes(tt.bytes)
			synth := &fakeSynth{audio: audio}
			client := newFakeClient()
			s := NewSpeaker(synth, client, 0, nil, zap.NewNop())

			require.NoError(t, s.Speak(testutil.TestContext(t), "Hi! How are you feeling today?"))

			chunks := client.Chunks()
			assert.Equal(t, tt.want, chunkSizes(chunks))

			var joined []byte
			for _, c := range chunks {
				joined = append(joined, c...)
			}
			assert.Equal(t, len(audio), len(joined))
			if len(audio) > 0 {
				assert.Equal(t, audio, joined)
			}
			assert.Equal(t, []string{"Hi! How are you feeling today?"}, synth.Texts())
		})
	}
}

func TestSpeaker_CustomChunkSize(t *testing.T) {
	client := newFakeClient()
	s := NewSpeaker(&fakeSynth{audio: audioBytes(10)}, client, 4, nil, nil)

	require.NoError(t, s.Speak(testutil.TestContext(t), "ok"))
	assert.Equal(t, []int{4, 4, 2}, chunkSizes(client.Chunks()))
}

func TestSpeaker_EmptyTextIsNoop(t *testing.T) {
	synth := &fakeSynth{audio: audioBytes(10)}
	client := newFakeClient()
	s := NewSpeaker(synth, client, 0, nil, nil)

	require.NoError(t, s.Speak(testutil.TestContext(t), "   "))
	assert.Empty(t, synth.Texts())
	assert.Empty(t, client.Chunks())
}

func TestSpeaker_SynthesisFailure(t *testing.T) {
	synth := &fakeSynth{err: errors.New("connection refused")}
	s := NewSpeaker(synth, newFakeClient(), 0, nil, nil)

	err := s.Speak(testutil.TestContext(t), "hello")
	require.Error(t, err)
	assert.Equal(t, types.ErrTTSUnavailable, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "synthesize reply")
}

func TestSpeaker_KeepsTypedSynthesisError(t *testing.T) {
	synth := &fakeSynth{err: types.NewError(types.ErrRateLimited, "slow down")}
	s := NewSpeaker(synth, newFakeClient(), 0, nil, nil)

	err := s.Speak(testutil.TestContext(t), "hello")
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}

func TestSpeaker_ClientWriteFailure(t *testing.T) {
	client := newFakeClient()
	client.writeErr = ErrClientDisconnected
	s := NewSpeaker(&fakeSynth{audio: audioBytes(3000)}, client, 0, nil, nil)

	err := s.Speak(testutil.TestContext(t), "hello")
	assert.ErrorIs(t, err, ErrClientDisconnected)
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "abc"), nil
	}
	return 0, errors.New("stream reset")
}

type readerSynth struct{ r io.Reader }

func (s readerSynth) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	return io.NopCloser(s.r), nil
}

func TestSpeaker_ReadFailure(t *testing.T) {
	client := newFakeClient()
	s := NewSpeaker(readerSynth{r: &failingReader{}}, client, 0, nil, nil)

	err := s.Speak(testutil.TestContext(t), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream reset")
	assert.Equal(t, []int{3}, chunkSizes(client.Chunks()))
}
