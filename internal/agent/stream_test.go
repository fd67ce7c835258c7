package agent

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func collect(t *testing.T, st *Stream) ([]string, error) {
	t.Helper()
	var got []string
	for c, err := range st.Chunks() {
		if err != nil {
			return got, err
		}
		got = append(got, c)
	}
	return got, nil
}

func TestStreamChunks(t *testing.T) {
	t.Run("in order", func(t *testing.T) {
		r := newFakeReader(chunks("Hel", "lo", " world"), nil)
		got, err := collect(t, NewStream(r, zap.NewNop()))
		require.NoError(t, err)
		require.Equal(t, []string{"Hel", "lo", " world"}, got)
		require.Equal(t, 1, r.closeCount())
	})

	t.Run("skips events without payload", func(t *testing.T) {
		events := []types.ResponseStream{
			&types.ResponseStreamMemberTrace{},
			chunk("a"),
			&types.ResponseStreamMemberChunk{},
			chunk(""),
			chunk("b"),
		}
		got, err := collect(t, NewStream(newFakeReader(events, nil), zap.NewNop()))
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("empty stream", func(t *testing.T) {
		got, err := collect(t, NewStream(newFakeReader(nil, nil), zap.NewNop()))
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("multi-byte text", func(t *testing.T) {
		got, err := collect(t, NewStream(newFakeReader(chunks("héllo ", "世界"), nil), zap.NewNop()))
		require.NoError(t, err)
		require.Equal(t, []string{"héllo ", "世界"}, got)
	})

	t.Run("invalid utf-8 keeps earlier chunks", func(t *testing.T) {
		events := []types.ResponseStream{
			chunk("ok"),
			&types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte{0xff, 0xfe}}},
			chunk("never"),
		}
		r := newFakeReader(events, nil)
		got, err := collect(t, NewStream(r, zap.NewNop()))
		require.ErrorIs(t, err, ErrDecode)
		require.Equal(t, []string{"ok"}, got)
		require.Equal(t, 1, r.closeCount())
	})

	t.Run("transport error after chunks", func(t *testing.T) {
		boom := errors.New("connection reset")
		got, err := collect(t, NewStream(newFakeReader(chunks("part"), boom), zap.NewNop()))
		require.ErrorIs(t, err, boom)
		require.Equal(t, []string{"part"}, got)
	})

	t.Run("early stop closes", func(t *testing.T) {
		r := newFakeReader(chunks("a", "b", "c"), nil)
		st := NewStream(r, zap.NewNop())
		for range st.Chunks() {
			break
		}
		require.Equal(t, 1, r.closeCount())
		require.NoError(t, st.Close())
		require.Equal(t, 1, r.closeCount())
	})

	t.Run("second range fails", func(t *testing.T) {
		st := NewStream(newFakeReader(chunks("a"), nil), zap.NewNop())
		_, err := collect(t, st)
		require.NoError(t, err)
		got, err := collect(t, st)
		require.ErrorIs(t, err, ErrStreamConsumed)
		require.Empty(t, got)
	})
}
