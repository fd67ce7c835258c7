package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/kbagent/internal/agent"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/present"
)

type sliceReader struct {
	events chan types.ResponseStream
}

func (r *sliceReader) Events() <-chan types.ResponseStream { return r.events }
func (r *sliceReader) Close() error                        { return nil }
func (r *sliceReader) Err() error                          { return nil }

func answer(parts ...string) *agent.Stream {
	ch := make(chan types.ResponseStream, len(parts))
	for _, p := range parts {
		ch <- &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(p)}}
	}
	close(ch)
	return agent.NewStream(&sliceReader{events: ch}, nil)
}

type fakeStreamer struct {
	queries  []string
	sessions []string
	answers  map[string][]string
	err      error
}

func (f *fakeStreamer) InvokeStream(_ context.Context, query, sessionID string, _ config.Effective) (*agent.Stream, error) {
	f.queries = append(f.queries, query)
	f.sessions = append(f.sessions, sessionID)
	if f.err != nil {
		return nil, f.err
	}
	return answer(f.answers[query]...), nil
}

func newLoop(in string, a Streamer) (*Loop, *bytes.Buffer) {
	var out bytes.Buffer
	return &Loop{
		Agent:  a,
		In:     strings.NewReader(in),
		Out:    &out,
		Styles: present.MakeStyles(lipgloss.NewRenderer(&out)),
	}, &out
}

func TestLoopHelpEmptyQuit(t *testing.T) {
	fa := &fakeStreamer{}
	l, out := newLoop("help\n\nquit\n", fa)

	require.NoError(t, l.Run(context.Background()))
	require.Empty(t, fa.queries)
	require.Contains(t, out.String(), "Available commands:")
	require.Contains(t, out.String(), "Goodbye!")
}

func TestLoopStreamsAnswers(t *testing.T) {
	fa := &fakeStreamer{answers: map[string][]string{
		"what is s3?": {"Object ", "storage."},
	}}
	l, out := newLoop("  what is s3?  \nEXIT\nnever asked\n", fa)

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, []string{"what is s3?"}, fa.queries)
	require.Equal(t, []string{DefaultSessionID}, fa.sessions)
	require.Contains(t, out.String(), "Object storage.")
}

func TestLoopErrorsContinue(t *testing.T) {
	fa := &fakeStreamer{err: errors.New("throttled")}
	l, out := newLoop("first\nsecond\nq\n", fa)

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, []string{"first", "second"}, fa.queries)
	require.Equal(t, 2, strings.Count(out.String(), "Error: throttled"))
}

func TestLoopEOF(t *testing.T) {
	l, out := newLoop("hello", &fakeStreamer{})

	require.NoError(t, l.Run(context.Background()))
	require.Contains(t, out.String(), "Goodbye!")
}

func TestLoopContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	l := &Loop{Agent: &fakeStreamer{}, In: blockingReader{}, Out: &out}

	require.NoError(t, l.Run(ctx))
	require.Contains(t, out.String(), "Goodbye!")
}

func TestLoopContextDoneWithPendingInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 50 {
		fa := &fakeStreamer{}
		l, out := newLoop("first\nsecond\n", fa)

		require.NoError(t, l.Run(ctx))
		require.Empty(t, fa.queries)
		require.Contains(t, out.String(), "Goodbye!")
	}
}

func TestReadLinesStopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	var released atomic.Bool
	lines := readLines(strings.NewReader("a\nb\nc\n"), done, func() { released.Store(true) })

	require.Equal(t, "a", <-lines)
	close(done)
	require.Eventually(t, released.Load, time.Second, time.Millisecond)
	for range lines {
	}
}

func TestLoopCopy(t *testing.T) {
	fa := &fakeStreamer{answers: map[string][]string{"q1": {"the answer"}}}
	l, out := newLoop("copy\nq1\ncopy\nquit\n", fa)
	var copied string
	l.Copy = func(s string) error {
		copied = s
		return nil
	}

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, "the answer", copied)
	require.Contains(t, out.String(), "Nothing to copy yet.")
	require.Contains(t, out.String(), "Copied last answer")
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }
