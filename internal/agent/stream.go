package agent

import (
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/logger"
)

// EventStream is the reader side of an agent response.
// *bedrockagentruntime.InvokeAgentEventStream satisfies it.
type EventStream interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// Stream is a single-use sequence of answer chunks.
type Stream struct {
	events    EventStream
	logger    *zap.Logger
	consumed  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps an event stream. A nil logger discards diagnostics.
func NewStream(events EventStream, log *zap.Logger) *Stream {
	return &Stream{events: events, logger: logger.OrNop(log)}
}

// Chunks yields each chunk's decoded text in arrival order. Events without a
// chunk payload are skipped. The first error ends the sequence; chunks
// already yielded stay valid. The stream is closed when the sequence ends or
// the caller stops early. Ranging a second time yields ErrStreamConsumed.
func (s *Stream) Chunks() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}
		defer s.Close() //nolint:errcheck

		var n int
		for event := range s.events.Events() {
			text, ok, err := decodeEvent(event)
			if err != nil {
				s.logger.Debug("bad chunk", zap.Int("index", n), zap.Error(err))
				yield("", err)
				return
			}
			if !ok {
				s.logger.Debug("skipping event", zap.String("type", fmt.Sprintf("%T", event)))
				continue
			}
			n++
			if !yield(text, nil) {
				return
			}
		}
		if err := s.events.Err(); err != nil {
			yield("", fmt.Errorf("read agent response: %w", err))
			return
		}
		s.logger.Debug("agent response complete", zap.Int("chunks", n))
	}
}

// Close releases the underlying stream. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.events.Close()
	})
	return s.closeErr
}

// decodeEvent reports the text of a chunk event. ok is false for events that
// carry no chunk bytes.
func decodeEvent(event types.ResponseStream) (text string, ok bool, err error) {
	chunk, isChunk := event.(*types.ResponseStreamMemberChunk)
	if !isChunk || len(chunk.Value.Bytes) == 0 {
		return "", false, nil
	}
	if !utf8.Valid(chunk.Value.Bytes) {
		return "", false, fmt.Errorf("%w: %d bytes", ErrDecode, len(chunk.Value.Bytes))
	}
	return string(chunk.Value.Bytes), true, nil
}
