package agent

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/dotcommander/kbagent/internal/config"
)

type fakeReader struct {
	events chan types.ResponseStream
	err    error

	mu     sync.Mutex
	closed int
}

func (r *fakeReader) Events() <-chan types.ResponseStream { return r.events }
func (r *fakeReader) Err() error                          { return r.err }

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeReader) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func newFakeReader(events []types.ResponseStream, err error) *fakeReader {
	ch := make(chan types.ResponseStream, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeReader{events: ch, err: err}
}

type fakeStreamOutput struct {
	stream *bedrockagentruntime.InvokeAgentEventStream
}

func (f *fakeStreamOutput) GetStream() *bedrockagentruntime.InvokeAgentEventStream {
	return f.stream
}

func newFakeStreamOutput(reader *fakeReader) *fakeStreamOutput {
	stream := bedrockagentruntime.NewInvokeAgentEventStream(func(es *bedrockagentruntime.InvokeAgentEventStream) {
		es.Reader = reader
	})
	return &fakeStreamOutput{stream: stream}
}

func chunk(s string) types.ResponseStream {
	return &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(s)}}
}

func chunks(parts ...string) []types.ResponseStream {
	out := make([]types.ResponseStream, 0, len(parts))
	for _, p := range parts {
		out = append(out, chunk(p))
	}
	return out
}

type mockRuntime struct {
	invokeInput   *bedrockagentruntime.InvokeAgentInput
	invokeErr     error
	reader        *fakeReader
	retrieveInput *bedrockagentruntime.RetrieveInput
	retrieveOut   *bedrockagentruntime.RetrieveOutput
	retrieveErr   error
}

func (m *mockRuntime) InvokeAgent(_ context.Context, params *bedrockagentruntime.InvokeAgentInput, _ ...func(*bedrockagentruntime.Options)) (StreamOutput, error) {
	m.invokeInput = params
	if m.invokeErr != nil {
		return nil, m.invokeErr
	}
	return newFakeStreamOutput(m.reader), nil
}

func (m *mockRuntime) Retrieve(_ context.Context, params *bedrockagentruntime.RetrieveInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error) {
	m.retrieveInput = params
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	if m.retrieveOut == nil {
		return &bedrockagentruntime.RetrieveOutput{}, nil
	}
	return m.retrieveOut, nil
}

type mockControl struct {
	startInput *bedrockagent.StartIngestionJobInput
	startOut   *bedrockagent.StartIngestionJobOutput
	startErr   error

	getInputs []*bedrockagent.GetIngestionJobInput
	getOuts   []*bedrockagent.GetIngestionJobOutput
	getErr    error
}

func (m *mockControl) StartIngestionJob(_ context.Context, params *bedrockagent.StartIngestionJobInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error) {
	m.startInput = params
	return m.startOut, m.startErr
}

func (m *mockControl) GetIngestionJob(_ context.Context, params *bedrockagent.GetIngestionJobInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error) {
	m.getInputs = append(m.getInputs, params)
	if m.getErr != nil {
		return nil, m.getErr
	}
	i := min(len(m.getInputs)-1, len(m.getOuts)-1)
	return m.getOuts[i], nil
}

// newTestService returns a service whose factory hands out rt and ctl and
// counts how often it ran.
func newTestService(rt *mockRuntime, ctl *mockControl) (*Service, *int) {
	calls := new(int)
	svc := New(func(context.Context, config.Effective) (Clients, error) {
		*calls++
		return Clients{Runtime: rt, Control: ctl}, nil
	})
	return svc, calls
}

func agentEff() config.Effective {
	return config.Effective{
		Profile:      "default",
		Region:       "us-east-1",
		AgentID:      "AGENT",
		AgentAliasID: "ALIAS",
	}
}
