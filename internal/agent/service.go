package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/awsconf"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/logger"
)

// DefaultSessionID is used when the caller does not supply a session id.
const DefaultSessionID = "default-session"

// RuntimeClient mirrors the subset of the Bedrock Agent runtime client used
// by the service. InvokeAgent returns StreamOutput instead of the concrete
// output type so tests can provide their own event streams.
type RuntimeClient interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (StreamOutput, error)
	Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// StreamOutput is satisfied by *bedrockagentruntime.InvokeAgentOutput.
type StreamOutput interface {
	GetStream() *bedrockagentruntime.InvokeAgentEventStream
}

// ControlClient mirrors the subset of the Bedrock Agent client used for
// ingestion jobs. It matches *bedrockagent.Client.
type ControlClient interface {
	StartIngestionJob(ctx context.Context, params *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error)
	GetIngestionJob(ctx context.Context, params *bedrockagent.GetIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error)
}

// Clients bundles the SDK clients bound to one profile and region.
type Clients struct {
	Runtime RuntimeClient
	Control ControlClient
}

// ClientFactory builds the clients for an effective configuration.
type ClientFactory func(ctx context.Context, eff config.Effective) (Clients, error)

// NewAWSClients is the ClientFactory backed by the AWS SDK.
func NewAWSClients(ctx context.Context, eff config.Effective) (Clients, error) {
	awsCfg, err := awsconf.Load(ctx, eff)
	if err != nil {
		return Clients{}, err
	}
	return Clients{
		Runtime: runtimeClient{bedrockagentruntime.NewFromConfig(awsCfg)},
		Control: bedrockagent.NewFromConfig(awsCfg),
	}, nil
}

type runtimeClient struct {
	*bedrockagentruntime.Client
}

func (c runtimeClient) InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (StreamOutput, error) {
	out, err := c.Client.InvokeAgent(ctx, params, optFns...)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return out, nil
}

type clientKey struct {
	profile string
	region  string
}

// Service issues agent, retrieval and ingestion calls.
//
// It keeps no per-call state: every method takes the effective configuration
// of that call. SDK clients are reused per profile and region.
type Service struct {
	factory ClientFactory
	logger  *zap.Logger
	trace   bool

	mu      sync.Mutex
	clients map[clientKey]Clients
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logger.OrNop(l) }
}

// WithTrace asks the agent to include trace events in its response. Trace
// events are logged at debug level and never appear in the answer.
func WithTrace(enabled bool) Option {
	return func(s *Service) { s.trace = enabled }
}

// New creates a service. A nil factory uses NewAWSClients.
func New(factory ClientFactory, opts ...Option) *Service {
	if factory == nil {
		factory = NewAWSClients
	}
	s := &Service{
		factory: factory,
		logger:  zap.NewNop(),
		clients: map[clientKey]Clients{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) clientsFor(ctx context.Context, eff config.Effective) (Clients, error) {
	key := clientKey{profile: eff.Profile, region: eff.Region}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	c, err := s.factory(ctx, eff)
	if err != nil {
		return Clients{}, fmt.Errorf("create clients: %w", err)
	}
	s.clients[key] = c
	return c, nil
}

// Invoke sends query to the agent and returns the whole answer.
func (s *Service) Invoke(ctx context.Context, query, sessionID string, eff config.Effective) (string, error) {
	st, err := s.InvokeStream(ctx, query, sessionID, eff)
	if err != nil {
		return "", err
	}
	defer st.Close() //nolint:errcheck

	var sb strings.Builder
	for chunk, err := range st.Chunks() {
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

// InvokeStream sends query to the agent and returns its response stream. The
// request is issued before InvokeStream returns; chunks are read as the
// caller ranges over Stream.Chunks.
func (s *Service) InvokeStream(ctx context.Context, query, sessionID string, eff config.Effective) (*Stream, error) {
	if err := eff.Validate(config.OpInvokeAgent); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	clients, err := s.clientsFor(ctx, eff)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("agent_id", eff.AgentID),
		zap.String("agent_alias_id", eff.AgentAliasID),
		zap.String("session_id", sessionID),
	)
	log.Debug("invoking agent", zap.Int("input_chars", len(query)))

	input := &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(eff.AgentID),
		AgentAliasId: aws.String(eff.AgentAliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(query),
	}
	if s.trace {
		input.EnableTrace = aws.Bool(true)
	}
	out, err := clients.Runtime.InvokeAgent(ctx, input)
	if err != nil {
		log.Debug("agent invocation failed", zap.Error(err))
		return nil, fmt.Errorf("invoke agent: %w", err)
	}
	es := out.GetStream()
	if es == nil {
		return nil, errors.New("invoke agent: output missing event stream")
	}
	return NewStream(es, log), nil
}
