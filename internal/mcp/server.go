// Package mcp exposes the agent, retrieval and ingestion operations as MCP
// tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/agent"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/errs"
	"github.com/dotcommander/kbagent/internal/logger"
)

// Tool names.
const (
	ToolInvokeAgent     = "invoke_bedrock_agent"
	ToolRetrieve        = "retrieve_from_kb"
	ToolStartIngestion  = "start_ingestion_job"
	ToolGetIngestionJob = "get_ingestion_job"
)

// DefaultSessionID is the session used by invoke_bedrock_agent when the
// caller sends none.
const DefaultSessionID = "default"

// Agent is the subset of *agent.Service served as tools.
type Agent interface {
	Invoke(ctx context.Context, query, sessionID string, eff config.Effective) (string, error)
	Retrieve(ctx context.Context, query string, eff config.Effective, maxResults int) ([]agent.Result, error)
	StartIngestion(ctx context.Context, eff config.Effective) (agent.IngestionJob, error)
	IngestionStatus(ctx context.Context, jobID string, eff config.Effective) (agent.IngestionJob, error)
}

// Server maps MCP tool calls onto Agent calls.
type Server struct {
	agent   Agent
	cfg     *config.Config
	logger  *zap.Logger
	version string
}

// New creates a tool server. cfg supplies stored ids and the command line
// overrides that tool arguments fall back to.
func New(a Agent, cfg *config.Config, version string, l *zap.Logger) *Server {
	return &Server{agent: a, cfg: cfg, version: version, logger: logger.OrNop(l)}
}

// MCPServer builds the protocol server with every tool registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("kbagent", s.version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(ToolInvokeAgent,
		mcp.WithDescription("Ask the configured Bedrock agent a question and return its full answer."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question for the agent")),
		mcp.WithString("agent_id", mcp.Description("Agent id; defaults to the configured agent")),
		mcp.WithString("agent_alias_id", mcp.Description("Agent alias id; defaults to the configured alias")),
		mcp.WithString("session_id", mcp.Description("Conversation session id"), mcp.DefaultString(DefaultSessionID)),
	), s.invokeAgent)

	srv.AddTool(mcp.NewTool(ToolRetrieve,
		mcp.WithDescription("Retrieve matching passages from a Bedrock knowledge base."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("kb_id", mcp.Description("Knowledge base id; defaults to the configured one")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of passages")),
	), s.retrieve)

	srv.AddTool(mcp.NewTool(ToolStartIngestion,
		mcp.WithDescription("Start syncing a knowledge base data source."),
		mcp.WithString("kb_id", mcp.Description("Knowledge base id")),
		mcp.WithString("data_source_id", mcp.Description("Data source id")),
	), s.startIngestion)

	srv.AddTool(mcp.NewTool(ToolGetIngestionJob,
		mcp.WithDescription("Report the state of an ingestion job."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Ingestion job id")),
		mcp.WithString("kb_id", mcp.Description("Knowledge base id")),
		mcp.WithString("data_source_id", mcp.Description("Data source id")),
	), s.getIngestionJob)

	return srv
}

// Serve runs the stdio transport until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening on stdio")
	if err := server.NewStdioServer(s.MCPServer()).Listen(ctx, in, out); err != nil {
		return fmt.Errorf("mcp serve: %w", err)
	}
	return nil
}

func (s *Server) effective(o config.Overrides) config.Effective {
	return s.cfg.Resolve(o.Merge(s.cfg.Overrides))
}

func (s *Server) invokeAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eff := s.effective(config.Overrides{
		AgentID:      req.GetString("agent_id", ""),
		AgentAliasID: req.GetString("agent_alias_id", ""),
	})
	answer, err := s.agent.Invoke(ctx, query, req.GetString("session_id", DefaultSessionID), eff)
	if err != nil {
		return s.toolError(ToolInvokeAgent, err), nil
	}
	return mcp.NewToolResultText(answer), nil
}

type passage struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (s *Server) retrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eff := s.effective(config.Overrides{KnowledgeBaseID: req.GetString("kb_id", "")})
	results, err := s.agent.Retrieve(ctx, query, eff, req.GetInt("max_results", s.cfg.MaxResults))
	if err != nil {
		return s.toolError(ToolRetrieve, err), nil
	}
	passages := make([]passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, passage{Content: r.Content, Score: r.Score})
	}
	return jsonResult(passages)
}

func (s *Server) startIngestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eff := s.effective(config.Overrides{
		KnowledgeBaseID: req.GetString("kb_id", ""),
		DataSourceID:    req.GetString("data_source_id", ""),
	})
	job, err := s.agent.StartIngestion(ctx, eff)
	if err != nil {
		return s.toolError(ToolStartIngestion, err), nil
	}
	return jsonResult(job)
}

func (s *Server) getIngestionJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eff := s.effective(config.Overrides{
		KnowledgeBaseID: req.GetString("kb_id", ""),
		DataSourceID:    req.GetString("data_source_id", ""),
	})
	job, err := s.agent.IngestionStatus(ctx, jobID, eff)
	if err != nil {
		return s.toolError(ToolGetIngestionJob, err), nil
	}
	return jsonResult(job)
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(errs.Message(err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
