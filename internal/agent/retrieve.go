package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/charmbracelet/x/exp/ordered"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/config"
)

// MaxRetrievalResults is the largest result count the service accepts.
const MaxRetrievalResults = 100

// Result is one knowledge base match.
type Result struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Location string         `json:"location,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Retrieve queries the knowledge base in eff and returns matches in service
// order. A positive maxResults is sent as the requested count and caps the
// returned slice; zero or less leaves the count to the service.
func (s *Service) Retrieve(ctx context.Context, query string, eff config.Effective, maxResults int) ([]Result, error) {
	if err := eff.Validate(config.OpRetrieve); err != nil {
		return nil, err
	}
	clients, err := s.clientsFor(ctx, eff)
	if err != nil {
		return nil, err
	}

	input := &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(eff.KnowledgeBaseID),
		RetrievalQuery:  &types.KnowledgeBaseQuery{Text: aws.String(query)},
	}
	if maxResults > 0 {
		maxResults = ordered.Clamp(maxResults, 1, MaxRetrievalResults)
		input.RetrievalConfiguration = &types.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &types.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(maxResults)), //nolint:gosec
			},
		}
	}

	log := s.logger.With(zap.String("knowledge_base_id", eff.KnowledgeBaseID))
	log.Debug("retrieving", zap.Int("max_results", maxResults))

	out, err := clients.Runtime.Retrieve(ctx, input)
	if err != nil {
		log.Debug("retrieve failed", zap.Error(err))
		return nil, fmt.Errorf("retrieve from knowledge base: %w", err)
	}

	results := make([]Result, 0, len(out.RetrievalResults))
	for _, r := range out.RetrievalResults {
		results = append(results, toResult(r, log))
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	log.Debug("retrieved", zap.Int("results", len(results)))
	return results, nil
}

func toResult(r types.KnowledgeBaseRetrievalResult, log *zap.Logger) Result {
	res := Result{Score: aws.ToFloat64(r.Score)}
	if r.Content != nil {
		res.Content = aws.ToString(r.Content.Text)
	}
	if r.Location != nil && r.Location.S3Location != nil {
		res.Location = aws.ToString(r.Location.S3Location.Uri)
	}
	if len(r.Metadata) > 0 {
		res.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			if v == nil {
				continue
			}
			val, err := decodeDocument(v)
			if err != nil {
				log.Debug("skipping metadata", zap.String("key", k), zap.Error(err))
				continue
			}
			res.Metadata[k] = val
		}
	}
	return res
}

// decodeDocument turns a metadata document into plain Go values. It goes
// through the JSON encoding so lazy and wire-decoded documents behave alike.
func decodeDocument(d document.Interface) (any, error) {
	b, err := d.MarshalSmithyDocument()
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	var val any
	if err := json.Unmarshal(b, &val); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return val, nil
}
