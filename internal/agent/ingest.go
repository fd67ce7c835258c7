package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/errs"
)

// DefaultPollInterval is used by WaitIngestion when no interval is given.
const DefaultPollInterval = 10 * time.Second

// IngestionStats counts documents processed by a job.
type IngestionStats struct {
	Scanned         int64 `json:"scanned"`
	NewIndexed      int64 `json:"new_indexed"`
	ModifiedIndexed int64 `json:"modified_indexed"`
	Deleted         int64 `json:"deleted"`
	Failed          int64 `json:"failed"`
}

// IngestionJob is a snapshot of a knowledge base ingestion job.
type IngestionJob struct {
	ID              string         `json:"id"`
	KnowledgeBaseID string         `json:"knowledge_base_id"`
	DataSourceID    string         `json:"data_source_id"`
	Status          string         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Statistics      IngestionStats `json:"statistics"`
	FailureReasons  []string       `json:"failure_reasons,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j IngestionJob) Done() bool {
	switch agenttypes.IngestionJobStatus(j.Status) {
	case agenttypes.IngestionJobStatusComplete,
		agenttypes.IngestionJobStatusFailed,
		agenttypes.IngestionJobStatusStopped:
		return true
	default:
		return false
	}
}

// StartIngestion starts a sync of the data source in eff.
func (s *Service) StartIngestion(ctx context.Context, eff config.Effective) (IngestionJob, error) {
	if err := eff.Validate(config.OpIngest); err != nil {
		return IngestionJob{}, err
	}
	clients, err := s.clientsFor(ctx, eff)
	if err != nil {
		return IngestionJob{}, err
	}

	out, err := clients.Control.StartIngestionJob(ctx, &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(eff.KnowledgeBaseID),
		DataSourceId:    aws.String(eff.DataSourceID),
	})
	if err != nil {
		return IngestionJob{}, fmt.Errorf("start ingestion job: %w", err)
	}
	if out.IngestionJob == nil {
		return IngestionJob{}, errors.New("start ingestion job: empty response")
	}
	job := toIngestionJob(*out.IngestionJob)
	s.logger.Info("ingestion job started",
		zap.String("job_id", job.ID),
		zap.String("knowledge_base_id", job.KnowledgeBaseID),
		zap.String("data_source_id", job.DataSourceID),
	)
	return job, nil
}

// IngestionStatus fetches the current state of jobID.
func (s *Service) IngestionStatus(ctx context.Context, jobID string, eff config.Effective) (IngestionJob, error) {
	if err := eff.Validate(config.OpIngest); err != nil {
		return IngestionJob{}, err
	}
	if strings.TrimSpace(jobID) == "" {
		return IngestionJob{}, errs.UserErrorf("Missing ingestion job id.")
	}
	clients, err := s.clientsFor(ctx, eff)
	if err != nil {
		return IngestionJob{}, err
	}

	out, err := clients.Control.GetIngestionJob(ctx, &bedrockagent.GetIngestionJobInput{
		KnowledgeBaseId: aws.String(eff.KnowledgeBaseID),
		DataSourceId:    aws.String(eff.DataSourceID),
		IngestionJobId:  aws.String(jobID),
	})
	if err != nil {
		return IngestionJob{}, fmt.Errorf("get ingestion job %s: %w", jobID, err)
	}
	if out.IngestionJob == nil {
		return IngestionJob{}, fmt.Errorf("get ingestion job %s: empty response", jobID)
	}
	return toIngestionJob(*out.IngestionJob), nil
}

// WaitIngestion polls jobID every interval until it reaches a terminal
// state or ctx is done. progress, when set, receives every snapshot. A job
// that ends FAILED is returned together with ErrIngestionFailed.
func (s *Service) WaitIngestion(
	ctx context.Context,
	jobID string,
	eff config.Effective,
	interval time.Duration,
	progress func(IngestionJob),
) (IngestionJob, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := s.IngestionStatus(ctx, jobID, eff)
		if err != nil {
			return job, err
		}
		if progress != nil {
			progress(job)
		}
		if job.Done() {
			s.logger.Info("ingestion job finished", zap.String("job_id", job.ID), zap.String("status", job.Status))
			if job.Status == string(agenttypes.IngestionJobStatusFailed) {
				return job, failedJobError(job)
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, fmt.Errorf("wait for ingestion job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func failedJobError(job IngestionJob) error {
	if len(job.FailureReasons) == 0 {
		return fmt.Errorf("%w: %s", ErrIngestionFailed, job.ID)
	}
	return fmt.Errorf("%w: %s: %s", ErrIngestionFailed, job.ID, strings.Join(job.FailureReasons, "; "))
}

func toIngestionJob(j agenttypes.IngestionJob) IngestionJob {
	job := IngestionJob{
		ID:              aws.ToString(j.IngestionJobId),
		KnowledgeBaseID: aws.ToString(j.KnowledgeBaseId),
		DataSourceID:    aws.ToString(j.DataSourceId),
		Status:          string(j.Status),
		StartedAt:       aws.ToTime(j.StartedAt),
		UpdatedAt:       aws.ToTime(j.UpdatedAt),
		FailureReasons:  j.FailureReasons,
	}
	if st := j.Statistics; st != nil {
		job.Statistics = IngestionStats{
			Scanned:         count(st.NumberOfDocumentsScanned),
			NewIndexed:      count(st.NumberOfNewDocumentsIndexed),
			ModifiedIndexed: count(st.NumberOfModifiedDocumentsIndexed),
			Deleted:         count(st.NumberOfDocumentsDeleted),
			Failed:          count(st.NumberOfDocumentsFailed),
		}
	}
	return job
}

// count reads an SDK counter, which older SDK releases model as a pointer.
func count[T int64 | *int64](v T) int64 {
	switch n := any(v).(type) {
	case *int64:
		return aws.ToInt64(n)
	case int64:
		return n
	}
	return 0
}
