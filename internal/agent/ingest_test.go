package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/kbagent/internal/config"
)

func ingestEff() config.Effective {
	return config.Effective{Profile: "default", Region: "us-east-1", KnowledgeBaseID: "KB1", DataSourceID: "DS1"}
}

func jobOut(status agenttypes.IngestionJobStatus, reasons ...string) *bedrockagent.GetIngestionJobOutput {
	return &bedrockagent.GetIngestionJobOutput{IngestionJob: &agenttypes.IngestionJob{
		IngestionJobId:  aws.String("JOB1"),
		KnowledgeBaseId: aws.String("KB1"),
		DataSourceId:    aws.String("DS1"),
		Status:          status,
		FailureReasons:  reasons,
	}}
}

func TestStartIngestion(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctl := &mockControl{startOut: &bedrockagent.StartIngestionJobOutput{IngestionJob: &agenttypes.IngestionJob{
		IngestionJobId:  aws.String("JOB1"),
		KnowledgeBaseId: aws.String("KB1"),
		DataSourceId:    aws.String("DS1"),
		Status:          agenttypes.IngestionJobStatusStarting,
		StartedAt:       aws.Time(started),
	}}}
	svc, _ := newTestService(nil, ctl)

	job, err := svc.StartIngestion(context.Background(), ingestEff())
	require.NoError(t, err)
	require.Equal(t, "JOB1", job.ID)
	require.Equal(t, "STARTING", job.Status)
	require.Equal(t, started, job.StartedAt)
	require.False(t, job.Done())
	require.Equal(t, "KB1", aws.ToString(ctl.startInput.KnowledgeBaseId))
	require.Equal(t, "DS1", aws.ToString(ctl.startInput.DataSourceId))
}

func TestStartIngestionErrors(t *testing.T) {
	t.Run("missing data source", func(t *testing.T) {
		ctl := &mockControl{}
		svc, _ := newTestService(nil, ctl)
		eff := ingestEff()
		eff.DataSourceID = ""

		_, err := svc.StartIngestion(context.Background(), eff)
		require.ErrorIs(t, err, config.ErrMissingConfig)
		require.Nil(t, ctl.startInput)
	})

	t.Run("conflict", func(t *testing.T) {
		boom := errors.New("ConflictException")
		svc, _ := newTestService(nil, &mockControl{startErr: boom})

		_, err := svc.StartIngestion(context.Background(), ingestEff())
		require.ErrorIs(t, err, boom)
	})

	t.Run("empty response", func(t *testing.T) {
		svc, _ := newTestService(nil, &mockControl{startOut: &bedrockagent.StartIngestionJobOutput{}})

		_, err := svc.StartIngestion(context.Background(), ingestEff())
		require.Error(t, err)
	})
}

func TestIngestionStatus(t *testing.T) {
	ctl := &mockControl{getOuts: []*bedrockagent.GetIngestionJobOutput{jobOut(agenttypes.IngestionJobStatusComplete)}}
	svc, _ := newTestService(nil, ctl)

	job, err := svc.IngestionStatus(context.Background(), "JOB1", ingestEff())
	require.NoError(t, err)
	require.Equal(t, "COMPLETE", job.Status)
	require.True(t, job.Done())
	require.Equal(t, "JOB1", aws.ToString(ctl.getInputs[0].IngestionJobId))

	_, err = svc.IngestionStatus(context.Background(), " ", ingestEff())
	require.Error(t, err)
	require.Len(t, ctl.getInputs, 1)
}

func TestWaitIngestion(t *testing.T) {
	t.Run("polls until complete", func(t *testing.T) {
		ctl := &mockControl{getOuts: []*bedrockagent.GetIngestionJobOutput{
			jobOut(agenttypes.IngestionJobStatusStarting),
			jobOut(agenttypes.IngestionJobStatusInProgress),
			jobOut(agenttypes.IngestionJobStatusComplete),
		}}
		svc, _ := newTestService(nil, ctl)

		var seen []string
		job, err := svc.WaitIngestion(context.Background(), "JOB1", ingestEff(), time.Millisecond, func(j IngestionJob) {
			seen = append(seen, j.Status)
		})
		require.NoError(t, err)
		require.Equal(t, "COMPLETE", job.Status)
		require.Equal(t, []string{"STARTING", "IN_PROGRESS", "COMPLETE"}, seen)
	})

	t.Run("failed job", func(t *testing.T) {
		ctl := &mockControl{getOuts: []*bedrockagent.GetIngestionJobOutput{
			jobOut(agenttypes.IngestionJobStatusFailed, "bad document"),
		}}
		svc, _ := newTestService(nil, ctl)

		job, err := svc.WaitIngestion(context.Background(), "JOB1", ingestEff(), time.Millisecond, nil)
		require.ErrorIs(t, err, ErrIngestionFailed)
		require.ErrorContains(t, err, "bad document")
		require.Equal(t, "FAILED", job.Status)
	})

	t.Run("context done", func(t *testing.T) {
		ctl := &mockControl{getOuts: []*bedrockagent.GetIngestionJobOutput{
			jobOut(agenttypes.IngestionJobStatusInProgress),
		}}
		svc, _ := newTestService(nil, ctl)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := svc.WaitIngestion(ctx, "JOB1", ingestEff(), time.Millisecond, nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
