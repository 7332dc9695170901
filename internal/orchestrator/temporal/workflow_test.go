package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"bidflow/internal/orchestrator"
)

type stubSteps struct{}

func (stubSteps) BeginOcr(context.Context, orchestrator.WorkflowInput, string) error { return nil }
func (stubSteps) CompleteExtraction(context.Context, orchestrator.WorkflowInput, orchestrator.Outcome) error {
	return nil
}
func (stubSteps) MarkFailed(context.Context, orchestrator.WorkflowInput, string) error { return nil }

type IngestionWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env  *testsuite.TestWorkflowEnvironment
	acts *Activities
}

func (s *IngestionWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.acts = &Activities{Steps: stubSteps{}}
	s.env.RegisterActivity(s.acts)
}

func (s *IngestionWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func params() Params {
	return Params{
		Input:           orchestrator.WorkflowInput{DocumentID: "doc-1", OrgID: "org-1", ProjectID: "proj-1"},
		OcrWaitTimeout:  time.Hour,
		ActivityTimeout: time.Minute,
	}
}

func (s *IngestionWorkflowSuite) TestSuccessRunsExtraction() {
	p := params()
	s.env.OnActivity(s.acts.BeginOcr, mock.Anything, p.Input).
		Return(orchestrator.Outcome{OcrJobID: "job-1"}, nil).Once()
	s.env.OnActivity(s.acts.CompleteExtraction, mock.Anything, p.Input, orchestrator.Outcome{OcrJobID: "job-1"}).
		Return(nil).Once()

	s.env.ExecuteWorkflow(IngestionWorkflow, p)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *IngestionWorkflowSuite) TestOcrFailureMarksFailed() {
	p := params()
	s.env.OnActivity(s.acts.BeginOcr, mock.Anything, p.Input).
		Return(orchestrator.Outcome{}, temporal.NewNonRetryableApplicationError(
			"OCR job job-1 failed with status FAILED", "OcrFailed", nil)).Once()
	s.env.OnActivity(s.acts.MarkFailed, mock.Anything, p.Input, "OCR job job-1 failed with status FAILED").
		Return(nil).Once()

	s.env.ExecuteWorkflow(IngestionWorkflow, p)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *IngestionWorkflowSuite) TestExtractionFailureMarksFailed() {
	p := params()
	s.env.OnActivity(s.acts.BeginOcr, mock.Anything, p.Input).
		Return(orchestrator.Outcome{OcrJobID: "job-1"}, nil).Once()
	s.env.OnActivity(s.acts.CompleteExtraction, mock.Anything, p.Input, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("extractor unavailable", "ExtractFailed", nil)).Once()
	s.env.OnActivity(s.acts.MarkFailed, mock.Anything, p.Input, "extractor unavailable").
		Return(nil).Once()

	s.env.ExecuteWorkflow(IngestionWorkflow, p)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *IngestionWorkflowSuite) TestCancelWhileWaiting() {
	p := params()
	s.env.OnActivity(s.acts.BeginOcr, mock.Anything, p.Input).
		After(10*time.Minute).
		Return(orchestrator.Outcome{OcrJobID: "late"}, nil).Maybe()
	s.env.RegisterDelayedCallback(func() {
		s.env.CancelWorkflow()
	}, time.Minute)

	s.env.ExecuteWorkflow(IngestionWorkflow, p)

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	var canceled *temporal.CanceledError
	s.True(errors.As(err, &canceled))
}

func TestIngestionWorkflowSuite(t *testing.T) {
	suite.Run(t, new(IngestionWorkflowSuite))
}
