package temporal

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"bidflow/internal/orchestrator"
)

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "ingest-doc-1-a1", WorkflowID("doc-1", "a1"))
}

func TestStartOptions_NewIDPerAttempt(t *testing.T) {
	c := &Client{taskQueue: "document-ingestion"}
	in := orchestrator.WorkflowInput{DocumentID: "doc-1"}

	first := c.startOptions(in)
	retry := c.startOptions(in)

	assert.True(t, strings.HasPrefix(first.ID, "ingest-doc-1-"))
	assert.True(t, strings.HasPrefix(retry.ID, "ingest-doc-1-"))
	assert.NotEqual(t, first.ID, retry.ID)
	assert.True(t, first.WorkflowExecutionErrorWhenAlreadyStarted)
	assert.Equal(t, "document-ingestion", first.TaskQueue)
}

func TestDecodeToken(t *testing.T) {
	raw, err := decodeToken("dG9rZW4=")
	assert.NoError(t, err)
	assert.Equal(t, []byte("token"), raw)

	_, err = decodeToken("local:not-base64")
	assert.ErrorIs(t, err, orchestrator.ErrUnknownToken)

	_, err = decodeToken("")
	assert.ErrorIs(t, err, orchestrator.ErrUnknownToken)
}

func TestCancelRejectsMalformedRef(t *testing.T) {
	c := &Client{}
	assert.Error(t, c.Cancel(context.Background(), "no-separator"))
}
