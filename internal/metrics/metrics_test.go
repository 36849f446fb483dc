package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordValidationFailure(t *testing.T) {
	before := testutil.ToFloat64(validationFailures.WithLabelValues("overlap"))
	RecordValidationFailure("overlap")
	assert.Equal(t, before+1, testutil.ToFloat64(validationFailures.WithLabelValues("overlap")))
}

func TestRecordCommit(t *testing.T) {
	before := testutil.ToFloat64(commitsTotal.WithLabelValues("delete", "noop"))
	RecordCommit("delete", "noop")
	assert.Equal(t, before+1, testutil.ToFloat64(commitsTotal.WithLabelValues("delete", "noop")))
}

func TestSetEventsStored(t *testing.T) {
	SetEventsStored(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(eventsStored))
}

func TestRecordPublish(t *testing.T) {
	before := testutil.ToFloat64(publishRuns.WithLabelValues("failure"))
	RecordPublish(false)
	assert.Equal(t, before+1, testutil.ToFloat64(publishRuns.WithLabelValues("failure")))
}

func TestRecordSelectionRejected(t *testing.T) {
	before := testutil.ToFloat64(selectionRejections.WithLabelValues("past"))
	RecordSelectionRejected("past")
	assert.Equal(t, before+1, testutil.ToFloat64(selectionRejections.WithLabelValues("past")))
}
