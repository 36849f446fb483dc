package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotcal_validation_failures_total",
		Help: "Rejected event drafts by the rule that rejected them",
	}, []string{"rule"})

	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotcal_commits_total",
		Help: "Confirmed mutations by action and outcome",
	}, []string{"action", "outcome"}) // outcome=applied|noop|conflict

	selectionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotcal_slot_selection_rejections_total",
		Help: "Grid slot clicks rejected before the dialog opened",
	}, []string{"reason"}) // reason=past|booked

	eventsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slotcal_events_stored",
		Help: "Number of events currently in the store",
	})

	publishRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotcal_publish_runs_total",
		Help: "Calendar feed publish attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure
)

func RecordValidationFailure(rule string) {
	validationFailures.WithLabelValues(rule).Inc()
}

func RecordCommit(action, outcome string) {
	commitsTotal.WithLabelValues(action, outcome).Inc()
}

func RecordSelectionRejected(reason string) {
	selectionRejections.WithLabelValues(reason).Inc()
}

func SetEventsStored(n int) {
	eventsStored.Set(float64(n))
}

func RecordPublish(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	publishRuns.WithLabelValues(outcome).Inc()
}
