// Package metrics contains all application-logic metrics
package metrics

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	relayRequests      = metrics.NewCounter("relay_requests_total")
	relayAccepted      = metrics.NewCounter("relay_accepted_total")
	submissionFailures = metrics.NewCounter("relay_submission_failures_total")
	simulationDuration = metrics.NewHistogram("relay_simulation_duration_seconds")
	auditDropped       = metrics.NewCounter("relay_audit_dropped_total")
	auditInsertErrors  = metrics.NewCounter("relay_audit_insert_errors_total")
)

func IncRelayRequests() {
	relayRequests.Inc()
}

func IncRelayAccepted() {
	relayAccepted.Inc()
}

func IncRelayRejected(code string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`relay_rejected_total{code=%q}`, code)).Inc()
}

func IncSubmission(channel string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`relay_submissions_total{channel=%q}`, channel)).Inc()
}

func IncSubmissionFailures() {
	submissionFailures.Inc()
}

func ObserveSimulationDuration(d time.Duration) {
	simulationDuration.Update(d.Seconds())
}

func IncAuditDropped(n int) {
	auditDropped.Add(n)
}

func IncAuditInsertErrors() {
	auditInsertErrors.Inc()
}
