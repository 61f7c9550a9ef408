package models

// Signal is the tagged routing variant a step outcome carries. Edges in the
// workflow graph match on signals, so routing is statically enumerable.
type Signal string

const (
	// SignalOK is the generic success signal for steps with nothing to report.
	SignalOK Signal = "ok"

	// SignalAlertsRaised indicates the monitor step produced at least one alert.
	SignalAlertsRaised Signal = "alerts_raised"

	// SignalIssuesFound indicates the quality check found compliance issues.
	SignalIssuesFound Signal = "issues_found"

	// SignalClean indicates the quality check found no issues.
	SignalClean Signal = "clean"

	// SignalCreated indicates the creation step produced a draft campaign.
	SignalCreated Signal = "created"

	// SignalSuspend asks the engine to checkpoint the run as Suspended
	// without advancing; a later resume re-enters at the same node.
	SignalSuspend Signal = "suspend"
)

// StepOutcome is the structured result of a successful step execution.
type StepOutcome struct {
	Signal Signal         `json:"signal"`
	Data   map[string]any `json:"data,omitempty"`
}
