package harness

import "github.com/roach88/genlock/internal/ir"

// Step outcomes recorded in the trace.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeExternal = "external" // owner registry change, not an engine op
)

// TraceEvent records what one scenario step did.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Caller  string `json:"caller,omitempty"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Seq     int64  `json:"seq"` // engine seq after the step
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Snapshot is the final engine state.
	Snapshot ir.Snapshot `json:"snapshot"`

	// Events is the journal as stored.
	Events []ir.Event `json:"events"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Events: []ir.Event{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step record.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
