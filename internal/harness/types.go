package harness

// TraceEvent is one executed step.
type TraceEvent struct {
	Step   int      `json:"step"`
	Op     string   `json:"op"`
	Signer string   `json:"signer,omitempty"` // principal name; empty for faucet steps
	Status string   `json:"status"`           // "ok", an error code, or a reject code
	Seq    int64    `json:"seq,omitempty"`    // zero when the envelope was rejected
	Logs   []string `json:"logs,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// State maps each bound name to its final account fields, or to
	// "absent" if the account no longer exists.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
