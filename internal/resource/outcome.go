package resource

// OutcomeType is the result of one attempted step.
type OutcomeType string

const (
	OutcomeActive         OutcomeType = "ACTIVE"
	OutcomeFailed         OutcomeType = "FAILED"
	OutcomeSkippedPresent OutcomeType = "SKIPPED_ALREADY_PRESENT"
	OutcomeDeleted        OutcomeType = "DELETED"
	OutcomeSkippedAbsent  OutcomeType = "SKIPPED_ALREADY_ABSENT"
	OutcomeNotAttempted   OutcomeType = "NOT_ATTEMPTED"
)

// Outcome reports what happened to one kind during a command.
type Outcome struct {
	Kind        Kind              `json:"kind"`
	Name        string            `json:"name,omitempty"`
	Type        OutcomeType       `json:"outcome"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Err         error             `json:"-"`
	Cause       string            `json:"cause,omitempty"`
}

// Succeeded reports whether the outcome counts towards an overall success.
func (o Outcome) Succeeded() bool {
	switch o.Type {
	case OutcomeActive, OutcomeSkippedPresent, OutcomeDeleted, OutcomeSkippedAbsent:
		return true
	default:
		return false
	}
}

// Operation names a command handled by the orchestrator.
type Operation string

const (
	OperationCreate    Operation = "create"
	OperationDelete    Operation = "delete"
	OperationDeleteAll Operation = "delete-all"
)

// Result is the ordered list of outcomes for one command.
type Result struct {
	Namespace string    `json:"namespace"`
	Operation Operation `json:"operation"`
	Target    string    `json:"target"`
	RunID     string    `json:"run_id"`
	Outcomes  []Outcome `json:"outcomes"`
}

// OK reports whether every attempted kind succeeded.
func (r *Result) OK() bool {
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			return false
		}
	}
	return true
}

// Failed returns the first failed outcome, if any.
func (r *Result) Failed() (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Type == OutcomeFailed {
			return o, true
		}
	}
	return Outcome{}, false
}

// Kinds returns the kinds in the order they were reported.
func (r *Result) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		kinds = append(kinds, o.Kind)
	}
	return kinds
}
