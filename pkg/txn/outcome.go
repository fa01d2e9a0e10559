package txn

// OutcomeKind tags the uniform result union all entry points converge on.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeAborted
	OutcomeEngineError
	// OutcomeUnknown preserves engine result shapes this layer does not
	// model. Unwrap passes the raw value through unchanged.
	OutcomeUnknown
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAborted:
		return "aborted"
	case OutcomeEngineError:
		return "engine_error"
	default:
		return "unknown"
	}
}

// Outcome is either a success carrying a value or a failure carrying a
// classified reason. Unknown outcomes carry the raw shape in Value.
type Outcome struct {
	Kind   OutcomeKind
	Value  any
	Reason any
}

func Success(value any) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: value}
}

func Aborted(reason any) Outcome {
	return Outcome{Kind: OutcomeAborted, Reason: reason}
}

func EngineError(detail any) Outcome {
	return Outcome{Kind: OutcomeEngineError, Reason: detail}
}

func Unknown(raw any) Outcome {
	return Outcome{Kind: OutcomeUnknown, Value: raw}
}

// Ok reports whether the outcome is a success.
func (o Outcome) Ok() bool {
	return o.Kind == OutcomeSuccess
}
