package txn

import "txmesh/pkg/engine"

// Classify maps the engine adapter's raw outcome onto the Outcome union.
// This is the single classification point shared by all entry points, so
// the returning and failing variants can never diverge on the same raw
// result.
func Classify(raw any) Outcome {
	switch v := raw.(type) {
	case engine.Committed:
		return Success(v.Value)
	case engine.Aborted:
		return Aborted(v.Reason)
	case engine.Failed:
		return EngineError(v.Detail)
	default:
		return Unknown(raw)
	}
}

// Unwrap converts an Outcome into the OrFail contract: the success value,
// or a typed error. Unknown shapes come back as-is so engine result shapes
// this layer does not model survive the round trip.
func (o Outcome) Unwrap() (any, error) {
	switch o.Kind {
	case OutcomeSuccess:
		return o.Value, nil
	case OutcomeAborted:
		return nil, &AbortedError{Reason: o.Reason}
	case OutcomeEngineError:
		return nil, &FailedError{Detail: o.Reason}
	default:
		return o.Value, nil
	}
}
