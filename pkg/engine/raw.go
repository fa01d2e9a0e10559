package engine

// Raw outcomes are what Begin hands back to the result normalizer. The set
// is deliberately open: anything outside these three shapes is passed
// through untouched downstream.

// Committed is a successful transaction's result value.
type Committed struct {
	Value any
}

// Aborted is a cooperative abort from inside the body, never retried.
type Aborted struct {
	Reason any
}

// Failed is any other terminal engine failure, including exhausted retry
// budgets and panics inside the body.
type Failed struct {
	Detail any
}
