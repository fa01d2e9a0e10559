package txn

import (
	"errors"
	"fmt"
)

// ErrNoTransaction is the panic value of Abort when no transaction is
// active on the calling context. This is a usage error, not a transaction
// failure: there is no Outcome to return it through.
var ErrNoTransaction = errors.New("abort called outside a transaction")

// AbortedError surfaces a cooperative abort through the OrFail entry points.
type AbortedError struct {
	Reason any
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("transaction aborted: %v", e.Reason)
}

// FailedError surfaces any other engine failure through the OrFail entry
// points.
type FailedError struct {
	Detail any
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Detail)
}

func (e *FailedError) Unwrap() error {
	if err, ok := e.Detail.(error); ok {
		return err
	}
	return nil
}
