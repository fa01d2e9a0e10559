package engine

// AbortPayload is the tagged payload carried by a cooperative abort. The
// adapter recognizes it at the transaction boundary and turns it into an
// Aborted raw outcome; anywhere else it propagates unchanged.
type AbortPayload struct {
	Reason any
}

// Unwind raises the low-level abort signal, unwinding the surrounding
// transaction body. It never returns.
func Unwind(payload AbortPayload) {
	panic(payload)
}
