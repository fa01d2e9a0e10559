package common

// TxState tracks a transaction through the commit protocol.
type TxState int

const (
	NoState TxState = iota
	Started
	Prepared
	Committed
	Aborted
)

func (s TxState) String() string {
	switch s {
	case Started:
		return "started"
	case Prepared:
		return "prepared"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "nostate"
	}
}

func ParseTxState(s string) TxState {
	switch s {
	case "started":
		return Started
	case "prepared":
		return Prepared
	case "committed":
		return Committed
	case "aborted":
		return Aborted
	default:
		return NoState
	}
}

// Operation is a single mutation within a writeset.
type Operation int

const (
	NoOp Operation = iota
	WriteOp
	DeleteOp
	RecoveryOp
)

func (o Operation) String() string {
	switch o {
	case WriteOp:
		return "write"
	case DeleteOp:
		return "delete"
	case RecoveryOp:
		return "recovery"
	default:
		return "noop"
	}
}

func ParseOperation(s string) Operation {
	switch s {
	case "write":
		return WriteOp
	case "delete":
		return DeleteOp
	case "recovery":
		return RecoveryOp
	default:
		return NoOp
	}
}

// StorageMode selects where a replica keeps its committed table copies.
type StorageMode int

const (
	ModeDisc StorageMode = iota
	ModeRAM
)

func (m StorageMode) String() string {
	if m == ModeRAM {
		return "ram"
	}
	return "disc"
}

func ParseStorageMode(s string) (StorageMode, bool) {
	switch s {
	case "ram":
		return ModeRAM, true
	case "disc":
		return ModeDisc, true
	default:
		return ModeDisc, false
	}
}

// Op is one staged mutation. Value is ignored for deletes.
type Op struct {
	Kind  Operation
	Key   string
	Value string
}

// WriteSet is the ordered list of mutations a transaction wants committed.
type WriteSet []Op
