package transfer

// Status is the externally visible state of one transfer. It only moves
// forward: connecting, transferring, verifying, then done or error, with
// error reachable from any non-terminal state.
type Status uint8

const (
	// StatusConnecting indicates the transfer is being set up.
	StatusConnecting Status = iota
	// StatusTransferring indicates chunks are moving.
	StatusTransferring
	// StatusVerifying indicates all chunks arrived and the digest check
	// is running.
	StatusVerifying
	// StatusDone indicates the transfer finished successfully.
	StatusDone
	// StatusError indicates the transfer failed.
	StatusError
)

// String returns the status name used in logs and progress snapshots.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusTransferring:
		return "transferring"
	case StatusVerifying:
		return "verifying"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// terminal reports whether the status admits no further transitions.
func (s Status) terminal() bool {
	return s == StatusDone || s == StatusError
}

// rank orders statuses along the forward-only progression.
func (s Status) rank() int {
	switch s {
	case StatusConnecting:
		return 0
	case StatusTransferring:
		return 1
	case StatusVerifying:
		return 2
	case StatusDone:
		return 3
	case StatusError:
		return 4
	default:
		return -1
	}
}

// Progress is the live record of one transfer, keyed by request_id.
// Callers only ever see copies; the coordinator owns the mutable record.
type Progress struct {
	Request     string
	FileHash    string
	TotalBytes  int64
	Transferred int64
	Percent     int
	Speed       float64 // bytes per second, averaged over the transfer
	ETA         float64 // seconds; math.Inf(1) while speed is zero
	Status      Status
}

// percentOf maps transferred/total onto an integer 0..100. A zero-byte
// file is byte-complete from the start.
func percentOf(transferred, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(transferred * 100 / total)
}
