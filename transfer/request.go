package transfer

import "github.com/google/uuid"

// Request correlates one transfer across both peers. The ID travels in
// every protocol message; Metadata is caller-supplied intent that never
// leaves the local side.
type Request struct {
	ID       string
	Metadata map[string]string
}

// NewRequest creates a request with a fresh unique ID.
func NewRequest() Request {
	return Request{ID: uuid.NewString()}
}
