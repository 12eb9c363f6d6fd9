package transfer

import (
	"errors"
	"fmt"
)

// ErrNoChannel indicates no channel to the target peer is registered.
// SendFile fails with it before any transfer state is created.
var ErrNoChannel = errors.New("no channel to peer")

// ErrCancelled indicates the local caller cancelled an outgoing transfer.
var ErrCancelled = errors.New("transfer cancelled")

// ErrChannelSend indicates the peer channel failed mid-stream.
var ErrChannelSend = errors.New("channel send failed")

// ErrIntegrity indicates the assembled file's digest did not match the
// digest announced at transfer start.
var ErrIntegrity = errors.New("content integrity check failed")

// ErrDuplicateRequest indicates a request_id that already identifies a
// transfer on this coordinator.
var ErrDuplicateRequest = errors.New("request id already in use")

// ErrUnknownTransfer indicates a request_id with no active outgoing
// transfer to act on.
var ErrUnknownTransfer = errors.New("no active outgoing transfer")

// RemoteError reports a failure the peer announced via a file-error
// message. The local side tears down its state without further action.
type RemoteError struct {
	Request string
	Reason  string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("peer reported transfer %s failed: %s", e.Request, e.Reason)
}
