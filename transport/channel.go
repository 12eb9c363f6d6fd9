// Package transport defines the message-oriented peer channel boundary
// the file transfer protocol runs over, plus concrete channels: an
// in-memory pipe pair for tests and local use, and an adapter over a
// WebRTC data channel.
//
// A channel delivers discrete frames in order, each tagged as text or
// binary. The protocol sends JSON headers as text frames and raw chunk
// payloads as binary frames; the receive path relies on a header frame
// being immediately followed by its payload frame.
package transport

import "errors"

// ErrChannelClosed indicates a send on a closed channel.
var ErrChannelClosed = errors.New("peer channel closed")

// Frame is one physical message on a peer channel.
type Frame struct {
	Binary bool
	Data   []byte
}

// TextFrame wraps data as a text frame.
func TextFrame(data []byte) Frame { return Frame{Data: data} }

// BinaryFrame wraps data as a binary frame.
func BinaryFrame(data []byte) Frame { return Frame{Binary: true, Data: data} }

// Handler consumes inbound frames, invoked once per physical message in
// delivery order.
type Handler func(Frame)

// Channel is an ordered, message-oriented connection to one peer.
type Channel interface {
	// SendText transmits data as a text frame.
	SendText(data []byte) error

	// SendBinary transmits data as a binary frame.
	SendBinary(data []byte) error

	// OnFrame registers the inbound frame handler. Frames arriving before
	// a handler is registered are buffered, not dropped.
	OnFrame(h Handler)

	// Close tears the channel down. Further sends on either side fail
	// with ErrChannelClosed.
	Close() error
}
