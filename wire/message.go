// Package wire defines the peer-to-peer file transfer protocol messages.
//
// Every transfer is driven by four header messages carried as text frames
// on the peer channel: Start announces a file, Chunk announces the binary
// frame that immediately follows it, End marks the end of the stream, and
// Error reports a terminal failure. Chunk payloads themselves travel as raw
// binary frames and never pass through this package.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type discriminators carried in the "type" field of every header frame.
const (
	TypeStart = "file-start"
	TypeChunk = "file-chunk"
	TypeEnd   = "file-end"
	TypeError = "file-error"
)

// ErrUnknownType indicates a header frame with an unrecognized type string.
var ErrUnknownType = errors.New("unknown message type")

// ErrMissingRequestID indicates a header frame without a correlation token.
var ErrMissingRequestID = errors.New("message missing request_id")

// Message is the closed union of protocol header messages. Exactly four
// types implement it: *Start, *Chunk, *End and *Error.
type Message interface {
	// Request returns the correlation token shared by both peers for the
	// lifetime of one transfer.
	Request() string

	kind() string
}

// Start announces an incoming file and carries everything the receiver
// needs to construct an assembler for it.
type Start struct {
	Type        string `json:"type"`
	RequestID   string `json:"request_id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Hash        string `json:"hash"`
	TotalChunks int    `json:"total_chunks"`
}

// NewStart creates a Start message with the type discriminator set.
func NewStart(requestID, name string, size int64, hash string, totalChunks int) *Start {
	return &Start{
		Type:        TypeStart,
		RequestID:   requestID,
		Name:        name,
		Size:        size,
		Hash:        hash,
		TotalChunks: totalChunks,
	}
}

// Request returns the transfer correlation token.
func (m *Start) Request() string { return m.RequestID }

func (*Start) kind() string { return TypeStart }

// Chunk announces one file chunk. The binary frame immediately following
// this message on the channel carries exactly Size payload bytes.
type Chunk struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Index     int    `json:"index"`
	Size      int    `json:"size"`
}

// NewChunk creates a Chunk header with the type discriminator set.
func NewChunk(requestID string, index, size int) *Chunk {
	return &Chunk{
		Type:      TypeChunk,
		RequestID: requestID,
		Index:     index,
		Size:      size,
	}
}

// Request returns the transfer correlation token.
func (m *Chunk) Request() string { return m.RequestID }

func (*Chunk) kind() string { return TypeChunk }

// End signals that the sender has streamed every chunk. Receivers detect
// completion by chunk count, so End is diagnostic only.
type End struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Hash      string `json:"hash"`
}

// NewEnd creates an End message with the type discriminator set.
func NewEnd(requestID, hash string) *End {
	return &End{Type: TypeEnd, RequestID: requestID, Hash: hash}
}

// Request returns the transfer correlation token.
func (m *End) Request() string { return m.RequestID }

func (*End) kind() string { return TypeEnd }

// Error reports a terminal transfer failure to the remote peer.
type Error struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Reason    string `json:"error"`
}

// NewError creates an Error message with the type discriminator set.
func NewError(requestID, reason string) *Error {
	return &Error{Type: TypeError, RequestID: requestID, Reason: reason}
}

// Request returns the transfer correlation token.
func (m *Error) Request() string { return m.RequestID }

func (*Error) kind() string { return TypeError }

// Encode serializes a protocol message for transmission as a text frame.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.kind(), err)
	}
	return data, nil
}

// envelope is the minimal shape peeked at before full decoding.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses a text frame into one of the four protocol messages. It
// fails on malformed JSON, unknown type strings, and messages without a
// request_id, so callers can drop invalid frames without guessing.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed header frame: %w", err)
	}

	var msg Message
	switch env.Type {
	case TypeStart:
		msg = &Start{}
	case TypeChunk:
		msg = &Chunk{}
	case TypeEnd:
		msg = &End{}
	case TypeError:
		msg = &Error{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("malformed %s message: %w", env.Type, err)
	}
	if msg.Request() == "" {
		return nil, ErrMissingRequestID
	}
	return msg, nil
}
