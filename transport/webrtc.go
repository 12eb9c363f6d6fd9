package transport

import (
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// DataChannel adapts a WebRTC data channel to the Channel interface.
// String messages map to text frames and byte messages to binary frames,
// which preserves the header-then-payload pairing the protocol depends
// on: WebRTC data channels deliver messages in order within a channel.
//
// Signaling and connection establishment stay with the caller; the
// adapter expects an already-negotiated data channel.
type DataChannel struct {
	dc *webrtc.DataChannel

	mu      sync.Mutex
	handler Handler
	backlog []Frame
}

// NewDataChannel wraps dc. The adapter takes over dc's OnMessage
// callback; messages arriving before OnFrame is called are buffered.
func NewDataChannel(dc *webrtc.DataChannel) *DataChannel {
	d := &DataChannel{dc: dc}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		d.deliver(Frame{Binary: !msg.IsString, Data: msg.Data})
	})

	logrus.WithFields(logrus.Fields{
		"function": "NewDataChannel",
		"label":    dc.Label(),
	}).Debug("Wrapped WebRTC data channel")

	return d
}

// deliver hands a frame to the handler, holding the lock so buffered
// frames and live ones cannot reorder around each other.
func (d *DataChannel) deliver(f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handler == nil {
		d.backlog = append(d.backlog, f)
		return
	}
	d.handler(f)
}

// SendText transmits data as a string message.
func (d *DataChannel) SendText(data []byte) error {
	return d.dc.SendText(string(data))
}

// SendBinary transmits data as a byte message.
func (d *DataChannel) SendBinary(data []byte) error {
	return d.dc.Send(data)
}

// OnFrame registers the inbound handler and flushes any buffered frames
// to it in arrival order.
func (d *DataChannel) OnFrame(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
	for _, f := range d.backlog {
		h(f)
	}
	d.backlog = nil
}

// Close closes the underlying data channel.
func (d *DataChannel) Close() error {
	return d.dc.Close()
}
