package transfer

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ferry/chunk"
	"github.com/opd-ai/ferry/hashing"
	"github.com/opd-ai/ferry/transport"
	"github.com/opd-ai/ferry/wire"
)

// handleFrame demultiplexes one inbound physical message from peerID.
// Text frames carry protocol headers; a binary frame is the payload of
// the header that immediately preceded it on the same channel.
func (c *Coordinator) handleFrame(peerID string, f transport.Frame) {
	if f.Binary {
		c.handleBinary(peerID, f.Data)
		return
	}

	msg, err := wire.Decode(f.Data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleFrame",
			"peer_id":  peerID,
			"error":    err.Error(),
		}).Warn("Dropping undecodable header frame")
		return
	}

	switch m := msg.(type) {
	case *wire.Start:
		c.handleStart(peerID, m)
	case *wire.Chunk:
		c.handleChunkHeader(peerID, m)
	case *wire.End:
		c.handleEnd(peerID, m)
	case *wire.Error:
		c.handleError(peerID, m)
	}
}

// handleStart creates the assembler and live record for a new incoming
// transfer.
func (c *Coordinator) handleStart(peerID string, m *wire.Start) {
	logrus.WithFields(logrus.Fields{
		"function":     "handleStart",
		"peer_id":      peerID,
		"request_id":   m.RequestID,
		"file_name":    m.Name,
		"file_size":    m.Size,
		"total_chunks": m.TotalChunks,
	}).Info("Incoming transfer announced")

	asm, err := chunk.NewAssembler(chunk.Meta{
		Name:        m.Name,
		Size:        m.Size,
		Hash:        m.Hash,
		TotalChunks: m.TotalChunks,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "handleStart",
			"request_id": m.RequestID,
			"error":      err.Error(),
		}).Warn("Dropping start message with invalid metadata")
		return
	}

	c.mu.Lock()
	if _, exists := c.progress[m.RequestID]; exists {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "handleStart",
			"request_id": m.RequestID,
		}).Warn("Dropping start message for request id already in use")
		return
	}
	c.inbound[m.RequestID] = &inboundTransfer{peer: peerID, asm: asm}
	p := c.newProgress(m.RequestID, m.Hash, m.Size)
	c.started[m.RequestID] = time.Now()
	snap := *p
	c.mu.Unlock()

	c.emitProgress(snap)
}

// handleChunkHeader remembers the header as the pending one for this
// channel; the very next binary frame on the channel belongs to it.
func (c *Coordinator) handleChunkHeader(peerID string, m *wire.Chunk) {
	c.mu.Lock()
	if _, ok := c.inbound[m.RequestID]; !ok {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "handleChunkHeader",
			"peer_id":    peerID,
			"request_id": m.RequestID,
			"index":      m.Index,
		}).Warn("Dropping chunk header for unknown request")
		return
	}
	if prev := c.pending[peerID]; prev != nil {
		logrus.WithFields(logrus.Fields{
			"function":       "handleChunkHeader",
			"peer_id":        peerID,
			"request_id":     m.RequestID,
			"orphaned_index": prev.Index,
		}).Warn("Replacing unconsumed pending chunk header")
	}
	c.pending[peerID] = m
	c.mu.Unlock()
}

// handleBinary routes a raw payload frame to the assembler named by the
// channel's pending header. A payload with no pending header is a
// protocol violation; it is dropped without harming other transfers.
func (c *Coordinator) handleBinary(peerID string, data []byte) {
	c.mu.Lock()
	header := c.pending[peerID]
	delete(c.pending, peerID)
	var in *inboundTransfer
	if header != nil {
		in = c.inbound[header.RequestID]
	}
	c.mu.Unlock()

	if header == nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleBinary",
			"peer_id":  peerID,
			"size":     len(data),
		}).Warn("Dropping binary frame with no pending header")
		return
	}
	if in == nil {
		logrus.WithFields(logrus.Fields{
			"function":   "handleBinary",
			"peer_id":    peerID,
			"request_id": header.RequestID,
		}).Warn("Dropping payload for request with no assembler")
		return
	}

	if len(data) != header.Size {
		c.failIncoming(header.RequestID, fmt.Errorf(
			"chunk %d carried %d bytes, header declared %d", header.Index, len(data), header.Size))
		return
	}

	complete, err := in.asm.AddChunk(header.Index, data)
	if err != nil {
		c.failIncoming(header.RequestID, err)
		return
	}

	c.recordReceived(header.RequestID, in.asm)

	if complete {
		c.finishIncoming(header.RequestID, in)
	}
}

// recordReceived refreshes the live record from the assembler and emits
// a progress notification.
func (c *Coordinator) recordReceived(requestID string, asm *chunk.Assembler) {
	received := asm.Bytes()
	percent := asm.Progress()

	c.mu.Lock()
	p, ok := c.progress[requestID]
	if !ok {
		c.mu.Unlock()
		return
	}
	p.Transferred = received
	p.Percent = percent
	c.updateRates(p, c.started[requestID])
	snap := *p
	c.mu.Unlock()

	c.emitProgress(snap)
}

// finishIncoming assembles, verifies and hands over a complete incoming
// transfer.
func (c *Coordinator) finishIncoming(requestID string, in *inboundTransfer) {
	c.mu.Lock()
	c.advanceStatus(requestID, StatusVerifying)
	var snap Progress
	if p, ok := c.progress[requestID]; ok {
		snap = *p
	}
	c.mu.Unlock()
	c.emitProgress(snap)

	payload, err := in.asm.Assemble()
	if err != nil {
		c.failIncoming(requestID, err)
		return
	}

	if !hashing.Verify(payload, in.asm.ExpectedHash()) {
		c.failIncoming(requestID, fmt.Errorf("%w: digest mismatch for %q", ErrIntegrity, in.asm.Meta().Name))
		return
	}

	meta := in.asm.Meta()

	c.mu.Lock()
	delete(c.inbound, requestID)
	delete(c.started, requestID)
	c.advanceStatus(requestID, StatusDone)
	var done Progress
	if p, ok := c.progress[requestID]; ok {
		p.Transferred = p.TotalBytes
		p.Percent = 100
		p.ETA = 0
		done = *p
	}
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "finishIncoming",
		"request_id": requestID,
		"peer_id":    in.peer,
		"file_name":  meta.Name,
		"file_size":  meta.Size,
	}).Info("Incoming transfer verified and complete")

	c.emitProgress(done)
	c.emitFile(ReceivedFile{
		Request: requestID,
		Peer:    in.peer,
		Name:    meta.Name,
		Size:    meta.Size,
		Hash:    meta.Hash,
		Data:    payload,
	})
	c.emitComplete(requestID)
}

// failIncoming tears down the receive-side state for one request and
// emits the error. Other in-flight transfers are untouched.
func (c *Coordinator) failIncoming(requestID string, cause error) {
	c.mu.Lock()
	delete(c.inbound, requestID)
	delete(c.started, requestID)
	for peerID, header := range c.pending {
		if header.RequestID == requestID {
			delete(c.pending, peerID)
		}
	}
	c.advanceStatus(requestID, StatusError)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "failIncoming",
		"request_id": requestID,
		"error":      cause.Error(),
	}).Error("Incoming transfer failed")

	c.emitError(requestID, cause)
}

// handleEnd is diagnostic only: completion is detected by chunk count,
// not by the end message.
func (c *Coordinator) handleEnd(peerID string, m *wire.End) {
	logrus.WithFields(logrus.Fields{
		"function":   "handleEnd",
		"peer_id":    peerID,
		"request_id": m.RequestID,
		"hash":       m.Hash,
	}).Debug("End of stream announced")
}

// handleError tears down local state for a transfer the peer reported
// failed, in either direction.
func (c *Coordinator) handleError(peerID string, m *wire.Error) {
	c.mu.Lock()
	_, wasInbound := c.inbound[m.RequestID]
	delete(c.inbound, m.RequestID)
	if wasInbound {
		delete(c.started, m.RequestID)
	}
	cancel := c.cancels[m.RequestID]
	_, known := c.progress[m.RequestID]
	c.advanceStatus(m.RequestID, StatusError)
	c.mu.Unlock()

	if !known {
		logrus.WithFields(logrus.Fields{
			"function":   "handleError",
			"peer_id":    peerID,
			"request_id": m.RequestID,
		}).Debug("Ignoring error for unknown request")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":    "handleError",
		"peer_id":     peerID,
		"request_id":  m.RequestID,
		"reason":      m.Reason,
		"was_inbound": wasInbound,
	}).Error("Peer reported transfer failure")

	// An outgoing transfer stops at its next cancellation poll.
	if cancel != nil {
		cancel()
	}

	c.emitError(m.RequestID, &RemoteError{Request: m.RequestID, Reason: m.Reason})
}
