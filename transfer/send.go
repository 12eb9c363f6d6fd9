package transfer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ferry/chunk"
	"github.com/opd-ai/ferry/hashing"
	"github.com/opd-ai/ferry/transport"
	"github.com/opd-ai/ferry/wire"
)

// SendFile streams file to peerID under req's correlation token. It
// blocks until the transfer ends; run it in its own goroutine to
// interleave transfers. The protocol per transfer is strictly
// sequential: one Start, then a header/payload pair per chunk, then one
// End, with no chunk in flight before the previous send returned.
func (c *Coordinator) SendFile(peerID string, file File, req Request) error {
	logrus.WithFields(logrus.Fields{
		"function":   "SendFile",
		"peer_id":    peerID,
		"request_id": req.ID,
		"file_name":  file.Name(),
		"file_size":  file.Size(),
	}).Info("Initiating outgoing transfer")

	ch, ok := c.registry.Get(peerID)
	if !ok {
		// Fails before any transfer state exists.
		return fmt.Errorf("%w: %s", ErrNoChannel, peerID)
	}

	digest, err := c.hashSource(file)
	if err != nil {
		return err
	}

	ctx, err := c.registerOutgoing(req.ID, digest, file.Size())
	if err != nil {
		return err
	}
	defer c.releaseOutgoing(req.ID)

	total := chunk.Count(file.Size(), c.chunkSize)

	if err := c.stream(ctx, ch, peerID, file, req.ID, digest, total); err != nil {
		c.failOutgoing(ch, peerID, req.ID, err)
		return err
	}

	c.completeOutgoing(req.ID)
	return nil
}

// hashSource runs the whole-file digest pass. The source is read twice
// per transfer, once here and once while chunking.
func (c *Coordinator) hashSource(file File) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file.Name(), err)
	}
	defer src.Close()

	digest, err := hashing.Hash(src)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", file.Name(), err)
	}
	return digest, nil
}

// registerOutgoing installs the live record, cancellation handle and
// timing bookkeeping for a new outgoing transfer.
func (c *Coordinator) registerOutgoing(requestID, digest string, totalBytes int64) (context.Context, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.progress[requestID]; exists {
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}

	c.newProgress(requestID, digest, totalBytes)
	c.cancels[requestID] = cancel
	c.started[requestID] = time.Now()
	return ctx, nil
}

// releaseOutgoing removes the cancellation handle and timing
// bookkeeping regardless of outcome. The progress record stays so
// callers can observe the terminal state.
func (c *Coordinator) releaseOutgoing(requestID string) {
	c.mu.Lock()
	cancel := c.cancels[requestID]
	delete(c.cancels, requestID)
	delete(c.started, requestID)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// stream performs the announce, chunk loop and end announcement.
func (c *Coordinator) stream(ctx context.Context, ch transport.Channel, peerID string, file File, requestID, digest string, total int) error {
	lock := c.sendLock(peerID)

	if err := c.sendHeader(ch, lock, wire.NewStart(requestID, file.Name(), file.Size(), digest, total)); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name(), err)
	}
	defer src.Close()

	chunker, err := chunk.NewChunker(src, file.Size(), c.chunkSize)
	if err != nil {
		return err
	}

	for {
		next, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		// Cooperative cancellation, polled between chunks only.
		if ctx.Err() != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "stream",
				"request_id": requestID,
				"next_index": next.Index,
			}).Info("Cancellation observed, aborting chunk loop")
			return ErrCancelled
		}

		if err := c.sendChunk(ch, lock, requestID, next); err != nil {
			return err
		}

		c.recordSent(requestID, len(next.Data))
	}

	return c.sendHeader(ch, lock, wire.NewEnd(requestID, digest))
}

// sendHeader encodes and transmits one protocol message as a text frame.
func (c *Coordinator) sendHeader(ch transport.Channel, lock *sync.Mutex, msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	lock.Lock()
	err = ch.SendText(data)
	lock.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelSend, err)
	}
	return nil
}

// sendChunk transmits one chunk as a header frame immediately followed
// by its binary payload. The peer lock keeps the pair adjacent when
// multiple transfers share one channel.
func (c *Coordinator) sendChunk(ch transport.Channel, lock *sync.Mutex, requestID string, ck chunk.Chunk) error {
	header, err := wire.Encode(wire.NewChunk(requestID, ck.Index, len(ck.Data)))
	if err != nil {
		return err
	}

	lock.Lock()
	err = ch.SendText(header)
	if err == nil {
		err = ch.SendBinary(ck.Data)
	}
	lock.Unlock()

	if err != nil {
		return fmt.Errorf("%w: chunk %d: %v", ErrChannelSend, ck.Index, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "sendChunk",
		"request_id": requestID,
		"index":      ck.Index,
		"size":       len(ck.Data),
		"last":       ck.Last,
	}).Debug("Chunk transmitted")

	return nil
}

// recordSent folds one transmitted chunk into the live record and emits
// a progress notification.
func (c *Coordinator) recordSent(requestID string, n int) {
	c.mu.Lock()
	p, ok := c.progress[requestID]
	if !ok {
		c.mu.Unlock()
		return
	}
	p.Transferred += int64(n)
	p.Percent = percentOf(p.Transferred, p.TotalBytes)
	c.updateRates(p, c.started[requestID])
	snap := *p
	c.mu.Unlock()

	c.emitProgress(snap)
}

// completeOutgoing marks a finished outgoing transfer done and emits
// completion.
func (c *Coordinator) completeOutgoing(requestID string) {
	c.mu.Lock()
	c.advanceStatus(requestID, StatusDone)
	p, ok := c.progress[requestID]
	var snap Progress
	if ok {
		p.Percent = 100
		p.ETA = 0
		snap = *p
	}
	c.mu.Unlock()

	if ok {
		c.emitProgress(snap)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "completeOutgoing",
		"request_id": requestID,
	}).Info("Outgoing transfer complete")

	c.emitComplete(requestID)
}

// failOutgoing marks an outgoing transfer failed, notifies the peer on
// a best-effort basis, and emits the error. Failure to notify the peer
// is swallowed, not re-raised.
func (c *Coordinator) failOutgoing(ch transport.Channel, peerID, requestID string, cause error) {
	c.mu.Lock()
	c.advanceStatus(requestID, StatusError)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "failOutgoing",
		"peer_id":    peerID,
		"request_id": requestID,
		"error":      cause.Error(),
	}).Error("Outgoing transfer failed")

	if data, err := wire.Encode(wire.NewError(requestID, cause.Error())); err == nil {
		lock := c.sendLock(peerID)
		lock.Lock()
		sendErr := ch.SendText(data)
		lock.Unlock()
		if sendErr != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "failOutgoing",
				"request_id": requestID,
				"error":      sendErr.Error(),
			}).Warn("Failed to notify peer of transfer failure")
		}
	}

	c.emitError(requestID, cause)
}
