package transfer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ferry/chunk"
	"github.com/opd-ai/ferry/transport"
	"github.com/opd-ai/ferry/wire"
)

// Config carries coordinator settings.
type Config struct {
	// ChunkSize is the payload size of every chunk except the last. It
	// must stay below the largest single message the peer channel will
	// reliably deliver.
	ChunkSize int
}

// DefaultConfig returns the default coordinator settings.
func DefaultConfig() *Config {
	return &Config{ChunkSize: chunk.DefaultSize}
}

// ReceivedFile is a fully reassembled and verified incoming file.
type ReceivedFile struct {
	Request string
	Peer    string
	Name    string
	Size    int64
	Hash    string
	Data    []byte
}

// inboundTransfer is the receive-side state for one request_id.
type inboundTransfer struct {
	peer string
	asm  *chunk.Assembler
}

// Coordinator owns the table of in-flight transfers on one side of the
// protocol. It drives the sender loop, routes inbound frames to the
// correct assembler, computes speed and ETA, and emits progress,
// completion and error notifications.
//
// All maps are guarded by one mutex; callbacks are always invoked with
// the mutex released.
type Coordinator struct {
	chunkSize int
	registry  *transport.Registry

	mu        sync.Mutex
	progress  map[string]*Progress           // request_id -> live record
	cancels   map[string]context.CancelFunc  // request_id -> outgoing cancel handle
	started   map[string]time.Time           // request_id -> start instant for speed math
	inbound   map[string]*inboundTransfer    // request_id -> assembler state
	pending   map[string]*wire.Chunk         // peer_id -> header awaiting its binary frame
	sendLocks map[string]*sync.Mutex         // peer_id -> header/payload pairing lock

	onProgress func(Progress)
	onComplete func(requestID string)
	onError    func(requestID string, err error)
	onFile     func(ReceivedFile)
}

// NewCoordinator creates a coordinator with the given settings. A nil
// config selects defaults.
func NewCoordinator(cfg *Config) (*Coordinator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ChunkSize <= 0 {
		return nil, chunk.ErrInvalidChunkSize
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewCoordinator",
		"chunk_size": cfg.ChunkSize,
	}).Info("Creating transfer coordinator")

	return &Coordinator{
		chunkSize: cfg.ChunkSize,
		registry:  transport.NewRegistry(),
		progress:  make(map[string]*Progress),
		cancels:   make(map[string]context.CancelFunc),
		started:   make(map[string]time.Time),
		inbound:   make(map[string]*inboundTransfer),
		pending:   make(map[string]*wire.Chunk),
		sendLocks: make(map[string]*sync.Mutex),
	}, nil
}

// AttachPeer registers the channel to peerID and starts routing its
// inbound frames through this coordinator.
func (c *Coordinator) AttachPeer(peerID string, ch transport.Channel) {
	c.mu.Lock()
	if _, ok := c.sendLocks[peerID]; !ok {
		c.sendLocks[peerID] = &sync.Mutex{}
	}
	c.mu.Unlock()

	c.registry.Add(peerID, ch)
	ch.OnFrame(func(f transport.Frame) { c.handleFrame(peerID, f) })

	logrus.WithFields(logrus.Fields{
		"function": "AttachPeer",
		"peer_id":  peerID,
	}).Info("Peer channel attached")
}

// DetachPeer drops the channel to peerID. In-flight transfers on that
// channel will fail on their next send.
func (c *Coordinator) DetachPeer(peerID string) {
	c.registry.Remove(peerID)

	c.mu.Lock()
	delete(c.pending, peerID)
	delete(c.sendLocks, peerID)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "DetachPeer",
		"peer_id":  peerID,
	}).Info("Peer channel detached")
}

// OnProgress registers the progress notification hook.
func (c *Coordinator) OnProgress(f func(Progress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = f
}

// OnComplete registers the completion notification hook.
func (c *Coordinator) OnComplete(f func(requestID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = f
}

// OnError registers the error notification hook.
func (c *Coordinator) OnError(f func(requestID string, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = f
}

// OnFileReceived registers the hook handed each verified incoming file.
func (c *Coordinator) OnFileReceived(f func(ReceivedFile)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFile = f
}

// Progress returns a snapshot of the live record for requestID.
func (c *Coordinator) Progress(requestID string) (Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.progress[requestID]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// Snapshot returns copies of every transfer record the coordinator
// knows about, including terminal ones.
func (c *Coordinator) Snapshot() map[string]Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Progress, len(c.progress))
	for id, p := range c.progress {
		out[id] = *p
	}
	return out
}

// CancelTransfer requests cooperative cancellation of an outgoing
// transfer. The send loop observes the flag between chunks, so
// cancellation latency is bounded by one chunk's transmission time.
func (c *Coordinator) CancelTransfer(requestID string) error {
	c.mu.Lock()
	cancel := c.cancels[requestID]
	c.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTransfer, requestID)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "CancelTransfer",
		"request_id": requestID,
	}).Info("Cancellation requested")

	cancel()
	return nil
}

// sendLock returns the per-peer lock that keeps a header frame and its
// binary payload adjacent on the channel when transfers interleave.
func (c *Coordinator) sendLock(peerID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.sendLocks[peerID]
	if !ok {
		lock = &sync.Mutex{}
		c.sendLocks[peerID] = lock
	}
	return lock
}

// newProgress installs a fresh live record. Caller must hold c.mu.
func (c *Coordinator) newProgress(requestID, hash string, totalBytes int64) *Progress {
	p := &Progress{
		Request:    requestID,
		FileHash:   hash,
		TotalBytes: totalBytes,
		ETA:        math.Inf(1),
		Status:     StatusTransferring,
	}
	c.progress[requestID] = p
	return p
}

// advanceStatus moves a record forward to next, refusing backward and
// post-terminal transitions. Caller must hold c.mu.
func (c *Coordinator) advanceStatus(requestID string, next Status) bool {
	p, ok := c.progress[requestID]
	if !ok || p.Status.terminal() || next.rank() <= p.Status.rank() {
		return false
	}
	p.Status = next
	return true
}

// updateRates recomputes speed and ETA for a record from the elapsed
// wall time. Caller must hold c.mu.
func (c *Coordinator) updateRates(p *Progress, startedAt time.Time) {
	elapsed := time.Since(startedAt).Seconds()
	if elapsed > 0 {
		p.Speed = float64(p.Transferred) / elapsed
	}
	if p.Speed > 0 {
		p.ETA = float64(p.TotalBytes-p.Transferred) / p.Speed
	} else {
		p.ETA = math.Inf(1)
	}
}

// emitProgress delivers a snapshot to the progress hook.
func (c *Coordinator) emitProgress(p Progress) {
	c.mu.Lock()
	f := c.onProgress
	c.mu.Unlock()
	if f != nil {
		f(p)
	}
}

// emitComplete delivers a completion notification.
func (c *Coordinator) emitComplete(requestID string) {
	c.mu.Lock()
	f := c.onComplete
	c.mu.Unlock()
	if f != nil {
		f(requestID)
	}
}

// emitError delivers an error notification. The record's status is
// already error by the time this runs, so a caller watching the
// progress map sees the failure even if it misses the callback.
func (c *Coordinator) emitError(requestID string, err error) {
	c.mu.Lock()
	f := c.onError
	c.mu.Unlock()
	if f != nil {
		f(requestID, err)
	}
}

// emitFile delivers a verified incoming file.
func (c *Coordinator) emitFile(rf ReceivedFile) {
	c.mu.Lock()
	f := c.onFile
	c.mu.Unlock()
	if f != nil {
		f(rf)
	}
}
