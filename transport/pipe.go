package transport

import "sync"

// pipeBuffer is the number of frames one pipe side queues before sends
// block.
const pipeBuffer = 256

// Pipe is an in-memory Channel. NewPipe returns two connected ends;
// frames sent on one end are delivered, in order, to the other end's
// handler on a dedicated dispatch goroutine.
type Pipe struct {
	peer *Pipe

	mu      sync.Mutex
	handler Handler
	ready   chan struct{} // closed once a handler is registered

	queue     chan Frame
	closed    chan struct{}
	closeOnce sync.Once
}

// NewPipe creates a connected pair of in-memory channels.
func NewPipe() (*Pipe, *Pipe) {
	a := newPipeEnd()
	b := newPipeEnd()
	a.peer, b.peer = b, a
	go a.dispatch()
	go b.dispatch()
	return a, b
}

func newPipeEnd() *Pipe {
	return &Pipe{
		ready:  make(chan struct{}),
		queue:  make(chan Frame, pipeBuffer),
		closed: make(chan struct{}),
	}
}

// SendText transmits data to the other end as a text frame.
func (p *Pipe) SendText(data []byte) error {
	return p.send(TextFrame(data))
}

// SendBinary transmits data to the other end as a binary frame.
func (p *Pipe) SendBinary(data []byte) error {
	return p.send(BinaryFrame(data))
}

func (p *Pipe) send(f Frame) error {
	select {
	case <-p.closed:
		return ErrChannelClosed
	case <-p.peer.closed:
		return ErrChannelClosed
	default:
	}

	select {
	case p.peer.queue <- f:
		return nil
	case <-p.closed:
		return ErrChannelClosed
	case <-p.peer.closed:
		return ErrChannelClosed
	}
}

// OnFrame registers the inbound handler. Frames queued before
// registration are delivered once the handler is in place.
func (p *Pipe) OnFrame(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	already := p.handler != nil
	p.handler = h
	if !already {
		close(p.ready)
	}
}

// Close shuts down both delivery directions of this end.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// dispatch delivers queued frames to the handler in order, waiting for a
// handler to be registered first so early frames are never dropped.
func (p *Pipe) dispatch() {
	select {
	case <-p.ready:
	case <-p.closed:
		return
	}

	for {
		select {
		case f := <-p.queue:
			p.mu.Lock()
			h := p.handler
			p.mu.Unlock()
			h(f)
		case <-p.closed:
			return
		}
	}
}
