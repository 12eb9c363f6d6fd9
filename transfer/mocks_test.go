package transfer

import (
	"errors"
	"sync"

	"github.com/opd-ai/ferry/transport"
)

// sentFrame records one frame transmitted through the mock channel.
type sentFrame struct {
	binary bool
	data   []byte
}

// mockChannel records outbound frames and lets tests inject inbound
// ones. failAt, when non-negative, makes the Nth send (0-based, text
// and binary counted together) fail.
type mockChannel struct {
	mu      sync.Mutex
	sent    []sentFrame
	handler transport.Handler
	failAt  int
	sends   int

	// afterSend, when set, runs after each successful send with the
	// index of the send that just completed. Used to trigger
	// cancellation mid-flight.
	afterSend func(n int)
}

func newMockChannel() *mockChannel {
	return &mockChannel{failAt: -1}
}

var errMockSend = errors.New("mock channel send failure")

func (m *mockChannel) send(binary bool, data []byte) error {
	m.mu.Lock()
	n := m.sends
	m.sends++
	if m.failAt >= 0 && n == m.failAt {
		m.mu.Unlock()
		return errMockSend
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.sent = append(m.sent, sentFrame{binary: binary, data: stored})
	after := m.afterSend
	m.mu.Unlock()

	if after != nil {
		after(n)
	}
	return nil
}

func (m *mockChannel) SendText(data []byte) error   { return m.send(false, data) }
func (m *mockChannel) SendBinary(data []byte) error { return m.send(true, data) }

func (m *mockChannel) OnFrame(h transport.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *mockChannel) Close() error { return nil }

// frames returns a copy of everything sent so far.
func (m *mockChannel) frames() []sentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentFrame, len(m.sent))
	copy(out, m.sent)
	return out
}

// deliverText injects an inbound text frame, synchronously.
func (m *mockChannel) deliverText(data []byte) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(transport.TextFrame(data))
}

// deliverBinary injects an inbound binary frame, synchronously.
func (m *mockChannel) deliverBinary(data []byte) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(transport.BinaryFrame(data))
}

// recorder collects coordinator notifications for assertions.
type recorder struct {
	mu        sync.Mutex
	progress  []Progress
	completed []string
	errored   map[string]error
	files     []ReceivedFile
}

func newRecorder() *recorder {
	return &recorder{errored: make(map[string]error)}
}

func (r *recorder) install(c *Coordinator) {
	c.OnProgress(func(p Progress) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.progress = append(r.progress, p)
	})
	c.OnComplete(func(id string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.completed = append(r.completed, id)
	})
	c.OnError(func(id string, err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errored[id] = err
	})
	c.OnFileReceived(func(f ReceivedFile) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.files = append(r.files, f)
	})
}

func (r *recorder) completions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.completed))
	copy(out, r.completed)
	return out
}

func (r *recorder) errorFor(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errored[id]
}

func (r *recorder) receivedFiles() []ReceivedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReceivedFile, len(r.files))
	copy(out, r.files)
	return out
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.progress))
	for i, p := range r.progress {
		out[i] = p.Percent
	}
	return out
}
