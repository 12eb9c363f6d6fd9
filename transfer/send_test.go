package transfer

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/opd-ai/ferry/hashing"
	"github.com/opd-ai/ferry/wire"
)

func testBytes(n int) []byte {
	data := make([]byte, n)
	rng := rand.New(rand.NewSource(99))
	rng.Read(data)
	return data
}

func newTestCoordinator(t *testing.T, chunkSize int) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(&Config{ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return c
}

func TestSendFileNoChannel(t *testing.T) {
	c := newTestCoordinator(t, 65536)
	rec := newRecorder()
	rec.install(c)

	err := c.SendFile("nobody", MemFile("f.bin", testBytes(100)), NewRequest())
	if !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}

	if len(c.Snapshot()) != 0 {
		t.Error("failed lookup must not create a transfer record")
	}
}

func TestSendFileProtocolSequence(t *testing.T) {
	data := testBytes(150000)
	c := newTestCoordinator(t, 65536)
	ch := newMockChannel()
	c.AttachPeer("bob", ch)

	req := NewRequest()
	if err := c.SendFile("bob", MemFile("movie.bin", data), req); err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	frames := ch.frames()
	// One start, three header/payload pairs, one end.
	if len(frames) != 8 {
		t.Fatalf("expected 8 frames, got %d", len(frames))
	}

	start := decodeHeader(t, frames[0]).(*wire.Start)
	if start.TotalChunks != 3 || start.Size != 150000 || start.Name != "movie.bin" {
		t.Errorf("unexpected start message: %+v", start)
	}
	if start.Hash != hashing.HashBytes(data) {
		t.Error("announced hash differs from content digest")
	}

	wantSizes := []int{65536, 65536, 18928}
	var streamed []byte
	for i := 0; i < 3; i++ {
		header := decodeHeader(t, frames[1+2*i]).(*wire.Chunk)
		payload := frames[2+2*i]
		if !payload.binary {
			t.Fatalf("frame %d should be binary", 2+2*i)
		}
		if header.Index != i {
			t.Errorf("chunk %d announced index %d", i, header.Index)
		}
		if header.Size != wantSizes[i] || len(payload.data) != wantSizes[i] {
			t.Errorf("chunk %d sizes: header=%d payload=%d want=%d",
				i, header.Size, len(payload.data), wantSizes[i])
		}
		streamed = append(streamed, payload.data...)
	}
	if !bytes.Equal(streamed, data) {
		t.Error("streamed payload bytes differ from source")
	}

	end := decodeHeader(t, frames[7]).(*wire.End)
	if end.Hash != start.Hash {
		t.Error("end message hash differs from start message hash")
	}

	p, ok := c.Progress(req.ID)
	if !ok {
		t.Fatal("no progress record after send")
	}
	if p.Status != StatusDone || p.Percent != 100 || p.ETA != 0 {
		t.Errorf("terminal record not done/100/0: %+v", p)
	}
}

func TestSendFileZeroByte(t *testing.T) {
	c := newTestCoordinator(t, 65536)
	ch := newMockChannel()
	c.AttachPeer("bob", ch)

	if err := c.SendFile("bob", MemFile("empty", nil), NewRequest()); err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	frames := ch.frames()
	// Start, one header/payload pair, end.
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(frames))
	}

	start := decodeHeader(t, frames[0]).(*wire.Start)
	if start.TotalChunks != 1 || start.Size != 0 {
		t.Errorf("unexpected start for empty file: %+v", start)
	}
	header := decodeHeader(t, frames[1]).(*wire.Chunk)
	if header.Size != 0 || len(frames[2].data) != 0 {
		t.Error("empty file should travel as one zero-length chunk")
	}
}

func TestSendFileProgressMonotonic(t *testing.T) {
	c := newTestCoordinator(t, 4096)
	ch := newMockChannel()
	c.AttachPeer("bob", ch)
	rec := newRecorder()
	rec.install(c)

	req := NewRequest()
	if err := c.SendFile("bob", MemFile("f", testBytes(50000)), req); err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	percents := rec.percents()
	if len(percents) == 0 {
		t.Fatal("no progress notifications")
	}
	last := -1
	for i, p := range percents {
		if p < last {
			t.Fatalf("percent went backward at notification %d: %d after %d", i, p, last)
		}
		last = p
	}
	if last != 100 {
		t.Errorf("final percent = %d, want 100", last)
	}
	if got := rec.completions(); len(got) != 1 || got[0] != req.ID {
		t.Errorf("unexpected completions: %v", got)
	}
}

func TestSendFileCancelledMidFlight(t *testing.T) {
	c := newTestCoordinator(t, 4096)
	ch := newMockChannel()
	c.AttachPeer("bob", ch)
	rec := newRecorder()
	rec.install(c)

	req := NewRequest()

	// Cancel right after the first binary payload goes out. The loop
	// must observe the flag before the next chunk.
	sawBinary := false
	ch.afterSend = func(int) {
		frames := ch.frames()
		if !sawBinary && len(frames) > 0 && frames[len(frames)-1].binary {
			sawBinary = true
			if err := c.CancelTransfer(req.ID); err != nil {
				t.Errorf("CancelTransfer failed: %v", err)
			}
		}
	}

	err := c.SendFile("bob", MemFile("f", testBytes(50000)), req)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	frames := ch.frames()
	// Start, exactly one header/payload pair, then the error message.
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames after cancellation, got %d", len(frames))
	}
	if _, ok := decodeHeader(t, frames[3]).(*wire.Error); !ok {
		t.Error("peer was not notified of the cancellation")
	}

	p, _ := c.Progress(req.ID)
	if p.Status != StatusError {
		t.Errorf("status = %v, want error", p.Status)
	}
	if len(rec.completions()) != 0 {
		t.Error("completion hook fired for a cancelled transfer")
	}
	if !errors.Is(rec.errorFor(req.ID), ErrCancelled) {
		t.Errorf("error hook got %v", rec.errorFor(req.ID))
	}
}

func TestSendFileChannelFailure(t *testing.T) {
	c := newTestCoordinator(t, 4096)
	ch := newMockChannel()
	ch.failAt = 3 // fail on the second chunk's header
	c.AttachPeer("bob", ch)
	rec := newRecorder()
	rec.install(c)

	req := NewRequest()
	err := c.SendFile("bob", MemFile("f", testBytes(20000)), req)
	if !errors.Is(err, ErrChannelSend) {
		t.Fatalf("expected ErrChannelSend, got %v", err)
	}

	p, _ := c.Progress(req.ID)
	if p.Status != StatusError {
		t.Errorf("status = %v, want error", p.Status)
	}
}

func TestSendFileDuplicateRequestID(t *testing.T) {
	c := newTestCoordinator(t, 65536)
	ch := newMockChannel()
	c.AttachPeer("bob", ch)

	req := NewRequest()
	if err := c.SendFile("bob", MemFile("f", testBytes(10)), req); err != nil {
		t.Fatalf("first SendFile failed: %v", err)
	}
	if err := c.SendFile("bob", MemFile("g", testBytes(10)), req); !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestCancelUnknownTransfer(t *testing.T) {
	c := newTestCoordinator(t, 65536)
	if err := c.CancelTransfer("missing"); !errors.Is(err, ErrUnknownTransfer) {
		t.Errorf("expected ErrUnknownTransfer, got %v", err)
	}
}

func decodeHeader(t *testing.T, f sentFrame) wire.Message {
	t.Helper()
	if f.binary {
		t.Fatal("expected a text frame")
	}
	msg, err := wire.Decode(f.data)
	if err != nil {
		t.Fatalf("failed to decode header frame: %v", err)
	}
	return msg
}
