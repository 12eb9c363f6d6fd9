// Package transfer implements the coordinator that moves files between
// peers as chunked, integrity-verified transfers over a message-oriented
// channel.
//
// # Overview
//
// One Coordinator instance runs on each side of the protocol and owns
// every in-flight transfer there:
//
//   - the send path hashes a file, announces it, streams header/payload
//     chunk pairs and announces the end
//   - the receive path routes inbound frames to per-request assemblers,
//     verifies the reassembled content, and hands the file to the caller
//
// Transfers are correlated by request_id on both sides; a single channel
// carries any number of concurrent transfers.
//
// # Sending
//
//	coord, _ := transfer.NewCoordinator(nil)
//	coord.AttachPeer("bob", channel)
//
//	file, _ := transfer.OSFile("/tmp/photo.png")
//	req := transfer.NewRequest()
//	if err := coord.SendFile("bob", file, req); err != nil {
//	    log.Fatal(err)
//	}
//
// SendFile blocks until the transfer ends. Each transfer sends its
// chunks strictly sequentially; distinct transfers interleave freely.
//
// # Receiving
//
//	coord.OnFileReceived(func(f transfer.ReceivedFile) {
//	    os.WriteFile(f.Name, f.Data, 0o644)
//	})
//
// The receive path is driven entirely by inbound channel frames; there
// is nothing to call.
//
// # Progress
//
//	coord.OnProgress(func(p transfer.Progress) {
//	    fmt.Printf("%s: %d%% at %.0f B/s\n", p.Request, p.Percent, p.Speed)
//	})
//
// Live records are also readable at any time via Progress and Snapshot.
// Status moves forward only; a record that reports done or error never
// changes again.
//
// # Cancellation
//
//	coord.CancelTransfer(req.ID)
//
// Cancellation is cooperative: the send loop polls the flag between
// chunks, so latency is bounded by one chunk's transmission time. There
// is no receive-side cancel; a receiver that wants out discards its
// state when the sender's error arrives, or simply stops acting.
package transfer
