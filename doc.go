// Package ferry implements a peer-to-peer chunked file transfer protocol
// over message-oriented peer channels.
//
// Ferry moves arbitrary files between two peers across any ordered,
// message-oriented channel (a WebRTC data channel, an in-memory pipe),
// verifies end-to-end integrity with a content digest, reports live
// progress, speed and ETA, and supports mid-flight cancellation. This
// package is the API facade over the subsystems: wire protocol messages,
// chunking and reassembly, content hashing, the channel boundary, and the
// transfer coordinator.
//
// # Getting Started
//
// Create a coordinator with options and attach a channel per peer:
//
//	options := ferry.NewOptions()
//
//	coord, err := ferry.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	coord.AttachPeer("bob", channel)
//
//	coord.OnFileReceived(func(f transfer.ReceivedFile) {
//	    os.WriteFile(f.Name, f.Data, 0o644)
//	})
//
//	file, _ := transfer.OSFile("holiday.mp4")
//	err = coord.SendFile("bob", file, transfer.NewRequest())
//
// Establishing the peer channel itself (signaling, NAT traversal,
// encryption) is the caller's concern; ferry begins where an ordered
// channel already exists.
package ferry
