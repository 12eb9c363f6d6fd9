// Command ferry exercises the transfer protocol end to end: it runs a
// sender and a receiver coordinator over an in-memory channel pair,
// streams a file between them with a live progress bar, and verifies
// the received content against the announced digest.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ferry "github.com/opd-ai/ferry"
	"github.com/opd-ai/ferry/hashing"
	"github.com/opd-ai/ferry/transfer"
	"github.com/opd-ai/ferry/transport"
)

var (
	chunkSize int
	outDir    string
	verbose   bool
)

func main() {
	root := &cobra.Command{
		Use:   "ferry",
		Short: "Peer-to-peer chunked file transfer",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	demo := &cobra.Command{
		Use:   "demo <file>",
		Short: "Transfer a file between two local coordinators and verify it",
		Args:  cobra.ExactArgs(1),
		RunE:  runDemo,
	}
	demo.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk payload size in bytes (default 64KiB)")
	demo.Flags().StringVarP(&outDir, "out", "o", "", "directory to write the received file into")
	root.AddCommand(demo)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	file, err := transfer.OSFile(args[0])
	if err != nil {
		return err
	}

	options := ferry.NewOptions()
	if chunkSize > 0 {
		options.ChunkSize = chunkSize
	}

	sender, err := ferry.New(options)
	if err != nil {
		return err
	}
	receiver, err := ferry.New(options)
	if err != nil {
		return err
	}

	a, b := transport.NewPipe()
	defer a.Close()
	defer b.Close()

	received := make(chan transfer.ReceivedFile, 1)
	receiveErr := make(chan error, 1)
	receiver.OnFileReceived(func(f transfer.ReceivedFile) { received <- f })
	receiver.OnError(func(_ string, err error) { receiveErr <- err })

	receiver.AttachPeer("sender", b)
	sender.AttachPeer("receiver", a)

	bar := progressbar.DefaultBytes(file.Size(), "transferring")
	sender.OnProgress(func(p transfer.Progress) {
		_ = bar.Set64(p.Transferred)
	})

	start := time.Now()
	req := transfer.NewRequest()
	if err := sender.SendFile("receiver", file, req); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	select {
	case f := <-received:
		fmt.Printf("\nreceived %q: %d bytes in %s\n", f.Name, f.Size, time.Since(start).Round(time.Millisecond))
		if !hashing.Verify(f.Data, f.Hash) {
			return fmt.Errorf("digest mismatch on received content")
		}
		fmt.Printf("digest verified: %s\n", f.Hash)
		if outDir != "" {
			dest := filepath.Join(outDir, f.Name)
			if err := os.WriteFile(dest, f.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			fmt.Printf("written to %s\n", dest)
		}
		return nil
	case err := <-receiveErr:
		return fmt.Errorf("receive failed: %w", err)
	case <-time.After(2 * time.Minute):
		return fmt.Errorf("timed out waiting for the transfer to complete")
	}
}
