package ferry

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ferry/chunk"
	"github.com/opd-ai/ferry/transfer"
)

// Options contains configuration for creating a coordinator.
type Options struct {
	// ChunkSize is the payload size of every chunk except the last.
	// Keep it below the largest message the peer channel will reliably
	// deliver in one frame.
	ChunkSize int
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{ChunkSize: chunk.DefaultSize}
}

// New creates a transfer coordinator from options. A nil options
// selects defaults.
func New(options *Options) (*transfer.Coordinator, error) {
	if options == nil {
		options = NewOptions()
	}

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"chunk_size": options.ChunkSize,
	}).Info("Creating ferry instance")

	return transfer.NewCoordinator(&transfer.Config{ChunkSize: options.ChunkSize})
}
