package extractor

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// Number of files buffered at the same time.
	MaxInodes int

	// Blocks which may be buffered across the whole window.
	MaxBlocks uint64

	// Largest gap in blocks read over to join two runs into one stripe.
	CoalesceDistance uint64

	// Longest run the scanner builds. Must fit in a stripe.
	MaxRunBlocks uint64

	// Widest stripe in blocks. 0 means MaxBlocks.
	MaxStripeBlocks uint64

	// Limit how far ahead of its delivered position a file may be read
	// in one pass.
	PerFileCap bool

	// Treat short device reads as fatal instead of failing the files
	// involved.
	AbortOnShortRead bool

	Logger  logrus.FieldLogger
	Metrics *Metrics
}

func DefaultOptions() Options {
	return Options{
		MaxInodes:        100,
		MaxBlocks:        128000,
		CoalesceDistance: 1,
		MaxRunBlocks:     1024,
		PerFileCap:       true,
	}
}

func (self Options) Validate() error {
	if self.MaxInodes < 1 {
		return errors.Wrapf(ErrInvalidOptions,
			"max_inodes must be at least 1, not %d", self.MaxInodes)
	}
	if self.MaxBlocks < 1 {
		return errors.Wrap(ErrInvalidOptions, "max_blocks must be at least 1")
	}
	stripe_blocks := self.stripeBlocks()
	if self.MaxRunBlocks == 0 || self.MaxRunBlocks > stripe_blocks {
		return errors.Wrapf(ErrInvalidOptions,
			"max_run_blocks (%d) must be between 1 and the stripe width (%d)",
			self.MaxRunBlocks, stripe_blocks)
	}
	return nil
}

func (self Options) stripeBlocks() uint64 {
	if self.MaxStripeBlocks == 0 {
		return self.MaxBlocks
	}
	return self.MaxStripeBlocks
}

func (self Options) logger() logrus.FieldLogger {
	if self.Logger != nil {
		return self.Logger
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
