package extractor

import (
	"io"

	"github.com/pkg/errors"
)

// StripeBuilder groups a physically sorted run list into stripes, one
// device read each.
type StripeBuilder struct {
	block_size        uint64
	coalesce_distance uint64
	max_stripe_blocks uint64
}

func NewStripeBuilder(block_size, coalesce_distance,
	max_stripe_blocks uint64) *StripeBuilder {
	return &StripeBuilder{
		block_size:        block_size,
		coalesce_distance: coalesce_distance,
		max_stripe_blocks: max_stripe_blocks,
	}
}

// admissible checks a run against its file's per-pass allowance. An
// allowance of 0 admits everything. Runs of failed files are never
// read.
func admissible(run *BlockRun, allowance uint64) bool {
	task := run.task
	if task.err != nil {
		return false
	}
	return allowance == 0 || run.logical < task.blocks_delivered+allowance
}

// Next builds the longest stripe starting at head. Runs are taken while
// the physical gap to the previous run is within the coalescing distance,
// the stripe stays within its maximum width and each run is inside its
// file's allowance. Returns nil if head itself is not admissible, along
// with the first run not included.
func (self *StripeBuilder) Next(head *BlockRun, allowance uint64) (
	*Stripe, *BlockRun) {
	if head == nil || !admissible(head, allowance) {
		return nil, head
	}

	stripe := &Stripe{
		start: head.physical,
		hole:  head.IsHole(),
	}

	// Physical end (exclusive) of the runs taken so far.
	end := head.physical

	run := head
	for ; run != nil; run = run.next {
		if run != head {
			if run.IsHole() != stripe.hole || !admissible(run, allowance) {
				break
			}

			if !stripe.hole {
				if run.physical > end && run.physical-end > self.coalesce_distance {
					break
				}

				run_end := run.physical + run.length
				if run_end < end {
					run_end = end
				}
				if self.max_stripe_blocks > 0 &&
					run_end-stripe.start > self.max_stripe_blocks {
					break
				}
			}
		}

		run.stripe = stripe
		stripe.references++
		stripe.runs++

		if stripe.hole {
			// Every hole run views the start of one zero buffer.
			run.offset = 0
			if run.length > stripe.blocks {
				stripe.blocks = run.length
			}
			continue
		}

		if run != head && run.physical > end {
			stripe.gap_blocks += run.physical - end
		}
		run.offset = (run.physical - stripe.start) * self.block_size
		if run.physical+run.length > end {
			end = run.physical + run.length
		}
		stripe.blocks = end - stripe.start
	}

	stripe.length = stripe.blocks * self.block_size
	return stripe, run
}

// Read fills the stripe's buffer. Hole stripes are zero filled without
// touching the device. Device reads are rounded up to the device
// alignment and use an aligned buffer. Returns *ShortReadError if the
// device returned less than the stripe length.
func (self *StripeBuilder) Read(device Device, stripe *Stripe) error {
	if stripe.hole {
		stripe.data = make([]byte, stripe.length)
		stripe.valid = stripe.length
		return nil
	}

	alignment := device.Alignment()
	read_len := stripe.length
	if alignment > 1 {
		a := uint64(alignment)
		read_len = (read_len + a - 1) / a * a
	}

	buf := AlignedBuffer(int(read_len), alignment)
	n, err := device.ReadAt(buf, int64(stripe.start*self.block_size))
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "Error reading %d bytes at block %d",
			read_len, stripe.start)
	}

	stripe.data = buf[:stripe.length]
	stripe.valid = uint64(n)
	if stripe.valid < stripe.length {
		return &ShortReadError{
			Block:  stripe.start,
			Wanted: stripe.length,
			Got:    stripe.valid,
		}
	}
	stripe.valid = stripe.length
	return nil
}
