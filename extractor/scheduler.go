package extractor

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stats are running totals of one extraction.
type Stats struct {
	FilesAdmitted uint64 `json:"FilesAdmitted"`
	FilesRetired  uint64 `json:"FilesRetired"`
	FilesFailed   uint64 `json:"FilesFailed"`
	EmptyFiles    uint64 `json:"EmptyFiles"`
	PeakActive    int    `json:"PeakActive"`

	Passes       uint64 `json:"Passes"`
	RunsCreated  uint64 `json:"RunsCreated"`
	RunsDeferred uint64 `json:"RunsDeferred"`

	StripesAllocated uint64 `json:"StripesAllocated"`
	StripesFreed     uint64 `json:"StripesFreed"`
	HoleStripes      uint64 `json:"HoleStripes"`

	// Device reads issued.
	IoCount         uint64 `json:"IoCount"`
	BytesRead       uint64 `json:"BytesRead"`
	GapBytes        uint64 `json:"GapBytes"`
	BlocksDelivered uint64 `json:"BlocksDelivered"`
	BytesDelivered  uint64 `json:"BytesDelivered"`
}

// Scheduler drives the extraction: it admits a bounded window of files,
// reads their blocks in physical order as stripes and hands each file's
// runs to the consumer in logical order.
type Scheduler struct {
	provider MetadataProvider
	device   Device
	consumer Consumer
	options  Options

	logger  logrus.FieldLogger
	metrics *Metrics

	scanner *BlockScanner
	builder *StripeBuilder

	block_size uint64
	active     int
	stats      Stats
	failures   *multierror.Error
}

func NewScheduler(provider MetadataProvider, device Device,
	consumer Consumer, options Options) (*Scheduler, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	block_size := provider.BlockSize()
	if block_size == 0 {
		return nil, errors.Wrap(ErrInvalidOptions, "block size is 0")
	}

	metrics := options.Metrics
	if metrics == nil {
		var err error
		metrics, err = NewMetrics(nil)
		if err != nil {
			return nil, err
		}
	}

	return &Scheduler{
		provider:   provider,
		device:     device,
		consumer:   consumer,
		options:    options,
		logger:     options.logger(),
		metrics:    metrics,
		scanner:    NewBlockScanner(provider, options.MaxRunBlocks),
		builder:    NewStripeBuilder(block_size, options.CoalesceDistance, options.stripeBlocks()),
		block_size: block_size,
	}, nil
}

func (self *Scheduler) Stats() Stats {
	return self.stats
}

// Run extracts all files. A fatal error aborts immediately; the consumer
// may already have seen a prefix of some files. Files failed by short
// reads do not stop the run and are reported together at the end.
func (self *Scheduler) Run(files []*FileEntry) error {
	start := time.Now()
	self.logger.WithField("files", len(files)).Info("BEGIN BLOCK READ")

	queue := sortFiles(files)
	var pending *BlockRun

	for queue != nil || pending != nil {
		var pending_tail *BlockRun
		for run := pending; run != nil; run = run.next {
			pending_tail = run
		}

		// Admit files until the window is full.
		for queue != nil && self.active < self.options.MaxInodes {
			entry := queue.entry
			queue = queue.next

			head, tail, err := self.admit(entry)
			if err != nil {
				return err
			}
			if head == nil {
				continue
			}

			if pending == nil {
				pending = head
			} else {
				pending_tail.next = head
			}
			pending_tail = tail
		}

		var err error
		pending, err = self.purgeFailed(pending)
		if err != nil {
			return err
		}
		if pending == nil {
			if self.active > 0 {
				return errors.Wrapf(ErrStalled, "%d files active", self.active)
			}
			continue
		}

		// Sort the blocks into the order in which they are laid out
		// on disk.
		pending = SortList(pending, runNext, byPhysicalBlock)

		pending, err = self.pass(pending)
		if err != nil {
			return err
		}
	}

	self.logger.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"io_count": self.stats.IoCount,
		"blocks":   self.stats.BlocksDelivered,
	}).Info("END BLOCK READ")

	return self.failures.ErrorOrNil()
}

// admit scans a file and makes it active. Empty files are delivered and
// retired straight away and return no runs.
func (self *Scheduler) admit(entry *FileEntry) (head, tail *BlockRun, err error) {
	task := newFileTask(entry)
	self.stats.FilesAdmitted++

	head, tail, err = self.scanner.Scan(task)
	if err != nil {
		return nil, nil, err
	}

	if task.references == 0 {
		self.stats.EmptyFiles++
		err := self.deliver(task, &Chunk{
			Id:          entry.Id,
			Path:        entry.Path,
			TotalLength: entry.Length,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, self.finish(task)
	}

	self.stats.RunsCreated += uint64(task.references)
	self.active++
	self.metrics.ActiveFiles.Inc()
	if self.active > self.stats.PeakActive {
		self.stats.PeakActive = self.active
	}

	self.logger.WithFields(logrus.Fields{
		"inode": entry.Id,
		"path":  entry.Path,
		"runs":  task.references,
	}).Debug("Admitted file")

	return head, tail, nil
}

// allowance is the per-file block budget for one pass.
func (self *Scheduler) allowance() uint64 {
	if !self.options.PerFileCap {
		return 0
	}
	active := uint64(self.active)
	if active == 0 {
		return self.options.MaxBlocks
	}
	return (self.options.MaxBlocks + active - 1) / active
}

// pass reads the sorted run list once, front to back. Returns the runs
// deferred to the next pass.
func (self *Scheduler) pass(block_list *BlockRun) (*BlockRun, error) {
	self.stats.Passes++
	allowance := self.allowance()

	var deferred runList

	for block_list != nil {
		// Files may fail during the pass. Their runs are dropped before
		// they cost a read.
		if block_list.task.err != nil {
			run := block_list
			block_list = block_list.next
			run.next = nil
			if err := self.release(run); err != nil {
				return nil, err
			}
			continue
		}

		stripe, rest := self.builder.Next(block_list, allowance)
		if stripe == nil {
			// Too far ahead of its file, try again next pass.
			next := block_list.next
			block_list.next = nil
			deferred.append(block_list)
			self.stats.RunsDeferred++

			block_list = next
			continue
		}

		if err := self.read(block_list, stripe); err != nil {
			return nil, err
		}

		if err := self.heapifyStripe(block_list, stripe); err != nil {
			return nil, err
		}
		block_list = rest
	}

	return deferred.head, nil
}

func (self *Scheduler) read(head *BlockRun, stripe *Stripe) error {
	self.stats.StripesAllocated++

	if stripe.hole {
		self.stats.HoleStripes++
		self.metrics.HoleStripes.Inc()
	} else {
		self.stats.IoCount++
		self.stats.BytesRead += stripe.length
		self.stats.GapBytes += stripe.gap_blocks * self.block_size
		self.metrics.StripesRead.Inc()
		self.metrics.BytesRead.Add(float64(stripe.length))
		self.metrics.GapBytes.Add(float64(stripe.gap_blocks * self.block_size))
	}

	self.logger.WithFields(logrus.Fields{
		"block":  stripe.start,
		"blocks": stripe.blocks,
		"runs":   stripe.runs,
		"hole":   stripe.hole,
	}).Debug("Reading stripe")

	err := self.builder.Read(self.device, stripe)
	if err == nil {
		return nil
	}

	short_read := &ShortReadError{}
	if !errors.As(err, &short_read) {
		return err
	}

	self.metrics.ShortReads.Inc()
	if self.options.AbortOnShortRead {
		return err
	}

	// Fail only the files whose bytes were not read.
	run := head
	for i := 0; i < stripe.runs; i++ {
		if run.offset+run.data_len > stripe.valid {
			if err := self.fail(run.task, err); err != nil {
				return err
			}
		}
		run = run.next
	}
	return nil
}

// heapifyStripe inserts every run of the stripe into its file's heap and
// flushes whatever became deliverable.
func (self *Scheduler) heapifyStripe(block_list *BlockRun, stripe *Stripe) error {
	// The stripe may be released during the loop.
	runs := stripe.runs

	for i := 0; i < runs; i++ {
		// block_list could be freed once delivered, so step past it
		// before flushing.
		run := block_list
		block_list = block_list.next
		run.next = nil

		task := run.task
		if task.err != nil {
			if err := self.release(run); err != nil {
				return err
			}
			continue
		}

		if task.block_cache == nil {
			task.block_cache = NewMinHeap[*BlockRun](
				int(task.maxBlocks(self.block_size)) + 1)
		}

		err := task.block_cache.Insert(run.logical, run)
		if err != nil {
			return errors.Wrapf(err, "inode %d (%s)", task.entry.Id, task.entry.Path)
		}

		if err := self.flush(task); err != nil {
			return err
		}
	}

	return nil
}

// flush delivers runs from the heap while they continue the file.
func (self *Scheduler) flush(task *FileTask) error {
	for task.block_cache != nil {
		logical, run, ok := task.block_cache.Min()
		if !ok || logical != task.blocks_delivered {
			return nil
		}
		task.block_cache.DeleteMin()

		if task.references <= 0 {
			return errors.Wrapf(ErrNegativeReferences,
				"inode %d (%s) has %d references",
				task.entry.Id, task.entry.Path, task.references)
		}

		stripe := run.stripe
		err := self.deliver(task, &Chunk{
			Id:          task.entry.Id,
			Path:        task.entry.Path,
			Offset:      logical * self.block_size,
			TotalLength: task.entry.Length,
			Data:        stripe.data[run.offset : run.offset+run.data_len],
		})
		if err != nil {
			return err
		}

		task.blocks_delivered += run.length
		task.bytes_delivered += run.data_len
		self.stats.BlocksDelivered += run.length
		self.stats.BytesDelivered += run.data_len
		self.metrics.BlocksDelivered.Add(float64(run.length))

		if err := self.release(run); err != nil {
			return err
		}
	}
	return nil
}

func (self *Scheduler) deliver(task *FileTask, chunk *Chunk) error {
	err := self.consumer.Deliver(chunk, &task.state)
	if err != nil {
		return errors.Wrapf(err, "while delivering %s at offset %d",
			chunk.Path, chunk.Offset)
	}
	return nil
}

// release drops a run's references to its stripe and file, freeing
// either when it was the last one.
func (self *Scheduler) release(run *BlockRun) error {
	stripe := run.stripe
	run.stripe = nil
	if stripe != nil {
		stripe.references--
		switch {
		case stripe.references == 0:
			stripe.data = nil
			self.stats.StripesFreed++
		case stripe.references < 0:
			return errors.Wrapf(ErrNegativeReferences,
				"stripe at block %d has %d references",
				stripe.start, stripe.references)
		}
	}

	task := run.task
	task.references--
	switch {
	case task.references == 0:
		return self.retire(task)
	case task.references < 0:
		return errors.Wrapf(ErrNegativeReferences,
			"inode %d (%s) has %d references",
			task.entry.Id, task.entry.Path, task.references)
	}
	return nil
}

// retire frees an active file and vacates its window slot.
func (self *Scheduler) retire(task *FileTask) error {
	task.block_cache = nil
	self.active--
	self.metrics.ActiveFiles.Dec()
	return self.finish(task)
}

func (self *Scheduler) finish(task *FileTask) error {
	self.stats.FilesRetired++
	self.metrics.FilesRetired.Inc()

	if task.err != nil {
		self.stats.FilesFailed++
		self.metrics.FilesFailed.Inc()
		self.failures = multierror.Append(self.failures, errors.Wrapf(task.err,
			"inode %d (%s)", task.entry.Id, task.entry.Path))
	}

	finisher, ok := self.consumer.(Finisher)
	if !ok {
		return nil
	}
	err := finisher.Finish(task.entry, &task.state, task.err)
	if err != nil {
		return errors.Wrapf(err, "while finishing %s", task.entry.Path)
	}
	return nil
}

// fail stops delivery of a file. Cached runs are released now, runs still
// pending are released as they come up.
func (self *Scheduler) fail(task *FileTask, err error) error {
	if task.err != nil {
		return nil
	}
	task.err = err

	self.logger.WithError(err).WithFields(logrus.Fields{
		"inode":     task.entry.Id,
		"path":      task.entry.Path,
		"delivered": task.bytes_delivered,
	}).Error("File failed")

	block_cache := task.block_cache
	for block_cache != nil && block_cache.Len() > 0 {
		_, run, _ := block_cache.DeleteMin()
		if err := self.release(run); err != nil {
			return err
		}
	}
	return nil
}

// purgeFailed removes runs of failed files from the pending list.
func (self *Scheduler) purgeFailed(block_list *BlockRun) (*BlockRun, error) {
	var kept runList
	for block_list != nil {
		run := block_list
		block_list = block_list.next
		run.next = nil

		if run.task.err != nil {
			if err := self.release(run); err != nil {
				return nil, err
			}
			continue
		}
		kept.append(run)
	}
	return kept.head, nil
}
