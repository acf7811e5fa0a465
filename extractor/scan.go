package extractor

import (
	"github.com/pkg/errors"
)

// BlockScanner turns a file's extent stream into a run length encoded
// list of BlockRuns, with explicit zero runs for holes.
type BlockScanner struct {
	provider       MetadataProvider
	block_size     uint64
	max_run_blocks uint64
}

func NewBlockScanner(provider MetadataProvider, max_run_blocks uint64) *BlockScanner {
	return &BlockScanner{
		provider:       provider,
		block_size:     provider.BlockSize(),
		max_run_blocks: max_run_blocks,
	}
}

type runList struct {
	head, tail *BlockRun
}

func (self *runList) append(run *BlockRun) {
	if self.head == nil {
		self.head = run
	} else {
		self.tail.next = run
	}
	self.tail = run
}

// Scan builds the run list for task. Each run created increments the
// task's reference count. Empty files produce no runs.
func (self *BlockScanner) Scan(task *FileTask) (head, tail *BlockRun, err error) {
	list := &runList{}
	entry := task.entry

	task.blocks_scanned = 0
	err = self.provider.Extents(entry.Id, entry.Length,
		func(logical, physical uint64) error {
			return self.scanBlock(task, list, logical, physical)
		})
	if err != nil {
		return nil, nil, errors.Wrapf(err,
			"while iterating over blocks of inode %d", entry.Id)
	}

	// Sparse tail of the file.
	max_blocks := task.maxBlocks(self.block_size)
	if task.blocks_scanned < max_blocks {
		self.appendHole(task, list, max_blocks-task.blocks_scanned)
	}

	return list.head, list.tail, nil
}

func (self *BlockScanner) scanBlock(task *FileTask, list *runList,
	logical, physical uint64) error {
	file_len := task.entry.Length

	// Providers may report an extra block past the end of the file to
	// leave room for appending writers.
	if file_len == 0 || logical*self.block_size >= file_len {
		return nil
	}

	if logical < task.blocks_scanned {
		return errors.Errorf("block %d of inode %d reported out of order (expected %d)",
			logical, task.entry.Id, task.blocks_scanned)
	}

	// Fill holes the provider skipped before the real block.
	if logical > task.blocks_scanned {
		self.appendHole(task, list, logical-task.blocks_scanned)
	}

	self.appendBlocks(task, list, physical, 1)
	return nil
}

func (self *BlockScanner) appendHole(task *FileTask, list *runList, count uint64) {
	for count > 0 {
		n := count
		if self.max_run_blocks > 0 && n > self.max_run_blocks {
			n = self.max_run_blocks
		}
		n = self.appendBlocks(task, list, HoleBlock, n)
		count -= n
	}
}

// appendBlocks adds up to count blocks starting at physical to the list,
// extending the tail run when possible. Returns the number of blocks
// consumed.
func (self *BlockScanner) appendBlocks(task *FileTask, list *runList,
	physical, count uint64) uint64 {
	tail := list.tail

	if tail != nil && tail.extends(physical) &&
		(self.max_run_blocks == 0 || tail.length < self.max_run_blocks) {
		if self.max_run_blocks > 0 && tail.length+count > self.max_run_blocks {
			count = self.max_run_blocks - tail.length
		}
		tail.length += count

	} else {
		tail = &BlockRun{
			task:     task,
			physical: physical,
			logical:  task.blocks_scanned,
			length:   count,
		}
		task.references++
		list.append(tail)
	}

	task.blocks_scanned += count
	tail.clip(self.block_size, task.entry.Length)
	return count
}
