package extractor

// Physical block 0 never holds file data, so it marks an unallocated
// (sparse) region that reads as zeros.
const HoleBlock = 0

// FileEntry is one regular file selected for extraction, as produced by
// the path enumerator.
type FileEntry struct {
	Id     uint64 `json:"Id"`
	Path   string `json:"Path"`
	Length uint64 `json:"Length"`
}

// MetadataProvider resolves the block layout of files on the volume.
type MetadataProvider interface {
	BlockSize() uint64

	// Extents calls fn for every allocated block of the object in
	// increasing logical order. Unallocated blocks are skipped.
	Extents(id uint64, length uint64,
		fn func(logical, physical uint64) error) error
}

// Enumerator flattens a directory tree into the regular files below it.
type Enumerator interface {
	ListRegularFiles(root string) ([]*FileEntry, error)
}

// FileTask tracks one file inside the active window.
type FileTask struct {
	entry *FileEntry

	blocks_delivered uint64
	bytes_delivered  uint64
	blocks_scanned   uint64

	// Number of runs created for this file which were not yet handed
	// to the consumer.
	references int

	block_cache *MinHeap[*BlockRun]
	state       State

	// Set when the file can no longer be delivered (e.g. short read).
	err error
}

func newFileTask(entry *FileEntry) *FileTask {
	return &FileTask{entry: entry}
}

func (self *FileTask) Entry() *FileEntry {
	return self.entry
}

// maxBlocks is the number of blocks needed to hold the whole file.
func (self *FileTask) maxBlocks(block_size uint64) uint64 {
	return (self.entry.Length + block_size - 1) / block_size
}

// BlockRun is a run of physically contiguous blocks of one file.
type BlockRun struct {
	task *FileTask

	physical uint64
	logical  uint64

	// Run length in blocks.
	length uint64

	// Bytes delivered to the consumer, clipped to the file length.
	data_len uint64

	stripe *Stripe
	offset uint64

	next *BlockRun
}

func (self *BlockRun) IsHole() bool {
	return self.physical == HoleBlock
}

func (self *BlockRun) Physical() uint64 {
	return self.physical
}

func (self *BlockRun) Logical() uint64 {
	return self.logical
}

func (self *BlockRun) Length() uint64 {
	return self.length
}

func (self *BlockRun) DataLength() uint64 {
	return self.data_len
}

func (self *BlockRun) Next() *BlockRun {
	return self.next
}

// extends reports if a block at physical directly continues this run.
func (self *BlockRun) extends(physical uint64) bool {
	if physical == HoleBlock {
		return self.IsHole()
	}
	return !self.IsHole() && self.physical+self.length == physical
}

func (self *BlockRun) clip(block_size, file_len uint64) {
	logical_pos := self.logical * block_size
	remaining_len := file_len - logical_pos
	simple_len := self.length * block_size
	if simple_len > remaining_len {
		simple_len = remaining_len
	}
	self.data_len = simple_len
}

// Stripe is one device read (or zero fill for holes) shared by the runs
// which point into it.
type Stripe struct {
	start uint64

	// Width in blocks including gaps.
	blocks     uint64
	gap_blocks uint64

	// Length in bytes including gaps.
	length uint64

	runs       int
	references int

	hole bool
	data []byte

	// Bytes actually returned by the device.
	valid uint64
}

func (self *Stripe) Start() uint64 {
	return self.start
}

func (self *Stripe) Blocks() uint64 {
	return self.blocks
}

func (self *Stripe) GapBlocks() uint64 {
	return self.gap_blocks
}

func (self *Stripe) Length() uint64 {
	return self.length
}

func (self *Stripe) Runs() int {
	return self.runs
}

func (self *Stripe) IsHole() bool {
	return self.hole
}
