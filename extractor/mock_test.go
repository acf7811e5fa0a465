package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

type mockExtent struct {
	logical, physical uint64
}

// MockProvider serves block maps from memory.
type MockProvider struct {
	block_size uint64
	files      map[uint64][]mockExtent
	calls      int
}

func NewMockProvider(block_size uint64) *MockProvider {
	return &MockProvider{
		block_size: block_size,
		files:      make(map[uint64][]mockExtent),
	}
}

// AddExtent maps count logical blocks from logical onto physical.
func (self *MockProvider) AddExtent(id, logical, physical, count uint64) {
	for i := uint64(0); i < count; i++ {
		self.files[id] = append(self.files[id],
			mockExtent{logical: logical + i, physical: physical + i})
	}
}

func (self *MockProvider) BlockSize() uint64 {
	return self.block_size
}

func (self *MockProvider) Extents(id uint64, length uint64,
	fn func(logical, physical uint64) error) error {
	self.calls++
	for _, e := range self.files[id] {
		if err := fn(e.logical, e.physical); err != nil {
			return err
		}
	}
	return nil
}

func mockByte(offset uint64) byte {
	return byte(offset*7 + offset/251 + 1)
}

// MockDevice generates a deterministic non zero pattern and records
// every read.
type MockDevice struct {
	size      int64
	alignment int
	reads     []mockRead
}

type mockRead struct {
	offset int64
	length int
}

func (self *MockDevice) ReadAt(buf []byte, offset int64) (int, error) {
	self.reads = append(self.reads, mockRead{offset: offset, length: len(buf)})
	if self.alignment > 1 && (offset%int64(self.alignment) != 0 ||
		len(buf)%self.alignment != 0) {
		return 0, errors.Errorf("unaligned read of %d at %d", len(buf), offset)
	}

	n := 0
	for ; n < len(buf) && offset+int64(n) < self.size; n++ {
		buf[n] = mockByte(uint64(offset) + uint64(n))
	}
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

func (self *MockDevice) Alignment() int {
	if self.alignment == 0 {
		return 1
	}
	return self.alignment
}

// expectedContent builds what the file should contain from the
// provider's block map.
func expectedContent(provider *MockProvider, entry *FileEntry) []byte {
	bs := provider.block_size
	res := make([]byte, entry.Length)
	for _, e := range provider.files[entry.Id] {
		for i := uint64(0); i < bs; i++ {
			pos := e.logical*bs + i
			if pos >= entry.Length {
				break
			}
			res[pos] = mockByte(e.physical*bs + i)
		}
	}
	return res
}

type collectedFile struct {
	offsets  []uint64
	lengths  []int
	nil_data []bool
	data     bytes.Buffer
	state    *State
	finished int
	err      error
}

// Collector reassembles delivered files and checks the ordering
// guarantees as chunks arrive.
type Collector struct {
	files map[uint64]*collectedFile

	events     []string
	violations []string
	fail_after int

	// Returned from Finish for files that failed.
	finish_error error

	open, max_open int
}

func NewCollector() *Collector {
	return &Collector{files: make(map[uint64]*collectedFile)}
}

func (self *Collector) get(id uint64) *collectedFile {
	f, pres := self.files[id]
	if !pres {
		f = &collectedFile{}
		self.files[id] = f
	}
	return f
}

func (self *Collector) Deliver(chunk *Chunk, state *State) error {
	self.events = append(self.events, fmt.Sprintf(
		"deliver %d %s offset %d length %d nil %v", chunk.Id, chunk.Path,
		chunk.Offset, len(chunk.Data), chunk.Data == nil))

	f := self.get(chunk.Id)
	if f.state == nil {
		self.open++
		if self.open > self.max_open {
			self.max_open = self.open
		}
		f.state = state
	} else if f.state != state {
		self.violations = append(self.violations,
			fmt.Sprintf("%d: state changed", chunk.Id))
	}

	if chunk.Offset != uint64(f.data.Len()) {
		self.violations = append(self.violations,
			fmt.Sprintf("%d: offset %d after %d bytes",
				chunk.Id, chunk.Offset, f.data.Len()))
	}
	if f.finished > 0 {
		self.violations = append(self.violations,
			fmt.Sprintf("%d: delivery after finish", chunk.Id))
	}

	f.offsets = append(f.offsets, chunk.Offset)
	f.lengths = append(f.lengths, len(chunk.Data))
	f.nil_data = append(f.nil_data, chunk.Data == nil)
	f.data.Write(chunk.Data)

	if self.fail_after > 0 {
		self.fail_after--
		if self.fail_after == 0 {
			return errors.New("consumer gave up")
		}
	}
	return nil
}

func (self *Collector) Finish(file *FileEntry, state *State, err error) error {
	self.events = append(self.events, fmt.Sprintf(
		"finish %d %s err %v", file.Id, file.Path, err))

	f := self.get(file.Id)
	if f.state != nil {
		self.open--
	}
	f.finished++
	f.err = err
	if err != nil {
		return self.finish_error
	}
	return nil
}

// FailingProvider fails the block map of one file.
type FailingProvider struct {
	*MockProvider
	id  uint64
	err error
}

func (self *FailingProvider) Extents(id uint64, length uint64,
	fn func(logical, physical uint64) error) error {
	if id == self.id {
		return self.err
	}
	return self.MockProvider.Extents(id, length, fn)
}

// dumpRuns renders a run list one run per line.
func dumpRuns(head *BlockRun) string {
	var res []string
	for run := head; run != nil; run = run.next {
		res = append(res, fmt.Sprintf(
			"inode %d logical %d physical %d length %d data_len %d",
			run.task.entry.Id, run.logical, run.physical,
			run.length, run.data_len))
	}
	return strings.Join(res, "\n") + "\n"
}
