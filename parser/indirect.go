package parser

import (
	"encoding/binary"
)

const (
	DIRECT_BLOCKS = 12

	INDIRECT_BLOCK        = 12
	DOUBLE_INDIRECT_BLOCK = 13
	TRIPLE_INDIRECT_BLOCK = 14
)

// walkBlockMap visits the classic ext2/ext3 block map. Zero pointers at
// any level are holes which still occupy their logical range.
func (self *ExtContext) walkBlockMap(inode *Inode, max_blocks uint64,
	fn func(logical, physical uint64) error) error {
	pointer := func(i int) uint64 {
		return uint64(binary.LittleEndian.Uint32(inode.block[i*4:]))
	}

	for i := 0; i < DIRECT_BLOCKS; i++ {
		if uint64(i) >= max_blocks {
			return errStopWalk
		}

		ptr := pointer(i)
		if ptr == 0 {
			continue
		}
		if err := fn(uint64(i), ptr); err != nil {
			return err
		}
	}

	per_block := self.block_size / 4
	base := uint64(DIRECT_BLOCKS)
	span := per_block
	for level, idx := range []int{
		INDIRECT_BLOCK, DOUBLE_INDIRECT_BLOCK, TRIPLE_INDIRECT_BLOCK} {
		if base >= max_blocks {
			return errStopWalk
		}

		err := self.walkIndirect(pointer(idx), level+1, base, max_blocks, fn)
		if err != nil {
			return err
		}

		base += span
		span *= per_block
	}

	return nil
}

// walkIndirect visits the subtree below an indirect block whose first
// entry maps logical block base.
func (self *ExtContext) walkIndirect(block uint64, level int,
	base, max_blocks uint64, fn func(logical, physical uint64) error) error {
	if block == 0 {
		return nil
	}

	data, err := self.readBlock(block)
	if err != nil {
		return err
	}

	per_block := self.block_size / 4
	span := uint64(1)
	for i := 1; i < level; i++ {
		span *= per_block
	}

	for i := uint64(0); i < per_block; i++ {
		logical := base + i*span
		if logical >= max_blocks {
			return errStopWalk
		}

		ptr := uint64(binary.LittleEndian.Uint32(data[i*4:]))
		if ptr == 0 {
			continue
		}

		if level == 1 {
			err = fn(logical, ptr)
		} else {
			err = self.walkIndirect(ptr, level-1, logical, max_blocks, fn)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
