package parser

import (
	"encoding/binary"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const (
	SUPERBLOCK_OFFSET = 1024
	SUPERBLOCK_SIZE   = 1024
	EXT_MAGIC         = 0xEF53

	ROOT_INODE = 2

	INODE_CACHE_SIZE = 10000
)

// Feature flags
const (
	FEATURE_COMPAT_HAS_JOURNAL = 0x0004

	FEATURE_INCOMPAT_FILETYPE    = 0x0002
	FEATURE_INCOMPAT_EXTENTS     = 0x0040
	FEATURE_INCOMPAT_64BIT       = 0x0080
	FEATURE_INCOMPAT_FLEX_BG     = 0x0200
	FEATURE_INCOMPAT_INLINE_DATA = 0x8000
)

var (
	ErrNotRegularFile = errors.New("not a regular file")
	ErrUnsupported    = errors.New("unsupported")
)

type superblock struct {
	inodes_count      uint32
	blocks_count      uint64
	free_blocks_count uint64
	free_inodes_count uint32
	first_data_block  uint32
	log_block_size    uint32
	blocks_per_group  uint32
	inodes_per_group  uint32
	rev_level         uint32
	inode_size        uint16
	desc_size         uint16
	feature_compat    uint32
	feature_incompat  uint32
	feature_ro_compat uint32
	uuid              [16]byte
	volume_name       [16]byte
}

// ExtContext reads the metadata of an ext2/ext3/ext4 volume.
type ExtContext struct {
	reader io.ReaderAt
	sb     superblock

	block_size  uint64
	group_count uint64

	inodes *lru.Cache[uint64, *Inode]
}

func (self *ExtContext) BlockSize() uint64 {
	return self.block_size
}

func (self *ExtContext) Type() string {
	switch {
	case self.sb.feature_incompat&(FEATURE_INCOMPAT_EXTENTS|
		FEATURE_INCOMPAT_64BIT|FEATURE_INCOMPAT_FLEX_BG) != 0:
		return "ext4"
	case self.sb.feature_compat&FEATURE_COMPAT_HAS_JOURNAL != 0:
		return "ext3"
	}
	return "ext2"
}

func (self *ExtContext) readBlock(block uint64) ([]byte, error) {
	buf := make([]byte, self.block_size)
	n, err := self.reader.ReadAt(buf, int64(block*self.block_size))
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "Reading block %d", block)
	}
	if n < len(buf) {
		return nil, errors.Errorf("Short read of block %d", block)
	}
	return buf, nil
}

// inodeTable returns the first block of the group's inode table.
func (self *ExtContext) inodeTable(group uint64) (uint64, error) {
	if group >= self.group_count {
		return 0, errors.Errorf("Block group %d out of range", group)
	}

	desc_size := uint64(self.sb.desc_size)
	offset := uint64(self.sb.first_data_block+1)*self.block_size +
		group*desc_size

	buf := make([]byte, desc_size)
	_, err := self.reader.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return 0, errors.Wrapf(err, "Reading group descriptor %d", group)
	}

	table := uint64(binary.LittleEndian.Uint32(buf[0x08:]))
	if desc_size >= 64 {
		table |= uint64(binary.LittleEndian.Uint32(buf[0x28:])) << 32
	}
	return table, nil
}

func GetExtContext(reader io.ReaderAt) (*ExtContext, error) {
	buf := make([]byte, SUPERBLOCK_SIZE)
	n, err := reader.ReadAt(buf, SUPERBLOCK_OFFSET)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "Reading superblock")
	}
	if n < len(buf) {
		return nil, errors.New("Volume too small for an ext superblock")
	}

	if binary.LittleEndian.Uint16(buf[0x38:]) != EXT_MAGIC {
		return nil, errors.New("Invalid magic")
	}

	sb := superblock{
		inodes_count:      binary.LittleEndian.Uint32(buf[0x00:]),
		blocks_count:      uint64(binary.LittleEndian.Uint32(buf[0x04:])),
		free_blocks_count: uint64(binary.LittleEndian.Uint32(buf[0x0C:])),
		free_inodes_count: binary.LittleEndian.Uint32(buf[0x10:]),
		first_data_block:  binary.LittleEndian.Uint32(buf[0x14:]),
		log_block_size:    binary.LittleEndian.Uint32(buf[0x18:]),
		blocks_per_group:  binary.LittleEndian.Uint32(buf[0x20:]),
		inodes_per_group:  binary.LittleEndian.Uint32(buf[0x28:]),
		rev_level:         binary.LittleEndian.Uint32(buf[0x4C:]),
		inode_size:        binary.LittleEndian.Uint16(buf[0x58:]),
		feature_compat:    binary.LittleEndian.Uint32(buf[0x5C:]),
		feature_incompat:  binary.LittleEndian.Uint32(buf[0x60:]),
		feature_ro_compat: binary.LittleEndian.Uint32(buf[0x64:]),
		desc_size:         32,
	}
	copy(sb.uuid[:], buf[0x68:0x78])
	copy(sb.volume_name[:], buf[0x78:0x88])

	if sb.rev_level == 0 {
		sb.inode_size = 128
	}

	if sb.feature_incompat&FEATURE_INCOMPAT_64BIT != 0 {
		sb.desc_size = binary.LittleEndian.Uint16(buf[0xFE:])
		if sb.desc_size < 64 {
			sb.desc_size = 64
		}
		sb.blocks_count |= uint64(binary.LittleEndian.Uint32(buf[0x150:])) << 32
		sb.free_blocks_count |= uint64(binary.LittleEndian.Uint32(buf[0x158:])) << 32
	}

	if sb.log_block_size > 6 {
		return nil, errors.Errorf("Block size too large (log %d)", sb.log_block_size)
	}

	if sb.blocks_per_group == 0 || sb.inodes_per_group == 0 || sb.inode_size < 128 {
		return nil, errors.New("Corrupted superblock geometry")
	}

	block_size := uint64(1024) << sb.log_block_size
	bpg := uint64(sb.blocks_per_group)
	group_count := (sb.blocks_count - uint64(sb.first_data_block) + bpg - 1) / bpg

	inodes, err := lru.New[uint64, *Inode](INODE_CACHE_SIZE)
	if err != nil {
		return nil, err
	}

	return &ExtContext{
		reader:      reader,
		sb:          sb,
		block_size:  block_size,
		group_count: group_count,
		inodes:      inodes,
	}, nil
}
