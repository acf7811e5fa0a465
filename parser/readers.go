package parser

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Inode flags
const (
	INODE_FLAG_EXTENTS     = 0x00080000
	INODE_FLAG_INLINE_DATA = 0x10000000
)

const (
	S_IFMT   = 0xF000
	S_IFIFO  = 0x1000
	S_IFCHR  = 0x2000
	S_IFDIR  = 0x4000
	S_IFBLK  = 0x6000
	S_IFREG  = 0x8000
	S_IFLNK  = 0xA000
	S_IFSOCK = 0xC000
)

// Symlinks shorter than this keep their target inside the inode.
const FAST_SYMLINK_SIZE = 60

type Inode struct {
	Id    uint64    `json:"Id"`
	Mode  uint16    `json:"Mode"`
	Size  uint64    `json:"Size"`
	Links uint16    `json:"Links"`
	Flags uint32    `json:"Flags"`
	Mtime time.Time `json:"Mtime"`

	// Allocated 512 byte sectors.
	sectors uint64

	// Block map or extent tree root.
	block [60]byte
}

func (self *Inode) IsDir() bool {
	return self.Mode&S_IFMT == S_IFDIR
}

func (self *Inode) IsRegular() bool {
	return self.Mode&S_IFMT == S_IFREG
}

func (self *Inode) IsSymlink() bool {
	return self.Mode&S_IFMT == S_IFLNK
}

func (self *Inode) Type() string {
	switch self.Mode & S_IFMT {
	case S_IFREG:
		return "file"
	case S_IFDIR:
		return "dir"
	case S_IFLNK:
		return "symlink"
	case S_IFIFO:
		return "fifo"
	case S_IFCHR:
		return "chardev"
	case S_IFBLK:
		return "blockdev"
	case S_IFSOCK:
		return "socket"
	}
	return fmt.Sprintf("unknown(%#o)", self.Mode&S_IFMT)
}

// Stat reads an inode, consulting the cache first.
func (self *ExtContext) Stat(id uint64) (*Inode, error) {
	if id == 0 || id > uint64(self.sb.inodes_count) {
		return nil, errors.Errorf("Inode %d out of range", id)
	}

	inode, pres := self.inodes.Get(id)
	if pres {
		return inode, nil
	}

	ipg := uint64(self.sb.inodes_per_group)
	table, err := self.inodeTable((id - 1) / ipg)
	if err != nil {
		return nil, err
	}

	inode_size := uint64(self.sb.inode_size)
	offset := table*self.block_size + ((id-1)%ipg)*inode_size

	buf := make([]byte, inode_size)
	_, err = self.reader.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "Reading inode %d", id)
	}

	inode = &Inode{
		Id:      id,
		Mode:    binary.LittleEndian.Uint16(buf[0x00:]),
		Size:    uint64(binary.LittleEndian.Uint32(buf[0x04:])),
		Mtime:   time.Unix(int64(binary.LittleEndian.Uint32(buf[0x10:])), 0).UTC(),
		Links:   binary.LittleEndian.Uint16(buf[0x1A:]),
		sectors: uint64(binary.LittleEndian.Uint32(buf[0x1C:])),
		Flags:   binary.LittleEndian.Uint32(buf[0x20:]),
	}
	copy(inode.block[:], buf[0x28:0x64])

	if inode.IsRegular() || inode.IsDir() {
		inode.Size |= uint64(binary.LittleEndian.Uint32(buf[0x6C:])) << 32
	}

	self.inodes.Add(id, inode)
	return inode, nil
}

// Extents reports every allocated block of an inode in logical order.
// Uninitialized extents are left out since they read as zeros.
func (self *ExtContext) Extents(id uint64, length uint64,
	fn func(logical, physical uint64) error) error {
	inode, err := self.Stat(id)
	if err != nil {
		return err
	}

	if inode.Flags&INODE_FLAG_INLINE_DATA != 0 {
		return errors.Wrapf(ErrUnsupported, "inode %d has inline data", id)
	}

	max_blocks := (length + self.block_size - 1) / self.block_size
	if max_blocks == 0 {
		return nil
	}

	if inode.Flags&INODE_FLAG_EXTENTS != 0 {
		err = self.walkExtentTree(inode.block[:], 0, max_blocks, fn)
	} else {
		err = self.walkBlockMap(inode, max_blocks, fn)
	}

	if err == errStopWalk {
		return nil
	}
	return err
}

var errStopWalk = errors.New("stop")

// readFile returns the content of small objects like directories and
// symlink targets.
func (self *ExtContext) readFile(inode *Inode) ([]byte, error) {
	if inode.IsSymlink() && inode.Size < FAST_SYMLINK_SIZE && inode.sectors == 0 {
		return append([]byte{}, inode.block[:inode.Size]...), nil
	}

	res := make([]byte, inode.Size)
	err := self.Extents(inode.Id, inode.Size, func(logical, physical uint64) error {
		offset := logical * self.block_size
		if offset >= inode.Size {
			return nil
		}

		data, err := self.readBlock(physical)
		if err != nil {
			return err
		}
		copy(res[offset:], data)
		return nil
	})
	return res, err
}
