package parser

import (
	"bytes"
	"encoding/binary"
	"sort"
)

const (
	testBlockSize  = 1024
	testBlocks     = 512
	testInodes     = 32
	testInodeTable = 5
)

func put16(buf []byte, offset int, value uint16) {
	binary.LittleEndian.PutUint16(buf[offset:], value)
}

func put32(buf []byte, offset int, value uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], value)
}

// testImage assembles a small ext4 volume in memory, one block group of
// 1k blocks, and remembers what each file should contain.
type testImage struct {
	data    []byte
	content map[uint64][]byte
	layout  map[uint64][][2]uint64
}

func newTestImage() *testImage {
	self := &testImage{
		data:    make([]byte, testBlocks*testBlockSize),
		content: make(map[uint64][]byte),
		layout:  make(map[uint64][][2]uint64),
	}

	sb := self.data[SUPERBLOCK_OFFSET : SUPERBLOCK_OFFSET+SUPERBLOCK_SIZE]
	put32(sb, 0x00, testInodes)
	put32(sb, 0x04, testBlocks)
	put32(sb, 0x0C, 300)
	put32(sb, 0x10, 9)
	put32(sb, 0x14, 1)
	put32(sb, 0x18, 0)
	put32(sb, 0x20, 8192)
	put32(sb, 0x28, testInodes)
	put16(sb, 0x38, EXT_MAGIC)
	put32(sb, 0x4C, 1)
	put32(sb, 0x54, 11)
	put16(sb, 0x58, 128)
	put32(sb, 0x60, FEATURE_INCOMPAT_FILETYPE|FEATURE_INCOMPAT_EXTENTS)
	for i := 0; i < 16; i++ {
		sb[0x68+i] = byte(i)
	}
	copy(sb[0x78:], "testvol")

	gdt := self.block(2)
	put32(gdt, 0x00, 3)
	put32(gdt, 0x04, 4)
	put32(gdt, 0x08, testInodeTable)

	return self
}

func (self *testImage) block(n uint64) []byte {
	return self.data[n*testBlockSize : (n+1)*testBlockSize]
}

func (self *testImage) setInode(id uint64, mode uint16, size uint64,
	flags uint32, sectors uint32, block []byte) {
	offset := testInodeTable*testBlockSize + (id-1)*128
	buf := self.data[offset : offset+128]

	put16(buf, 0x00, mode)
	put32(buf, 0x04, uint32(size))
	put32(buf, 0x10, 1600000000)
	put16(buf, 0x1A, 1)
	put32(buf, 0x1C, sectors)
	put32(buf, 0x20, flags)
	copy(buf[0x28:0x64], block)
	put32(buf, 0x6C, uint32(size>>32))
}

func patternBlock(physical uint64) []byte {
	res := make([]byte, testBlockSize)
	for i := range res {
		res[i] = byte(physical*7 + uint64(i)*3 + 1)
	}
	return res
}

// addFile fills the data blocks of a file and records its expected
// content. layout maps logical to physical blocks.
func (self *testImage) addFile(id, size uint64, layout map[uint64]uint64) {
	content := make([]byte, size)
	for logical, physical := range layout {
		data := patternBlock(physical)
		copy(self.block(physical), data)
		if logical*testBlockSize < size {
			copy(content[logical*testBlockSize:], data)
		}
		self.layout[id] = append(self.layout[id], [2]uint64{logical, physical})
	}

	sort.Slice(self.layout[id], func(i, j int) bool {
		return self.layout[id][i][0] < self.layout[id][j][0]
	})
	self.content[id] = content
}

func blockMap(pointers ...uint32) []byte {
	res := make([]byte, 60)
	for i, p := range pointers {
		put32(res, i*4, p)
	}
	return res
}

type testExtent struct {
	logical uint32
	length  uint16
	start   uint64
}

func extentNode(size int, depth uint16, entries ...[]byte) []byte {
	res := make([]byte, size)
	put16(res, 0, EXTENT_MAGIC)
	put16(res, 2, uint16(len(entries)))
	put16(res, 4, uint16((size-EXTENT_HEADER_SIZE)/EXTENT_ENTRY_SIZE))
	put16(res, 6, depth)
	for i, e := range entries {
		copy(res[EXTENT_HEADER_SIZE+i*EXTENT_ENTRY_SIZE:], e)
	}
	return res
}

func extentLeaf(size int, extents ...testExtent) []byte {
	var entries [][]byte
	for _, e := range extents {
		entry := make([]byte, EXTENT_ENTRY_SIZE)
		put32(entry, 0, e.logical)
		put16(entry, 4, e.length)
		put16(entry, 6, uint16(e.start>>32))
		put32(entry, 8, uint32(e.start))
		entries = append(entries, entry)
	}
	return extentNode(size, 0, entries...)
}

func extentIndex(logical uint32, leaf uint64) []byte {
	entry := make([]byte, EXTENT_ENTRY_SIZE)
	put32(entry, 0, logical)
	put32(entry, 4, uint32(leaf))
	put16(entry, 8, uint16(leaf>>32))
	return entry
}

func dirBlock(entries ...*DirEntry) []byte {
	buf := &bytes.Buffer{}
	for i, e := range entries {
		rec_len := (DIRENT_HEADER_SIZE + len(e.Name) + 3) / 4 * 4
		if i == len(entries)-1 {
			rec_len = testBlockSize - buf.Len()
		}

		header := make([]byte, DIRENT_HEADER_SIZE)
		put32(header, 0, uint32(e.Inode))
		put16(header, 4, uint16(rec_len))
		header[6] = byte(len(e.Name))
		header[7] = e.FileType
		buf.Write(header)
		buf.WriteString(e.Name)
		buf.Write(make([]byte, rec_len-DIRENT_HEADER_SIZE-len(e.Name)))
	}
	return buf.Bytes()
}

// buildTestImage lays out:
//
//	/docs/big.dat        block map with a hole and a single indirect block
//	/docs/deep/note.txt  (deep has a two level extent tree)
//	/docs/fifo
//	/docs/holey.bin      only double indirect blocks
//	/hello.txt
//	/link -> docs
//	/sparse.bin          extents with holes and an uninitialized extent
//	/empty
//	/deeplink -> /docs/deep
func buildTestImage() *testImage {
	self := newTestImage()

	const (
		dir_mode  = S_IFDIR | 0755
		file_mode = S_IFREG | 0644
		link_mode = S_IFLNK | 0777
	)

	copy(self.block(10), dirBlock(
		&DirEntry{Name: ".", Inode: 2, FileType: FT_DIR},
		&DirEntry{Name: "..", Inode: 2, FileType: FT_DIR},
		&DirEntry{Name: "docs", Inode: 12, FileType: FT_DIR},
		&DirEntry{Name: "hello.txt", Inode: 13, FileType: FT_REG_FILE},
		&DirEntry{Name: "link", Inode: 14, FileType: FT_SYMLINK},
		&DirEntry{Name: "sparse.bin", Inode: 15, FileType: FT_REG_FILE},
		&DirEntry{Name: "empty", Inode: 16, FileType: FT_REG_FILE},
		&DirEntry{Name: "deeplink", Inode: 21, FileType: FT_SYMLINK},
	))
	self.setInode(2, dir_mode, testBlockSize, 0, 2, blockMap(10))

	copy(self.block(11), dirBlock(
		&DirEntry{Name: ".", Inode: 12, FileType: FT_DIR},
		&DirEntry{Name: "..", Inode: 2, FileType: FT_DIR},
		&DirEntry{Name: "big.dat", Inode: 17, FileType: FT_REG_FILE},
		&DirEntry{Name: "deep", Inode: 18, FileType: FT_DIR},
		&DirEntry{Name: "fifo", Inode: 20, FileType: 5},
		&DirEntry{Name: "holey.bin", Inode: 22, FileType: FT_REG_FILE},
	))
	self.setInode(12, dir_mode, testBlockSize, 0, 2, blockMap(11))

	self.addFile(13, 13, map[uint64]uint64{0: 12})
	self.setInode(13, file_mode, 13, INODE_FLAG_EXTENTS, 2,
		extentLeaf(60, testExtent{0, 1, 12}))

	self.setInode(14, link_mode, 4, 0, 0, []byte("docs"))

	self.addFile(15, 10*testBlockSize,
		map[uint64]uint64{0: 20, 1: 21, 5: 30})
	copy(self.block(31), patternBlock(31))
	copy(self.block(32), patternBlock(32))
	self.setInode(15, file_mode, 10*testBlockSize, INODE_FLAG_EXTENTS, 10,
		extentLeaf(60,
			testExtent{0, 2, 20},
			testExtent{5, 1, 30},
			testExtent{6, EXTENT_INIT_MAX_LEN + 2, 31}))

	self.addFile(16, 0, nil)
	self.setInode(16, file_mode, 0, INODE_FLAG_EXTENTS, 0, extentLeaf(60))

	big := map[uint64]uint64{12: 61, 14: 63}
	pointers := make([]uint32, 15)
	for i := uint64(0); i < DIRECT_BLOCKS; i++ {
		if i != 3 {
			big[i] = 40 + i
			pointers[i] = uint32(40 + i)
		}
	}
	pointers[INDIRECT_BLOCK] = 60
	self.addFile(17, 15*testBlockSize-100, big)
	put32(self.block(60), 0, 61)
	put32(self.block(60), 8, 63)
	self.setInode(17, file_mode, 15*testBlockSize-100, 0, 30, blockMap(pointers...))

	self.setInode(18, dir_mode, testBlockSize, INODE_FLAG_EXTENTS, 4,
		extentNode(60, 1, extentIndex(0, 70)))
	copy(self.block(70), extentLeaf(testBlockSize, testExtent{0, 1, 71}))
	copy(self.block(71), dirBlock(
		&DirEntry{Name: ".", Inode: 18, FileType: FT_DIR},
		&DirEntry{Name: "..", Inode: 12, FileType: FT_DIR},
		&DirEntry{Name: "note.txt", Inode: 19, FileType: FT_REG_FILE},
	))

	self.addFile(19, 5, map[uint64]uint64{0: 80})
	self.setInode(19, file_mode, 5, 0, 2, blockMap(80))

	self.setInode(20, S_IFIFO|0644, 0, 0, 0, nil)

	self.setInode(21, link_mode, 10, 0, 0, []byte("/docs/deep"))

	// Logical blocks 268 and 273 are the first reachable through the
	// double indirect block.
	self.addFile(22, 300*testBlockSize, map[uint64]uint64{268: 92, 273: 93})
	put32(self.block(90), 0, 91)
	put32(self.block(91), 0, 92)
	put32(self.block(91), 5*4, 93)
	self.setInode(22, file_mode, 300*testBlockSize, 0, 8,
		blockMap(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 90))

	// Inline data is not supported.
	self.setInode(23, file_mode, 10, INODE_FLAG_INLINE_DATA, 0, []byte("inline!!!!"))

	return self
}
