package parser

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	EXTENT_MAGIC       = 0xF30A
	EXTENT_HEADER_SIZE = 12
	EXTENT_ENTRY_SIZE  = 12

	// Lengths above this mark uninitialized extents.
	EXTENT_INIT_MAX_LEN = 0x8000

	MAX_EXTENT_DEPTH = 5
)

type extentHeader struct {
	entries uint16
	depth   uint16
}

func parseExtentHeader(data []byte) (*extentHeader, error) {
	if len(data) < EXTENT_HEADER_SIZE {
		return nil, errors.New("Extent node too small")
	}

	magic := binary.LittleEndian.Uint16(data[0:])
	if magic != EXTENT_MAGIC {
		return nil, errors.Errorf("Invalid extent magic: %04x", magic)
	}

	res := &extentHeader{
		entries: binary.LittleEndian.Uint16(data[2:]),
		depth:   binary.LittleEndian.Uint16(data[6:]),
	}

	if EXTENT_HEADER_SIZE+int(res.entries)*EXTENT_ENTRY_SIZE > len(data) {
		return nil, errors.Errorf("Extent node claims %d entries", res.entries)
	}
	return res, nil
}

// walkExtentTree visits the leaves of an extent (sub)tree in order. level
// counts the index nodes already descended.
func (self *ExtContext) walkExtentTree(data []byte, level int,
	max_blocks uint64, fn func(logical, physical uint64) error) error {
	header, err := parseExtentHeader(data)
	if err != nil {
		return err
	}

	if level > MAX_EXTENT_DEPTH || int(header.depth) > MAX_EXTENT_DEPTH {
		return errors.Errorf("Extent tree too deep (%d)", header.depth)
	}

	for i := 0; i < int(header.entries); i++ {
		entry := data[EXTENT_HEADER_SIZE+i*EXTENT_ENTRY_SIZE:]
		logical := uint64(binary.LittleEndian.Uint32(entry[0:]))
		if logical >= max_blocks {
			return errStopWalk
		}

		if header.depth > 0 {
			leaf := uint64(binary.LittleEndian.Uint32(entry[4:])) |
				uint64(binary.LittleEndian.Uint16(entry[8:]))<<32

			child, err := self.readBlock(leaf)
			if err != nil {
				return err
			}

			err = self.walkExtentTree(child, level+1, max_blocks, fn)
			if err != nil {
				return err
			}
			continue
		}

		length := uint64(binary.LittleEndian.Uint16(entry[4:]))
		start := uint64(binary.LittleEndian.Uint16(entry[6:]))<<32 |
			uint64(binary.LittleEndian.Uint32(entry[8:]))

		// Allocated but never written: reads as zeros.
		if length > EXTENT_INIT_MAX_LEN {
			continue
		}

		for j := uint64(0); j < length; j++ {
			if logical+j >= max_blocks {
				return errStopWalk
			}
			err := fn(logical+j, start+j)
			if err != nil {
				return err
			}
		}
	}

	return nil
}
