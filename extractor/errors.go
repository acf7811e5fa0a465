package extractor

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrHeapOverflow       = errors.New("heap capacity exceeded")
	ErrNegativeReferences = errors.New("negative reference count")
	ErrUnsupported        = errors.New("unsupported")
	ErrStalled            = errors.New("no runs pending for active files")
	ErrInvalidOptions     = errors.New("invalid options")
)

// ShortReadError is returned when the device delivered fewer bytes than
// a stripe needs.
type ShortReadError struct {
	Block  uint64
	Wanted uint64
	Got    uint64
}

func (self *ShortReadError) Error() string {
	return fmt.Sprintf("short read at block %d: wanted %d bytes, got %d",
		self.Block, self.Wanted, self.Got)
}
