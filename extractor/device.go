package extractor

import (
	"io"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Device is the block device holding the volume.
type Device interface {
	io.ReaderAt

	// Alignment is the required buffer, offset and length alignment for
	// reads. 1 means unconstrained.
	Alignment() int
}

// Transfer alignment needed for unbuffered access.
const DirectAlignment = 512

type Advice int

const (
	AdviceNormal Advice = iota
	AdviceSequential
	AdviceRandom
	AdviceNoReuse
	AdviceWillNeed
	AdviceDontNeed
)

var AdviceNames = []string{
	"normal", "sequential", "random", "noreuse", "willneed", "dontneed",
}

func (self Advice) String() string {
	if int(self) < 0 || int(self) >= len(AdviceNames) {
		return "unknown"
	}
	return AdviceNames[self]
}

func ParseAdvice(name string) (Advice, error) {
	for i, n := range AdviceNames {
		if strings.EqualFold(n, name) {
			return Advice(i), nil
		}
	}
	return AdviceNormal, errors.Errorf("Unknown read-ahead advice %q", name)
}

type DeviceOptions struct {
	// Bypass the page cache.
	Direct bool
	Advice Advice

	// Receives warnings about failed advisory calls.
	Logger logrus.FieldLogger
}

// AlignedBuffer returns a buffer of size bytes whose start address is a
// multiple of alignment.
func AlignedBuffer(size, alignment int) []byte {
	if alignment <= 1 {
		return make([]byte, size)
	}

	buf := make([]byte, size+alignment)
	offset := int(uintptr(unsafe.Pointer(&buf[0])) & uintptr(alignment-1))
	if offset != 0 {
		offset = alignment - offset
	}
	return buf[offset : offset+size : offset+size]
}
