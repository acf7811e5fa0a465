//go:build linux

package extractor

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var fadvise = map[Advice]int{
	AdviceNormal:     unix.FADV_NORMAL,
	AdviceSequential: unix.FADV_SEQUENTIAL,
	AdviceRandom:     unix.FADV_RANDOM,
	AdviceNoReuse:    unix.FADV_NOREUSE,
	AdviceWillNeed:   unix.FADV_WILLNEED,
	AdviceDontNeed:   unix.FADV_DONTNEED,
}

type BlockDevice struct {
	path   string
	fd     int
	direct bool
}

func OpenDevice(path string, options DeviceOptions) (*BlockDevice, error) {
	flags := unix.O_RDONLY | unix.O_CLOEXEC
	if options.Direct {
		flags |= unix.O_DIRECT
	}

	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "Error opening block device %s", path)
	}

	err = unix.Fadvise(fd, 0, 0, fadvise[options.Advice])
	if err != nil && options.Logger != nil {
		options.Logger.WithError(err).WithField("device", path).
			Warnf("Unable to set read-ahead advice %v", options.Advice)
	}

	return &BlockDevice{path: path, fd: fd, direct: options.Direct}, nil
}

func (self *BlockDevice) ReadAt(buf []byte, offset int64) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Pread(self.fd, buf[total:], offset+int64(total))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
		total += n
	}
	return total, nil
}

func (self *BlockDevice) Alignment() int {
	if self.direct {
		return DirectAlignment
	}
	return 1
}

func (self *BlockDevice) Close() error {
	if err := unix.Close(self.fd); err != nil {
		return errors.Wrapf(err, "Error closing block device %s", self.path)
	}
	return nil
}
