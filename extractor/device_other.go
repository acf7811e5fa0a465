//go:build !linux

package extractor

import (
	"os"

	"github.com/pkg/errors"
)

type BlockDevice struct {
	fd *os.File
}

func OpenDevice(path string, options DeviceOptions) (*BlockDevice, error) {
	if options.Direct {
		return nil, errors.Wrap(ErrUnsupported,
			"direct access is only available on linux")
	}

	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error opening block device %s", path)
	}

	if options.Advice != AdviceNormal && options.Logger != nil {
		options.Logger.WithField("device", path).
			Warnf("Read-ahead advice %v is not supported here", options.Advice)
	}

	return &BlockDevice{fd: fd}, nil
}

func (self *BlockDevice) ReadAt(buf []byte, offset int64) (int, error) {
	return self.fd.ReadAt(buf, offset)
}

func (self *BlockDevice) Alignment() int {
	return 1
}

func (self *BlockDevice) Close() error {
	return self.fd.Close()
}
