package actions

import (
	"io"
	"os"
	"path/filepath"

	"github.com/Velocidex/go-diskjockey/extractor"
	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Extractor recreates each file below an output directory.
type Extractor struct {
	location string
	compress bool
	logger   logrus.FieldLogger
}

type outputFile struct {
	path    string
	fd      *os.File
	encoder *zstd.Encoder
	writer  io.Writer
}

func (self *outputFile) Close() error {
	var result *multierror.Error
	if self.encoder != nil {
		result = multierror.Append(result, self.encoder.Close())
	}
	result = multierror.Append(result, self.fd.Close())
	return result.ErrorOrNil()
}

func NewExtractor(location string, compress bool,
	logger logrus.FieldLogger) (*Extractor, error) {
	if location == "" {
		return nil, errors.New("extract needs an output directory")
	}

	err := os.MkdirAll(location, 0750)
	if err != nil {
		return nil, errors.Wrapf(err, "Creating %s", location)
	}

	return &Extractor{location: location, compress: compress, logger: logger}, nil
}

// Filename is where a file of the volume is written.
func (self *Extractor) Filename(path string) string {
	res := filepath.Join(self.location, filepath.FromSlash(filepath.Clean("/"+path)))
	if self.compress {
		res += ".zst"
	}
	return res
}

func (self *Extractor) open(path string) (*outputFile, error) {
	fullpath := self.Filename(path)
	err := os.MkdirAll(filepath.Dir(fullpath), 0750)
	if err != nil {
		return nil, errors.Wrapf(err, "Creating directory for %s", fullpath)
	}

	fd, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return nil, errors.Wrapf(err, "Creating %s", fullpath)
	}

	res := &outputFile{path: fullpath, fd: fd, writer: fd}
	if self.compress {
		res.encoder, err = zstd.NewWriter(fd)
		if err != nil {
			fd.Close()
			return nil, err
		}
		res.writer = res.encoder
	}
	return res, nil
}

func (self *Extractor) Deliver(chunk *extractor.Chunk, state *extractor.State) error {
	out, ok := state.Value.(*outputFile)
	if !ok {
		var err error
		out, err = self.open(chunk.Path)
		if err != nil {
			return err
		}
		state.Value = out
	}

	_, err := out.writer.Write(chunk.Data)
	if err != nil {
		return errors.Wrapf(err, "Writing %s", out.path)
	}
	return nil
}

// Finish closes the output. Incomplete files are removed.
func (self *Extractor) Finish(file *extractor.FileEntry,
	state *extractor.State, err error) error {
	out, ok := state.Value.(*outputFile)
	if !ok {
		return nil
	}
	state.Value = nil

	close_err := out.Close()
	if err == nil {
		return close_err
	}

	if self.logger != nil {
		self.logger.WithError(err).WithField("path", out.path).
			Warn("Removing incomplete file")
	}
	return multierror.Append(close_err, os.Remove(out.path)).ErrorOrNil()
}
