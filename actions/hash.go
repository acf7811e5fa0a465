package actions

import (
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"

	"github.com/Velocidex/go-diskjockey/extractor"
	"github.com/sirupsen/logrus"
)

// Hasher hashes each file incrementally and prints the digest after the
// last chunk, in the format of md5sum.
type Hasher struct {
	out    io.Writer
	new    func() hash.Hash
	logger logrus.FieldLogger
}

func NewMD5(out io.Writer, logger logrus.FieldLogger) *Hasher {
	return &Hasher{out: out, new: md5.New, logger: logger}
}

func NewSHA1(out io.Writer, logger logrus.FieldLogger) *Hasher {
	return &Hasher{out: out, new: sha1.New, logger: logger}
}

func (self *Hasher) Deliver(chunk *extractor.Chunk, state *extractor.State) error {
	h, ok := state.Value.(hash.Hash)
	if !ok {
		h = self.new()
		state.Value = h
	}

	h.Write(chunk.Data)

	if chunk.Last() {
		_, err := fmt.Fprintf(self.out, "%x  %s\n", h.Sum(nil), chunk.Path)
		return err
	}
	return nil
}

func (self *Hasher) Finish(file *extractor.FileEntry,
	state *extractor.State, err error) error {
	state.Value = nil
	if err != nil && self.logger != nil {
		self.logger.WithError(err).WithField("path", file.Path).
			Error("No hash for incomplete file")
	}
	return nil
}
