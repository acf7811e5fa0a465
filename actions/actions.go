package actions

import (
	"fmt"
	"io"
	"sort"

	"github.com/Velocidex/go-diskjockey/extractor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// Where the extract action writes files.
	OutputDir string

	// Compress extracted files with zstd.
	Compress bool

	Logger logrus.FieldLogger
}

type factory func(out io.Writer, options Options) (extractor.Consumer, error)

var registry = map[string]factory{
	"none": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return None{}, nil
	},
	"list": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return &List{out: out}, nil
	},
	"info": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return &Info{out: out}, nil
	},
	"cat": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return &Cat{out: out}, nil
	},
	"cat_info": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return &CatInfo{out: out}, nil
	},
	"md5": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return NewMD5(out, options.Logger), nil
	},
	"sha1": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return NewSHA1(out, options.Logger), nil
	},
	"extract": func(out io.Writer, options Options) (extractor.Consumer, error) {
		return NewExtractor(options.OutputDir, options.Compress, options.Logger)
	},
}

func Names() []string {
	var res []string
	for k := range registry {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// New creates the named action writing its report to out.
func New(name string, out io.Writer, options Options) (extractor.Consumer, error) {
	f, pres := registry[name]
	if !pres {
		return nil, errors.Errorf("Unknown action %v", name)
	}
	return f(out, options)
}

// None discards everything.
type None struct{}

func (self None) Deliver(chunk *extractor.Chunk, state *extractor.State) error {
	return nil
}

// List prints each file's path once.
type List struct {
	out io.Writer
}

func (self *List) Deliver(chunk *extractor.Chunk, state *extractor.State) error {
	if chunk.Offset != 0 {
		return nil
	}
	_, err := fmt.Fprintf(self.out, "%s\n", chunk.Path)
	return err
}

// Info prints a line per chunk.
type Info struct {
	out io.Writer
}

func (self *Info) Deliver(chunk *extractor.Chunk, state *extractor.State) error {
	_, err := fmt.Fprintf(self.out, "inode %d, pos %d, len %d, path %s\n",
		chunk.Id, chunk.Offset, len(chunk.Data), chunk.Path)
	return err
}

type Cat struct {
	out io.Writer
}

func (self *Cat) Deliver(chunk *extractor.Chunk, state *extractor.State) error {
	_, err := self.out.Write(chunk.Data)
	return err
}

// CatInfo writes every chunk behind a banner.
type CatInfo struct {
	out io.Writer
}

func (self *CatInfo) Deliver(chunk *extractor.Chunk, state *extractor.State) error {
	_, err := fmt.Fprintf(self.out,
		"\n\n============== inode %d, pos %d, len %d, path %s ==============\n\n",
		chunk.Id, chunk.Offset, len(chunk.Data), chunk.Path)
	if err != nil {
		return err
	}
	_, err = self.out.Write(chunk.Data)
	return err
}
