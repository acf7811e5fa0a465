package parser

import (
	"encoding/binary"
	"os"
	"path"
	"strings"

	"github.com/Velocidex/go-diskjockey/extractor"
	"github.com/pkg/errors"
)

const (
	DIRENT_HEADER_SIZE = 8

	MAX_SYMLINK_DEPTH = 8
)

// Directory entry file types
const (
	FT_UNKNOWN  = 0
	FT_REG_FILE = 1
	FT_DIR      = 2
	FT_SYMLINK  = 7
)

type DirEntry struct {
	Name     string `json:"Name"`
	Inode    uint64 `json:"Inode"`
	FileType uint8  `json:"FileType"`
}

// ReadDir parses the entries of a directory. Hashed tree directories are
// read linearly, their index blocks look like deleted entries.
func (self *ExtContext) ReadDir(id uint64) ([]*DirEntry, error) {
	inode, err := self.Stat(id)
	if err != nil {
		return nil, err
	}

	if !inode.IsDir() {
		return nil, errors.Errorf("Inode %d is not a directory", id)
	}

	data, err := self.readFile(inode)
	if err != nil {
		return nil, errors.Wrapf(err, "Reading directory %d", id)
	}

	has_filetype := self.sb.feature_incompat&FEATURE_INCOMPAT_FILETYPE != 0

	var result []*DirEntry
	for offset := 0; offset+DIRENT_HEADER_SIZE <= len(data); {
		entry := data[offset:]
		ino := binary.LittleEndian.Uint32(entry[0:])
		rec_len := int(binary.LittleEndian.Uint16(entry[4:]))

		name_len := int(binary.LittleEndian.Uint16(entry[6:]))
		file_type := uint8(FT_UNKNOWN)
		if has_filetype {
			name_len = int(entry[6])
			file_type = entry[7]
		}

		if rec_len < DIRENT_HEADER_SIZE || offset+rec_len > len(data) ||
			DIRENT_HEADER_SIZE+name_len > rec_len {
			return nil, errors.Errorf(
				"Corrupted directory entry in inode %d at offset %d", id, offset)
		}

		if ino != 0 && name_len > 0 {
			result = append(result, &DirEntry{
				Name:     string(entry[DIRENT_HEADER_SIZE : DIRENT_HEADER_SIZE+name_len]),
				Inode:    uint64(ino),
				FileType: file_type,
			})
		}

		offset += rec_len
	}

	return result, nil
}

func (self *ExtContext) Readlink(id uint64) (string, error) {
	inode, err := self.Stat(id)
	if err != nil {
		return "", err
	}

	if !inode.IsSymlink() {
		return "", errors.Errorf("Inode %d is not a symbolic link", id)
	}

	data, err := self.readFile(inode)
	return string(data), err
}

func splitPath(name string) []string {
	var components []string
	for _, c := range strings.Split(name, "/") {
		if c != "" && c != "." {
			components = append(components, c)
		}
	}
	return components
}

// Lookup resolves an absolute path to its inode. Symbolic links are
// followed in all but the last component.
func (self *ExtContext) Lookup(name string) (uint64, error) {
	return self.lookup(name, 0)
}

func (self *ExtContext) lookup(name string, depth int) (uint64, error) {
	if depth > MAX_SYMLINK_DEPTH {
		return 0, errors.Errorf("Too many levels of symbolic links in %s", name)
	}

	components := splitPath(name)
	current := uint64(ROOT_INODE)
	var parents []uint64

	for i, component := range components {
		if component == ".." {
			if len(parents) > 0 {
				current = parents[len(parents)-1]
				parents = parents[:len(parents)-1]
			}
			continue
		}

		entries, err := self.ReadDir(current)
		if err != nil {
			return 0, errors.Wrapf(err, "While resolving %s", name)
		}

		var child *DirEntry
		for _, e := range entries {
			if e.Name == component {
				child = e
				break
			}
		}
		if child == nil {
			return 0, errors.Wrapf(os.ErrNotExist, "%s", name)
		}

		if i < len(components)-1 {
			inode, err := self.Stat(child.Inode)
			if err != nil {
				return 0, err
			}

			if inode.IsSymlink() {
				target, err := self.Readlink(child.Inode)
				if err != nil {
					return 0, err
				}

				if !path.IsAbs(target) {
					target = path.Join(append([]string{"/"},
						components[:i]...)...) + "/" + target
				}
				return self.lookup(target+"/"+
					strings.Join(components[i+1:], "/"), depth+1)
			}
		}

		parents = append(parents, current)
		current = child.Inode
	}

	return current, nil
}

// Walk calls fn for the entries of the directory at root, descending into
// subdirectories when recursive is set. Symbolic links are reported but
// never followed.
func (self *ExtContext) Walk(root string, recursive bool,
	fn func(name string, inode *Inode) error) error {
	id, err := self.Lookup(root)
	if err != nil {
		return err
	}

	seen := make(map[uint64]bool)
	return self.walk(path.Join("/", root), id, recursive, seen, fn)
}

func (self *ExtContext) walk(dirname string, id uint64, recursive bool,
	seen map[uint64]bool, fn func(name string, inode *Inode) error) error {
	if seen[id] {
		return errors.Errorf("Directory loop at %s", dirname)
	}
	seen[id] = true

	entries, err := self.ReadDir(id)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}

		inode, err := self.Stat(e.Inode)
		if err != nil {
			return err
		}

		name := path.Join(dirname, e.Name)
		if err := fn(name, inode); err != nil {
			return err
		}

		if recursive && inode.IsDir() {
			err = self.walk(name, e.Inode, recursive, seen, fn)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// ListRegularFiles returns the regular files below root, or root itself
// if it is a regular file.
func (self *ExtContext) ListRegularFiles(root string) ([]*extractor.FileEntry, error) {
	id, err := self.Lookup(root)
	if err != nil {
		return nil, err
	}

	inode, err := self.Stat(id)
	if err != nil {
		return nil, err
	}

	switch {
	case inode.IsRegular():
		return []*extractor.FileEntry{{
			Id:     id,
			Path:   path.Join("/", root),
			Length: inode.Size,
		}}, nil

	case inode.IsDir():
	default:
		return nil, errors.Wrapf(ErrNotRegularFile,
			"Unexpected file mode %s for %s", inode.Type(), root)
	}

	var result []*extractor.FileEntry
	err = self.Walk(root, true, func(name string, inode *Inode) error {
		if inode.IsRegular() {
			result = append(result, &extractor.FileEntry{
				Id:     inode.Id,
				Path:   name,
				Length: inode.Size,
			})
		}
		return nil
	})
	return result, err
}
