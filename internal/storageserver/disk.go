package storageserver

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/lfcarvalho/distfs/internal/path"
)

const (
	diskDirPerm  = 0700
	diskFilePerm = 0600
)

// DiskBackend stores each file at a path derived from its components
// under a root directory, creating missing parent directories on demand.
type DiskBackend struct {
	root string
}

// NewDiskBackend returns a backend rooted at dir. dir is created if missing.
func NewDiskBackend(dir string) (*DiskBackend, error) {
	if err := os.MkdirAll(dir, diskDirPerm); err != nil {
		return nil, errors.Wrap(err, "storageserver.NewDiskBackend")
	}
	return &DiskBackend{root: dir}, nil
}

func (b *DiskBackend) pathFor(p path.Path) string {
	parts := append([]string{b.root}, p.Components()...)
	return filepath.Join(parts...)
}

func (b *DiskBackend) Size(p path.Path) (int64, error) {
	fi, err := os.Stat(b.pathFor(p))
	if os.IsNotExist(err) {
		return 0, ErrNotExist
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (b *DiskBackend) ReadAt(p path.Path, offset int64, length int32) ([]byte, error) {
	f, err := os.Open(b.pathFor(p))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func (b *DiskBackend) WriteAt(p path.Path, offset int64, data []byte) error {
	name := b.pathFor(p)
	f, err := os.OpenFile(name, os.O_WRONLY, diskFilePerm)
	if os.IsNotExist(err) {
		if err = os.MkdirAll(filepath.Dir(name), diskDirPerm); err != nil {
			return err
		}
		f, err = os.OpenFile(name, os.O_WRONLY|os.O_CREATE, diskFilePerm)
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteAt(data, offset)
	return err
}

func (b *DiskBackend) Create(p path.Path) error {
	name := b.pathFor(p)
	if err := os.MkdirAll(filepath.Dir(name), diskDirPerm); err != nil {
		return err
	}
	return ioutil.WriteFile(name, nil, diskFilePerm)
}

func (b *DiskBackend) Delete(p path.Path) error {
	err := os.Remove(b.pathFor(p))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return pruneEmptyAncestors(b.root, filepath.Dir(b.pathFor(p)))
}

// pruneEmptyAncestors removes dir and any now-empty ancestor up to (but
// excluding) root, implementing the "prune now-empty directories up to
// its root" half of the registration contract.
func pruneEmptyAncestors(root, dir string) error {
	for dir != root && len(dir) > len(root) {
		entries, err := ioutil.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return nil
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (b *DiskBackend) ForEach(fn func(path.Path) error) error {
	return filepath.Walk(b.root, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, name)
		if err != nil {
			return err
		}
		p, err := path.Parse(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		return fn(p)
	})
}
