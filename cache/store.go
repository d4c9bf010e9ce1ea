package cache

import (
	"bufio"
	"path/filepath"

	"github.com/spf13/afero"

	fio "github.com/moratsam/clbin/io"
	u "github.com/moratsam/clbin/util"
)

// Store reads and writes cache files on a filesystem.
type Store struct {
	fs afero.Fs
}

func NewStore(fs afero.Fs) *Store {
	return &Store{fs}
}

func (s *Store) Exists(path string) (bool, error) {
	return fio.Exists(s.fs, path)
}

func (s *Store) Load(path string) ([][]byte, error) {
	size, err := fio.FileSize(s.fs, path)
	if err != nil {
		return nil, u.WrapErr("size cache", err)
	}

	f, err := fio.OpenFile(s.fs, path)
	if err != nil {
		return nil, u.WrapErr("open cache", err)
	}
	defer f.Close()

	binaries, err := Decode(bufio.NewReader(f), size)
	if err != nil {
		return nil, u.WrapErr("decode "+path, err)
	}
	return binaries, nil
}

// Save writes binaries to a temporary file next to path and renames it into
// place. Readers never observe a half-written cache.
func (s *Store) Save(path string, binaries [][]byte) (err error) {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return u.WrapErr("create cache dir", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return u.WrapErr("create temp cache", err)
	}
	tmp_name := tmp.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp_name)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, binaries); err != nil {
		tmp.Close()
		return u.WrapErr("encode", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return u.WrapErr("flush", err)
	}
	if err := tmp.Close(); err != nil {
		return u.WrapErr("close temp cache", err)
	}

	if err := s.fs.Rename(tmp_name, path); err != nil {
		return u.WrapErr("rename cache", err)
	}
	return nil
}
