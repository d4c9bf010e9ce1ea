package io

import (
	"io"
	"os"

	"github.com/spf13/afero"

	u "github.com/moratsam/clbin/util"
)

func OpenFile(fs afero.Fs, filepath string) (afero.File, error) {
	return fs.Open(filepath)
}

// Exists reports whether filepath names an existing file. Errors other than
// "not exist" are returned so that an unreadable cache is not mistaken for a
// missing one.
func Exists(fs afero.Fs, filepath string) (bool, error) {
	_, err := fs.Stat(filepath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, u.WrapErr("get stat", err)
}

func FileSize(fs afero.Fs, filepath string) (int64, error) {
	fi, err := fs.Stat(filepath)
	if err != nil {
		return 0, u.WrapErr("get stat", err)
	}
	return fi.Size(), nil
}

// ReadAll reads the whole file. Kernel sources are small enough that no
// chunking is needed.
func ReadAll(fs afero.Fs, filepath string) ([]byte, error) {
	f, err := OpenFile(fs, filepath)
	if err != nil {
		return nil, u.WrapErr("open", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, u.WrapErr("read", err)
	}
	return data, nil
}
