// Package cache persists compiled program binaries so that later runs can skip
// compilation.
//
// A cache file holds N binaries, one per selected device, laid out as
//
//	count    uint64
//	lengths  [count]uint64
//	blobs    [count][]byte
//
// with every integer little-endian. There is no version, checksum or device
// fingerprint.
package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/xerrors"

	u "github.com/moratsam/clbin/util"
)

// MaxEntries bounds the count field on decode.
const MaxEntries = 64

const wordSize = 8

var (
	ErrCorrupt = xerrors.New("corrupt binary cache")
	ErrEmpty   = xerrors.New("no binaries to cache")
)

func Encode(w io.Writer, binaries [][]byte) error {
	if len(binaries) == 0 {
		return ErrEmpty
	}

	// Header: count followed by one length per binary.
	header := make([]uint64, 0, len(binaries)+1)
	header = append(header, uint64(len(binaries)))
	for _, b := range binaries {
		header = append(header, uint64(len(b)))
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return u.WrapErr("write header", err)
	}

	for i, b := range binaries {
		if _, err := w.Write(b); err != nil {
			return u.WrapErr(fmt.Sprintf("write binary %d", i), err)
		}
	}
	return nil
}

// Decode reads a cache written by Encode. size is the number of bytes r can
// deliver; it bounds the lengths in the header before anything is allocated.
// A negative size disables that check.
func Decode(r io.Reader, size int64) ([][]byte, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, corrupt("read count", err)
	}
	if count == 0 || count > MaxEntries {
		return nil, xerrors.Errorf("count %d: %w", count, ErrCorrupt)
	}

	lengths := make([]uint64, count)
	if err := binary.Read(r, binary.LittleEndian, lengths); err != nil {
		return nil, corrupt("read lengths", err)
	}

	if size >= 0 {
		header_size := uint64(wordSize) * (count + 1)
		var budget uint64
		if uint64(size) > header_size {
			budget = uint64(size) - header_size
		}
		var total uint64
		for i, l := range lengths {
			if l > budget-total {
				return nil, xerrors.Errorf("binary #%d needs %d bytes, %d available: %w", i, l, budget-total, ErrCorrupt)
			}
			total += l
		}
	}

	binaries := make([][]byte, count)
	for i, l := range lengths {
		if l > math.MaxInt64 {
			return nil, xerrors.Errorf("binary #%d length %d: %w", i, l, ErrCorrupt)
		}
		b, err := readBlob(r, l, size >= 0)
		if err != nil {
			return nil, corrupt("read binary", err)
		}
		binaries[i] = b
	}
	return binaries, nil
}

// readBlob reads l bytes. Unless the length was checked against the file size
// the buffer grows as bytes arrive instead of trusting l up front.
func readBlob(r io.Reader, l uint64, checked bool) ([]byte, error) {
	if checked || l == 0 {
		b := make([]byte, l)
		_, err := io.ReadFull(r, b)
		return b, err
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(l)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func corrupt(step string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return xerrors.Errorf("%s: %v: %w", step, err, ErrCorrupt)
	}
	return u.WrapErr(step, err)
}
