package selector

import (
	"path/filepath"
	"strings"
)

// CachePath derives the binary cache path for a source file: the source path
// without its extension, followed by every digit of the raw selector argument
// and ".bin". Only the digits name the file, so different selectors can share
// one: "1-23" and "12-3" both give <base>123.bin.
func CachePath(source, arg string) string {
	var code strings.Builder
	for _, r := range arg {
		if r >= '0' && r <= '9' {
			code.WriteRune(r)
		}
	}
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return base + code.String() + ".bin"
}
