package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

func TestWrapErr(t *testing.T) {
	base := xerrors.New("boom")

	t.Run("prefixes the step", func(t *testing.T) {
		err := WrapErr("open cache", base)
		assert.Equal(t, "open cache: boom", err.Error())
		assert.True(t, errors.Is(err, base))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WrapErr("close", nil))
	})

	t.Run("empty step returns the error untouched", func(t *testing.T) {
		assert.Equal(t, base, WrapErr("", base))
	})
}
