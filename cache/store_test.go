package cache

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Run("save then load", func(t *testing.T) {
		s := NewStore(afero.NewMemMapFs())

		ok, err := s.Exists("src/unlm0001.bin")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Save("src/unlm0001.bin", sampleBinaries()))

		ok, err = s.Exists("src/unlm0001.bin")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.Load("src/unlm0001.bin")
		require.NoError(t, err)
		assert.Equal(t, sampleBinaries(), got)
	})

	t.Run("save overwrites and leaves no temp files", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s := NewStore(fs)
		require.NoError(t, s.Save("/cache/k00.bin", [][]byte{{1}}))
		require.NoError(t, s.Save("/cache/k00.bin", [][]byte{{2, 3}}))

		got, err := s.Load("/cache/k00.bin")
		require.NoError(t, err)
		assert.Equal(t, [][]byte{{2, 3}}, got)

		entries, err := afero.ReadDir(fs, "/cache")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "k00.bin", entries[0].Name())
	})

	t.Run("failed save leaves nothing behind", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s := NewStore(fs)
		err := s.Save("/cache/k00.bin", nil)
		assert.True(t, errors.Is(err, ErrEmpty))

		entries, err := afero.ReadDir(fs, "/cache")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("load missing file", func(t *testing.T) {
		_, err := NewStore(afero.NewMemMapFs()).Load("/nope.bin")
		assert.Error(t, err)
	})

	t.Run("load corrupt file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/bad.bin", []byte("garbage"), 0o644))
		_, err := NewStore(fs).Load("/bad.bin")
		assert.True(t, errors.Is(err, ErrCorrupt))
	})
}
