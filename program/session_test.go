package program

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/metrics"
	"github.com/moratsam/clbin/selector"
)

func newSession(t *testing.T, source, cache_dir string) (*Session, *fakeRuntime, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "src/unlm.cl", []byte(source), 0o644))
	rt := newFakeRuntime()
	loader := NewLoader(fs, zap.NewNop(), metrics.New(), new(bytes.Buffer), "")
	return NewSession(rt, loader, "src/unlm.cl", cache_dir, zap.NewNop()), rt, fs
}

func TestSessionOpen(t *testing.T) {
	t.Run("resolves selection and derives cache path", func(t *testing.T) {
		s, rt, _ := newSession(t, kernelSource, "")
		target, err := s.Open("0-1,0-0")
		require.NoError(t, err)
		defer target.Close()

		assert.Equal(t, selector.Selector{{Platform: 0, Device: 1}, {Platform: 0, Device: 0}}, target.Selector)
		assert.Equal(t, "src/unlm0100.bin", target.CachePath)
		require.Len(t, rt.contexts, 1)
		assert.Equal(t, "cpu-skylake", rt.contexts[0].devices[0].Name)
		assert.Equal(t, "cpu-haswell", rt.contexts[0].devices[1].Name)
	})

	t.Run("cache dir relocates the cache file", func(t *testing.T) {
		s, _, _ := newSession(t, kernelSource, "/var/cache/clbin")
		target, err := s.Open("1-0")
		require.NoError(t, err)
		defer target.Close()
		assert.Equal(t, "/var/cache/clbin/unlm10.bin", target.CachePath)
	})

	t.Run("no selection", func(t *testing.T) {
		s, rt, _ := newSession(t, kernelSource, "")
		for _, arg := range []string{"", "gpu", ";;"} {
			_, err := s.Open(arg)
			assert.True(t, errors.Is(err, ErrNoSelection), "arg %q", arg)
		}
		assert.Empty(t, rt.contexts)
	})

	t.Run("nonexistent device", func(t *testing.T) {
		s, rt, _ := newSession(t, kernelSource, "")
		_, err := s.Open("9-9")
		var nf *selector.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, selector.Pair{Platform: 9, Device: 9}, nf.Pair)
		assert.Empty(t, rt.contexts)
	})

	t.Run("enumeration failure", func(t *testing.T) {
		s, rt, _ := newSession(t, kernelSource, "")
		rt.platformErr = xerrors.New("CL_PLATFORM_NOT_FOUND_KHR")
		_, err := s.Open("0-0")
		assert.ErrorContains(t, err, "get platforms")
	})

	t.Run("context failure", func(t *testing.T) {
		s, rt, _ := newSession(t, kernelSource, "")
		rt.contextErr = xerrors.New("CL_OUT_OF_HOST_MEMORY")
		_, err := s.Open("0-0")
		assert.ErrorContains(t, err, "create context")
	})
}

func TestSessionLoadAndClose(t *testing.T) {
	s, rt, fs := newSession(t, kernelSource, "")
	target, err := s.Open("0-0")
	require.NoError(t, err)

	require.NoError(t, s.Load(target))
	assert.Equal(t, OriginSource, target.Origin)
	prog := target.Program.(*fakeProgram)

	ok, err := afero.Exists(fs, "src/unlm00.bin")
	require.NoError(t, err)
	assert.True(t, ok)

	target.Close()
	assert.True(t, prog.released)
	assert.True(t, rt.contexts[0].released)
	assert.Nil(t, target.Program)
	assert.Nil(t, target.Context)

	// Closing twice is harmless.
	target.Close()
}

func TestSessionBuildFailureWritesNoCache(t *testing.T) {
	s, _, fs := newSession(t, "#error nope", "")
	target, err := s.Open("0-0")
	require.NoError(t, err)
	defer target.Close()

	require.Error(t, s.Load(target))
	assert.Nil(t, target.Program)

	ok, err := afero.Exists(fs, "src/unlm00.bin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWarm(t *testing.T) {
	t.Run("reports every selector in order", func(t *testing.T) {
		s, rt, fs := newSession(t, kernelSource, "")

		reports, err := s.Warm(context.Background(), []string{"0-0", "9-9", "0-0,0-1", "0-0"})
		require.NoError(t, err)
		require.Len(t, reports, 4)

		assert.Equal(t, "0-0", reports[0].Arg)
		assert.NoError(t, reports[0].Err)
		assert.Equal(t, OriginSource, reports[0].Origin)
		assert.Equal(t, "src/unlm00.bin", reports[0].CachePath)

		assert.Equal(t, "9-9", reports[1].Arg)
		assert.ErrorContains(t, reports[1].Err, "device 9-9 does not exist")

		assert.NoError(t, reports[2].Err)
		assert.Equal(t, "src/unlm0001.bin", reports[2].CachePath)

		// The repeated selector finds the cache written by the first one.
		assert.NoError(t, reports[3].Err)
		assert.Equal(t, OriginCache, reports[3].Origin)

		for _, path := range []string{"src/unlm00.bin", "src/unlm0001.bin"} {
			ok, err := afero.Exists(fs, path)
			require.NoError(t, err)
			assert.True(t, ok, path)
		}

		// Every context was released after its build.
		assert.Equal(t, 2, rt.builds())
		assert.Equal(t, 1, rt.binaryLoads())
		for _, c := range rt.contexts {
			assert.True(t, c.released)
		}
	})

	t.Run("build failure is reported per selector", func(t *testing.T) {
		s, _, _ := newSession(t, "#error nope", "")
		reports, err := s.Warm(context.Background(), []string{"0-0", "1-0"})
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Error(t, reports[0].Err)
		assert.Error(t, reports[1].Err)
	})

	t.Run("cancelled context fails the warm-up", func(t *testing.T) {
		s, _, _ := newSession(t, kernelSource, "")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		reports, err := s.Warm(ctx, []string{"0-0", "0-1", "1-0"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
		assert.LessOrEqual(t, len(reports), 3)
	})

	t.Run("no selectors", func(t *testing.T) {
		s, _, _ := newSession(t, kernelSource, "")
		reports, err := s.Warm(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, reports)
	})
}
