// Package program obtains a built compute program for a device selection,
// either from a binary cache or by compiling the kernel source and caching the
// result.
package program

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/cache"
	"github.com/moratsam/clbin/compute"
	fio "github.com/moratsam/clbin/io"
	"github.com/moratsam/clbin/metrics"
	u "github.com/moratsam/clbin/util"
)

// ErrBinaryCount is returned when a cache holds a different number of
// binaries than there are devices in the context.
var ErrBinaryCount = xerrors.New("cached binary count does not match device count")

type Origin int

const (
	OriginSource Origin = iota // Compiled from source.
	OriginCache                // Created from cached binaries.
)

func (o Origin) String() string {
	switch o {
	case OriginSource:
		return "source"
	case OriginCache:
		return "cache"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

type Loader struct {
	fs      afero.Fs
	store   *cache.Store
	log     *zap.Logger
	metrics *metrics.Metrics
	diag    io.Writer // Receives compiler build logs.
	options string    // Compiler options.
}

func NewLoader(fs afero.Fs, log *zap.Logger, m *metrics.Metrics, diag io.Writer, options string) *Loader {
	return &Loader{
		fs:      fs,
		store:   cache.NewStore(fs),
		log:     log.Named("loader"),
		metrics: m,
		diag:    diag,
		options: options,
	}
}

// Load returns a built program for every device of ctx. An existing cache file
// is used as is, without checking that it matches the devices or the source.
// Otherwise source is compiled and the binaries are written to cache_path.
func (l *Loader) Load(ctx compute.Context, source, cache_path string) (compute.Program, Origin, error) {
	start := time.Now()
	prog, origin, err := l.load(ctx, source, cache_path)
	result := "ok"
	if err != nil {
		result = "error"
	}
	l.metrics.BuildDuration.WithLabelValues(origin.String(), result).Observe(time.Since(start).Seconds())
	return prog, origin, err
}

func (l *Loader) load(ctx compute.Context, source, cache_path string) (compute.Program, Origin, error) {
	cached, err := l.store.Exists(cache_path)
	if err != nil {
		return nil, OriginCache, u.WrapErr("check cache", err)
	}
	if cached {
		prog, err := l.loadBinaries(ctx, cache_path)
		if err != nil {
			return nil, OriginCache, err
		}
		l.metrics.CacheHits.Inc()
		return prog, OriginCache, nil
	}

	l.metrics.CacheMisses.Inc()
	prog, err := l.compile(ctx, source)
	if err != nil {
		return nil, OriginSource, err
	}
	l.save(prog, cache_path)
	return prog, OriginSource, nil
}

func (l *Loader) loadBinaries(ctx compute.Context, cache_path string) (compute.Program, error) {
	l.log.Debug("loading cached binaries", zap.String("cache", cache_path))

	binaries, err := l.store.Load(cache_path)
	if err != nil {
		return nil, u.WrapErr("load cache", err)
	}

	// The native API reads exactly one binary per device.
	if n_devices := len(ctx.Devices()); len(binaries) != n_devices {
		return nil, xerrors.Errorf("%s holds %d binaries for %d devices: %w", cache_path, len(binaries), n_devices, ErrBinaryCount)
	}

	prog, err := ctx.ProgramWithBinaries(binaries)
	if err != nil {
		return nil, u.WrapErr("create program from binaries", err)
	}
	return prog, nil
}

func (l *Loader) compile(ctx compute.Context, source string) (compute.Program, error) {
	data, err := fio.ReadAll(l.fs, source)
	if err != nil {
		return nil, u.WrapErr("read source", err)
	}

	l.log.Info("compiling", zap.String("source", source), zap.Int("devices", len(ctx.Devices())))
	prog, err := ctx.BuildProgram(string(data), l.options)
	if err != nil {
		var build_err *compute.BuildError
		if xerrors.As(err, &build_err) {
			l.metrics.BuildFailures.Inc()
			l.writeBuildLogs(build_err)
		}
		return nil, u.WrapErr("build "+source, err)
	}
	return prog, nil
}

func (l *Loader) writeBuildLogs(build_err *compute.BuildError) {
	for _, dl := range build_err.Logs {
		fmt.Fprintf(l.diag, "LOG BUILD FROM %s\n%s\n", dl.Device.Name, dl.Log)
	}
}

// save persists the binaries of prog. The cache only spares a later compile,
// so failures are logged and the program is still handed out.
func (l *Loader) save(prog compute.Program, cache_path string) {
	binaries, err := prog.Binaries()
	if err == nil {
		err = l.store.Save(cache_path, binaries)
	}
	if err != nil {
		l.metrics.CacheWrites.WithLabelValues("error").Inc()
		l.log.Warn("could not write binary cache", zap.String("cache", cache_path), zap.Error(err))
		return
	}
	l.metrics.CacheWrites.WithLabelValues("ok").Inc()
	l.log.Debug("wrote binary cache", zap.String("cache", cache_path), zap.Int("binaries", len(binaries)))
}
