package program

import (
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/compute"
	"github.com/moratsam/clbin/selector"
	u "github.com/moratsam/clbin/util"
)

var ErrNoSelection = xerrors.New("no device selected")

// Session turns selector arguments into contexts and programs for one kernel
// source.
type Session struct {
	rt        compute.Runtime
	loader    *Loader
	source    string
	cache_dir string
	log       *zap.Logger
}

// NewSession creates a session for source. Cache files are written next to
// the source unless cache_dir is set.
func NewSession(rt compute.Runtime, loader *Loader, source, cache_dir string, log *zap.Logger) *Session {
	return &Session{
		rt:        rt,
		loader:    loader,
		source:    source,
		cache_dir: cache_dir,
		log:       log.Named("session"),
	}
}

// Target is an open context over a resolved selection.
type Target struct {
	Arg       string
	Selector  selector.Selector
	Selection *selector.Selection
	CachePath string
	Context   compute.Context

	Program compute.Program // Set by Load.
	Origin  Origin          // Set by Load.
}

// Close releases the program and the context.
func (t *Target) Close() {
	if t.Program != nil {
		t.Program.Release()
		t.Program = nil
	}
	if t.Context != nil {
		t.Context.Release()
		t.Context = nil
	}
}

// Open parses arg, resolves it against the live enumeration and creates the
// context.
func (s *Session) Open(arg string) (*Target, error) {
	sel := selector.Parse(arg)
	if sel == nil {
		return nil, xerrors.Errorf("%q: %w", arg, ErrNoSelection)
	}

	// Get platforms and their devices.
	platforms, err := s.rt.Platforms()
	if err != nil {
		return nil, u.WrapErr("get platforms", err)
	}

	// Map the selector onto them.
	selection, err := sel.Resolve(platforms)
	if err != nil {
		return nil, u.WrapErr("resolve selector", err)
	}

	// Create device context.
	ctx, err := s.rt.CreateContext(selection.Platform, selection.Devices)
	if err != nil {
		return nil, u.WrapErr("create context", err)
	}

	t := &Target{
		Arg:       arg,
		Selector:  sel,
		Selection: selection,
		CachePath: s.cachePath(arg),
		Context:   ctx,
	}
	s.log.Debug("context created",
		zap.Stringer("selector", sel),
		zap.String("platform", selection.Platform.Name),
		zap.Int("devices", len(selection.Devices)),
	)
	return t, nil
}

// Load obtains the program for an open target.
func (s *Session) Load(t *Target) error {
	prog, origin, err := s.loader.Load(t.Context, s.source, t.CachePath)
	if err != nil {
		return err
	}
	t.Program = prog
	t.Origin = origin
	s.log.Info("program ready",
		zap.Stringer("selector", t.Selector),
		zap.Stringer("origin", origin),
		zap.String("cache", t.CachePath),
	)
	return nil
}

func (s *Session) cachePath(arg string) string {
	path := selector.CachePath(s.source, arg)
	if s.cache_dir == "" {
		return path
	}
	return filepath.Join(s.cache_dir, filepath.Base(path))
}
