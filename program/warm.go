package program

import (
	"context"

	"github.com/moratsam/etherscan/pipeline"

	u "github.com/moratsam/clbin/util"
)

// Report is the outcome of warming one selector.
type Report struct {
	Arg       string
	CachePath string
	Origin    Origin
	Err       error
}

// Warm opens and loads every selector in args, one after another, so that
// their binary caches exist afterwards. A failing selector is reported and
// does not stop the others. A cancelled ctx fails the whole warm-up.
func (s *Session) Warm(ctx context.Context, args []string) ([]Report, error) {
	source := &argSource{args: args}
	sink := &reportSink{}
	pip := pipeline.New(pipeline.FIFO(&warmer{s}))
	if err := pip.Process(ctx, source, sink); err != nil {
		return sink.reports, u.WrapErr("warm", err)
	}
	// The pipeline stops quietly on cancellation; selectors may be missing.
	if err := ctx.Err(); err != nil {
		return sink.reports, u.WrapErr("warm", err)
	}
	return sink.reports, nil
}

// Source of the warm pipeline: hands out one selector argument per payload.
type argSource struct {
	args []string
	next int
	arg  string
}

func (s *argSource) Error() error { return nil }
func (s *argSource) Next(_ context.Context) bool {
	if s.next >= len(s.args) {
		return false
	}
	s.arg = s.args[s.next]
	s.next++
	return true
}
func (s *argSource) Payload() pipeline.Payload {
	p := payloadPool.Get().(*warmPayload)
	p.arg = s.arg
	return p
}

// The only stage: opens the context, loads the program and releases both.
type warmer struct {
	s *Session
}

func (w *warmer) Process(_ context.Context, payload pipeline.Payload) (pipeline.Payload, error) {
	p := payload.(*warmPayload)

	t, err := w.s.Open(p.arg)
	if err != nil {
		p.err = u.WrapErr("open", err)
		return p, nil
	}
	defer t.Close()
	p.cache_path = t.CachePath

	if err := w.s.Load(t); err != nil {
		p.err = u.WrapErr("load", err)
		return p, nil
	}
	p.origin = t.Origin
	return p, nil
}

// Sink of the warm pipeline: copies each outcome out of the pooled payload.
type reportSink struct {
	reports []Report
}

func (s *reportSink) Consume(_ context.Context, payload pipeline.Payload) error {
	p := payload.(*warmPayload)
	s.reports = append(s.reports, Report{
		Arg:       p.arg,
		CachePath: p.cache_path,
		Origin:    p.origin,
		Err:       p.err,
	})
	return nil
}
