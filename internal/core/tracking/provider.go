package tracking

import (
	"sync"

	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

// Getter is a host-registered position function.
type Getter func() (scene.Sample, bool)

// Source names where a sample came from.
type Source string

const (
	SourceNone   Source = ""
	SourceGetter Source = "getter"
	SourceWorld  Source = "world"
	SourceLocal  Source = "local"
	SourcePushed Source = "pushed"
)

// Provider is the single pull accessor for the player position. Every Read
// goes back to the binding, so a target replaced by the resolver is picked up
// on the next read.
type Provider struct {
	binding *Binding
	log     log.Log
	errs    *log.Limiter

	mu     sync.Mutex
	getter Getter
	pushed *scene.Sample
	vm     scene.VectorMath
	source Source
	missed bool
}

func NewProvider(binding *Binding, errorLogCap uint64, logger log.Log) *Provider {
	return &Provider{
		binding: binding,
		log:     logger.With(log.Component("provider")),
		errs:    log.Cap(errorLogCap),
	}
}

// SetGetter registers a host position getter. It takes precedence over the
// bound node. Nil unregisters.
func (p *Provider) SetGetter(fn Getter) {
	p.mu.Lock()
	p.getter = fn
	p.mu.Unlock()
}

// SetMath sets the vector utility used for world-space reads.
func (p *Provider) SetMath(vm scene.VectorMath) {
	p.mu.Lock()
	p.vm = vm
	p.mu.Unlock()
}

// Push stores a host-pushed sample, used when nothing else yields one.
// Invalid samples are dropped.
func (p *Provider) Push(s scene.Sample) bool {
	if !s.Valid() {
		p.fail("pushed sample invalid", SourcePushed, nil)
		return false
	}
	s = s.Sanitized()
	p.mu.Lock()
	p.pushed = &s
	p.mu.Unlock()
	return true
}

// Read returns the current player position, or false when no source yields a
// sample with finite x and z.
func (p *Provider) Read() (scene.Sample, bool) {
	p.mu.Lock()
	getter, vm, pushed := p.getter, p.vm, p.pushed
	p.mu.Unlock()

	if getter != nil {
		var s scene.Sample
		var ok bool
		err := scene.Safe(func() error { s, ok = getter(); return nil })
		switch {
		case err != nil:
			p.fail("position getter failed", SourceGetter, err)
		case ok && s.Valid():
			return p.hit(s, SourceGetter)
		default:
			p.fail("position getter returned invalid sample", SourceGetter, nil)
		}
	}

	missed := false
	if t, ok := p.binding.Current(); ok {
		if s, src, ok := p.readNode(t.Node, vm); ok {
			return p.hit(s, src)
		}
		missed = true
	}

	p.mu.Lock()
	p.missed = missed
	p.mu.Unlock()
	if pushed != nil {
		return p.hit(*pushed, SourcePushed)
	}

	p.mu.Lock()
	p.source = SourceNone
	p.mu.Unlock()
	return scene.Sample{}, false
}

// TargetMissed reports whether the last Read had a bound target that failed
// to yield a position, even if a pushed sample covered for it.
func (p *Provider) TargetMissed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.missed
}

// Source reports where the last successful read came from.
func (p *Provider) Source() Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Errors reports how many failed reads were counted.
func (p *Provider) Errors() uint64 {
	return p.errs.Seen()
}

func (p *Provider) readNode(n scene.Node, vm scene.VectorMath) (scene.Sample, Source, bool) {
	if wp, ok := n.(scene.WorldPositioner); ok && vm != nil {
		var s scene.Sample
		err := scene.Safe(func() error {
			v := vm.NewVector()
			if err := wp.WorldPosition(v); err != nil {
				return err
			}
			s = v.Get()
			return nil
		})
		if err == nil && s.Valid() {
			return s, SourceWorld, true
		}
		p.fail("world position read failed", SourceWorld, err)
	}
	if pos, ok := n.(scene.Positioned); ok {
		var s scene.Sample
		err := scene.Safe(func() error { s = pos.Position(); return nil })
		if err == nil && s.Valid() {
			return s, SourceLocal, true
		}
		p.fail("local position read failed", SourceLocal, err)
		return scene.Sample{}, SourceNone, false
	}
	p.fail("bound node has no position", SourceLocal, nil)
	return scene.Sample{}, SourceNone, false
}

func (p *Provider) hit(s scene.Sample, src Source) (scene.Sample, bool) {
	p.mu.Lock()
	p.source = src
	if src != SourcePushed {
		p.missed = false
	}
	p.mu.Unlock()
	return s.Sanitized(), true
}

func (p *Provider) fail(msg string, src Source, err error) {
	if !p.errs.Allow() {
		return
	}
	p.log.Warn(msg,
		log.String("source", string(src)),
		log.Error(err),
		log.Uint64("errors", p.errs.Seen()),
	)
}
