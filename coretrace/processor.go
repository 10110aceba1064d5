// Package coretrace drives a single core's instruction stream against its
// cache: one trace reference at a time, retrying whenever the cache or bus
// cannot make progress this cycle.
package coretrace

import (
	"github.com/archsim/mesisim/stats"
	"github.com/archsim/mesisim/tracereader"
)

// Cache is what a processor needs from its private cache: the blocking
// accessors and the per-cycle stall countdown. Satisfied structurally by
// *mesicache.Cache.
type Cache interface {
	Read(addr uint64) (accepted bool, cycles int)
	Write(addr uint64) (accepted bool, cycles int)
	IsBlocking() bool
	Tick() (stillBlocking bool)
}

// Processor issues one core's trace references, one per successful cycle,
// and accounts for every cycle spent either retiring an instruction or
// idling while its cache resolves a miss.
type Processor struct {
	id     int
	reader *tracereader.Reader
	cache  Cache

	pending  *tracereader.Reference
	finished bool

	Stats stats.Processor
}

// CoreID returns the dense core id this processor drives.
func (p *Processor) CoreID() int {
	return p.id
}

// Finished reports whether the trace has been fully consumed and retired.
func (p *Processor) Finished() bool {
	return p.finished
}

// Tick advances the processor by exactly one global cycle. It must be
// called once per simulator tick, in the order the simulator dictates:
// bus first, then processors in ascending core order.
func (p *Processor) Tick() {
	if p.finished {
		return
	}

	if p.cache.IsBlocking() {
		p.Stats.TotalCycles++
		p.cache.Tick()
		p.Stats.IdleCycles++

		return
	}

	if p.pending == nil {
		ref, ok := p.reader.Next()
		if !ok {
			p.finished = true
			return
		}

		p.pending = &ref
	}

	p.Stats.TotalCycles++

	accepted := p.issue(*p.pending)
	if !accepted {
		p.Stats.IdleCycles++
		return
	}

	p.retire(p.pending.Kind)
	p.pending = nil
}

func (p *Processor) issue(ref tracereader.Reference) (accepted bool) {
	switch ref.Kind {
	case tracereader.Write:
		accepted, _ = p.cache.Write(ref.Addr)
	default:
		accepted, _ = p.cache.Read(ref.Addr)
	}

	return accepted
}

func (p *Processor) retire(kind tracereader.Kind) {
	p.Stats.TotalInstructions++

	if kind == tracereader.Write {
		p.Stats.WriteInstructions++
	} else {
		p.Stats.ReadInstructions++
	}
}
