package simulation

import (
	"fmt"
	"log"

	"github.com/archsim/mesisim/coretrace"
	"github.com/archsim/mesisim/mesicache"
	"github.com/archsim/mesisim/snoopbus"
	"github.com/archsim/mesisim/tracereader"
	"github.com/rs/xid"
)

// Builder configures and constructs a Simulator: it opens every core's
// trace file and wires together a bus, one cache per core, and one
// processor per core, all sized from the same cache-geometry parameters.
type Builder struct {
	numCores        int
	setIndexBits    int
	associativity   int
	blockOffsetBits int
	tracePaths      []string
	tracePrefix     string
}

// MakeBuilder returns a Builder seeded with the same cache-geometry
// defaults as mesicache.MakeBuilder.
func MakeBuilder() Builder {
	return Builder{
		setIndexBits:    6,
		associativity:   2,
		blockOffsetBits: 5,
	}
}

// WithTracePaths sets the trace file for each core, in core-id order. The
// number of cores is implied by the length of paths.
func (b Builder) WithTracePaths(paths []string) Builder {
	b.tracePaths = paths
	b.numCores = len(paths)
	return b
}

// WithTracePrefix records the trace prefix or manifest path this run was
// configured with, purely for display in the report's parameters block; it
// has no effect on how traces are resolved.
func (b Builder) WithTracePrefix(prefix string) Builder {
	b.tracePrefix = prefix
	return b
}

// WithSetIndexBits sets the number of set-index bits every cache uses.
func (b Builder) WithSetIndexBits(bits int) Builder {
	b.setIndexBits = bits
	return b
}

// WithAssociativity sets the number of ways per set every cache uses.
func (b Builder) WithAssociativity(ways int) Builder {
	b.associativity = ways
	return b
}

// WithBlockOffsetBits sets the number of block-offset bits every cache
// uses; the bus's cache-to-cache transfer latency is derived from the
// resulting block size.
func (b Builder) WithBlockOffsetBits(bits int) Builder {
	b.blockOffsetBits = bits
	return b
}

// Build constructs the bus, caches, and processors and wires them
// together, opening every trace file along the way. A trace file that is
// missing or unreadable does not abort the run: that core's processor is
// born already finished, at cycle 0. Build only returns an error for a
// configuration mistake (no trace paths at all), which callers should
// treat as fatal.
func (b Builder) Build() (*Simulator, error) {
	if b.numCores == 0 {
		return nil, fmt.Errorf("simulation: builder requires at least one trace path")
	}

	bus := snoopbus.New(1 << uint(b.blockOffsetBits))

	s := &Simulator{
		id:          xid.New().String(),
		tracePrefix: b.tracePrefix,
		bus:         bus,
	}

	cacheBuilder := mesicache.MakeBuilder().
		WithSetIndexBits(b.setIndexBits).
		WithAssociativity(b.associativity).
		WithBlockOffsetBits(b.blockOffsetBits)

	for i, path := range b.tracePaths {
		cache := cacheBuilder.Build(i, bus)
		bus.Register(cache)

		reader, err := tracereader.Open(path)
		if err != nil {
			log.Printf("simulation: core %d: %v, trace marked complete at cycle 0", i, err)
			reader = nil
		}

		proc := coretrace.MakeBuilder().
			WithID(i).
			WithReader(reader).
			WithCache(cache).
			Build()

		s.caches = append(s.caches, cache)
		s.processors = append(s.processors, proc)
	}

	bus.Connect()

	return s, nil
}
