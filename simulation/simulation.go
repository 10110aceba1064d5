// Package simulation drives the tick loop that ties a shared bus, a set of
// per-core caches, and their trace-driven processors together, advancing
// one global cycle at a time until every core's trace is exhausted.
package simulation

import (
	"log"

	"github.com/archsim/mesisim/coretrace"
	"github.com/archsim/mesisim/mesicache"
	"github.com/archsim/mesisim/snoopbus"
)

// deadlockStreak is how many consecutive cycles with zero global progress
// the simulator tolerates before concluding the run has wedged and
// triggering deadlock recovery.
const deadlockStreak = 10000

// cycleCap is the safety-net cycle count the simulator enforces as a
// timeout; a well-formed trace set completes in practice for many orders
// of magnitude fewer cycles than this.
const cycleCap = 100_000_000

// Simulator owns one run: the shared bus, every core's cache and
// processor, and the global cycle counter that paces them.
type Simulator struct {
	id          string
	tracePrefix string

	bus        *snoopbus.Bus
	caches     []*mesicache.Cache
	processors []*coretrace.Processor

	cycle       uint64
	stallStreak uint64
	deadlocked  bool
}

// ID returns the run's unique identifier, used by reports to distinguish
// one run's output from another's.
func (s *Simulator) ID() string {
	return s.id
}

// TracePrefix returns the trace prefix or manifest path this run was
// configured with, for the report's simulation parameters block.
func (s *Simulator) TracePrefix() string {
	return s.tracePrefix
}

// Cycles returns the number of global ticks the simulator has executed.
func (s *Simulator) Cycles() uint64 {
	return s.cycle
}

// Bus returns the shared bus, for statistics reporting.
func (s *Simulator) Bus() *snoopbus.Bus {
	return s.bus
}

// Caches returns every core's cache, indexed by core id.
func (s *Simulator) Caches() []*mesicache.Cache {
	return s.caches
}

// Processors returns every core's processor, indexed by core id.
func (s *Simulator) Processors() []*coretrace.Processor {
	return s.processors
}

// Deadlocked reports whether the deadlock safety net ever fired during this
// run. Recovery forcibly unblocks every cache and clears the bus, so a
// deadlocked run still goes on to complete. This flag is purely diagnostic;
// a correctly driven run should never trip it.
func (s *Simulator) Deadlocked() bool {
	return s.deadlocked
}

// Run executes the tick loop to completion: the bus advances first, then
// every processor in ascending core order, so that a transaction the bus
// drains this cycle is visible to the processor that is waiting on it. A
// configured safety cap on total cycles guards against a run that never
// terminates; hitting it halts the run rather than recovering.
func (s *Simulator) Run() {
	for !s.allFinished() {
		s.tick()

		if s.cycle >= cycleCap {
			log.Printf("simulation %s: cycle cap %d reached, terminating", s.id, cycleCap)
			return
		}
	}
}

func (s *Simulator) allFinished() bool {
	for _, p := range s.processors {
		if !p.Finished() {
			return false
		}
	}

	return true
}

func (s *Simulator) tick() {
	s.bus.Tick()

	didWork := false
	progressed := false

	for _, p := range s.processors {
		beforeInstr := p.Stats.TotalInstructions
		beforeCycles := p.Stats.TotalCycles

		p.Tick()

		if p.Stats.TotalInstructions > beforeInstr {
			progressed = true
		}

		if p.Stats.TotalCycles > beforeCycles {
			didWork = true
		}
	}

	// A tick in which no processor charged itself a cycle is one where
	// every still-running processor discovered its trace was already
	// exhausted; no global cycle elapsed.
	if !didWork {
		return
	}

	s.cycle++

	if progressed || s.bus.Busy() || s.bus.PendingLen() > 0 {
		s.stallStreak = 0
		return
	}

	if s.allFinished() {
		return
	}

	s.stallStreak++
	if s.stallStreak >= deadlockStreak {
		s.recoverFromDeadlock()
	}
}

// recoverFromDeadlock forcibly unblocks every blocked cache and resets the
// bus state, then lets the tick loop carry on. This branch should be
// unreachable for a well-formed trace set; tripping it is recorded via
// Deadlocked for callers that want to treat it as a test failure.
func (s *Simulator) recoverFromDeadlock() {
	log.Printf("simulation %s: no progress for %d consecutive cycles at cycle %d, forcing unblock",
		s.id, deadlockStreak, s.cycle)

	s.deadlocked = true
	s.stallStreak = 0
	s.bus.Reset()

	for _, c := range s.caches {
		c.ForceUnblock()
	}
}
