// Package snoopbus implements the single shared snooping bus that
// serializes every cache's coherence transaction, dispatches snoops to the
// other caches, and accounts for the resulting stall cycles.
package snoopbus

import (
	"log"

	"github.com/archsim/mesisim/stats"
)

// MemoryLatency is the flat cost of a memory fetch or memory writeback.
const MemoryLatency = 100

// WordSize is the width, in bytes, used to convert a block size into the
// word count that drives cache-to-cache transfer latency.
const WordSize = 4

// CacheView is what a registered cache exposes to the bus: the snoop
// responder every other transaction dispatches to, plus the two
// eviction-assist queries that let the bus coordinate eviction-time state
// changes instead of giving caches direct mutable references to one
// another.
type CacheView interface {
	CoreID() int
	Snoop(op Op, addr uint64, sourceCore int) (providedData bool, extraCycles int)
	HasShared(addr uint64) bool
	PromoteToExclusive(addr uint64)
}

type pendingTxn struct {
	op     Op
	addr   uint64
	source int
}

// Bus is the shared snooping bus. It holds weak references (plain
// interface values, never raw struct pointers shared for mutation outside
// their owning cache) to every registered cache, keyed by dense core id.
type Bus struct {
	blockSize int

	caches    []CacheView
	pending   []pendingTxn
	busyFor   int
	connected bool

	Stats stats.Bus
}

// New creates a Bus for a cache hierarchy with the given block size in
// bytes, used to size cache-to-cache transfer latency.
func New(blockSize int) *Bus {
	return &Bus{blockSize: blockSize}
}

// Register places a cache in a dense slot keyed by its core id. Core ids
// must be registered in ascending order starting from 0.
func (b *Bus) Register(c CacheView) {
	if c.CoreID() != len(b.caches) {
		log.Panicf("snoopbus: core id %d registered out of order, expected %d",
			c.CoreID(), len(b.caches))
	}

	b.caches = append(b.caches, c)
}

// Connect finalizes registration. The bus never hands caches direct
// references to one another; it simply records that every cache named by
// Register has arrived, so later queries can trust the registry is
// complete.
func (b *Bus) Connect() {
	b.connected = true
}

// Busy reports whether the bus is still finishing a previous transaction.
func (b *Bus) Busy() bool {
	return b.busyFor > 0
}

// PendingLen returns the number of deferred transactions waiting in the
// FIFO queue, used by the deadlock detector.
func (b *Bus) PendingLen() int {
	return len(b.pending)
}

// Reset clears the bus's busy countdown and drops any deferred
// transactions. Used only by the simulator's deadlock recovery.
func (b *Bus) Reset() {
	b.busyFor = 0
	b.pending = nil
}

// Tick advances the bus by one cycle: decrementing its busy countdown and,
// once it reaches zero, draining the next deferred transaction if any. A
// single countdown is the whole busy contract; there is no separate busy
// boolean that could disagree with it.
func (b *Bus) Tick() {
	if b.busyFor > 0 {
		b.busyFor--
	}

	if b.busyFor == 0 && len(b.pending) > 0 {
		next := b.pending[0]
		b.pending = b.pending[1:]
		b.resolve(next.op, next.addr, next.source)
	}
}

// Transact runs one coherence transaction. If the bus is still busy from a
// previous transaction, the request is appended to the FIFO pending queue
// and (false, false, 0) is returned; the caller must not treat this as a
// completed miss. Otherwise the transaction resolves synchronously: every
// other registered cache snoops it, any cache reporting data supplies it,
// and the stall cycles are computed from the snoop responses.
func (b *Bus) Transact(op Op, addr uint64, source int) (accepted, dataProvided bool, cycles int) {
	if b.Busy() {
		b.pending = append(b.pending, pendingTxn{op: op, addr: addr, source: source})
		return false, false, 0
	}

	dataProvided, cycles = b.resolve(op, addr, source)

	return true, dataProvided, cycles
}

func (b *Bus) resolve(op Op, addr uint64, source int) (dataProvided bool, cycles int) {
	extraCycles := 0

	for _, c := range b.caches {
		if c.CoreID() == source {
			continue
		}

		provided, extra := c.Snoop(op, addr, source)
		if provided {
			dataProvided = true
		}

		extraCycles += extra
	}

	switch {
	case dataProvided:
		cycles = extraCycles
		// A cache, not memory, supplied the block: this is a FlushOpt
		// cache-to-cache transfer, counted once here rather than a second
		// time on a separate memory-fetch path.
		b.Stats.Flushes++
	case op == BusUpgr:
		// An upgrade only broadcasts an invalidation; no block moves, so it
		// never falls back to the flat memory latency.
		cycles = 0
	default:
		cycles = MemoryLatency
	}

	if op != BusUpgr {
		b.Stats.Traffic += uint64(b.blockSize)
	}

	b.recordOp(op)
	b.busyFor = cycles

	return dataProvided, cycles
}

// RecordFlush accounts for a Flush transaction: a dirty writeback to
// memory triggered by a cache evicting a MODIFIED line, observable only as
// a counter increment rather than a Transact call.
func (b *Bus) RecordFlush() {
	b.Stats.Flushes++
}

func (b *Bus) recordOp(op Op) {
	switch op {
	case BusRd:
		b.Stats.BusRd++
	case BusRdX:
		b.Stats.BusRdX++
	case BusUpgr:
		b.Stats.BusUpgr++
	case Flush, FlushOpt:
		b.Stats.Flushes++
	}
}

// HasSoleOtherSharedHolder reports whether exactly one cache other than
// exceptCore holds addr in SHARED state, and which core that is. Used by a
// cache performing an eviction to decide whether to promote a lone
// remaining sharer to EXCLUSIVE.
func (b *Bus) HasSoleOtherSharedHolder(addr uint64, exceptCore int) (coreID int, ok bool) {
	count := 0
	found := -1

	for _, c := range b.caches {
		if c.CoreID() == exceptCore {
			continue
		}

		if c.HasShared(addr) {
			count++
			found = c.CoreID()
		}
	}

	if count == 1 {
		return found, true
	}

	return 0, false
}

// PromoteToExclusive tells the cache owning coreID to upgrade its SHARED
// copy of addr to EXCLUSIVE.
func (b *Bus) PromoteToExclusive(coreID int, addr uint64) {
	for _, c := range b.caches {
		if c.CoreID() == coreID {
			c.PromoteToExclusive(addr)
			return
		}
	}
}
