// Package mesicache implements the per-core MESI cache: address decoding,
// the hit/miss path, line allocation and eviction, and the snoop responder
// that the shared bus dispatches to. This is the core state machine the
// whole simulator exists to get right.
package mesicache

import (
	"log"

	"github.com/archsim/mesisim/cacheline"
	"github.com/archsim/mesisim/cacheset"
	"github.com/archsim/mesisim/snoopbus"
	"github.com/archsim/mesisim/stats"
)

//go:generate mockgen -destination mock_bus_test.go -package mesicache_test -source cache.go Bus

// Bus is the subset of *snoopbus.Bus a cache needs to initiate coherence
// transactions and query eviction-assist state. Declared from the
// consumer side so tests can supply a mock (see cache_test.go / the
// generated mock in mock_bus_test.go).
type Bus interface {
	Busy() bool
	Transact(op snoopbus.Op, addr uint64, source int) (accepted, dataProvided bool, cycles int)
	HasSoleOtherSharedHolder(addr uint64, exceptCore int) (coreID int, ok bool)
	PromoteToExclusive(coreID int, addr uint64)
	RecordFlush()
}

// Cache is one core's private L1: a set-indexed array of cache sets, a
// weak reference to the shared bus, and its own statistics.
type Cache struct {
	coreID          int
	setIndexBits    int
	blockOffsetBits int
	blockSize       int

	sets []*cacheset.Set
	bus  Bus

	blockedRemaining int

	Stats stats.Cache
}

// CoreID returns the dense core id this cache was registered with.
func (c *Cache) CoreID() int {
	return c.coreID
}

// SetIndexBits returns the number of address bits used to select a set.
func (c *Cache) SetIndexBits() int {
	return c.setIndexBits
}

// BlockOffsetBits returns the number of address bits within a block.
func (c *Cache) BlockOffsetBits() int {
	return c.blockOffsetBits
}

// BlockSize returns the cache line size in bytes.
func (c *Cache) BlockSize() int {
	return c.blockSize
}

// Associativity returns the number of ways per set.
func (c *Cache) Associativity() int {
	return c.sets[0].Associativity()
}

// NumSets returns the number of sets in the cache.
func (c *Cache) NumSets() int {
	return len(c.sets)
}

// Snapshot returns a copy of every line in every set, for the verbose
// per-core state dump report mode. Index order is set-major, way-minor.
func (c *Cache) Snapshot() []cacheline.Line {
	lines := make([]cacheline.Line, 0, len(c.sets)*c.sets[0].Associativity())

	for _, set := range c.sets {
		for i := 0; i < set.Associativity(); i++ {
			lines = append(lines, *set.Line(i))
		}
	}

	return lines
}

// IsBlocking reports whether the cache is still resolving a previous miss.
func (c *Cache) IsBlocking() bool {
	return c.blockedRemaining > 0
}

// ForceUnblock clears any pending stall countdown immediately. Used only
// by the simulator's deadlock recovery; a correctly driven run never needs
// it in the ordinary course of execution.
func (c *Cache) ForceUnblock() {
	c.blockedRemaining = 0
}

// Tick advances the cache's internal stall countdown by one cycle and
// reports whether this tick should be charged as idle. It must be called
// exactly once per global simulator tick while the owning processor is
// blocked.
func (c *Cache) Tick() (stillBlocking bool) {
	if c.blockedRemaining > 0 {
		c.blockedRemaining--
		return true
	}

	return false
}

func (c *Cache) addrParts(addr uint64) (tag uint64, setIndex int) {
	setMask := uint64(len(c.sets) - 1)
	setIndex = int((addr >> uint(c.blockOffsetBits)) & setMask)
	tag = addr >> uint(c.setIndexBits+c.blockOffsetBits)

	return tag, setIndex
}

func (c *Cache) lineFor(addr uint64) (set *cacheset.Set, idx int, found bool) {
	tag, setIndex := c.addrParts(addr)
	set = c.sets[setIndex]
	idx, found = set.Find(tag)

	return set, idx, found
}

// Read performs a load of addr. If the cache is still resolving a previous
// miss, it returns (false, 0) and the caller must retry the same reference
// next cycle.
func (c *Cache) Read(addr uint64) (accepted bool, cycles int) {
	if c.IsBlocking() {
		return false, 0
	}

	set, idx, hit := c.lineFor(addr)
	if hit {
		c.Stats.Accesses++
		c.Stats.Reads++
		set.Touch(idx)

		return true, 1
	}

	// A miss must issue a bus transaction; check the bus is free first so a
	// reference that can't be issued this cycle is simply retried next cycle
	// instead of enqueuing a duplicate pending transaction.
	if c.bus.Busy() {
		return false, 0
	}

	c.Stats.Accesses++
	c.Stats.Reads++
	c.Stats.ReadMisses++

	accepted, dataProvided, busCycles := c.bus.Transact(snoopbus.BusRd, addr, c.coreID)
	if !accepted {
		c.Stats.ReadMisses--
		c.Stats.Accesses--
		c.Stats.Reads--

		return false, 0
	}

	busCycles += c.allocate(addr, dataProvided, cacheline.Exclusive, cacheline.Shared)
	c.arm(busCycles)
	c.Stats.Traffic += uint64(c.blockSize)

	return true, 1 + busCycles
}

// Write performs a store to addr.
func (c *Cache) Write(addr uint64) (accepted bool, cycles int) {
	if c.IsBlocking() {
		return false, 0
	}

	set, idx, hit := c.lineFor(addr)
	if hit {
		line := set.Line(idx)

		// Only the SHARED branch issues a bus transaction; check the bus is
		// free before touching any state so a reference that can't be
		// issued this cycle is simply retried next cycle.
		if line.State == cacheline.Shared && c.bus.Busy() {
			return false, 0
		}

		c.Stats.Accesses++
		c.Stats.Writes++
		set.Touch(idx)

		switch line.State {
		case cacheline.Modified:
			// Already ours exclusively and dirty; nothing further to do.
		case cacheline.Exclusive:
			line.State = cacheline.Modified
		case cacheline.Shared:
			_, _, upgrCycles := c.bus.Transact(snoopbus.BusUpgr, addr, c.coreID)
			line.State = cacheline.Modified
			c.arm(upgrCycles)

			return true, 1 + upgrCycles
		case cacheline.Invalid:
			log.Printf("mesicache: core %d found INVALID line reported as hit for 0x%x", c.coreID, addr)
		}

		return true, 1
	}

	// A miss must issue a bus transaction; check the bus is free first so a
	// reference that can't be issued this cycle is simply retried next cycle
	// instead of enqueuing a duplicate pending transaction.
	if c.bus.Busy() {
		return false, 0
	}

	c.Stats.Accesses++
	c.Stats.Writes++
	c.Stats.WriteMisses++

	accepted, _, busCycles := c.bus.Transact(snoopbus.BusRdX, addr, c.coreID)
	if !accepted {
		c.Stats.WriteMisses--
		c.Stats.Accesses--
		c.Stats.Writes--

		return false, 0
	}

	busCycles += c.allocate(addr, false, cacheline.Modified, cacheline.Modified)
	c.arm(busCycles)
	c.Stats.Traffic += uint64(c.blockSize)

	return true, 1 + busCycles
}

// allocate installs addr into its set, evicting the LRU victim first if
// necessary, and sets the new line's state. onExclusivePath is the state to
// use when dataProvided is false and onSharedPath when it is true; for a
// write miss the caller always wants Modified regardless, so it passes the
// same state for both. It returns the extra stall cycles (if any) charged
// for writing back an evicted MODIFIED victim.
func (c *Cache) allocate(addr uint64, dataProvided bool, onExclusivePath, onSharedPath cacheline.State) (extraCycles int) {
	tag, setIndex := c.addrParts(addr)
	set := c.sets[setIndex]

	full := true
	for i := 0; i < set.Associativity(); i++ {
		if !set.Line(i).IsValid() {
			full = false
			break
		}
	}

	if full {
		extraCycles = c.evict(set, set.Victim(), setIndex)
	}

	idx := set.Allocate(tag)

	if dataProvided {
		set.Line(idx).State = onSharedPath
	} else {
		set.Line(idx).State = onExclusivePath
	}

	set.Touch(idx)

	return extraCycles
}

// arm starts the stall countdown for a multi-cycle miss. The caller's own
// issuing cycle is charged separately (the "1 +" in Read/Write's returned
// cycle count), so the full busCycles stall still has to elapse afterward;
// blockedRemaining counts exactly that many further ticks.
func (c *Cache) arm(busCycles int) {
	if busCycles > 0 {
		c.blockedRemaining = busCycles
	}
}

// evict retires the victim line before its slot is reused, performing the
// writeback/promotion side effects its current state requires, and returns
// the extra stall cycles a dirty writeback charges to the transaction that
// triggered this eviction.
func (c *Cache) evict(set *cacheset.Set, victim, setIndex int) (extraCycles int) {
	line := set.Line(victim)
	addr := (line.Tag << uint(c.setIndexBits+c.blockOffsetBits)) | (uint64(setIndex) << uint(c.blockOffsetBits))

	switch line.State {
	case cacheline.Modified:
		c.Stats.Writebacks++
		c.bus.RecordFlush()
		extraCycles = snoopbus.MemoryLatency
	case cacheline.Shared:
		if owner, ok := c.bus.HasSoleOtherSharedHolder(addr, c.coreID); ok {
			c.bus.PromoteToExclusive(owner, addr)
		}
	case cacheline.Exclusive, cacheline.Invalid:
		// No traffic and nothing to coordinate with other caches.
	}

	c.Stats.Evictions++
	line.Invalidate()

	return extraCycles
}

// StateAt reports the MESI state this cache currently holds addr in, and
// whether addr is held valid at all.
func (c *Cache) StateAt(addr uint64) (state cacheline.State, ok bool) {
	set, idx, found := c.lineFor(addr)
	if !found {
		return cacheline.Invalid, false
	}

	return set.Line(idx).State, true
}

// HasShared reports whether this cache holds addr SHARED, used by another
// cache's eviction path via the bus's HasSoleOtherSharedHolder query.
func (c *Cache) HasShared(addr uint64) bool {
	_, idx, found := c.lineFor(addr)
	if !found {
		return false
	}

	set, _ := c.setFor(addr)

	return set.Line(idx).State == cacheline.Shared
}

// PromoteToExclusive upgrades this cache's copy of addr from SHARED to
// EXCLUSIVE, called by the bus on behalf of another cache's eviction.
func (c *Cache) PromoteToExclusive(addr uint64) {
	_, idx, found := c.lineFor(addr)
	if !found {
		return
	}

	set, _ := c.setFor(addr)
	line := set.Line(idx)

	if line.State == cacheline.Shared {
		line.State = cacheline.Exclusive
	}
}

func (c *Cache) setFor(addr uint64) (*cacheset.Set, int) {
	_, setIndex := c.addrParts(addr)
	return c.sets[setIndex], setIndex
}
