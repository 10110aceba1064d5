package mesicache

import (
	"log"

	"github.com/archsim/mesisim/cacheline"
	"github.com/archsim/mesisim/snoopbus"
)

// Snoop responds to another core's bus transaction against addr, mutating
// this cache's own line state per the MESI snoop table and reporting
// whether it supplied the data (cache-to-cache transfer) along with any
// extra cycles that transfer costs the requester.
func (c *Cache) Snoop(op snoopbus.Op, addr uint64, sourceCore int) (providedData bool, extraCycles int) {
	set, idx, found := c.lineFor(addr)
	if !found {
		return false, 0
	}

	line := set.Line(idx)

	switch op {
	case snoopbus.BusRd:
		return c.snoopBusRd(line)
	case snoopbus.BusRdX:
		return c.snoopInvalidating(line)
	case snoopbus.BusUpgr:
		return c.snoopUpgr(line)
	default:
		return false, 0
	}
}

func (c *Cache) snoopBusRd(line *cacheline.Line) (providedData bool, extraCycles int) {
	switch line.State {
	case cacheline.Modified:
		// Supply the dirty data and demote to SHARED: the requester ends up
		// SHARED, but the dirty copy must still be written back to memory,
		// so this costs the memory latency on top of the cache-to-cache
		// transfer.
		line.State = cacheline.Shared
		c.Stats.Writebacks++

		return true, snoopbus.MemoryLatency + transferCycles(c.blockSize)
	case cacheline.Exclusive:
		line.State = cacheline.Shared
		return true, transferCycles(c.blockSize)
	case cacheline.Shared:
		return true, transferCycles(c.blockSize)
	case cacheline.Invalid:
		return false, 0
	default:
		return false, 0
	}
}

// snoopInvalidating handles BusRdX: the requester wants exclusive
// ownership, so any other holder supplies data and invalidates
// unconditionally. A dirty (MODIFIED) supplier pays the full 200-cycle
// flush-and-fetch penalty; a clean (EXCLUSIVE or SHARED) supplier costs the
// flat 100-cycle memory-fetch latency instead of a cache-to-cache transfer.
func (c *Cache) snoopInvalidating(line *cacheline.Line) (providedData bool, extraCycles int) {
	switch line.State {
	case cacheline.Modified:
		c.Stats.Writebacks++
		c.Stats.Invalidations++
		line.Invalidate()

		return true, 200
	case cacheline.Exclusive, cacheline.Shared:
		c.Stats.Invalidations++
		line.Invalidate()

		return true, snoopbus.MemoryLatency
	case cacheline.Invalid:
		return false, 0
	default:
		return false, 0
	}
}

// snoopUpgr handles BusUpgr: a peer is upgrading SHARED to MODIFIED, so
// every other SHARED holder must silently invalidate. Observing M or E
// here means a cache issued BusUpgr without actually holding the line
// SHARED, which the protocol never allows.
func (c *Cache) snoopUpgr(line *cacheline.Line) (providedData bool, extraCycles int) {
	switch line.State {
	case cacheline.Shared:
		c.Stats.Invalidations++
		line.Invalidate()

		return false, 0
	case cacheline.Modified, cacheline.Exclusive:
		log.Printf("mesicache: core %d observed BusUpgr while holding state %v, protocol violation", c.coreID, line.State)
		return false, 0
	case cacheline.Invalid:
		return false, 0
	default:
		return false, 0
	}
}

func transferCycles(blockSize int) int {
	return (blockSize / snoopbus.WordSize) * 2
}
