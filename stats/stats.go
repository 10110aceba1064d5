// Package stats holds the passive counter records: one per cache, one for
// the bus, one per core's processor, plus the derived rates computed from
// them. Counters are plain structs with pointer-receiver derived methods
// rather than a class with getters for every field.
package stats

// Cache counts per-cache coherence activity.
type Cache struct {
	Accesses      uint64
	Reads         uint64
	Writes        uint64
	ReadMisses    uint64
	WriteMisses   uint64
	Evictions     uint64
	Writebacks    uint64
	Invalidations uint64
	Traffic       uint64
}

// Misses is the derived read-miss + write-miss total.
func (c *Cache) Misses() uint64 {
	return c.ReadMisses + c.WriteMisses
}

// MissRate is misses/accesses, 0 when there have been no accesses.
func (c *Cache) MissRate() float64 {
	if c.Accesses == 0 {
		return 0
	}

	return float64(c.Misses()) / float64(c.Accesses)
}

// Reset zeros every counter.
func (c *Cache) Reset() {
	*c = Cache{}
}

// Bus counts transaction-type totals and aggregate traffic for the shared
// bus.
type Bus struct {
	BusRd   uint64
	BusRdX  uint64
	BusUpgr uint64
	Flushes uint64
	Traffic uint64
}

// Transactions is the total transaction count: BusRd+BusRdX+BusUpgr+Flushes.
func (b *Bus) Transactions() uint64 {
	return b.BusRd + b.BusRdX + b.BusUpgr + b.Flushes
}

// Reset zeros every counter.
func (b *Bus) Reset() {
	*b = Bus{}
}

// Processor counts a single core's instruction stream and timing.
type Processor struct {
	TotalInstructions uint64
	ReadInstructions  uint64
	WriteInstructions uint64
	TotalCycles       uint64
	IdleCycles        uint64
}

// Reset zeros every counter.
func (p *Processor) Reset() {
	*p = Processor{}
}
