// Package report formats a completed simulation run into a human-readable
// summary: a parameters block, one block per core, and an overall bus
// summary.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/archsim/mesisim/coretrace"
	"github.com/archsim/mesisim/mesicache"
	"github.com/archsim/mesisim/simulation"
)

// Options controls how much detail Write emits.
type Options struct {
	// Verbose adds a per-core MESI-state dump of every valid cache line
	// after that core's statistics block; INVALID lines are not listed.
	Verbose bool
}

// Write renders sim's results to w.
func Write(w io.Writer, sim *simulation.Simulator, opts Options) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	writeParameters(tw, sim)
	fmt.Fprintln(tw)

	for i, proc := range sim.Processors() {
		writeCore(tw, i, proc, sim.Caches()[i])

		if opts.Verbose {
			writeStateDump(tw, sim.Caches()[i])
		}

		fmt.Fprintln(tw)
	}

	writeBus(tw, sim)

	return tw.Flush()
}

func writeParameters(w io.Writer, sim *simulation.Simulator) {
	cache := sim.Caches()[0]
	cacheSize := cache.NumSets() * cache.Associativity() * cache.BlockSize()

	fmt.Fprintf(w, "Run\t%s\n", sim.ID())
	fmt.Fprintf(w, "Trace prefix\t%s\n", sim.TracePrefix())
	fmt.Fprintf(w, "Cores\t%d\n", len(sim.Processors()))
	fmt.Fprintf(w, "Set-index bits\t%d\n", cache.SetIndexBits())
	fmt.Fprintf(w, "Associativity\t%d\n", cache.Associativity())
	fmt.Fprintf(w, "Block-offset bits\t%d\n", cache.BlockOffsetBits())
	fmt.Fprintf(w, "Block size\t%s\n", humanize.Bytes(uint64(cache.BlockSize())))
	fmt.Fprintf(w, "Sets per cache\t%d\n", cache.NumSets())
	fmt.Fprintf(w, "Cache size\t%s\n", humanize.Bytes(uint64(cacheSize)))
	fmt.Fprintf(w, "Protocol\tMESI\n")
	fmt.Fprintf(w, "Write policy\twrite-back + write-allocate\n")
	fmt.Fprintf(w, "Replacement\tLRU\n")
	fmt.Fprintf(w, "Bus\tcentral snooping\n")
	fmt.Fprintf(w, "Cycles elapsed\t%d\n", sim.Cycles())

	if sim.Deadlocked() {
		fmt.Fprintf(w, "Status\tDEADLOCKED\n")
	} else {
		fmt.Fprintf(w, "Status\tcompleted\n")
	}
}

func writeCore(w io.Writer, coreID int, proc *coretrace.Processor, cache *mesicache.Cache) {
	fmt.Fprintf(w, "Core %d\n", coreID)
	fmt.Fprintf(w, "  Instructions\t%d (R %d / W %d)\n",
		proc.Stats.TotalInstructions, proc.Stats.ReadInstructions, proc.Stats.WriteInstructions)
	fmt.Fprintf(w, "  Cycles\t%d (idle %d)\n", proc.Stats.TotalCycles, proc.Stats.IdleCycles)
	fmt.Fprintf(w, "  Accesses\t%d\n", cache.Stats.Accesses)
	fmt.Fprintf(w, "  Misses\t%d (%.2f%%)\n", cache.Stats.Misses(), cache.Stats.MissRate()*100)
	fmt.Fprintf(w, "  Evictions\t%d\n", cache.Stats.Evictions)
	fmt.Fprintf(w, "  Writebacks\t%d\n", cache.Stats.Writebacks)
	fmt.Fprintf(w, "  Invalidations received\t%d\n", cache.Stats.Invalidations)
	fmt.Fprintf(w, "  Data traffic\t%s\n", humanize.Bytes(cache.Stats.Traffic))
}

func writeStateDump(w io.Writer, cache *mesicache.Cache) {
	fmt.Fprintf(w, "  Line states:\n")

	for i, line := range cache.Snapshot() {
		if !line.IsValid() {
			continue
		}

		fmt.Fprintf(w, "    line %d\ttag 0x%x\t%s\n", i, line.Tag, line.State)
	}
}

func writeBus(w io.Writer, sim *simulation.Simulator) {
	stats := sim.Bus().Stats

	fmt.Fprintf(w, "Bus\n")
	fmt.Fprintf(w, "  Transactions\t%d\n", stats.Transactions())
	fmt.Fprintf(w, "  BusRd\t%d\n", stats.BusRd)
	fmt.Fprintf(w, "  BusRdX\t%d\n", stats.BusRdX)
	fmt.Fprintf(w, "  BusUpgr\t%d\n", stats.BusUpgr)
	fmt.Fprintf(w, "  Flushes\t%d\n", stats.Flushes)
	fmt.Fprintf(w, "  Traffic\t%s\n", humanize.Bytes(stats.Traffic))
}
