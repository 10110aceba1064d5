package mesicache

import "github.com/archsim/mesisim/cacheset"

// Builder configures and constructs a Cache, following the value-receiver
// chained-builder convention used throughout the simulator's packages.
type Builder struct {
	setIndexBits    int
	associativity   int
	blockOffsetBits int
}

// MakeBuilder returns a Builder with the command-line defaults: 6 set-index
// bits (64 sets), 2-way associative, 5 block-offset bits (32-byte lines).
func MakeBuilder() Builder {
	return Builder{
		setIndexBits:    6,
		associativity:   2,
		blockOffsetBits: 5,
	}
}

// WithSetIndexBits sets the number of address bits used to select a set;
// the cache will have 2^bits sets.
func (b Builder) WithSetIndexBits(bits int) Builder {
	b.setIndexBits = bits
	return b
}

// WithAssociativity sets the number of ways per set.
func (b Builder) WithAssociativity(ways int) Builder {
	b.associativity = ways
	return b
}

// WithBlockOffsetBits sets the number of address bits within a block; the
// block size is 2^bits bytes.
func (b Builder) WithBlockOffsetBits(bits int) Builder {
	b.blockOffsetBits = bits
	return b
}

// Build constructs a Cache for coreID wired to bus. The cache registers
// itself isn't done here; callers are expected to call bus.Register(cache)
// once the cache is constructed, mirroring how the rest of the simulator
// wires components together explicitly in the simulation package.
func (b Builder) Build(coreID int, bus Bus) *Cache {
	numSets := 1 << uint(b.setIndexBits)
	blockSize := 1 << uint(b.blockOffsetBits)

	sets := make([]*cacheset.Set, numSets)
	for i := range sets {
		sets[i] = cacheset.New(b.associativity)
	}

	return &Cache{
		coreID:          coreID,
		setIndexBits:    b.setIndexBits,
		blockOffsetBits: b.blockOffsetBits,
		blockSize:       blockSize,
		sets:            sets,
		bus:             bus,
	}
}
