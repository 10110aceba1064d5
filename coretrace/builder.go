package coretrace

import "github.com/archsim/mesisim/tracereader"

// Builder configures and constructs a Processor.
type Builder struct {
	id     int
	reader *tracereader.Reader
	cache  Cache
}

// MakeBuilder returns an empty Builder. The cache must be set before Build;
// id defaults to 0 and reader may be left nil (see Build).
func MakeBuilder() Builder {
	return Builder{}
}

// WithID sets the dense core id the processor drives.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithReader sets the trace reader the processor consumes references from.
func (b Builder) WithReader(r *tracereader.Reader) Builder {
	b.reader = r
	return b
}

// WithCache sets the cache the processor issues references against.
func (b Builder) WithCache(c Cache) Builder {
	b.cache = c
	return b
}

// Build constructs the Processor. It panics if cache was never set,
// mirroring the fail-fast parameter validation the rest of the
// simulator's builders use. A nil reader is allowed: it models a trace
// file that could not be opened, where the processor is born already
// finished, at cycle 0, rather than aborting the whole run.
func (b Builder) Build() *Processor {
	if b.cache == nil {
		panic("coretrace: builder requires a cache")
	}

	return &Processor{
		id:       b.id,
		reader:   b.reader,
		cache:    b.cache,
		finished: b.reader == nil,
	}
}
