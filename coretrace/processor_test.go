package coretrace_test

import (
	"os"
	"path/filepath"

	"github.com/archsim/mesisim/coretrace"
	"github.com/archsim/mesisim/tracereader"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeCache is a hand-written test double: the processor's contract with
// its cache is a short stateful protocol (IsBlocking/Tick interleaved with
// Read/Write) that a scripted sequence of return values expresses more
// clearly than a mock's call-by-call expectations would.
type fakeCache struct {
	blocking      bool
	blockedTicks  int
	acceptResults []bool
	reads         []uint64
	writes        []uint64
	tickCalls     int
}

func (f *fakeCache) IsBlocking() bool {
	return f.blocking
}

func (f *fakeCache) Tick() bool {
	f.tickCalls++
	f.blockedTicks--

	if f.blockedTicks <= 0 {
		f.blocking = false
	}

	return f.blocking
}

func (f *fakeCache) Read(addr uint64) (bool, int) {
	f.reads = append(f.reads, addr)
	return f.nextAccept(), 0
}

func (f *fakeCache) Write(addr uint64) (bool, int) {
	f.writes = append(f.writes, addr)
	return f.nextAccept(), 0
}

func (f *fakeCache) nextAccept() bool {
	if len(f.acceptResults) == 0 {
		return true
	}

	next := f.acceptResults[0]
	f.acceptResults = f.acceptResults[1:]

	return next
}

func writeTraceFile(contents string) string {
	dir, err := os.MkdirTemp("", "coretrace")
	Expect(err).NotTo(HaveOccurred())

	path := filepath.Join(dir, "proc.trace")
	Expect(os.WriteFile(path, []byte(contents), 0o644)).To(Succeed())

	return path
}

var _ = Describe("Processor", func() {
	var (
		reader *tracereader.Reader
		cache  *fakeCache
		proc   *coretrace.Processor
	)

	AfterEach(func() {
		if reader != nil {
			reader.Close()
		}
	})

	Context("when every access is accepted immediately", func() {
		BeforeEach(func() {
			path := writeTraceFile("R 10\nW 20\n")
			var err error
			reader, err = tracereader.Open(path)
			Expect(err).NotTo(HaveOccurred())

			cache = &fakeCache{}
			proc = coretrace.MakeBuilder().WithID(0).WithReader(reader).WithCache(cache).Build()
		})

		It("retires one instruction per tick and finishes at end of trace", func() {
			proc.Tick()
			Expect(proc.Stats.TotalInstructions).To(Equal(uint64(1)))
			Expect(proc.Stats.ReadInstructions).To(Equal(uint64(1)))
			Expect(proc.Finished()).To(BeFalse())

			proc.Tick()
			Expect(proc.Stats.TotalInstructions).To(Equal(uint64(2)))
			Expect(proc.Stats.WriteInstructions).To(Equal(uint64(1)))

			proc.Tick()
			Expect(proc.Finished()).To(BeTrue())
			Expect(proc.Stats.TotalCycles).To(Equal(uint64(2)))
		})
	})

	Context("when the trace is empty", func() {
		BeforeEach(func() {
			path := writeTraceFile("")
			var err error
			reader, err = tracereader.Open(path)
			Expect(err).NotTo(HaveOccurred())

			cache = &fakeCache{}
			proc = coretrace.MakeBuilder().WithID(0).WithReader(reader).WithCache(cache).Build()
		})

		It("finishes immediately and charges zero cycles", func() {
			proc.Tick()

			Expect(proc.Finished()).To(BeTrue())
			Expect(proc.Stats.TotalCycles).To(Equal(uint64(0)))
			Expect(proc.Stats.TotalInstructions).To(Equal(uint64(0)))
		})
	})

	Context("when the bus rejects the first attempt", func() {
		BeforeEach(func() {
			path := writeTraceFile("R 10\n")
			var err error
			reader, err = tracereader.Open(path)
			Expect(err).NotTo(HaveOccurred())

			cache = &fakeCache{acceptResults: []bool{false, true}}
			proc = coretrace.MakeBuilder().WithID(0).WithReader(reader).WithCache(cache).Build()
		})

		It("retries the same reference and charges an idle cycle for the rejection", func() {
			proc.Tick()
			Expect(proc.Stats.IdleCycles).To(Equal(uint64(1)))
			Expect(proc.Stats.TotalInstructions).To(Equal(uint64(0)))
			Expect(cache.reads).To(Equal([]uint64{10}))

			proc.Tick()
			Expect(proc.Stats.TotalInstructions).To(Equal(uint64(1)))
			Expect(cache.reads).To(Equal([]uint64{10, 10}))
		})
	})

	Context("when the cache is resolving a miss", func() {
		BeforeEach(func() {
			path := writeTraceFile("R 10\n")
			var err error
			reader, err = tracereader.Open(path)
			Expect(err).NotTo(HaveOccurred())

			cache = &fakeCache{blocking: true, blockedTicks: 3}
			proc = coretrace.MakeBuilder().WithID(0).WithReader(reader).WithCache(cache).Build()
		})

		It("charges one idle cycle per tick without reissuing the reference", func() {
			proc.Tick()
			proc.Tick()
			proc.Tick()

			Expect(proc.Stats.IdleCycles).To(Equal(uint64(3)))
			Expect(cache.tickCalls).To(Equal(3))
			Expect(cache.reads).To(BeEmpty())

			proc.Tick()
			Expect(proc.Stats.TotalInstructions).To(Equal(uint64(1)))
			Expect(cache.reads).To(Equal([]uint64{10}))
		})
	})
})
