package simulation_test

import (
	"os"
	"path/filepath"

	"github.com/archsim/mesisim/simulation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeTrace(dir, name, contents string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(contents), 0o644)).To(Succeed())

	return path
}

var _ = Describe("Simulator", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("runs two cores to completion and retires every instruction", func() {
		p0 := writeTrace(dir, "p0.trace", "R 0x0\nW 0x0\nR 0x1000\n")
		p1 := writeTrace(dir, "p1.trace", "R 0x0\nW 0x2000\n")

		sim, err := simulation.MakeBuilder().
			WithTracePaths([]string{p0, p1}).
			WithSetIndexBits(2).
			WithAssociativity(2).
			WithBlockOffsetBits(5).
			Build()
		Expect(err).NotTo(HaveOccurred())

		sim.Run()

		Expect(sim.Deadlocked()).To(BeFalse())
		Expect(sim.Processors()[0].Finished()).To(BeTrue())
		Expect(sim.Processors()[1].Finished()).To(BeTrue())
		Expect(sim.Processors()[0].Stats.TotalInstructions).To(Equal(uint64(3)))
		Expect(sim.Processors()[1].Stats.TotalInstructions).To(Equal(uint64(2)))
		Expect(sim.Cycles()).To(BeNumerically(">", 0))
	})

	It("assigns a unique run id", func() {
		p0 := writeTrace(dir, "p0.trace", "R 0x0\n")

		simA, err := simulation.MakeBuilder().WithTracePaths([]string{p0}).Build()
		Expect(err).NotTo(HaveOccurred())

		simB, err := simulation.MakeBuilder().WithTracePaths([]string{p0}).Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(simA.ID()).NotTo(Equal(simB.ID()))
	})

	It("marks a core with a missing trace file complete at cycle 0 instead of aborting", func() {
		sim, err := simulation.MakeBuilder().
			WithTracePaths([]string{filepath.Join(dir, "missing.trace")}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(sim.Processors()[0].Finished()).To(BeTrue())

		sim.Run()

		Expect(sim.Deadlocked()).To(BeFalse())
		Expect(sim.Processors()[0].Stats.TotalInstructions).To(Equal(uint64(0)))
		Expect(sim.Cycles()).To(Equal(uint64(0)))
	})

	It("errors out when no trace paths are given", func() {
		_, err := simulation.MakeBuilder().Build()
		Expect(err).To(HaveOccurred())
	})

	It("charges zero cycles when every core's trace is empty", func() {
		p0 := writeTrace(dir, "p0.trace", "")
		p1 := writeTrace(dir, "p1.trace", "")

		sim, err := simulation.MakeBuilder().
			WithTracePaths([]string{p0, p1}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		sim.Run()

		Expect(sim.Processors()[0].Finished()).To(BeTrue())
		Expect(sim.Processors()[1].Finished()).To(BeTrue())
		Expect(sim.Processors()[0].Stats.TotalInstructions).To(Equal(uint64(0)))
		Expect(sim.Processors()[1].Stats.TotalInstructions).To(Equal(uint64(0)))
		Expect(sim.Cycles()).To(Equal(uint64(0)))
	})
})
