// Command mesisim runs a trace-driven multi-core MESI cache coherence
// simulation and prints a statistics report.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/archsim/mesisim/report"
	"github.com/archsim/mesisim/simulation"
	"github.com/archsim/mesisim/tracereader"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("mesisim", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	tracePrefix := flags.StringP("trace", "t", "", "trace file prefix; cores read <prefix>_proc<i>.trace")
	setIndexBits := flags.IntP("set-bits", "s", 6, "number of set-index bits per cache")
	associativity := flags.IntP("associativity", "E", 2, "cache ways per set")
	blockOffsetBits := flags.IntP("block-bits", "b", 5, "number of block-offset bits per cache")
	cores := flags.IntP("cores", "n", 4, "number of cores, ignored when --manifest is set")
	manifestPath := flags.StringP("manifest", "m", "", "YAML trace-set manifest, overrides --trace/--cores naming")
	outputPath := flags.StringP("output", "o", "", "write the report to this file instead of stdout")
	verbose := flags.BoolP("verbose", "v", false, "include a per-core cache line state dump")
	help := flags.BoolP("help", "h", false, "show usage")

	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *help {
		fmt.Fprintf(stdout, "Usage: mesisim -t <prefix> [options]\n\n")
		flags.PrintDefaults()

		return 0
	}

	paths, err := resolveTraces(*tracePrefix, *cores, *manifestPath)
	if err != nil {
		log.Print(err)
		return 1
	}

	label := *tracePrefix
	if *manifestPath != "" {
		label = *manifestPath
	}

	sim, err := simulation.MakeBuilder().
		WithTracePaths(paths).
		WithTracePrefix(label).
		WithSetIndexBits(*setIndexBits).
		WithAssociativity(*associativity).
		WithBlockOffsetBits(*blockOffsetBits).
		Build()
	if err != nil {
		log.Print(err)
		return 1
	}

	sim.Run()

	out := stdout

	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			log.Print(err)
			return 1
		}
		defer f.Close()

		out = f
	}

	if err := report.Write(out, sim, report.Options{Verbose: *verbose}); err != nil {
		log.Print(err)
		return 1
	}

	return 0
}

func resolveTraces(prefix string, cores int, manifestPath string) ([]string, error) {
	var manifest *tracereader.Manifest

	if manifestPath != "" {
		m, err := tracereader.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}

		manifest = m
		cores = len(m.Traces)
	}

	if manifest == nil && prefix == "" {
		return nil, fmt.Errorf("mesisim: -t/--trace or -m/--manifest is required")
	}

	return tracereader.ResolvePaths(prefix, cores, manifest)
}
