package tracereader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is an optional YAML file naming the exact trace file for each
// core, for runs whose traces don't follow the "<prefix>_proc<i>.trace"
// convention. This supplements the CLI's plain -t prefix flag; most runs
// never need one.
type Manifest struct {
	Traces []string `yaml:"traces"`
}

// LoadManifest reads and parses a trace-set manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tracereader: reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tracereader: parsing manifest %s: %w", path, err)
	}

	if len(m.Traces) == 0 {
		return nil, fmt.Errorf("tracereader: manifest %s lists no traces", path)
	}

	return &m, nil
}

// ResolvePaths returns the trace file path for each of numCores cores,
// either from manifest (if non-nil) or by the default
// "<prefix>_proc<i>.trace" naming convention.
func ResolvePaths(prefix string, numCores int, manifest *Manifest) ([]string, error) {
	if manifest != nil {
		if len(manifest.Traces) != numCores {
			return nil, fmt.Errorf("tracereader: manifest lists %d traces, simulation has %d cores",
				len(manifest.Traces), numCores)
		}

		return manifest.Traces, nil
	}

	paths := make([]string, numCores)
	for i := range paths {
		paths[i] = fmt.Sprintf("%s_proc%d.trace", prefix, i)
	}

	return paths, nil
}
