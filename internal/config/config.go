// Package config loads the colorhist command's YAML configuration.
//
// Example file:
//
//	clusters: 9
//	epsilon: 0.001
//	max_iterations: 200
//	seeding: stride
//	stride: 10
//	empty_cluster: keep
//	block_bits: 16
//	top: 20
//	output_dir: ./out
//	write_iterations: true
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/TrevorS/colorhist"
)

// Config is the on-disk configuration of the colorhist command.
type Config struct {
	// Clusters is the k in k-means.
	Clusters int `yaml:"clusters"`
	// Epsilon is the convergence threshold on the summed squared center shift.
	Epsilon float64 `yaml:"epsilon"`
	// MaxIterations caps clustering; 0 means no cap.
	MaxIterations int `yaml:"max_iterations"`
	// Seeding is one of stride, heaviest, random, farthest.
	Seeding string `yaml:"seeding"`
	Stride  int    `yaml:"stride"`
	Seed    int64  `yaml:"seed"`
	// EmptyCluster is one of keep, reseed.
	EmptyCluster string `yaml:"empty_cluster"`
	// BlockBits sets the histogram block size to 2^BlockBits nodes.
	BlockBits uint `yaml:"block_bits"`

	// Top is the number of heaviest colors reported by hist.
	Top int `yaml:"top"`
	// OutputDir receives projection and recolored images. Empty disables
	// image output.
	OutputDir string `yaml:"output_dir"`
	// WriteIterations writes clustiterN/histfN images after every iteration
	// instead of only the final one.
	WriteIterations bool `yaml:"write_iterations"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	d := colorhist.DefaultConfig()
	return &Config{
		Clusters:     d.K,
		Epsilon:      d.Epsilon,
		Seeding:      string(d.Seeding),
		Stride:       d.Stride,
		EmptyCluster: string(d.EmptyCluster),
		BlockBits:    colorhist.DefaultBlockBits,
		Top:          20,
	}
}

// Load reads a YAML file on top of Default, so omitted fields keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks fields that can be checked without a histogram. The cluster
// count upper bound depends on the number of distinct colors and is checked
// by colorhist.Cluster.
func (c *Config) Validate() error {
	if c.Clusters < 1 {
		return errors.Errorf("clusters must be >= 1, got %d", c.Clusters)
	}
	if !(c.Epsilon > 0) {
		return errors.Errorf("epsilon must be > 0, got %g", c.Epsilon)
	}
	if c.MaxIterations < 0 {
		return errors.Errorf("max_iterations must be >= 0, got %d", c.MaxIterations)
	}
	if c.Stride < 1 {
		return errors.Errorf("stride must be >= 1, got %d", c.Stride)
	}
	switch colorhist.Seeding(c.Seeding) {
	case colorhist.SeedingStride, colorhist.SeedingHeaviest, colorhist.SeedingRandom, colorhist.SeedingFarthest:
	default:
		return errors.Errorf("unknown seeding %q", c.Seeding)
	}
	switch colorhist.EmptyClusterPolicy(c.EmptyCluster) {
	case colorhist.EmptyKeep, colorhist.EmptyReseed:
	default:
		return errors.Errorf("unknown empty_cluster policy %q", c.EmptyCluster)
	}
	if c.BlockBits < 1 || c.BlockBits > 24 {
		return errors.Errorf("block_bits must be in [1, 24], got %d", c.BlockBits)
	}
	if c.Top < 0 {
		return errors.Errorf("top must be >= 0, got %d", c.Top)
	}
	return nil
}

// Clustering converts the file settings into a colorhist.Config. The metric
// and logger keep their library defaults.
func (c *Config) Clustering() colorhist.Config {
	cfg := colorhist.DefaultConfig()
	cfg.K = c.Clusters
	cfg.Epsilon = c.Epsilon
	cfg.MaxIterations = c.MaxIterations
	cfg.Seeding = colorhist.Seeding(c.Seeding)
	cfg.Stride = c.Stride
	cfg.Seed = c.Seed
	cfg.EmptyCluster = colorhist.EmptyClusterPolicy(c.EmptyCluster)
	return cfg
}

// HistogramOptions returns the construction options for the histogram.
func (c *Config) HistogramOptions() []colorhist.Option {
	return []colorhist.Option{colorhist.WithBlockBits(c.BlockBits)}
}
