// Package config provides configuration loading and management for
// voxelreg. It handles loading configuration from YAML files, provides
// default values, and maps the registration section onto pipeline options.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"voxelreg/pkg/greens"
	"voxelreg/pkg/registration"
	"voxelreg/pkg/spatial"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Field parameterizes the scalar random-field sampler.
	Field struct {
		// Shape is the lattice shape.
		Shape []int `yaml:"shape"`

		// VoxelSize is the per-axis voxel size; empty means 1 everywhere.
		VoxelSize []float64 `yaml:"voxelSize"`

		// Channels is the number of field channels.
		Channels int `yaml:"channels"`

		// Mean, Absolute, Membrane and Bending accept one value or one
		// value per channel.
		Mean     []float64 `yaml:"mean"`
		Absolute []float64 `yaml:"absolute"`
		Membrane []float64 `yaml:"membrane"`
		Bending  []float64 `yaml:"bending"`

		// Batch is the number of fields drawn per run.
		Batch int `yaml:"batch"`

		// Seed seeds the noise source; 0 leaves it auto-seeded.
		Seed uint64 `yaml:"seed"`
	} `yaml:"field"`

	// Grid parameterizes the vector-field (deformation) sampler.
	Grid struct {
		Shape     []int     `yaml:"shape"`
		VoxelSize []float64 `yaml:"voxelSize"`
		Mean      float64   `yaml:"mean"`
		Absolute  float64   `yaml:"absolute"`
		Membrane  float64   `yaml:"membrane"`
		Bending   float64   `yaml:"bending"`

		// Lame holds the elastic pair (volume change, shears).
		Lame []float64 `yaml:"lame"`

		Seed uint64 `yaml:"seed"`
	} `yaml:"grid"`

	// Registration parameterizes the pipeline.
	Registration struct {
		// Downsample is the per-axis factor between the native and the
		// velocity integration lattice.
		Downsample []float64 `yaml:"downsample"`

		// Exp selects and parameterizes the exponentiation strategy.
		Exp struct {
			// Method is "scaling-squaring" or "shooting".
			Method string `yaml:"method"`

			Steps         int    `yaml:"steps"`
			Interpolation int    `yaml:"interpolation"`
			Bound         string `yaml:"bound"`

			// Shooting-only regularization weights.
			Absolute float64   `yaml:"absolute"`
			Membrane float64   `yaml:"membrane"`
			Bending  float64   `yaml:"bending"`
			Lame     []float64 `yaml:"lame"`
			Factor   float64   `yaml:"factor"`
		} `yaml:"exp"`

		// Pull parameterizes the image warp.
		Pull struct {
			Interpolation int    `yaml:"interpolation"`
			Bound         string `yaml:"bound"`
			Extrapolate   bool   `yaml:"extrapolate"`
		} `yaml:"pull"`
	} `yaml:"registration"`

	// Output parameters.
	Output struct {
		// Dir is where PNG slices and reports are written.
		Dir string `yaml:"dir"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Field.Shape = []int{64, 64}
	cfg.Field.Channels = 1
	cfg.Field.Mean = []float64{0}
	cfg.Field.Absolute = []float64{1e-3}
	cfg.Field.Membrane = []float64{0.1}
	cfg.Field.Bending = []float64{0}
	cfg.Field.Batch = 8

	cfg.Grid.Shape = []int{64, 64}
	cfg.Grid.Absolute = 1e-4
	cfg.Grid.Membrane = 1e-3
	cfg.Grid.Bending = 0.2
	cfg.Grid.Lame = []float64{0.05, 0.2}

	cfg.Registration.Downsample = []float64{2}
	cfg.Registration.Exp.Method = "scaling-squaring"
	cfg.Registration.Exp.Steps = 8
	cfg.Registration.Exp.Interpolation = 1
	cfg.Registration.Exp.Bound = "dft"
	cfg.Registration.Exp.Absolute = 1e-4
	cfg.Registration.Exp.Membrane = 1e-3
	cfg.Registration.Exp.Bending = 0.2
	cfg.Registration.Exp.Lame = []float64{0.05, 0.2}
	cfg.Registration.Exp.Factor = 1
	cfg.Registration.Pull.Interpolation = 1
	cfg.Registration.Pull.Bound = "dct2"
	cfg.Registration.Pull.Extrapolate = false

	cfg.Output.Dir = "output"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// lameOf expands an optional YAML pair into the penalty representation.
func lameOf(v []float64) ([2]float64, error) {
	switch len(v) {
	case 0:
		return [2]float64{}, nil
	case 1:
		return [2]float64{v[0], v[0]}, nil
	case 2:
		return [2]float64{v[0], v[1]}, nil
	}
	return [2]float64{}, fmt.Errorf("lame expects at most two values, got %v", v)
}

// GridPenalty assembles the penalty weights of the grid sampler section.
func (c *Config) GridPenalty() (greens.Penalty, error) {
	lame, err := lameOf(c.Grid.Lame)
	if err != nil {
		return greens.Penalty{}, err
	}
	return greens.Penalty{
		Absolute: c.Grid.Absolute,
		Membrane: c.Grid.Membrane,
		Bending:  c.Grid.Bending,
		Lame:     lame,
	}, nil
}

// PipelineOptions maps the registration section onto pipeline options for
// the given dimensionality. The exponentiation method selects one of two
// variants, each carrying only the fields it needs; for shooting, the
// regularization factor absorbs the downsampling volume as the integration
// happens on the coarser lattice.
func (c *Config) PipelineOptions(dim int) (registration.Options, error) {
	var opts registration.Options
	opts.Dim = dim
	opts.Downsample = c.Registration.Downsample

	interp, err := spatial.ParseInterp(c.Registration.Exp.Interpolation)
	if err != nil {
		return opts, err
	}
	bound, err := spatial.ParseBound(c.Registration.Exp.Bound)
	if err != nil {
		return opts, err
	}
	opts.ResizeInterp = interp
	opts.ResizeBound = bound

	switch c.Registration.Exp.Method {
	case "", "scaling-squaring":
		opts.Exp = spatial.ScalingSquaring{
			Steps:  c.Registration.Exp.Steps,
			Interp: interp,
			Bound:  bound,
		}
	case "shooting":
		lame, err := lameOf(c.Registration.Exp.Lame)
		if err != nil {
			return opts, err
		}
		factor := c.Registration.Exp.Factor
		if factor <= 0 {
			factor = 1
		}
		down := c.Registration.Downsample
		if len(down) == 0 {
			down = []float64{2}
		}
		for i := 0; i < dim; i++ {
			f := down[0]
			if len(down) > 1 {
				f = down[i%len(down)]
			}
			factor *= f
		}
		opts.Exp = &spatial.GeodesicShooting{
			Penalty: greens.Penalty{
				Absolute: c.Registration.Exp.Absolute,
				Membrane: c.Registration.Exp.Membrane,
				Bending:  c.Registration.Exp.Bending,
				Lame:     lame,
			},
			Steps:  c.Registration.Exp.Steps,
			Factor: factor,
		}
	default:
		return opts, fmt.Errorf("unknown exponentiation method %q", c.Registration.Exp.Method)
	}

	pullInterp, err := spatial.ParseInterp(c.Registration.Pull.Interpolation)
	if err != nil {
		return opts, err
	}
	pullBound, err := spatial.ParseBound(c.Registration.Pull.Bound)
	if err != nil {
		return opts, err
	}
	opts.Pull = spatial.PullOptions{
		Interp:      pullInterp,
		Bound:       pullBound,
		Extrapolate: c.Registration.Pull.Extrapolate,
	}
	return opts, nil
}
