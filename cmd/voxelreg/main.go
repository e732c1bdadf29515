package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"voxelreg/pkg/config"
	"voxelreg/pkg/distribution"
	"voxelreg/pkg/greens"
	"voxelreg/pkg/registration"
	"voxelreg/pkg/tensor"
	"voxelreg/pkg/visualization"
)

func main() {
	configPath := flag.String("config", "voxelreg.yaml", "Path to the YAML configuration file")
	mode := flag.String("mode", "sample", "Operation mode: 'sample' draws random fields, 'deform' warps a test image with a random deformation")
	outDir := flag.String("out", "", "Output directory (overrides the config file)")
	batch := flag.Int("batch", 0, "Batch size (overrides the config file)")
	seed := flag.Uint64("seed", 0, "Random seed (overrides the config file)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to the config path and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *batch > 0 {
		cfg.Field.Batch = *batch
	}
	if *seed != 0 {
		cfg.Field.Seed = *seed
		cfg.Grid.Seed = *seed
	}

	switch *mode {
	case "sample":
		err = runSample(cfg)
	case "deform":
		err = runDeform(cfg)
	default:
		err = fmt.Errorf("unknown mode %q (want 'sample' or 'deform')", *mode)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// runSample draws a batch of scalar random fields, reports their sample
// statistics, and writes slice images for the first few fields.
func runSample(cfg *config.Config) error {
	sampler, err := greens.NewFieldSampler(greens.FieldConfig{
		Shape:     cfg.Field.Shape,
		VoxelSize: cfg.Field.VoxelSize,
		Channels:  cfg.Field.Channels,
		Mean:      cfg.Field.Mean,
		Absolute:  cfg.Field.Absolute,
		Membrane:  cfg.Field.Membrane,
		Bending:   cfg.Field.Bending,
		Source:    distribution.NewFastSource(cfg.Field.Seed),
	})
	if err != nil {
		return err
	}

	if cfg.Output.Verbose {
		fmt.Printf("Sampling %d field(s) of shape %v...\n", cfg.Field.Batch, cfg.Field.Shape)
	}
	fields, err := sampler.Sample(cfg.Field.Batch)
	if err != nil {
		return err
	}

	mean := stat.Mean(fields.Data(), nil)
	variance := stat.Variance(fields.Data(), nil)
	fmt.Printf("Sample mean:     %10.6f\n", mean)
	fmt.Printf("Sample variance: %10.6f (std %.6f)\n", variance, math.Sqrt(variance))

	save := cfg.Field.Batch
	if save > 4 {
		save = 4
	}
	for b := 0; b < save; b++ {
		path := filepath.Join(cfg.Output.Dir, fmt.Sprintf("field_%03d.png", b))
		if err := visualization.SaveSlicePNG(fields, b, 0, path); err != nil {
			return err
		}
		if cfg.Output.Verbose {
			fmt.Printf("Wrote %s\n", path)
		}
	}
	return nil
}

// runDeform samples a random velocity field with the grid sampler, runs it
// through the full registration pipeline against a checkerboard test
// image, and writes before/after slices.
func runDeform(cfg *config.Config) error {
	dim := len(cfg.Grid.Shape)
	penalty, err := cfg.GridPenalty()
	if err != nil {
		return err
	}
	sampler, err := greens.NewGridSampler(greens.GridConfig{
		Shape:     cfg.Grid.Shape,
		VoxelSize: cfg.Grid.VoxelSize,
		Mean:      cfg.Grid.Mean,
		Penalty:   penalty,
		Source:    distribution.NewFastSource(cfg.Grid.Seed),
	})
	if err != nil {
		return err
	}
	if cfg.Output.Verbose {
		fmt.Printf("Sampling a random %d-D deformation velocity on %v...\n", dim, cfg.Grid.Shape)
	}
	velocity, err := sampler.Sample(1)
	if err != nil {
		return err
	}

	opts, err := cfg.PipelineOptions(dim)
	if err != nil {
		return err
	}
	opts.Board = &visualization.PNGBoard{Dir: cfg.Output.Dir}
	pipe, err := registration.New(&staticNet{velocity: velocity}, opts)
	if err != nil {
		return err
	}

	source := checkerboard(cfg.Grid.Shape, 8)
	result, err := pipe.Forward(source, source, nil, nil)
	if err != nil {
		return err
	}

	before := filepath.Join(cfg.Output.Dir, "source.png")
	if err := visualization.SaveSlicePNG(source, 0, 0, before); err != nil {
		return err
	}
	after := filepath.Join(cfg.Output.Dir, "deformed.png")
	if err := visualization.SaveSlicePNG(result.DeformedSource, 0, 0, after); err != nil {
		return err
	}
	if cfg.Output.Verbose {
		fmt.Printf("Wrote %s and %s\n", before, after)
	}
	return nil
}

// staticNet is a feature network that ignores its input and returns a
// pre-sampled velocity field, letting the CLI exercise the pipeline
// without a trained model.
type staticNet struct {
	velocity *tensor.Dense // (batch, *spatial, dim)
}

func (n *staticNet) Velocity(_ *tensor.Dense) (*tensor.Dense, error) {
	return tensor.ChannelFirst(n.velocity), nil
}

// checkerboard builds a (1, 1, *shape) test image with the given tile size.
func checkerboard(shape []int, tile int) *tensor.Dense {
	out := tensor.New(append([]int{1, 1}, shape...)...)
	data := out.Data()
	idx := make([]int, len(shape))
	for v := range data {
		sum := 0
		for _, i := range idx {
			sum += i / tile
		}
		if sum%2 == 0 {
			data[v] = 1
		}
		for i := len(shape) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out
}
