// Package augment builds randomized field generators for synthetic data
// augmentation: smooth random fields whose own hyper-parameters are
// re-drawn per batch item, and multiplicative (bias) fields obtained by
// exponentiating a sampled field.
package augment

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"voxelreg/pkg/distribution"
	"voxelreg/pkg/greens"
	"voxelreg/pkg/tensor"
)

// Generator produces a (batch, channels, *shape) tensor per call. It is
// satisfied by greens.FieldSampler and by the generators in this package.
type Generator interface {
	Sample(batch int) (*tensor.Dense, error)
}

// Hyper describes how one field parameter is randomized: a distribution
// kind plus its expected value and scale. A zero-valued Hyper (Dirac kind,
// scale 0) always yields Exp.
type Hyper struct {
	Dist  distribution.Kind
	Exp   float64
	Scale float64
}

// FieldParams is one concrete draw of the randomized parameters, handed to
// the generator factory.
type FieldParams struct {
	Mean     float64
	Absolute float64
	Membrane float64
	Bending  float64
}

// HyperFieldConfig configures a HyperField.
type HyperFieldConfig struct {
	Shape     []int
	VoxelSize []float64
	Channels  int // defaults to 1

	Mean     Hyper
	Absolute Hyper
	Membrane Hyper
	Bending  Hyper

	// Make builds the per-draw field generator. When nil, a Green's
	// function sampler over the configured lattice is used. Passing the
	// generator as a dependency keeps the randomization logic independent
	// of which sampler family produces the field.
	Make func(FieldParams) (Generator, error)

	Source rand.Source
}

// HyperField re-draws the field parameters for every batch item and
// delegates the actual field synthesis to the configured generator.
type HyperField struct {
	shape    []int
	channels int

	mean     distribution.Sampler
	absolute distribution.Sampler
	membrane distribution.Sampler
	bending  distribution.Sampler

	make func(FieldParams) (Generator, error)
}

// NewHyperField validates the configuration and resolves the distribution
// samplers once.
func NewHyperField(cfg HyperFieldConfig) (*HyperField, error) {
	if len(cfg.Shape) == 0 {
		return nil, fmt.Errorf("augment: lattice shape must not be empty")
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	src := cfg.Source
	if src == nil {
		src = distribution.NewFastSource(0)
	}
	h := &HyperField{
		shape:    append([]int(nil), cfg.Shape...),
		channels: channels,
	}
	var err error
	if h.mean, err = newSampler(cfg.Mean, src); err != nil {
		return nil, err
	}
	if h.absolute, err = newSampler(cfg.Absolute, src); err != nil {
		return nil, err
	}
	if h.membrane, err = newSampler(cfg.Membrane, src); err != nil {
		return nil, err
	}
	if h.bending, err = newSampler(cfg.Bending, src); err != nil {
		return nil, err
	}
	h.make = cfg.Make
	if h.make == nil {
		shape := h.shape
		voxel := append([]float64(nil), cfg.VoxelSize...)
		h.make = func(p FieldParams) (Generator, error) {
			return greens.NewFieldSampler(greens.FieldConfig{
				Shape:     shape,
				VoxelSize: voxel,
				Channels:  channels,
				Mean:      []float64{p.Mean},
				Absolute:  []float64{clampNonNeg(p.Absolute)},
				Membrane:  []float64{clampNonNeg(p.Membrane)},
				Bending:   []float64{clampNonNeg(p.Bending)},
				// Parameters change per draw; a cached kernel would never hit.
				DisableCache: true,
				Source:       src,
			})
		}
	}
	return h, nil
}

func newSampler(h Hyper, src rand.Source) (distribution.Sampler, error) {
	return distribution.NewSampler(h.Dist, h.Exp, h.Scale, src)
}

func clampNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Sample implements Generator: each batch item gets its own parameter draw
// and its own single-sample field.
func (h *HyperField) Sample(batch int) (*tensor.Dense, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("augment: batch size must be positive, got %d", batch)
	}
	outShape := append([]int{batch, h.channels}, h.shape...)
	out := tensor.New(outShape...)
	n := h.channels * tensor.Prod(h.shape)
	for b := 0; b < batch; b++ {
		gen, err := h.make(FieldParams{
			Mean:     h.mean.Sample(),
			Absolute: h.absolute.Sample(),
			Membrane: h.membrane.Sample(),
			Bending:  h.bending.Sample(),
		})
		if err != nil {
			return nil, err
		}
		one, err := gen.Sample(1)
		if err != nil {
			return nil, err
		}
		copy(out.Data()[b*n:(b+1)*n], one.Data())
	}
	return out, nil
}

// BiasField exponentiates the fields of an inner generator, producing
// positive multiplicative fields; with Sigmoid set the values are squashed
// into (0, 1) instead. The inner generator's mean acts in log space.
type BiasField struct {
	Gen     Generator
	Sigmoid bool
}

// Sample implements Generator.
func (m *BiasField) Sample(batch int) (*tensor.Dense, error) {
	out, err := m.Gen.Sample(batch)
	if err != nil {
		return nil, err
	}
	data := out.Data()
	if m.Sigmoid {
		for i, v := range data {
			data[i] = 1 / (1 + math.Exp(-v))
		}
	} else {
		for i, v := range data {
			data[i] = math.Exp(v)
		}
	}
	return out, nil
}
