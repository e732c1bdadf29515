package greens

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"voxelreg/pkg/distribution"
	"voxelreg/pkg/tensor"
)

// FieldConfig configures a scalar-channel field sampler. Mean, Absolute,
// Membrane and Bending accept a single value (broadcast over channels) or
// one value per channel.
type FieldConfig struct {
	Shape     []int
	VoxelSize []float64 // defaults to 1 per axis
	Channels  int       // defaults to 1

	Mean     []float64 // defaults to 0
	Absolute []float64 // defaults to 1e-3
	Membrane []float64 // defaults to 0.1
	Bending  []float64 // defaults to 0

	// DisableCache turns off kernel memoization; by default the most
	// recent kernel is kept keyed on (shape, voxel size, channels).
	DisableCache bool

	// Source supplies randomness; a fast unseeded source is used when nil.
	Source rand.Source
}

// FieldSampler draws smooth scalar random fields whose covariance is the
// Green's function of the configured regularization operator. Penalty
// weights are fixed per instance, which is what keeps the kernel cache key
// (shape, voxel size, channels) sufficient.
type FieldSampler struct {
	shape    []int
	voxel    []float64
	channels int
	mean     []float64
	absolute []float64
	membrane []float64
	bending  []float64

	cache  kernelCache
	normal distuv.Normal
}

// NewFieldSampler validates the configuration and builds a sampler. The
// kernel itself is built lazily on the first Sample call.
func NewFieldSampler(cfg FieldConfig) (*FieldSampler, error) {
	shape, voxel, err := checkLattice(cfg.Shape, cfg.VoxelSize)
	if err != nil {
		return nil, err
	}
	channels := cfg.Channels
	if channels == 0 {
		channels = 1
	}
	if channels < 0 {
		return nil, fmt.Errorf("greens: channel count must be positive, got %d", channels)
	}
	s := &FieldSampler{
		shape:    shape,
		voxel:    voxel,
		channels: channels,
	}
	if s.mean, err = makeVector(cfg.Mean, channels, 0); err != nil {
		return nil, err
	}
	if s.absolute, err = makeVector(cfg.Absolute, channels, 1e-3); err != nil {
		return nil, err
	}
	if s.membrane, err = makeVector(cfg.Membrane, channels, 0.1); err != nil {
		return nil, err
	}
	if s.bending, err = makeVector(cfg.Bending, channels, 0); err != nil {
		return nil, err
	}
	for c := 0; c < channels; c++ {
		p := Penalty{Absolute: s.absolute[c], Membrane: s.membrane[c], Bending: s.bending[c]}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	s.cache.enabled = !cfg.DisableCache
	s.normal = distuv.Normal{Mu: 0, Sigma: 1, Src: orFastSource(cfg.Source)}
	return s, nil
}

// Invalidate drops the cached kernel; the next Sample rebuilds it. Needed
// only when the caller mutates the voxel-size slice in place.
func (s *FieldSampler) Invalidate() { s.cache.invalidate() }

// Sample draws batch independent fields on the configured lattice,
// returning a (batch, channels, *shape) tensor.
func (s *FieldSampler) Sample(batch int) (*tensor.Dense, error) {
	return s.SampleOn(batch, nil, nil)
}

// SampleOn draws fields on an overridden lattice: a nil shape or voxel
// size falls back to the configured one. Only lattice geometry can change
// per call; penalty weights are structural, which keeps the kernel cache
// key (shape, voxel size, channels) complete.
func (s *FieldSampler) SampleOn(batch int, shape []int, voxel []float64) (*tensor.Dense, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("greens: batch size must be positive, got %d", batch)
	}
	useShape, useVoxel, err := overrideLattice(s.shape, s.voxel, shape, voxel)
	if err != nil {
		return nil, err
	}
	nvox := tensor.Prod(useShape)
	kernel := s.kernel(useShape, useVoxel, nvox)

	outShape := append([]int{batch, s.channels}, useShape...)
	out := tensor.New(outShape...)
	data := out.Data()

	axes := spatialAxes(len(useShape))
	buf := make([]complex128, nvox)
	// Unitary-DFT variance correction: with this factor the per-voxel
	// variance equals the frequency-mean of the Green's values.
	scale := 1 / math.Sqrt(float64(nvox))

	for b := 0; b < batch; b++ {
		for c := 0; c < s.channels; c++ {
			root := kernel[c*nvox : (c+1)*nvox]
			for i := 0; i < nvox; i++ {
				f := root[i] * scale
				buf[i] = complex(s.normal.Rand()*f, s.normal.Rand()*f)
			}
			ifftN(buf, useShape, axes)
			dst := data[(b*s.channels+c)*nvox : (b*s.channels+c+1)*nvox]
			for i := 0; i < nvox; i++ {
				dst[i] = real(buf[i])*float64(nvox) + s.mean[c]
			}
		}
	}
	return out, nil
}

// kernel returns the square-rooted Green's kernel, (channels, nvox) flat,
// from the cache or by building it.
func (s *FieldSampler) kernel(shape []int, voxel []float64, nvox int) []float64 {
	if k, ok := s.cache.lookup(shape, voxel, s.channels); ok {
		return k
	}
	k := make([]float64, s.channels*nvox)
	for c := 0; c < s.channels; c++ {
		_, grn := scalarSymbols(shape, voxel, s.absolute[c], s.membrane[c], s.bending[c])
		sqrtScalarInPlace(grn)
		copy(k[c*nvox:(c+1)*nvox], grn)
	}
	s.cache.store(shape, voxel, s.channels, k)
	return k
}

// GridConfig configures a vector-field (deformation) sampler.
type GridConfig struct {
	Shape     []int
	VoxelSize []float64
	Mean      float64
	Penalty   Penalty

	DisableCache bool
	Source       rand.Source
}

// GridSampler draws random stationary vector fields over the lattice, one
// d-vector per site. With non-zero Lame weights the kernel is matrix-valued
// and couples vector components through the elastic terms.
type GridSampler struct {
	shape   []int
	voxel   []float64
	mean    float64
	penalty Penalty

	cache  kernelCache
	normal distuv.Normal
}

// NewGridSampler validates the configuration and builds a sampler.
func NewGridSampler(cfg GridConfig) (*GridSampler, error) {
	shape, voxel, err := checkLattice(cfg.Shape, cfg.VoxelSize)
	if err != nil {
		return nil, err
	}
	if err := cfg.Penalty.Validate(); err != nil {
		return nil, err
	}
	s := &GridSampler{
		shape:   shape,
		voxel:   voxel,
		mean:    cfg.Mean,
		penalty: cfg.Penalty,
	}
	s.cache.enabled = !cfg.DisableCache
	s.normal = distuv.Normal{Mu: 0, Sigma: 1, Src: orFastSource(cfg.Source)}
	return s, nil
}

// Invalidate drops the cached kernel.
func (s *GridSampler) Invalidate() { s.cache.invalidate() }

// Sample draws batch independent vector fields on the configured lattice,
// returning a (batch, *shape, dim) tensor.
func (s *GridSampler) Sample(batch int) (*tensor.Dense, error) {
	return s.SampleOn(batch, nil, nil)
}

// SampleOn draws vector fields on an overridden lattice; nil falls back to
// the configured shape or voxel size.
func (s *GridSampler) SampleOn(batch int, shape []int, voxel []float64) (*tensor.Dense, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("greens: batch size must be positive, got %d", batch)
	}
	useShape, useVoxel, err := overrideLattice(s.shape, s.voxel, shape, voxel)
	if err != nil {
		return nil, err
	}
	dim := len(useShape)
	nvox := tensor.Prod(useShape)
	elastic := s.penalty.HasElastic()
	kernel, err := s.kernel(useShape, useVoxel, nvox, dim, elastic)
	if err != nil {
		return nil, err
	}

	outShape := append(append([]int{batch}, useShape...), dim)
	out := tensor.New(outShape...)
	data := out.Data()

	bufShape := append(append([]int(nil), useShape...), dim)
	axes := spatialAxes(dim)
	buf := make([]complex128, nvox*dim)
	re := make([]float64, dim)
	im := make([]float64, dim)
	scale := 1 / math.Sqrt(float64(nvox))

	for b := 0; b < batch; b++ {
		for v := 0; v < nvox; v++ {
			for i := 0; i < dim; i++ {
				re[i] = s.normal.Rand()
				im[i] = s.normal.Rand()
			}
			if elastic {
				// Per-frequency matrix-vector product with the root factor.
				root := kernel[v*dim*dim : (v+1)*dim*dim]
				for i := 0; i < dim; i++ {
					var fr, fi float64
					for j := 0; j < dim; j++ {
						fr += root[i*dim+j] * re[j]
						fi += root[i*dim+j] * im[j]
					}
					buf[v*dim+i] = complex(fr*scale, fi*scale)
				}
			} else {
				// Scalar kernel; per-component voxel-size variance correction.
				for i := 0; i < dim; i++ {
					f := kernel[v] * scale / math.Sqrt(useVoxel[i])
					buf[v*dim+i] = complex(re[i]*f, im[i]*f)
				}
			}
		}
		ifftN(buf, bufShape, axes)
		dst := data[b*nvox*dim : (b+1)*nvox*dim]
		for i := range dst {
			dst[i] = real(buf[i])*float64(nvox) + s.mean
		}
	}
	return out, nil
}

// kernel returns the square-rooted Green's kernel: (nvox, d, d) flat when
// elastic, (nvox) flat otherwise. The cache key uses the vector dimension
// as its channel count.
func (s *GridSampler) kernel(shape []int, voxel []float64, nvox, dim int, elastic bool) ([]float64, error) {
	if k, ok := s.cache.lookup(shape, voxel, dim); ok {
		return k, nil
	}
	var k []float64
	if elastic {
		_, k = gridSymbols(shape, voxel, s.penalty)
		if err := sqrtMatrixInPlace(k, dim); err != nil {
			return nil, err
		}
	} else {
		_, k = scalarSymbols(shape, voxel, s.penalty.Absolute, s.penalty.Membrane, s.penalty.Bending)
		sqrtScalarInPlace(k)
	}
	s.cache.store(shape, voxel, dim, k)
	return k, nil
}

// overrideLattice merges per-call lattice overrides with the configured
// defaults, validating whatever changed.
func overrideLattice(defShape []int, defVoxel []float64, shape []int, voxel []float64) ([]int, []float64, error) {
	if shape == nil && voxel == nil {
		return defShape, defVoxel, nil
	}
	if shape == nil {
		shape = defShape
	}
	if voxel == nil && len(defVoxel) == len(shape) {
		voxel = defVoxel
	}
	return checkLattice(shape, voxel)
}

// checkLattice validates a lattice shape and expands the voxel size.
func checkLattice(shape []int, voxel []float64) ([]int, []float64, error) {
	if len(shape) == 0 {
		return nil, nil, fmt.Errorf("greens: lattice shape must not be empty")
	}
	for _, s := range shape {
		if s <= 0 {
			return nil, nil, fmt.Errorf("greens: lattice extents must be positive, got %v", shape)
		}
	}
	vox, err := makeVector(voxel, len(shape), 1)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range vox {
		if v <= 0 {
			return nil, nil, fmt.Errorf("greens: voxel sizes must be positive, got %v", vox)
		}
	}
	return append([]int(nil), shape...), vox, nil
}

func orFastSource(src rand.Source) rand.Source {
	if src != nil {
		return src
	}
	return distribution.NewFastSource(0)
}
