package greens

import (
	"fmt"

	"voxelreg/pkg/tensor"
)

// GridFilter applies the regularization operator, or its Green's function,
// to a vector field in the Fourier domain. Geodesic shooting uses the pair
// to convert between velocity and momentum: momentum = factor*K(velocity)
// and velocity = Greens(momentum)/factor, so the two calls are exact
// inverses of each other away from singular frequency bins.
type GridFilter struct {
	shape  []int
	dim    int
	factor float64

	elastic bool
	op      []float64 // operator symbol: (nvox) or (nvox, d, d) flat
	grn     []float64 // Green's symbol, same layout
}

// NewGridFilter builds the operator and Green's symbols once for the given
// lattice. The factor scales the operator (and inversely the Green's
// function); it accounts for velocity-lattice downsampling.
func NewGridFilter(shape []int, voxel []float64, p Penalty, factor float64) (*GridFilter, error) {
	shape, voxel, err := checkLattice(shape, voxel)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if factor <= 0 {
		return nil, fmt.Errorf("greens: filter factor must be positive, got %g", factor)
	}
	f := &GridFilter{shape: shape, dim: len(shape), factor: factor, elastic: p.HasElastic()}
	if f.elastic {
		f.op, f.grn = gridSymbols(shape, voxel, p)
	} else {
		f.op, f.grn = scalarSymbols(shape, voxel, p.Absolute, p.Membrane, p.Bending)
	}
	return f, nil
}

// Operator computes factor*K(v) for a (batch, *shape, dim) velocity field.
func (f *GridFilter) Operator(v *tensor.Dense) (*tensor.Dense, error) {
	return f.apply(v, f.op, f.factor)
}

// Greens computes K^-1(m)/factor for a (batch, *shape, dim) momentum field.
func (f *GridFilter) Greens(m *tensor.Dense) (*tensor.Dense, error) {
	return f.apply(m, f.grn, 1/f.factor)
}

func (f *GridFilter) apply(field *tensor.Dense, symbol []float64, gain float64) (*tensor.Dense, error) {
	shape := field.Shape()
	want := append(append([]int{shape[0]}, f.shape...), f.dim)
	if !tensor.SameShape(shape, want) {
		return nil, fmt.Errorf("greens: filter expects shape %v, got %v", want, shape)
	}
	batch := shape[0]
	nvox := tensor.Prod(f.shape)
	dim := f.dim

	out := tensor.New(shape...)
	bufShape := append(append([]int(nil), f.shape...), dim)
	axes := spatialAxes(dim)
	buf := make([]complex128, nvox*dim)
	acc := make([]complex128, dim)

	for b := 0; b < batch; b++ {
		src := field.Data()[b*nvox*dim : (b+1)*nvox*dim]
		for i, v := range src {
			buf[i] = complex(v, 0)
		}
		fftN(buf, bufShape, axes)
		for v := 0; v < nvox; v++ {
			if f.elastic {
				blk := symbol[v*dim*dim : (v+1)*dim*dim]
				for i := 0; i < dim; i++ {
					var s complex128
					for j := 0; j < dim; j++ {
						s += complex(blk[i*dim+j], 0) * buf[v*dim+j]
					}
					acc[i] = s
				}
				copy(buf[v*dim:(v+1)*dim], acc)
			} else {
				s := complex(symbol[v], 0)
				for i := 0; i < dim; i++ {
					buf[v*dim+i] *= s
				}
			}
		}
		ifftN(buf, bufShape, axes)
		dst := out.Data()[b*nvox*dim : (b+1)*nvox*dim]
		for i := range dst {
			dst[i] = real(buf[i]) * gain
		}
	}
	return out, nil
}
