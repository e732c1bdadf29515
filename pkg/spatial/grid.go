package spatial

import (
	"fmt"

	"voxelreg/pkg/tensor"
)

// GridKind distinguishes how a vector field over the lattice is to be
// interpreted when resizing: as per-voxel coordinate offsets or as absolute
// target coordinates.
type GridKind int

const (
	KindDisplacement GridKind = iota
	KindGrid
)

// IdentityGrid returns a (*shape, dim) grid whose value at every voxel is
// the voxel's own coordinate.
func IdentityGrid(shape []int) *tensor.Dense {
	dim := len(shape)
	outShape := append(append([]int(nil), shape...), dim)
	out := tensor.New(outShape...)
	data := out.Data()
	idx := make([]int, dim)
	n := tensor.Prod(shape)
	for v := 0; v < n; v++ {
		for i := 0; i < dim; i++ {
			data[v*dim+i] = float64(idx[i])
		}
		for i := dim - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out
}

// addIdentity converts a (batch, *shape, dim) displacement into a grid of
// absolute coordinates, in place, and returns its argument.
func addIdentity(disp *tensor.Dense) *tensor.Dense {
	shape := disp.Shape()
	spatial := shape[1 : len(shape)-1]
	id := IdentityGrid(spatial)
	n := id.Len()
	for b := 0; b < shape[0]; b++ {
		dst := disp.Data()[b*n : (b+1)*n]
		for i, v := range id.Data() {
			dst[i] += v
		}
	}
	return disp
}

// Resize interpolates a (batch, *in, dim) vector field onto a new spatial
// shape. Displacement values are rescaled by the per-axis zoom so they stay
// expressed in target-lattice voxels; absolute grids are converted through
// displacement form so the identity part tracks the resolution change. A
// resize onto the same shape is an exact no-op copy.
func Resize(field *tensor.Dense, outSpatial []int, kind GridKind, interp Interp, bound Bound) (*tensor.Dense, error) {
	shape := field.Shape()
	if len(shape) < 3 || shape[len(shape)-1] != len(shape)-2 {
		return nil, fmt.Errorf("spatial: resize expects a (batch, spatial..., dim) field, got shape %v", shape)
	}
	dim := shape[len(shape)-1]
	inSpatial := shape[1 : len(shape)-1]
	if len(outSpatial) != dim {
		return nil, fmt.Errorf("spatial: resize target %v does not match dimensionality %d", outSpatial, dim)
	}

	src := field
	if kind == KindGrid {
		src = field.Clone()
		subIdentity(src)
	}
	if tensor.SameShape(inSpatial, outSpatial) {
		out := src.Clone()
		if kind == KindGrid {
			addIdentity(out)
		}
		return out, nil
	}

	batch := shape[0]
	scale := make([]float64, dim)
	for i := range scale {
		scale[i] = float64(outSpatial[i]) / float64(inSpatial[i])
	}
	outShape := append(append([]int{batch}, outSpatial...), dim)
	out := tensor.New(outShape...)
	inN := tensor.Prod(inSpatial)
	outN := tensor.Prod(outSpatial)

	corners := newCornerIter(inSpatial)
	x := make([]float64, dim)
	val := make([]float64, dim)
	outIdx := make([]int, dim)
	for b := 0; b < batch; b++ {
		sdata := src.Data()[b*inN*dim : (b+1)*inN*dim]
		ddata := out.Data()[b*outN*dim : (b+1)*outN*dim]
		for i := range outIdx {
			outIdx[i] = 0
		}
		for v := 0; v < outN; v++ {
			// Center-aligned coordinate mapping between the two lattices.
			for i := 0; i < dim; i++ {
				x[i] = (float64(outIdx[i])+0.5)/scale[i] - 0.5
			}
			sampleVector(sdata, corners, dim, x, interp, bound, val)
			for i := 0; i < dim; i++ {
				ddata[v*dim+i] = val[i] * scale[i]
			}
			for i := dim - 1; i >= 0; i-- {
				outIdx[i]++
				if outIdx[i] < outSpatial[i] {
					break
				}
				outIdx[i] = 0
			}
		}
	}
	if kind == KindGrid {
		addIdentity(out)
	}
	return out, nil
}

// subIdentity converts a grid of absolute coordinates into displacement
// form, in place.
func subIdentity(grid *tensor.Dense) {
	shape := grid.Shape()
	spatial := shape[1 : len(shape)-1]
	id := IdentityGrid(spatial)
	n := id.Len()
	for b := 0; b < shape[0]; b++ {
		dst := grid.Data()[b*n : (b+1)*n]
		for i, v := range id.Data() {
			dst[i] -= v
		}
	}
}
