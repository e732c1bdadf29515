package spatial

import (
	"fmt"
	"math"

	"voxelreg/pkg/tensor"
)

// PullOptions controls the resampling primitives.
type PullOptions struct {
	Interp Interp
	Bound  Bound
	// Extrapolate keeps sampling (through the boundary fold) outside the
	// source lattice; when false, samples whose coordinate leaves the
	// field of view are zero.
	Extrapolate bool
}

// Pull resamples an image at a deformation grid. The image is
// (batch, channel, *spatial); the grid is (batch, *outSpatial, dim) holding
// absolute voxel coordinates into the image lattice. The result is
// (batch, channel, *outSpatial).
func Pull(img, grid *tensor.Dense, opts PullOptions) (*tensor.Dense, error) {
	ishape := img.Shape()
	gshape := grid.Shape()
	if len(ishape) < 3 {
		return nil, fmt.Errorf("spatial: pull expects a (batch, channel, spatial...) image, got shape %v", ishape)
	}
	dim := len(ishape) - 2
	if len(gshape) != dim+2 || gshape[len(gshape)-1] != dim {
		return nil, fmt.Errorf("spatial: pull grid shape %v does not match image dimensionality %d", gshape, dim)
	}
	if gshape[0] != ishape[0] {
		return nil, fmt.Errorf("spatial: pull batch sizes differ: image %d, grid %d", ishape[0], gshape[0])
	}
	batch, channel := ishape[0], ishape[1]
	srcShape := ishape[2:]
	outSpatial := gshape[1 : len(gshape)-1]
	srcN := tensor.Prod(srcShape)
	outN := tensor.Prod(outSpatial)

	outShape := append([]int{batch, channel}, outSpatial...)
	out := tensor.New(outShape...)

	x := make([]float64, dim)
	corners := newCornerIter(srcShape)
	for b := 0; b < batch; b++ {
		gdata := grid.Data()[b*outN*dim : (b+1)*outN*dim]
		for v := 0; v < outN; v++ {
			copy(x, gdata[v*dim:(v+1)*dim])
			if !opts.Extrapolate && outOfView(x, srcShape) {
				continue
			}
			for c := 0; c < channel; c++ {
				src := img.Data()[(b*channel+c)*srcN : (b*channel+c+1)*srcN]
				val := samplePlanar(src, corners, x, opts.Interp, opts.Bound)
				out.Data()[(b*channel+c)*outN+v] = val
			}
		}
	}
	return out, nil
}

// outOfView reports whether the coordinate leaves the field of view (the
// half-voxel band around the lattice still counts as inside).
func outOfView(x []float64, shape []int) bool {
	for i, xi := range x {
		if xi < -0.5 || xi > float64(shape[i])-0.5 {
			return true
		}
	}
	return false
}

// cornerIter caches the stride bookkeeping for repeated interpolation over
// one spatial shape.
type cornerIter struct {
	shape   []int
	strides []int
	lo      []int
	frac    []float64
}

func newCornerIter(shape []int) *cornerIter {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return &cornerIter{
		shape:   shape,
		strides: strides,
		lo:      make([]int, len(shape)),
		frac:    make([]float64, len(shape)),
	}
}

// samplePlanar interpolates one scalar lattice at coordinate x.
func samplePlanar(src []float64, it *cornerIter, x []float64, interp Interp, bound Bound) float64 {
	dim := len(it.shape)
	if interp == InterpNearest {
		off := 0
		for i := 0; i < dim; i++ {
			idx, ok := bound.fold(int(math.Round(x[i])), it.shape[i])
			if !ok {
				return 0
			}
			off += idx * it.strides[i]
		}
		return src[off]
	}
	for i := 0; i < dim; i++ {
		f := math.Floor(x[i])
		it.lo[i] = int(f)
		it.frac[i] = x[i] - f
	}
	var acc float64
	for mask := 0; mask < 1<<dim; mask++ {
		w := 1.0
		off := 0
		ok := true
		for i := 0; i < dim; i++ {
			idx := it.lo[i]
			if mask&(1<<i) != 0 {
				idx++
				w *= it.frac[i]
			} else {
				w *= 1 - it.frac[i]
			}
			if w == 0 {
				ok = false
				break
			}
			folded, in := bound.fold(idx, it.shape[i])
			if !in {
				ok = false
				break
			}
			off += folded * it.strides[i]
		}
		if ok {
			acc += w * src[off]
		}
	}
	return acc
}

// sampleVector interpolates a component-interleaved vector lattice
// (shape..., dim) at coordinate x, writing the result into out.
func sampleVector(src []float64, it *cornerIter, dim int, x []float64, interp Interp, bound Bound, out []float64) {
	n := len(it.shape)
	for i := range out {
		out[i] = 0
	}
	if interp == InterpNearest {
		off := 0
		for i := 0; i < n; i++ {
			idx, ok := bound.fold(int(math.Round(x[i])), it.shape[i])
			if !ok {
				return
			}
			off += idx * it.strides[i]
		}
		copy(out, src[off*dim:(off+1)*dim])
		return
	}
	for i := 0; i < n; i++ {
		f := math.Floor(x[i])
		it.lo[i] = int(f)
		it.frac[i] = x[i] - f
	}
	for mask := 0; mask < 1<<n; mask++ {
		w := 1.0
		off := 0
		ok := true
		for i := 0; i < n; i++ {
			idx := it.lo[i]
			if mask&(1<<i) != 0 {
				idx++
				w *= it.frac[i]
			} else {
				w *= 1 - it.frac[i]
			}
			if w == 0 {
				ok = false
				break
			}
			folded, in := bound.fold(idx, it.shape[i])
			if !in {
				ok = false
				break
			}
			off += folded * it.strides[i]
		}
		if ok {
			for c := 0; c < dim; c++ {
				out[c] += w * src[off*dim+c]
			}
		}
	}
}
