package spatial

import (
	"fmt"
	"math"

	"voxelreg/pkg/tensor"
)

// Exponentiator turns a stationary velocity field (batch, *spatial, dim)
// into a deformation: absolute voxel coordinates, or per-voxel offsets when
// displacement is requested.
type Exponentiator interface {
	Exponentiate(vel *tensor.Dense, displacement bool) (*tensor.Dense, error)
}

// ScalingSquaring integrates a stationary velocity field by halving it
// Steps times and squaring the resulting small deformation back up through
// repeated self-composition. Steps == 0 selects the small-deformation
// model: the velocity is used as the displacement directly.
type ScalingSquaring struct {
	Steps  int
	Interp Interp
	Bound  Bound
}

// DefaultScalingSquaring mirrors the usual exponentiation settings: eight
// integration steps, linear interpolation, DFT boundary.
func DefaultScalingSquaring() ScalingSquaring {
	return ScalingSquaring{Steps: 8, Interp: InterpLinear, Bound: BoundCircular}
}

// Exponentiate implements Exponentiator.
func (e ScalingSquaring) Exponentiate(vel *tensor.Dense, displacement bool) (*tensor.Dense, error) {
	if err := checkVelocity(vel); err != nil {
		return nil, err
	}
	if e.Steps < 0 {
		return nil, fmt.Errorf("spatial: scaling-and-squaring steps must be >= 0, got %d", e.Steps)
	}
	u := vel.Clone()
	u.Scale(1 / math.Pow(2, float64(e.Steps)))
	for s := 0; s < e.Steps; s++ {
		u = composeDisp(u, u, 1, e.Interp, e.Bound)
	}
	if displacement {
		return u, nil
	}
	return addIdentity(u), nil
}

// composeDisp right-composes a displacement with a scaled step:
// out(x) = u(x + dt*w(x)) + dt*w(x). Both fields are (batch, *spatial, dim).
func composeDisp(u, w *tensor.Dense, dt float64, interp Interp, bound Bound) *tensor.Dense {
	shape := u.Shape()
	dim := shape[len(shape)-1]
	spatial := shape[1 : len(shape)-1]
	batch := shape[0]
	n := tensor.Prod(spatial)

	out := tensor.New(shape...)
	corners := newCornerIter(spatial)
	x := make([]float64, dim)
	val := make([]float64, dim)
	idx := make([]int, dim)
	for b := 0; b < batch; b++ {
		udata := u.Data()[b*n*dim : (b+1)*n*dim]
		wdata := w.Data()[b*n*dim : (b+1)*n*dim]
		odata := out.Data()[b*n*dim : (b+1)*n*dim]
		for i := range idx {
			idx[i] = 0
		}
		for v := 0; v < n; v++ {
			for i := 0; i < dim; i++ {
				x[i] = float64(idx[i]) + dt*wdata[v*dim+i]
			}
			sampleVector(udata, corners, dim, x, interp, bound, val)
			for i := 0; i < dim; i++ {
				odata[v*dim+i] = val[i] + dt*wdata[v*dim+i]
			}
			for i := dim - 1; i >= 0; i-- {
				idx[i]++
				if idx[i] < spatial[i] {
					break
				}
				idx[i] = 0
			}
		}
	}
	return out
}

// checkVelocity rejects velocity tensors whose trailing axis does not
// match their spatial rank, before any computation runs.
func checkVelocity(vel *tensor.Dense) error {
	shape := vel.Shape()
	if len(shape) < 3 || shape[len(shape)-1] != len(shape)-2 {
		return fmt.Errorf("spatial: velocity must be (batch, spatial..., dim) with matching dim, got shape %v", shape)
	}
	return nil
}
