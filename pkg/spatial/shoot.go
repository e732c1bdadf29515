package spatial

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"voxelreg/pkg/greens"
	"voxelreg/pkg/tensor"
)

// GeodesicShooting integrates a velocity field under the geodesic equation
// of diffeomorphic registration: the initial momentum is the velocity
// pushed through the regularization operator, and at every Euler step the
// momentum is transported to the current deformation and smoothed back into
// a velocity by the operator's Green's function. The same penalty class as
// the field samplers governs the dynamics; Factor rescales the operator to
// account for velocity-lattice downsampling.
type GeodesicShooting struct {
	Penalty   greens.Penalty
	VoxelSize []float64
	Steps     int     // defaults to 8
	Factor    float64 // defaults to 1

	// filter built for the last seen lattice shape
	filt      *greens.GridFilter
	filtShape []int
}

// DefaultGeodesicShooting mirrors the usual shooting settings.
func DefaultGeodesicShooting() GeodesicShooting {
	return GeodesicShooting{
		Penalty: greens.Penalty{
			Absolute: 1e-4,
			Membrane: 1e-3,
			Bending:  0.2,
			Lame:     [2]float64{0.05, 0.2},
		},
		Steps:  8,
		Factor: 1,
	}
}

// Exponentiate implements Exponentiator.
func (g *GeodesicShooting) Exponentiate(vel *tensor.Dense, displacement bool) (*tensor.Dense, error) {
	if err := checkVelocity(vel); err != nil {
		return nil, err
	}
	shape := vel.Shape()
	spatial := shape[1 : len(shape)-1]
	steps := g.Steps
	if steps <= 0 {
		steps = 8
	}
	factor := g.Factor
	if factor <= 0 {
		factor = 1
	}
	if g.filt == nil || !tensor.SameShape(g.filtShape, spatial) {
		filt, err := greens.NewGridFilter(spatial, g.VoxelSize, g.Penalty, factor)
		if err != nil {
			return nil, err
		}
		g.filt = filt
		g.filtShape = append([]int(nil), spatial...)
	}

	m0, err := g.filt.Operator(vel)
	if err != nil {
		return nil, err
	}
	u := tensor.New(shape...)
	v := vel.Clone()
	dt := 1 / float64(steps)
	for s := 0; s < steps; s++ {
		if s > 0 {
			m := transportMomentum(m0, u)
			if v, err = g.filt.Greens(m); err != nil {
				return nil, err
			}
		}
		u = composeDisp(u, v, dt, InterpLinear, BoundCircular)
	}
	if displacement {
		return u, nil
	}
	return addIdentity(u), nil
}

// transportMomentum computes the coadjoint transport of the initial
// momentum to the deformation phi = id + u:
//
//	m(x) = |det J(x)| * J(x)^T * m0(phi(x))
//
// with J the Jacobian of phi, estimated by central differences under DFT
// boundary handling.
func transportMomentum(m0, u *tensor.Dense) *tensor.Dense {
	shape := u.Shape()
	dim := shape[len(shape)-1]
	spatial := shape[1 : len(shape)-1]
	batch := shape[0]
	n := tensor.Prod(spatial)

	out := tensor.New(shape...)
	corners := newCornerIter(spatial)
	x := make([]float64, dim)
	mv := make([]float64, dim)
	jac := make([]float64, dim*dim)
	idx := make([]int, dim)
	for b := 0; b < batch; b++ {
		udata := u.Data()[b*n*dim : (b+1)*n*dim]
		mdata := m0.Data()[b*n*dim : (b+1)*n*dim]
		odata := out.Data()[b*n*dim : (b+1)*n*dim]
		for i := range idx {
			idx[i] = 0
		}
		for v := 0; v < n; v++ {
			for i := 0; i < dim; i++ {
				x[i] = float64(idx[i]) + udata[v*dim+i]
			}
			sampleVector(mdata, corners, dim, x, InterpLinear, BoundCircular, mv)
			jacobianAt(udata, corners, idx, dim, jac)
			det := determinant(jac, dim)
			for i := 0; i < dim; i++ {
				var s float64
				for j := 0; j < dim; j++ {
					s += jac[j*dim+i] * mv[j] // J^T row i
				}
				odata[v*dim+i] = det * s
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

// jacobianAt fills jac with d(phi_i)/d(x_j) at the given voxel, phi = id+u,
// using central differences with circular wrapping.
func jacobianAt(u []float64, it *cornerIter, idx []int, dim int, jac []float64) {
	base := 0
	for i, v := range idx {
		base += v * it.strides[i]
	}
	for j := 0; j < dim; j++ {
		n := it.shape[j]
		fwd := base + (((idx[j]+1)%n)-idx[j])*it.strides[j]
		bwd := base + ((((idx[j]-1)+n)%n)-idx[j])*it.strides[j]
		for i := 0; i < dim; i++ {
			d := (u[fwd*dim+i] - u[bwd*dim+i]) / 2
			if i == j {
				d++
			}
			jac[i*dim+j] = d
		}
	}
}

// determinant of a small row-major matrix; explicit for the lattice
// dimensionalities that occur in practice, gonum for anything larger.
func determinant(m []float64, d int) float64 {
	switch d {
	case 1:
		return m[0]
	case 2:
		return m[0]*m[3] - m[1]*m[2]
	case 3:
		return m[0]*(m[4]*m[8]-m[5]*m[7]) -
			m[1]*(m[3]*m[8]-m[5]*m[6]) +
			m[2]*(m[3]*m[7]-m[4]*m[6])
	}
	return mat.Det(mat.NewDense(d, d, m))
}

var _ Exponentiator = (*GeodesicShooting)(nil)
var _ Exponentiator = ScalingSquaring{}

// String implements fmt.Stringer for log output.
func (g *GeodesicShooting) String() string {
	return fmt.Sprintf("shoot(steps=%d, factor=%g)", g.Steps, g.Factor)
}
