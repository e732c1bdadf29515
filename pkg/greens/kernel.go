// Package greens samples Gaussian random fields with a covariance defined
// implicitly by a differential-operator penalty. The operator is a weighted
// combination of identity (absolute), negated Laplacian (membrane), squared
// Laplacian (bending) and, for vector fields, linear-elastic (Lame) terms.
// Its Green's function is built in the Fourier domain, square-rooted, and
// used to filter white noise; an inverse transform yields spatial samples.
package greens

import (
	"fmt"
	"math"
)

// symbolEps is the threshold below which an operator eigenvalue is treated
// as singular. The corresponding Green's value is set to zero, so that
// spectral component is simply absent from samples (this covers the DC bin
// when the absolute penalty is zero, and the all-zero-weight degenerate
// case).
const symbolEps = 1e-12

// Penalty holds the regularization weights defining the operator
//
//	absolute*I + membrane*(-Lap) + bending*Lap^2 [+ elastic terms]
//
// Lame[0] penalizes local volume change (divergence), Lame[1] penalizes
// shears. The Lame pair only applies to vector fields.
type Penalty struct {
	Absolute float64
	Membrane float64
	Bending  float64
	Lame     [2]float64
}

// HasElastic reports whether either Lame coefficient is non-zero, which
// switches the kernel from scalar-valued to matrix-valued.
func (p Penalty) HasElastic() bool {
	return p.Lame[0] != 0 || p.Lame[1] != 0
}

// Validate rejects negative weights.
func (p Penalty) Validate() error {
	if p.Absolute < 0 || p.Membrane < 0 || p.Bending < 0 || p.Lame[0] < 0 || p.Lame[1] < 0 {
		return fmt.Errorf("greens: penalty weights must be non-negative, got %+v", p)
	}
	return nil
}

// freqIter walks the frequency lattice in row-major order, reporting for
// each bin the discrete Laplacian eigenvalue and the central-difference
// gradient symbol per axis. For bin k along an axis of extent n with voxel
// size v the contributions are (2-2cos(2*pi*k/n))/v^2 and sin(2*pi*k/n)/v;
// both vanish at zero frequency and reduce to the continuous-operator
// symbols |w|^2 and w at low frequency.
func freqIter(shape []int, voxel []float64, fn func(bin int, lap float64, grad []float64)) {
	dim := len(shape)
	idx := make([]int, dim)
	grad := make([]float64, dim)
	nvox := 1
	for _, s := range shape {
		nvox *= s
	}
	for bin := 0; bin < nvox; bin++ {
		lap := 0.0
		for i := 0; i < dim; i++ {
			theta := 2 * math.Pi * float64(idx[i]) / float64(shape[i])
			lap += (2 - 2*math.Cos(theta)) / (voxel[i] * voxel[i])
			grad[i] = math.Sin(theta) / voxel[i]
		}
		fn(bin, lap, grad)
		for i := dim - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
}

// scalarSymbols builds the frequency-domain operator eigenvalues and the
// Green's function of a scalar-field regularizer over the lattice. Both
// returned arrays have one entry per frequency bin in row-major order.
func scalarSymbols(shape []int, voxel []float64, absolute, membrane, bending float64) (op, grn []float64) {
	nvox := 1
	for _, s := range shape {
		nvox *= s
	}
	op = make([]float64, nvox)
	grn = make([]float64, nvox)
	freqIter(shape, voxel, func(bin int, lap float64, _ []float64) {
		lambda := absolute + membrane*lap + bending*lap*lap
		op[bin] = lambda
		if lambda > symbolEps {
			grn[bin] = 1 / lambda
		}
	})
	return op, grn
}

// gridSymbols builds the matrix-valued operator symbol and its Green's
// function for a vector-field regularizer with elastic terms. Per frequency
// bin the operator has the rank-one-update structure
//
//	K = alpha*I + beta*s*s^T
//
// with alpha = absolute + membrane*lap + bending*lap^2 + shear*lap,
// beta = shear + div, and s the central-difference gradient symbol. The
// Green's matrix is its pseudo-inverse (Sherman-Morrison for alpha > 0,
// zero where the bin is singular). Both outputs are (nvox, d, d) row-major.
func gridSymbols(shape []int, voxel []float64, p Penalty) (op, grn []float64) {
	dim := len(shape)
	nvox := 1
	for _, s := range shape {
		nvox *= s
	}
	op = make([]float64, nvox*dim*dim)
	grn = make([]float64, nvox*dim*dim)
	div, shear := p.Lame[0], p.Lame[1]

	freqIter(shape, voxel, func(bin int, lap float64, grad []float64) {
		alpha := p.Absolute + p.Membrane*lap + p.Bending*lap*lap + shear*lap
		beta := shear + div
		q := 0.0
		for _, g := range grad {
			q += g * g
		}

		kb := op[bin*dim*dim : (bin+1)*dim*dim]
		gb := grn[bin*dim*dim : (bin+1)*dim*dim]
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				k := beta * grad[i] * grad[j]
				if i == j {
					k += alpha
				}
				kb[i*dim+j] = k
			}
		}
		if alpha <= symbolEps {
			// Singular bin (DC with no absolute penalty): pseudo-inverse is zero.
			return
		}
		gamma := beta / (alpha + beta*q)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				g := -gamma * grad[i] * grad[j]
				if i == j {
					g++
				}
				gb[i*dim+j] = g / alpha
			}
		}
	})
	return op, grn
}

// makeVector expands a per-channel parameter: nil uses the default, a
// single value broadcasts, and a length-n slice is used as-is.
func makeVector(v []float64, n int, def float64) ([]float64, error) {
	out := make([]float64, n)
	switch {
	case len(v) == 0:
		for i := range out {
			out[i] = def
		}
	case len(v) == 1:
		for i := range out {
			out[i] = v[0]
		}
	case len(v) == n:
		copy(out, v)
	default:
		return nil, fmt.Errorf("greens: parameter length %d is neither 1 nor %d", len(v), n)
	}
	return out, nil
}
