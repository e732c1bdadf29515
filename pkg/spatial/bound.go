// Package spatial provides lattice resampling primitives and the velocity
// exponentiation stage of the registration pipeline: identity grids,
// multi-linear pull with configurable boundary handling, grid/displacement
// resizing between resolutions, and diffeomorphic integration by
// scaling-and-squaring or geodesic shooting.
package spatial

import (
	"fmt"
)

// Bound selects how out-of-lattice indices fold back into the lattice.
type Bound int

const (
	// BoundZero treats everything outside the lattice as zero.
	BoundZero Bound = iota
	// BoundReplicate clamps to the nearest edge voxel.
	BoundReplicate
	// BoundReflect mirrors about the voxel centers (DCT-II symmetry).
	BoundReflect
	// BoundCircular wraps around (DFT periodicity).
	BoundCircular
)

// ParseBound maps a configuration name to a Bound. The names follow the
// transform whose implicit symmetry they match.
func ParseBound(name string) (Bound, error) {
	switch name {
	case "zero":
		return BoundZero, nil
	case "replicate":
		return BoundReplicate, nil
	case "", "dct2", "reflect":
		return BoundReflect, nil
	case "dft", "circular":
		return BoundCircular, nil
	}
	return BoundZero, fmt.Errorf("spatial: unknown boundary mode %q", name)
}

func (b Bound) String() string {
	switch b {
	case BoundZero:
		return "zero"
	case BoundReplicate:
		return "replicate"
	case BoundReflect:
		return "dct2"
	case BoundCircular:
		return "dft"
	}
	return fmt.Sprintf("Bound(%d)", int(b))
}

// fold maps index i into [0, n). The second result is false only for
// BoundZero indices outside the lattice, whose contribution is zero.
func (b Bound) fold(i, n int) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch b {
	case BoundReplicate:
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	case BoundReflect:
		period := 2 * n
		m := ((i % period) + period) % period
		if m >= n {
			m = period - 1 - m
		}
		return m, true
	case BoundCircular:
		return ((i % n) + n) % n, true
	}
	return 0, false
}

// Interp selects the interpolation order of the resampling primitives.
type Interp int

const (
	InterpNearest Interp = iota
	InterpLinear
)

// ParseInterp accepts the numeric spline orders used in configuration
// files; only orders 0 and 1 are supported by this resampler.
func ParseInterp(order int) (Interp, error) {
	switch order {
	case 0:
		return InterpNearest, nil
	case 1:
		return InterpLinear, nil
	}
	return InterpLinear, fmt.Errorf("spatial: unsupported interpolation order %d (supported: 0, 1)", order)
}
