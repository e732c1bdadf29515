package greens

import (
	"math"
	"testing"
)

// TestScalarSymbolsZeroFrequency verifies that the operator eigenvalue at
// zero frequency reduces to the absolute penalty and that the Green's
// value is its reciprocal.
func TestScalarSymbolsZeroFrequency(t *testing.T) {
	op, grn := scalarSymbols([]int{8, 8}, []float64{1, 1}, 0.25, 0.1, 0.05)

	if op[0] != 0.25 {
		t.Errorf("DC operator eigenvalue should equal the absolute penalty 0.25, got %g", op[0])
	}
	if math.Abs(grn[0]-4.0) > 1e-12 {
		t.Errorf("DC Green's value should be 4.0, got %g", grn[0])
	}
}

// TestScalarSymbolsSingularBin verifies that a singular zero-frequency bin
// (no absolute penalty) maps to a zero Green's value instead of infinity.
func TestScalarSymbolsSingularBin(t *testing.T) {
	op, grn := scalarSymbols([]int{6}, []float64{1}, 0, 0.5, 0)

	if op[0] != 0 {
		t.Errorf("DC operator eigenvalue should be 0 without absolute penalty, got %g", op[0])
	}
	if grn[0] != 0 {
		t.Errorf("singular DC bin should have zero Green's value, got %g", grn[0])
	}
	for i := 1; i < len(grn); i++ {
		if grn[i] <= 0 {
			t.Errorf("bin %d: Green's value should be positive, got %g", i, grn[i])
		}
		if math.Abs(grn[i]*op[i]-1) > 1e-12 {
			t.Errorf("bin %d: Green's value is not the operator reciprocal", i)
		}
	}
}

// TestScalarSymbolsAllZeroWeights covers the fully degenerate operator:
// every Green's value must be zero, never NaN or Inf.
func TestScalarSymbolsAllZeroWeights(t *testing.T) {
	_, grn := scalarSymbols([]int{4, 4}, []float64{1, 1}, 0, 0, 0)
	for i, g := range grn {
		if g != 0 {
			t.Fatalf("bin %d: expected zero Green's value for the zero operator, got %g", i, g)
		}
	}
}

// TestScalarSymbolsVoxelSize verifies that voxel size scales the Laplacian
// term: doubling the spacing quarters the membrane contribution.
func TestScalarSymbolsVoxelSize(t *testing.T) {
	op1, _ := scalarSymbols([]int{8}, []float64{1}, 0, 1, 0)
	op2, _ := scalarSymbols([]int{8}, []float64{2}, 0, 1, 0)
	for i := range op1 {
		if math.Abs(op2[i]-op1[i]/4) > 1e-12 {
			t.Errorf("bin %d: membrane eigenvalue with voxel size 2 should be a quarter of unit spacing, got %g vs %g", i, op2[i], op1[i])
		}
	}
}

// TestGridSymbolsInverse verifies that the matrix Green's function is the
// operator inverse on every non-singular frequency bin.
func TestGridSymbolsInverse(t *testing.T) {
	shape := []int{6, 5}
	p := Penalty{Absolute: 1e-2, Membrane: 0.1, Bending: 0.05, Lame: [2]float64{0.05, 0.2}}
	op, grn := gridSymbols(shape, []float64{1, 1.5}, p)

	dim := 2
	for bin := 0; bin < 30; bin++ {
		kb := op[bin*dim*dim : (bin+1)*dim*dim]
		gb := grn[bin*dim*dim : (bin+1)*dim*dim]
		// product should be the identity
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				var s float64
				for k := 0; k < dim; k++ {
					s += kb[i*dim+k] * gb[k*dim+j]
				}
				want := 0.0
				if i == j {
					want = 1
				}
				if math.Abs(s-want) > 1e-9 {
					t.Fatalf("bin %d: (K*G)[%d,%d] = %g, want %g", bin, i, j, s, want)
				}
			}
		}
	}
}

// TestGridSymbolsSymmetry checks that both the operator and Green's blocks
// are symmetric, which the square-root stage relies on.
func TestGridSymbolsSymmetry(t *testing.T) {
	shape := []int{4, 4, 3}
	p := Penalty{Membrane: 0.3, Lame: [2]float64{0.1, 0.4}}
	op, grn := gridSymbols(shape, []float64{1, 1, 2}, p)
	dim := 3
	for bin := 0; bin < 48; bin++ {
		for i := 0; i < dim; i++ {
			for j := i + 1; j < dim; j++ {
				if math.Abs(op[bin*9+i*3+j]-op[bin*9+j*3+i]) > 1e-12 {
					t.Fatalf("bin %d: operator block not symmetric", bin)
				}
				if math.Abs(grn[bin*9+i*3+j]-grn[bin*9+j*3+i]) > 1e-12 {
					t.Fatalf("bin %d: Green's block not symmetric", bin)
				}
			}
		}
	}
}

// TestSqrtScalarRoundTrip verifies R*R == kernel elementwise, including
// clipping of negative round-off.
func TestSqrtScalarRoundTrip(t *testing.T) {
	_, grn := scalarSymbols([]int{8, 8}, []float64{1, 1}, 1e-3, 0.1, 0.02)
	orig := append([]float64(nil), grn...)
	grn = append(grn, -1e-18) // negative round-off must clip to zero
	orig = append(orig, 0)

	sqrtScalarInPlace(grn)
	for i, r := range grn {
		if math.Abs(r*r-orig[i]) > 1e-12 {
			t.Errorf("bin %d: sqrt round trip failed: %g^2 != %g", i, r, orig[i])
		}
	}
}

// TestSqrtMatrixRoundTrip verifies R*R^T ~= kernel per frequency for
// several representative penalty configurations.
func TestSqrtMatrixRoundTrip(t *testing.T) {
	cases := []Penalty{
		{Absolute: 1e-4, Membrane: 1e-3, Bending: 0.2, Lame: [2]float64{0.05, 0.2}},
		{Absolute: 1, Lame: [2]float64{0.5, 0}},
		{Membrane: 0.1, Lame: [2]float64{0, 0.3}},
	}
	shape := []int{5, 6}
	dim := 2
	for ci, p := range cases {
		_, grn := gridSymbols(shape, []float64{1, 1}, p)
		orig := append([]float64(nil), grn...)
		if err := sqrtMatrixInPlace(grn, dim); err != nil {
			t.Fatalf("case %d: %v", ci, err)
		}
		for bin := 0; bin < 30; bin++ {
			r := grn[bin*4 : (bin+1)*4]
			g := orig[bin*4 : (bin+1)*4]
			for i := 0; i < dim; i++ {
				for j := 0; j < dim; j++ {
					var s float64
					for k := 0; k < dim; k++ {
						s += r[i*dim+k] * r[j*dim+k] // R * R^T
					}
					if math.Abs(s-g[i*dim+j]) > 1e-9 {
						t.Fatalf("case %d bin %d: (R*R^T)[%d,%d] = %g, want %g", ci, bin, i, j, s, g[i*dim+j])
					}
				}
			}
		}
	}
}

// TestMakeVector covers broadcast and error behavior of per-channel
// parameter expansion.
func TestMakeVector(t *testing.T) {
	v, err := makeVector(nil, 3, 0.5)
	if err != nil || v[0] != 0.5 || v[2] != 0.5 {
		t.Errorf("default fill failed: %v %v", v, err)
	}
	v, err = makeVector([]float64{2}, 3, 0)
	if err != nil || v[1] != 2 {
		t.Errorf("broadcast failed: %v %v", v, err)
	}
	if _, err = makeVector([]float64{1, 2}, 3, 0); err == nil {
		t.Error("expected an error for length mismatch")
	}
}
