package spatial

import (
	"math"
	"testing"

	"voxelreg/pkg/tensor"
)

// TestIdentityGrid verifies that every voxel holds its own coordinate.
func TestIdentityGrid(t *testing.T) {
	g := IdentityGrid([]int{2, 3})
	if !tensor.SameShape(g.Shape(), []int{2, 3, 2}) {
		t.Fatalf("unexpected grid shape %v", g.Shape())
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if g.At(i, j, 0) != float64(i) || g.At(i, j, 1) != float64(j) {
				t.Errorf("voxel (%d,%d) holds (%g,%g)", i, j, g.At(i, j, 0), g.At(i, j, 1))
			}
		}
	}
}

// TestResizeSameShape verifies the exact no-op guarantee for both kinds.
func TestResizeSameShape(t *testing.T) {
	field := tensor.New(1, 4, 4, 2)
	for i := range field.Data() {
		field.Data()[i] = float64(i) * 0.3
	}

	for _, kind := range []GridKind{KindDisplacement, KindGrid} {
		out, err := Resize(field, []int{4, 4}, kind, InterpLinear, BoundReflect)
		if err != nil {
			t.Fatal(err)
		}
		for i := range field.Data() {
			if out.Data()[i] != field.Data()[i] {
				t.Fatalf("kind %d element %d: same-shape resize changed %g to %g", kind, i, field.Data()[i], out.Data()[i])
			}
		}
	}
}

// TestResizeConstantDisplacement verifies that a constant displacement
// resized to a finer lattice stays constant, rescaled by the zoom so it
// remains expressed in target voxels.
func TestResizeConstantDisplacement(t *testing.T) {
	field := tensor.New(1, 4, 4, 2)
	for v := 0; v < 16; v++ {
		field.Data()[v*2] = 1.5
		field.Data()[v*2+1] = -0.5
	}
	out, err := Resize(field, []int{8, 8}, KindDisplacement, InterpLinear, BoundReplicate)
	if err != nil {
		t.Fatal(err)
	}
	if !tensor.SameShape(out.Shape(), []int{1, 8, 8, 2}) {
		t.Fatalf("unexpected output shape %v", out.Shape())
	}
	for v := 0; v < 64; v++ {
		if math.Abs(out.Data()[v*2]-3) > 1e-12 || math.Abs(out.Data()[v*2+1]+1) > 1e-12 {
			t.Fatalf("voxel %d: got (%g,%g), want (3,-1)", v, out.Data()[v*2], out.Data()[v*2+1])
		}
	}
}

// TestResizeGridIdentity verifies that the identity grid resizes to the
// identity grid of the target lattice: the identity part is reconstructed
// from the target shape, not interpolated.
func TestResizeGridIdentity(t *testing.T) {
	grid := tensor.New(1, 4, 4, 2)
	copy(grid.Data(), IdentityGrid([]int{4, 4}).Data())

	out, err := Resize(grid, []int{8, 8}, KindGrid, InterpLinear, BoundReplicate)
	if err != nil {
		t.Fatal(err)
	}
	want := IdentityGrid([]int{8, 8})
	for i := range want.Data() {
		if math.Abs(out.Data()[i]-want.Data()[i]) > 1e-12 {
			t.Fatalf("element %d: got %g, want %g", i, out.Data()[i], want.Data()[i])
		}
	}
}

// TestResizeRoundTripConstant verifies that downsampling then upsampling a
// constant displacement is exact.
func TestResizeRoundTripConstant(t *testing.T) {
	field := tensor.New(1, 8, 8, 2)
	for v := 0; v < 64; v++ {
		field.Data()[v*2] = 2
		field.Data()[v*2+1] = -4
	}
	down, err := Resize(field, []int{4, 4}, KindDisplacement, InterpLinear, BoundReplicate)
	if err != nil {
		t.Fatal(err)
	}
	up, err := Resize(down, []int{8, 8}, KindDisplacement, InterpLinear, BoundReplicate)
	if err != nil {
		t.Fatal(err)
	}
	for i := range field.Data() {
		if math.Abs(up.Data()[i]-field.Data()[i]) > 1e-12 {
			t.Fatalf("element %d: round trip changed %g to %g", i, field.Data()[i], up.Data()[i])
		}
	}
}

// TestResizeErrors verifies input validation.
func TestResizeErrors(t *testing.T) {
	if _, err := Resize(tensor.New(1, 4, 4, 3), []int{8, 8}, KindDisplacement, InterpLinear, BoundReflect); err == nil {
		t.Error("expected an error for a mismatched trailing dimension")
	}
	if _, err := Resize(tensor.New(1, 4, 4, 2), []int{8}, KindDisplacement, InterpLinear, BoundReflect); err == nil {
		t.Error("expected an error for a target rank mismatch")
	}
}
