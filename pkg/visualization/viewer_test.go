package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"voxelreg/pkg/tensor"
)

func decodePNG(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// TestSaveSlicePNG2D verifies the 2D export path and its dimensions.
func TestSaveSlicePNG2D(t *testing.T) {
	field := tensor.New(1, 1, 6, 9)
	for i := range field.Data() {
		field.Data()[i] = float64(i)
	}
	path := filepath.Join(t.TempDir(), "sub", "slice.png")
	if err := SaveSlicePNG(field, 0, 0, path); err != nil {
		t.Fatal(err)
	}
	if w, h := decodePNG(t, path); w != 9 || h != 6 {
		t.Errorf("image is %dx%d, want 9x6", w, h)
	}
}

// TestSaveSlicePNG3D verifies the middle-slice export of a volume.
func TestSaveSlicePNG3D(t *testing.T) {
	field := tensor.New(2, 3, 4, 5, 6)
	for i := range field.Data() {
		field.Data()[i] = float64(i % 7)
	}
	path := filepath.Join(t.TempDir(), "volume.png")
	if err := SaveSlicePNG(field, 1, 2, path); err != nil {
		t.Fatal(err)
	}
	if w, h := decodePNG(t, path); w != 6 || h != 5 {
		t.Errorf("image is %dx%d, want 6x5", w, h)
	}
}

// TestSaveSlicePNGConstant verifies that a flat field does not divide by a
// zero intensity span.
func TestSaveSlicePNGConstant(t *testing.T) {
	field := tensor.New(1, 1, 4, 4)
	field.Fill(3)
	path := filepath.Join(t.TempDir(), "flat.png")
	if err := SaveSlicePNG(field, 0, 0, path); err != nil {
		t.Fatal(err)
	}
}

// TestSaveSlicePNGErrors verifies range and rank validation.
func TestSaveSlicePNGErrors(t *testing.T) {
	dir := t.TempDir()
	if err := SaveSlicePNG(tensor.New(2, 2), 0, 0, filepath.Join(dir, "x.png")); err == nil {
		t.Error("expected an error for a rank-2 tensor")
	}
	field := tensor.New(1, 1, 4, 4)
	if err := SaveSlicePNG(field, 1, 0, filepath.Join(dir, "x.png")); err == nil {
		t.Error("expected an error for a batch index out of range")
	}
	if err := SaveSlicePNG(field, 0, 3, filepath.Join(dir, "x.png")); err == nil {
		t.Error("expected an error for a channel index out of range")
	}
}

// TestPNGBoard verifies per-tag step counting and vector-field handling.
func TestPNGBoard(t *testing.T) {
	dir := t.TempDir()
	board := &PNGBoard{Dir: dir}

	img := tensor.New(1, 1, 8, 8)
	for i := range img.Data() {
		img.Data()[i] = float64(i)
	}
	board.Observe("deformed", img)
	board.Observe("deformed", img)

	// A (batch, *spatial, dim) grid reduces to a magnitude image.
	grid := tensor.New(1, 8, 8, 2)
	grid.Fill(1)
	board.Observe("grid", grid)

	for _, name := range []string{"deformed_000.png", "deformed_001.png", "grid_000.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}
