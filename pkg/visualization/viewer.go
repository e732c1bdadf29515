// Package visualization exports lattice slices as grayscale PNG images and
// provides a fire-and-forget board sink for the registration pipeline.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"voxelreg/pkg/tensor"
)

// SaveSlicePNG writes one channel of one batch item as a grayscale PNG.
// 2D lattices are written directly; 3D lattices contribute their middle
// slice along the first spatial axis; 1D lattices become a one-row image.
// Intensities are normalized to the slice's own min/max range.
func SaveSlicePNG(t *tensor.Dense, batch, channel int, path string) error {
	shape := t.Shape()
	if len(shape) < 3 {
		return fmt.Errorf("visualization: expected a (batch, channel, spatial...) tensor, got shape %v", shape)
	}
	if batch < 0 || batch >= shape[0] || channel < 0 || channel >= shape[1] {
		return fmt.Errorf("visualization: batch %d channel %d out of range for shape %v", batch, channel, shape)
	}
	spatial := shape[2:]
	n := tensor.Prod(spatial)
	slab := t.Data()[(batch*shape[1]+channel)*n : (batch*shape[1]+channel+1)*n]

	var w, h int
	var data []float64
	switch len(spatial) {
	case 1:
		w, h = spatial[0], 1
		data = slab
	case 2:
		h, w = spatial[0], spatial[1]
		data = slab
	case 3:
		h, w = spatial[1], spatial[2]
		mid := spatial[0] / 2
		data = slab[mid*w*h : (mid+1)*w*h]
	default:
		return fmt.Errorf("visualization: unsupported dimensionality %d", len(spatial))
	}
	return writeGray(data, w, h, path)
}

// writeGray normalizes data to [0, 65535] and encodes it as a 16-bit
// grayscale PNG.
func writeGray(data []float64, w, h int, path string) error {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := (data[y*w+x] - lo) / span
			img.SetGray16(x, y, color.Gray16{Y: uint16(v * 65535)})
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, img)
}

// PNGBoard implements registration.Board by writing each observed tensor's
// first slice to <Dir>/<tag>_<step>.png. Errors are swallowed: emission
// must never affect the forward pass.
type PNGBoard struct {
	Dir  string
	step map[string]int
}

// Observe writes the tensor and advances the per-tag step counter.
func (b *PNGBoard) Observe(tag string, t *tensor.Dense) {
	if b.step == nil {
		b.step = make(map[string]int)
	}
	step := b.step[tag]
	b.step[tag]++

	img := asImage(t)
	if img == nil {
		return
	}
	path := filepath.Join(b.Dir, fmt.Sprintf("%s_%03d.png", tag, step))
	_ = SaveSlicePNG(img, 0, 0, path)
}

// asImage reinterprets a tensor for slice export: (batch, channel, *S)
// tensors pass through, (batch, *S, dim) vector fields are reduced to
// their per-voxel magnitude.
func asImage(t *tensor.Dense) *tensor.Dense {
	shape := t.Shape()
	if len(shape) < 3 {
		return nil
	}
	dim := shape[len(shape)-1]
	if dim == len(shape)-2 {
		// Vector field: magnitude image.
		spatial := shape[1 : len(shape)-1]
		n := tensor.Prod(spatial)
		out := tensor.New(append([]int{shape[0], 1}, spatial...)...)
		for b := 0; b < shape[0]; b++ {
			src := t.Data()[b*n*dim : (b+1)*n*dim]
			dst := out.Data()[b*n : (b+1)*n]
			for v := 0; v < n; v++ {
				var s float64
				for c := 0; c < dim; c++ {
					s += src[v*dim+c] * src[v*dim+c]
				}
				dst[v] = math.Sqrt(s)
			}
		}
		return out
	}
	return t
}
