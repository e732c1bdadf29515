// Package tensor provides a minimal dense n-dimensional array of float64
// values stored in row-major order. It is the value type shared by the
// field samplers, the spatial transformers and the registration pipeline.
package tensor

import (
	"fmt"
)

// Dense is a dense row-major n-dimensional array.
type Dense struct {
	shape   []int
	strides []int
	data    []float64
}

// New allocates a zero-filled tensor with the given shape.
// All extents must be positive.
func New(shape ...int) *Dense {
	n := Prod(shape)
	if n <= 0 {
		panic(fmt.Sprintf("tensor: invalid shape %v", shape))
	}
	return &Dense{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    make([]float64, n),
	}
}

// NewFrom wraps an existing backing slice. The slice length must equal the
// product of the shape extents; the tensor takes ownership of the slice.
func NewFrom(data []float64, shape ...int) *Dense {
	if len(data) != Prod(shape) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Dense{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    data,
	}
}

// Prod returns the product of the extents, or 0 for an empty shape.
func Prod(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range shape {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// Shape returns the tensor shape. The returned slice must not be mutated.
func (t *Dense) Shape() []int { return t.shape }

// Dims returns the number of axes.
func (t *Dense) Dims() int { return len(t.shape) }

// Len returns the total number of elements.
func (t *Dense) Len() int { return len(t.data) }

// Data returns the backing slice in row-major order.
func (t *Dense) Data() []float64 { return t.data }

// Offset converts a multi-index into a flat offset.
func (t *Dense) Offset(idx ...int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d does not match shape %v", len(idx), t.shape))
	}
	off := 0
	for i, v := range idx {
		off += v * t.strides[i]
	}
	return off
}

// At returns the element at the given multi-index.
func (t *Dense) At(idx ...int) float64 { return t.data[t.Offset(idx...)] }

// Set stores v at the given multi-index.
func (t *Dense) Set(v float64, idx ...int) { t.data[t.Offset(idx...)] = v }

// Clone returns a deep copy.
func (t *Dense) Clone() *Dense {
	out := New(t.shape...)
	copy(out.data, t.data)
	return out
}

// Fill sets every element to v.
func (t *Dense) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Scale multiplies every element by v in place.
func (t *Dense) Scale(v float64) {
	for i := range t.data {
		t.data[i] *= v
	}
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConcatChannel concatenates two (batch, channel, *spatial) tensors along
// the channel axis. Batch and spatial extents must agree.
func ConcatChannel(a, b *Dense) (*Dense, error) {
	if a.Dims() < 3 || a.Dims() != b.Dims() {
		return nil, fmt.Errorf("tensor: concat expects matching (batch, channel, spatial...) ranks, got %v and %v", a.shape, b.shape)
	}
	if a.shape[0] != b.shape[0] || !SameShape(a.shape[2:], b.shape[2:]) {
		return nil, fmt.Errorf("tensor: concat shapes %v and %v differ outside the channel axis", a.shape, b.shape)
	}
	batch := a.shape[0]
	ca, cb := a.shape[1], b.shape[1]
	spatial := Prod(a.shape[2:])
	outShape := append([]int{batch, ca + cb}, a.shape[2:]...)
	out := New(outShape...)
	for n := 0; n < batch; n++ {
		dst := out.data[n*(ca+cb)*spatial:]
		copy(dst[:ca*spatial], a.data[n*ca*spatial:(n+1)*ca*spatial])
		copy(dst[ca*spatial:(ca+cb)*spatial], b.data[n*cb*spatial:(n+1)*cb*spatial])
	}
	return out, nil
}

// ChannelLast rearranges a (batch, channel, *spatial) tensor into
// (batch, *spatial, channel) order, copying the data.
func ChannelLast(t *Dense) *Dense {
	if t.Dims() < 3 {
		panic(fmt.Sprintf("tensor: ChannelLast expects rank >= 3, got shape %v", t.shape))
	}
	batch, channel := t.shape[0], t.shape[1]
	spatial := Prod(t.shape[2:])
	outShape := append([]int{batch}, t.shape[2:]...)
	outShape = append(outShape, channel)
	out := New(outShape...)
	for n := 0; n < batch; n++ {
		for c := 0; c < channel; c++ {
			src := t.data[(n*channel+c)*spatial : (n*channel+c+1)*spatial]
			for i, v := range src {
				out.data[(n*spatial+i)*channel+c] = v
			}
		}
	}
	return out
}

// ChannelFirst is the inverse of ChannelLast: (batch, *spatial, channel)
// becomes (batch, channel, *spatial).
func ChannelFirst(t *Dense) *Dense {
	if t.Dims() < 3 {
		panic(fmt.Sprintf("tensor: ChannelFirst expects rank >= 3, got shape %v", t.shape))
	}
	batch := t.shape[0]
	channel := t.shape[len(t.shape)-1]
	spatial := Prod(t.shape[1 : len(t.shape)-1])
	outShape := append([]int{batch, channel}, t.shape[1:len(t.shape)-1]...)
	out := New(outShape...)
	for n := 0; n < batch; n++ {
		for i := 0; i < spatial; i++ {
			for c := 0; c < channel; c++ {
				out.data[(n*channel+c)*spatial+i] = t.data[(n*spatial+i)*channel+c]
			}
		}
	}
	return out
}
