package tensor

import "testing"

// TestIndexing verifies row-major offsets, At and Set.
func TestIndexing(t *testing.T) {
	d := New(2, 3, 4)
	if d.Len() != 24 || d.Dims() != 3 {
		t.Fatalf("unexpected size: len %d dims %d", d.Len(), d.Dims())
	}
	d.Set(7, 1, 2, 3)
	if d.At(1, 2, 3) != 7 {
		t.Error("Set/At round trip failed")
	}
	if d.Offset(1, 2, 3) != 1*12+2*4+3 {
		t.Errorf("row-major offset is %d", d.Offset(1, 2, 3))
	}
	if d.Data()[23] != 7 {
		t.Error("backing slice does not reflect Set")
	}
}

// TestCloneIsDeep verifies that mutating a clone leaves the original alone.
func TestCloneIsDeep(t *testing.T) {
	a := New(2, 2)
	a.Fill(1)
	b := a.Clone()
	b.Set(9, 0, 0)
	if a.At(0, 0) != 1 {
		t.Error("clone shares its backing storage with the original")
	}
}

// TestConcatChannel verifies channel-axis concatenation and its validation.
func TestConcatChannel(t *testing.T) {
	a := NewFrom([]float64{1, 2, 3, 4}, 2, 1, 2)
	b := NewFrom([]float64{5, 6, 7, 8, 9, 10, 11, 12}, 2, 2, 2)

	out, err := ConcatChannel(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !SameShape(out.Shape(), []int{2, 3, 2}) {
		t.Fatalf("unexpected shape %v", out.Shape())
	}
	want := []float64{1, 2, 5, 6, 7, 8, 3, 4, 9, 10, 11, 12}
	for i, w := range want {
		if out.Data()[i] != w {
			t.Fatalf("element %d: got %g, want %g", i, out.Data()[i], w)
		}
	}

	if _, err := ConcatChannel(a, New(3, 1, 2)); err == nil {
		t.Error("expected an error for mismatched batch sizes")
	}
	if _, err := ConcatChannel(a, New(2, 1, 3)); err == nil {
		t.Error("expected an error for mismatched spatial extents")
	}
}

// TestChannelRoundTrip verifies ChannelLast followed by ChannelFirst is the
// identity, and spot-checks the reordering itself.
func TestChannelRoundTrip(t *testing.T) {
	d := New(2, 3, 4, 5)
	for i := range d.Data() {
		d.Data()[i] = float64(i)
	}
	last := ChannelLast(d)
	if !SameShape(last.Shape(), []int{2, 4, 5, 3}) {
		t.Fatalf("unexpected channel-last shape %v", last.Shape())
	}
	if last.At(1, 2, 3, 1) != d.At(1, 1, 2, 3) {
		t.Error("channel-last reordering misplaced an element")
	}

	back := ChannelFirst(last)
	if !SameShape(back.Shape(), d.Shape()) {
		t.Fatalf("unexpected round-trip shape %v", back.Shape())
	}
	for i := range d.Data() {
		if back.Data()[i] != d.Data()[i] {
			t.Fatalf("element %d changed across the round trip", i)
		}
	}
}

// TestProd covers the degenerate shapes.
func TestProd(t *testing.T) {
	if Prod(nil) != 0 {
		t.Error("empty shape should have product 0")
	}
	if Prod([]int{3, 0}) != 0 {
		t.Error("zero extent should have product 0")
	}
	if Prod([]int{2, 3, 4}) != 24 {
		t.Error("product of 2*3*4 should be 24")
	}
}
