package spatial

import "testing"

// TestFold covers the index-folding rules of every boundary mode.
func TestFold(t *testing.T) {
	cases := []struct {
		bound Bound
		i, n  int
		want  int
		in    bool
	}{
		{BoundZero, 3, 8, 3, true},
		{BoundZero, -1, 8, 0, false},
		{BoundZero, 8, 8, 0, false},

		{BoundReplicate, -3, 8, 0, true},
		{BoundReplicate, 11, 8, 7, true},

		{BoundReflect, -1, 8, 0, true},
		{BoundReflect, -2, 8, 1, true},
		{BoundReflect, 8, 8, 7, true},
		{BoundReflect, 9, 8, 6, true},
		{BoundReflect, 16, 8, 0, true},

		{BoundCircular, -1, 8, 7, true},
		{BoundCircular, 8, 8, 0, true},
		{BoundCircular, 17, 8, 1, true},
		{BoundCircular, -9, 8, 7, true},
	}
	for _, c := range cases {
		got, in := c.bound.fold(c.i, c.n)
		if got != c.want || in != c.in {
			t.Errorf("%v.fold(%d, %d) = (%d, %v), want (%d, %v)", c.bound, c.i, c.n, got, in, c.want, c.in)
		}
	}
}

// TestParseBound verifies the configuration names, including the transform
// aliases.
func TestParseBound(t *testing.T) {
	cases := map[string]Bound{
		"zero":      BoundZero,
		"replicate": BoundReplicate,
		"":          BoundReflect,
		"dct2":      BoundReflect,
		"reflect":   BoundReflect,
		"dft":       BoundCircular,
		"circular":  BoundCircular,
	}
	for name, want := range cases {
		got, err := ParseBound(name)
		if err != nil || got != want {
			t.Errorf("ParseBound(%q) = (%v, %v), want %v", name, got, err, want)
		}
	}
	if _, err := ParseBound("mirror"); err == nil {
		t.Error("expected an error for an unknown boundary name")
	}
}

// TestParseInterp verifies that only spline orders 0 and 1 are accepted.
func TestParseInterp(t *testing.T) {
	if got, err := ParseInterp(0); err != nil || got != InterpNearest {
		t.Errorf("ParseInterp(0) = (%v, %v)", got, err)
	}
	if got, err := ParseInterp(1); err != nil || got != InterpLinear {
		t.Errorf("ParseInterp(1) = (%v, %v)", got, err)
	}
	if _, err := ParseInterp(3); err == nil {
		t.Error("expected an error for an unsupported order")
	}
}
