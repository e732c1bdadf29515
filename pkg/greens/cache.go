package greens

// kernelCache memoizes the most recent square-rooted kernel, keyed on
// lattice shape, voxel size and channel count. Penalty weights are
// deliberately not part of the key: they are fixed at sampler construction,
// so a weight change cannot occur without building a new sampler.
//
// The cache holds a single entry. It is not safe for concurrent use; a
// sampler instance assumes one logical caller at a time.
type kernelCache struct {
	enabled bool
	valid   bool

	shape    []int
	voxel    []float64
	channels int
	kernel   []float64

	builds int // number of kernel builds, for tests
}

// lookup returns the cached kernel when the key matches the stored entry.
func (c *kernelCache) lookup(shape []int, voxel []float64, channels int) ([]float64, bool) {
	if !c.enabled || !c.valid || c.channels != channels {
		return nil, false
	}
	if !equalInts(c.shape, shape) || !equalFloats(c.voxel, voxel) {
		return nil, false
	}
	return c.kernel, true
}

// store records a freshly built kernel under its key. Storing is skipped
// when caching is disabled, but the build counter still advances so tests
// can observe rebuild behavior either way.
func (c *kernelCache) store(shape []int, voxel []float64, channels int, kernel []float64) {
	c.builds++
	if !c.enabled {
		return
	}
	c.shape = append(c.shape[:0], shape...)
	c.voxel = append(c.voxel[:0], voxel...)
	c.channels = channels
	c.kernel = kernel
	c.valid = true
}

// invalidate drops the cached entry; the next lookup forces a rebuild.
func (c *kernelCache) invalidate() {
	c.valid = false
	c.kernel = nil
}

func equalInts(a, b []int) bool {
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

func equalFloats(a, b []float64) bool {
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
