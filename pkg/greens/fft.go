package greens

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// The multidimensional transforms below are separable: a full n-d DFT is a
// 1-d DFT applied along every requested axis in turn. Lines along an axis
// are gathered into a contiguous buffer, transformed with gonum's complex
// FFT (which handles arbitrary lengths), and scattered back.

// fftAxis applies a single-axis transform to every line of data along the
// given axis. The forward flag selects Coefficients (unnormalized DFT)
// versus Sequence (unnormalized inverse DFT).
func fftAxis(data []complex128, shape []int, axis int, forward bool) {
	n := shape[axis]
	inner := 1
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	outer := len(data) / (n * inner)

	fft := fourier.NewCmplxFFT(n)
	src := make([]complex128, n)
	dst := make([]complex128, n)

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*n*inner + i
			for k := 0; k < n; k++ {
				src[k] = data[base+k*inner]
			}
			if forward {
				fft.Coefficients(dst, src)
			} else {
				fft.Sequence(dst, src)
			}
			for k := 0; k < n; k++ {
				data[base+k*inner] = dst[k]
			}
		}
	}
}

// fftN computes the unnormalized forward DFT of data over the given axes,
// in place. The data is a row-major array with the given shape.
func fftN(data []complex128, shape []int, axes []int) {
	for _, a := range axes {
		fftAxis(data, shape, a, true)
	}
}

// ifftN computes the normalized inverse DFT of data over the given axes, in
// place: an ifftN of an fftN recovers the original values. Each axis
// contributes a 1/n scaling on the way back.
func ifftN(data []complex128, shape []int, axes []int) {
	total := 1
	for _, a := range axes {
		fftAxis(data, shape, a, false)
		total *= shape[a]
	}
	inv := complex(1/float64(total), 0)
	for i := range data {
		data[i] *= inv
	}
}

// spatialAxes returns [0, 1, ..., n-1], the axis list for a field whose
// spatial dimensions lead (as in a (*spatial, dim) vector field slab).
func spatialAxes(n int) []int {
	axes := make([]int, n)
	for i := range axes {
		axes[i] = i
	}
	return axes
}
