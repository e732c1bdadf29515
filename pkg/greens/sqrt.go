package greens

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// sqrtScalarInPlace replaces every Green's value with its square root,
// clipping negative round-off to zero first.
func sqrtScalarInPlace(g []float64) {
	for i, v := range g {
		if v < 0 {
			v = 0
		}
		g[i] = math.Sqrt(v)
	}
}

// sqrtMatrixInPlace replaces every (d, d) Green's block with a square-root
// factor R such that R*R^T reconstructs the block. Each block is symmetric
// positive semi-definite, so its SVD coincides with a symmetric
// eigendecomposition and R = U*diag(sqrt(sigma)) is a valid factor. Near-zero
// singular values are clipped to zero before the root.
func sqrtMatrixInPlace(g []float64, d int) error {
	block := make([]float64, d*d)
	var u mat.Dense
	for off := 0; off+d*d <= len(g); off += d * d {
		copy(block, g[off:off+d*d])
		var svd mat.SVD
		if ok := svd.Factorize(mat.NewDense(d, d, block), mat.SVDFull); !ok {
			return fmt.Errorf("greens: SVD of kernel block at offset %d failed", off)
		}
		sigma := svd.Values(nil)
		svd.UTo(&u)
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				s := sigma[j]
				if s < 0 {
					s = 0
				}
				g[off+i*d+j] = u.At(i, j) * math.Sqrt(s)
			}
		}
	}
	return nil
}
