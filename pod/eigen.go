package pod

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// imagTolerance bounds the imaginary part allowed on an eigenvalue of the
// correlation problem. The problem is symmetric, so anything beyond noise
// means the inner-product operator or the solver is misconfigured.
const imagTolerance = 1e-8

// eigenDecompose solves the full eigenproblem of the correlation matrix and
// returns eigenvalues ordered largest-real first, with the matching
// eigenvectors as the columns of the second result. Non-convergence is an
// error; a non-real eigenvalue is fatal.
func eigenDecompose(c *mat.Dense) ([]float64, *mat.Dense, error) {
	n, _ := c.Dims()

	var eig mat.Eigen
	if ok := eig.Factorize(c, mat.EigenRight); !ok {
		return nil, nil, fmt.Errorf("eigendecomposition of %dx%d correlation matrix did not converge", n, n)
	}

	values := eig.Values(nil)
	for i, v := range values {
		if math.Abs(imag(v)) > imagTolerance {
			panic(fmt.Sprintf("pod: eigenvalue %d of the symmetric correlation problem has imaginary part %g",
				i, imag(v)))
		}
	}

	vectors := mat.NewCDense(n, n, nil)
	eig.VectorsTo(vectors)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return real(values[order[a]]) > real(values[order[b]])
	})

	outVals := make([]float64, n)
	outVecs := mat.NewDense(n, n, nil)
	for col, src := range order {
		outVals[col] = real(values[src])
		for row := 0; row < n; row++ {
			outVecs.Set(row, col, real(vectors.At(row, src)))
		}
	}
	return outVals, outVecs, nil
}
