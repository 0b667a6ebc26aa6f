package space

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Operator is a symmetric bilinear form over the participant-local block of
// a vector space. Implementations apply their matrix without exposing its
// storage, so block-structured discretization operators can provide fast
// paths instead of dense multiplication.
type Operator interface {
	// Dim is the local row/column dimension.
	Dim() int

	// Apply stores op*src into dst. Both vectors must have length Dim.
	Apply(dst, src *mat.VecDense)
}

// denseOperator wraps an explicit matrix as an Operator.
type denseOperator struct {
	m mat.Matrix
	n int
}

// NewDenseOperator wraps a square matrix as an inner-product operator. The
// matrix is referenced, not copied; it must stay unmodified while in use.
func NewDenseOperator(m mat.Matrix) Operator {
	r, c := m.Dims()
	if r != c {
		panic(fmt.Sprintf("space: operator matrix must be square, got %dx%d", r, c))
	}
	return &denseOperator{m: m, n: r}
}

func (d *denseOperator) Dim() int { return d.n }

func (d *denseOperator) Apply(dst, src *mat.VecDense) {
	dst.MulVec(d.m, src)
}
