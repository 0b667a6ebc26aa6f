// Package space provides the vector-space abstraction the decomposition
// engines are written against: one capability set covering inner products,
// norms and linear combinations, implemented both by the full discretized
// field space (participant-partitioned, collective products) and by the
// small dense reduced space used in online contexts.
package space

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/comm"
)

// VectorSpace is the capability set shared by the full field space and the
// reduced online space. Engines built against it never know which one they
// run in.
//
// InnerProduct and Norm are collective over the space's participant group;
// every participant must call them in lockstep. LinearCombination and
// NewVector are local.
type VectorSpace interface {
	// Dim is this participant's local dimension.
	Dim() int

	// NewVector returns a zero vector of the local dimension.
	NewVector() *mat.VecDense

	// InnerProduct computes the full inner product of a and b under the
	// space's operator (Euclidean when no operator is set). Collective.
	InnerProduct(a, b *mat.VecDense) float64

	// Norm is the inner-product norm of a. Collective.
	Norm(a *mat.VecDense) float64

	// LinearCombination returns sum_i w[i]*vecs[i] as a new vector. Local.
	LinearCombination(vecs []*mat.VecDense, w []float64) *mat.VecDense

	// Comm is the participant group this space computes over.
	Comm() comm.Communicator
}

// FieldSpace is the full discretized field space. Each participant holds a
// disjoint block of the global degrees of freedom; inner products combine
// per-participant partial sums through the group's all-reduce. The optional
// operator is the participant's diagonal block of the global form, which is
// exact for element-block-diagonal operators such as DG mass matrices over
// an element-aligned partition.
type FieldSpace struct {
	dim  int
	x    Operator
	c    comm.Communicator
	work *mat.VecDense
}

// NewFieldSpace creates the field space over this participant's localDim
// degrees of freedom. x may be nil for the Euclidean form; c may be nil for
// a single-participant computation.
func NewFieldSpace(localDim int, x Operator, c comm.Communicator) *FieldSpace {
	if localDim < 1 {
		panic(fmt.Sprintf("space: local dimension must be positive, got %d", localDim))
	}
	if x != nil && x.Dim() != localDim {
		panic(fmt.Sprintf("space: operator dimension %d does not match local dimension %d",
			x.Dim(), localDim))
	}
	if c == nil {
		c = comm.Self()
	}
	return &FieldSpace{
		dim:  localDim,
		x:    x,
		c:    c,
		work: mat.NewVecDense(localDim, nil),
	}
}

func (f *FieldSpace) Dim() int                { return f.dim }
func (f *FieldSpace) Comm() comm.Communicator { return f.c }

func (f *FieldSpace) NewVector() *mat.VecDense {
	return mat.NewVecDense(f.dim, nil)
}

func (f *FieldSpace) InnerProduct(a, b *mat.VecDense) float64 {
	sum := [1]float64{localDot(f.x, f.work, a, b)}
	f.c.AllReduceSum(sum[:])
	return sum[0]
}

func (f *FieldSpace) Norm(a *mat.VecDense) float64 {
	return math.Sqrt(f.InnerProduct(a, a))
}

func (f *FieldSpace) LinearCombination(vecs []*mat.VecDense, w []float64) *mat.VecDense {
	return linearCombination(f.dim, vecs, w)
}

// OnlineSpace is the small dense reduced space. It is always serial: online
// structures are replicated on every participant, so its collectives reduce
// over a single-member group.
type OnlineSpace struct {
	dim  int
	x    Operator
	work *mat.VecDense
}

// NewOnlineSpace creates a reduced space of dimension n with an optional
// inner-product operator.
func NewOnlineSpace(n int, x Operator) *OnlineSpace {
	if n < 1 {
		panic(fmt.Sprintf("space: online dimension must be positive, got %d", n))
	}
	if x != nil && x.Dim() != n {
		panic(fmt.Sprintf("space: operator dimension %d does not match online dimension %d",
			x.Dim(), n))
	}
	return &OnlineSpace{
		dim:  n,
		x:    x,
		work: mat.NewVecDense(n, nil),
	}
}

func (o *OnlineSpace) Dim() int                { return o.dim }
func (o *OnlineSpace) Comm() comm.Communicator { return comm.Self() }

func (o *OnlineSpace) NewVector() *mat.VecDense {
	return mat.NewVecDense(o.dim, nil)
}

func (o *OnlineSpace) InnerProduct(a, b *mat.VecDense) float64 {
	return localDot(o.x, o.work, a, b)
}

func (o *OnlineSpace) Norm(a *mat.VecDense) float64 {
	return math.Sqrt(o.InnerProduct(a, a))
}

func (o *OnlineSpace) LinearCombination(vecs []*mat.VecDense, w []float64) *mat.VecDense {
	return linearCombination(o.dim, vecs, w)
}

// localDot computes a'*X*b over the local block, using work as scratch for
// the operator application. X == nil means the Euclidean form.
func localDot(x Operator, work, a, b *mat.VecDense) float64 {
	if x == nil {
		return mat.Dot(a, b)
	}
	x.Apply(work, b)
	return mat.Dot(a, work)
}

func linearCombination(dim int, vecs []*mat.VecDense, w []float64) *mat.VecDense {
	if len(vecs) != len(w) {
		panic(fmt.Sprintf("space: %d vectors but %d coefficients", len(vecs), len(w)))
	}
	out := mat.NewVecDense(dim, nil)
	for i, v := range vecs {
		out.AddScaledVec(out, w[i], v)
	}
	return out
}
