package pod

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CorrelationAssembler computes the participant-local Gram contribution of a
// snapshot set: G[i,j] = local part of <s_i, s_j>. The engine all-reduces
// the assembled matrix, so an assembler must realize the same inner product
// as the engine's space over the local block; the device implementation
// covers the Euclidean form. Assemblers return a fresh dense matrix.
type CorrelationAssembler interface {
	Assemble(snapshots []*mat.VecDense) (*mat.Dense, error)
}

// correlationMatrix builds the N x N correlation matrix of the stored
// snapshots. Without an assembler it issues one collective inner product per
// unordered pair, mirroring the value into both triangles; participants
// iterate pairs in the same order, keeping the collective call counts in
// lockstep. With an assembler it issues a single all-reduce over the locally
// assembled Gram matrix.
func (e *Engine) correlationMatrix() (*mat.Dense, error) {
	views := e.snapshotViews()
	n := len(views)

	if e.assembler != nil {
		g, err := e.assembler.Assemble(views)
		if err != nil {
			return nil, fmt.Errorf("correlation assembly: %w", err)
		}
		if r, c := g.Dims(); r != n || c != n {
			return nil, fmt.Errorf("correlation assembly returned %dx%d for %d snapshots", r, c, n)
		}
		g = mat.DenseCopyOf(g) // compact storage for the in-place reduce
		e.sp.Comm().AllReduceSum(g.RawMatrix().Data)
		return g, nil
	}

	c := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := e.sp.InnerProduct(views[i], views[j])
			c.Set(i, j, v)
			if i != j {
				c.Set(j, i, v)
			}
		}
	}
	return c, nil
}

// snapshotViews collects the stored snapshot references in order.
func (e *Engine) snapshotViews() []*mat.VecDense {
	views := make([]*mat.VecDense, e.snapshots.Len())
	for i := range views {
		views[i] = e.snapshots.At(i)
	}
	return views
}
