package pod

import (
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/space"
)

// FieldPOD decomposes field snapshots: each snapshot is one sampled
// high-dimensional solution vector, stored participant-local.
type FieldPOD struct {
	Engine
}

// NewFieldPOD creates a field decomposition over sp.
func NewFieldPOD(sp space.VectorSpace) *FieldPOD {
	return &FieldPOD{Engine: newEngine(sp)}
}

// StoreSnapshot appends a copy of v to the snapshot collection.
func (p *FieldPOD) StoreSnapshot(v *mat.VecDense) {
	p.snapshots.Append(v)
}

// StoreWeightedSnapshot appends w*v, the quadrature-weighted form used when
// snapshots sample a time trajectory or an integration rule.
func (p *FieldPOD) StoreWeightedSnapshot(v *mat.VecDense, w float64) {
	scaled := mat.NewVecDense(v.Len(), nil)
	scaled.ScaleVec(w, v)
	p.snapshots.Append(scaled)
}
