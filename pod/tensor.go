package pod

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/space"
)

// TensorPOD decomposes assembled operator snapshots, the variant consumed
// by interpolation-based operator approximation: each snapshot is a
// parameter sample of an assembled matrix, flattened row-major so the
// shared engine sees plain vectors. The space dimension must equal the
// flattened operator size.
type TensorPOD struct {
	Engine
}

// NewTensorPOD creates an operator decomposition over sp.
func NewTensorPOD(sp space.VectorSpace) *TensorPOD {
	return &TensorPOD{Engine: newEngine(sp)}
}

// StoreSnapshot appends the row-major flattening of a.
func (p *TensorPOD) StoreSnapshot(a mat.Matrix) {
	r, c := a.Dims()
	if r*c != p.sp.Dim() {
		panic(fmt.Sprintf("pod: %dx%d operator flattens to %d entries, space dimension is %d",
			r, c, r*c, p.sp.Dim()))
	}
	flat := mat.NewVecDense(r*c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			flat.SetVec(i*c+j, a.At(i, j))
		}
	}
	p.snapshots.Append(flat)
}
