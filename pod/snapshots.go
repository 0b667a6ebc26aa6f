package pod

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/utils"
)

// SnapshotsContainer is the ordered, append-only snapshot collection the
// engine consumes. Insertion order defines the correlation-matrix column
// order. Implementations copy on append, so a stored snapshot is immutable
// no matter what the producer does with its vector afterwards.
type SnapshotsContainer interface {
	// Append stores a copy of v as the next snapshot.
	Append(v *mat.VecDense)

	// Len is the number of stored snapshots.
	Len() int

	// At returns the i-th snapshot. The returned vector is the stored one;
	// callers must not mutate it.
	At(i int) *mat.VecDense

	// Clear removes all stored snapshots.
	Clear()
}

// SnapshotMatrix is the default container: an ordered sequence of
// participant-local snapshot blocks, column i holding the i-th snapshot.
type SnapshotMatrix struct {
	dim  int
	cols []*mat.VecDense
}

// NewSnapshotMatrix creates an empty container for snapshots of the given
// participant-local dimension.
func NewSnapshotMatrix(dim int) *SnapshotMatrix {
	if dim < 1 {
		panic(fmt.Sprintf("pod: snapshot dimension must be positive, got %d", dim))
	}
	return &SnapshotMatrix{dim: dim}
}

func (s *SnapshotMatrix) Append(v *mat.VecDense) {
	if v.Len() != s.dim {
		panic(fmt.Sprintf("pod: snapshot length %d does not match container dimension %d",
			v.Len(), s.dim))
	}
	s.cols = append(s.cols, utils.CopyVec(v))
}

func (s *SnapshotMatrix) Len() int { return len(s.cols) }

func (s *SnapshotMatrix) At(i int) *mat.VecDense {
	if i < 0 || i >= len(s.cols) {
		panic(fmt.Sprintf("pod: snapshot index %d out of range [0,%d)", i, len(s.cols)))
	}
	return s.cols[i]
}

func (s *SnapshotMatrix) Clear() { s.cols = nil }
