// Package pod builds reduced orthonormal bases from snapshot collections by
// proper orthogonal decomposition: the eigendecomposition of the snapshots'
// correlation matrix under a caller-chosen inner product, followed by
// energy-ranked truncation. The engine runs unchanged over the full
// partitioned field space and the small dense online space; all inner
// products go through the space abstraction and are collective over its
// participant group.
package pod

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/space"
	"github.com/notargets/ROMKernel/utils"
)

// Engine carries the decomposition state shared by the concrete variants.
// It provides everything except snapshot storage, whose signature differs
// between field and tensor snapshots. Instances are single-writer: methods
// must not be called concurrently from one participant.
type Engine struct {
	sp             space.VectorSpace
	snapshots      SnapshotsContainer
	eigenvalues    []float64
	retainedEnergy []float64
	assembler      CorrelationAssembler
}

func newEngine(sp space.VectorSpace) Engine {
	return Engine{
		sp:        sp,
		snapshots: NewSnapshotMatrix(sp.Dim()),
	}
}

// Space returns the vector space the engine decomposes in.
func (e *Engine) Space() space.VectorSpace { return e.sp }

// Snapshots exposes the stored snapshot collection.
func (e *Engine) Snapshots() SnapshotsContainer { return e.snapshots }

// Eigenvalues returns a copy of the eigenvalue sequence computed by the
// last Apply, one value per stored snapshot, largest first.
func (e *Engine) Eigenvalues() []float64 {
	out := make([]float64, len(e.eigenvalues))
	copy(out, e.eigenvalues)
	return out
}

// RetainedEnergy returns a copy of the cumulative retained-energy profile
// computed by the last Apply.
func (e *Engine) RetainedEnergy() []float64 {
	out := make([]float64, len(e.retainedEnergy))
	copy(out, e.retainedEnergy)
	return out
}

// SetCorrelationAssembler installs an accelerated Gram assembler for the
// correlation matrix, replacing the pairwise collective products. Collective
// configuration: every participant of the group must install an equivalent
// assembler, or none.
func (e *Engine) SetCorrelationAssembler(a CorrelationAssembler) {
	e.assembler = a
}

// Clear empties the snapshot container and resets the eigenvalue sequence
// and energy profile.
func (e *Engine) Clear() {
	e.snapshots.Clear()
	e.eigenvalues = nil
	e.retainedEnergy = nil
}

// Apply runs the decomposition over the stored snapshots: builds the
// correlation matrix, eigendecomposes it, and enriches a fresh basis mode
// by mode until the retained energy exceeds 1-tol or Nmax modes are built,
// inclusive of the mode that first crosses the tolerance. It returns the
// eigenvalue sequence truncated to the retained count, the basis, and that
// count.
//
// At least one stored snapshot is a caller precondition. Nmax must be
// positive and is clamped to the snapshot count; tol = 0 retains all Nmax
// modes since the profile cannot exceed 1. Eigenvalues of any sign are
// accepted, kept in largest-real order, and weighed by magnitude in the
// energy profile. Collective.
func (e *Engine) Apply(Nmax int, tol float64) ([]float64, *space.BasisSet, int, error) {
	n := e.snapshots.Len()
	if n == 0 {
		panic("pod: Apply requires at least one stored snapshot")
	}
	if Nmax < 1 {
		panic(fmt.Sprintf("pod: Apply requires a positive modal cap, got %d", Nmax))
	}

	correlation, err := e.correlationMatrix()
	if err != nil {
		return nil, nil, 0, err
	}

	eigenvalues, eigenvectors, err := eigenDecompose(correlation)
	if err != nil {
		return nil, nil, 0, err
	}
	e.eigenvalues = eigenvalues
	e.retainedEnergy = retainedEnergyProfile(eigenvalues)

	if Nmax > n {
		Nmax = n
	}

	views := e.snapshotViews()
	basis := space.NewBasisSet(e.sp)
	coeffs := make([]float64, n)
	retained := 0
	for k := 0; k < Nmax; k++ {
		mat.Col(coeffs, k, eigenvectors)
		b := e.sp.LinearCombination(views, coeffs)
		if norm := e.sp.Norm(b); norm != 0 {
			b.ScaleVec(1/norm, b)
		}
		basis.Enrich(b)
		retained = k + 1
		if e.retainedEnergy[k] > 1-tol {
			break
		}
	}

	out := make([]float64, retained)
	copy(out, e.eigenvalues[:retained])
	return out, basis, retained, nil
}

// PrintEigenvalues prints the first n eigenvalues of the last Apply as
// "lambda_i = <value>" lines; n <= 0 prints all of them.
func (e *Engine) PrintEigenvalues(n int) {
	if n <= 0 || n > len(e.eigenvalues) {
		n = len(e.eigenvalues)
	}
	for i := 0; i < n; i++ {
		fmt.Printf("lambda_%d = %v\n", i, e.eigenvalues[i])
	}
}

// SaveEigenvaluesFile persists the eigenvalue sequence as "<index> <value>"
// lines. The I/O owner writes; every participant reaches the closing
// barrier even when the write fails, and the owner's error is returned
// after it. Collective.
func (e *Engine) SaveEigenvaluesFile(dir, name string) error {
	return e.saveIndexed(dir, name, e.eigenvalues)
}

// SaveRetainedEnergyFile persists the retained-energy profile in the same
// format and protocol as SaveEigenvaluesFile. Collective.
func (e *Engine) SaveRetainedEnergyFile(dir, name string) error {
	return e.saveIndexed(dir, name, e.retainedEnergy)
}

func (e *Engine) saveIndexed(dir, name string, values []float64) error {
	c := e.sp.Comm()
	var err error
	if c.IsIOOwner() {
		err = utils.WriteIndexedValues(filepath.Join(dir, name), values)
	}
	c.Barrier()
	return err
}
