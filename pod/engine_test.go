package pod

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/comm"
	"github.com/notargets/ROMKernel/space"
)

// ============================================================================
// Section 1: Apply on concrete scenarios
// ============================================================================

func TestApply_TwoOrthogonalSnapshots(t *testing.T) {
	sp := space.NewFieldSpace(3, nil, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(3, []float64{1, 0, 0}))
	p.StoreSnapshot(mat.NewVecDense(3, []float64{0, 1, 0}))

	eigenvalues, basis, n, err := p.Apply(2, 0.01)
	require.NoError(t, err)

	if n != 2 {
		t.Fatalf("Expected 2 retained modes, got %d", n)
	}
	assert.InDeltaSlice(t, []float64{1, 1}, eigenvalues, 1.e-12)
	assert.InDeltaSlice(t, []float64{0.5, 1.0}, p.RetainedEnergy(), 1.e-12)

	// The basis is an orthonormal pair inside span{e1, e2}; the exact
	// vectors may be any rotation since the eigenvalues are degenerate
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, sp.InnerProduct(basis.At(i), basis.At(j)), 1.e-12)
		}
		if z := basis.At(i).AtVec(2); z != 0 {
			assert.InDelta(t, 0.0, z, 1.e-12, "basis member %d leaves the snapshot span", i)
		}
	}
}

func TestApply_TruncatesOnRetainedEnergy(t *testing.T) {
	sp := space.NewFieldSpace(4, nil, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(4, []float64{10, 0, 0, 0}))
	p.StoreSnapshot(mat.NewVecDense(4, []float64{0, 1, 0, 0}))
	p.StoreSnapshot(mat.NewVecDense(4, []float64{0, 0, 0.1, 0}))

	// Spectrum {100, 1, 0.01}: the first mode already retains 99.0% > 95%
	eigenvalues, basis, n, err := p.Apply(3, 0.05)
	require.NoError(t, err)

	if n != 1 {
		t.Fatalf("Expected truncation to 1 mode, got %d", n)
	}
	require.Len(t, eigenvalues, 1)
	assert.InDelta(t, 100.0, eigenvalues[0], 1.e-10)
	require.Equal(t, 1, basis.Len())
	assert.InDelta(t, 1.0, sp.Norm(basis.At(0)), 1.e-12)

	retained := p.RetainedEnergy()
	require.Len(t, retained, 3)
	if retained[0] <= 0.95 {
		t.Errorf("First mode retains %v, expected > 0.95", retained[0])
	}
}

func TestApply_ZeroToleranceRetainsCap(t *testing.T) {
	sp := space.NewFieldSpace(4, nil, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(4, []float64{3, 1, 0, 0}))
	p.StoreSnapshot(mat.NewVecDense(4, []float64{0, 2, 1, 0}))
	p.StoreSnapshot(mat.NewVecDense(4, []float64{0, 0, 1.5, 1}))

	// Retained energy never exceeds 1, so tol = 0 runs to the cap
	_, _, n, err := p.Apply(3, 0)
	require.NoError(t, err)
	if n != 3 {
		t.Errorf("Expected all 3 modes with tol=0, got %d", n)
	}

	_, _, n, err = p.Apply(2, 0)
	require.NoError(t, err)
	if n != 2 {
		t.Errorf("Expected cap of 2 modes with tol=0, got %d", n)
	}
}

func TestApply_NmaxClampedToSnapshotCount(t *testing.T) {
	sp := space.NewFieldSpace(3, nil, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(3, []float64{1, 2, 0}))
	p.StoreSnapshot(mat.NewVecDense(3, []float64{0, 1, 1}))

	_, basis, n, err := p.Apply(10, 0)
	require.NoError(t, err)
	if n != 2 {
		t.Errorf("Expected clamp to 2 snapshots, got %d modes", n)
	}
	require.Equal(t, n, basis.Len())
}

func TestApply_OrthonormalBasis(t *testing.T) {
	sp := space.NewFieldSpace(6, nil, nil)
	p := NewFieldPOD(sp)
	snapshots := [][]float64{
		{3, 1, 0, 0, 0.5, 0},
		{0, 2, 1, 0, 0, 0.25},
		{0, 0, 1.5, 1, 0, 0},
		{1, 0, 0, 1, 0.75, 0},
	}
	for _, s := range snapshots {
		p.StoreSnapshot(mat.NewVecDense(6, s))
	}

	_, basis, n, err := p.Apply(4, 0)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			got := sp.InnerProduct(basis.At(i), basis.At(j))
			assert.InDelta(t, want, got, 1.e-10, "product of modes %d and %d", i, j)
		}
	}
}

func TestApply_WeightedInnerProduct(t *testing.T) {
	// X = diag(2, 1, 1): orthonormality must hold in the weighted product
	x := space.NewDenseOperator(mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}))
	sp := space.NewFieldSpace(3, x, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(3, []float64{1, 1, 0}))
	p.StoreSnapshot(mat.NewVecDense(3, []float64{0, 1, 1}))

	_, basis, n, err := p.Apply(2, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, sp.InnerProduct(basis.At(i), basis.At(i)), 1.e-12,
			"mode %d not unit in the weighted product", i)
	}
	assert.InDelta(t, 0.0, sp.InnerProduct(basis.At(0), basis.At(1)), 1.e-12)
}

// ============================================================================
// Section 2: Degenerate and policy cases
// ============================================================================

func TestApply_AllZeroSnapshots(t *testing.T) {
	sp := space.NewFieldSpace(4, nil, nil)
	p := NewFieldPOD(sp)
	for i := 0; i < 3; i++ {
		p.StoreSnapshot(sp.NewVector())
	}

	eigenvalues, basis, n, err := p.Apply(3, 0.01)
	require.NoError(t, err)

	if n != 1 {
		t.Fatalf("Expected 1 mode for all-zero snapshots, got %d", n)
	}
	require.Len(t, eigenvalues, 1)
	assert.InDelta(t, 0.0, eigenvalues[0], 1.e-14)
	assert.InDeltaSlice(t, []float64{1, 1, 1}, p.RetainedEnergy(), 1.e-15)

	// The zero-norm candidate is enriched unnormalized
	assert.InDelta(t, 0.0, sp.Norm(basis.At(0)), 1.e-15)
}

func TestApply_Preconditions(t *testing.T) {
	t.Run("NoSnapshots", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for Apply without snapshots")
			}
		}()
		NewFieldPOD(space.NewFieldSpace(2, nil, nil)).Apply(1, 0.1)
	})

	t.Run("NonPositiveNmax", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for Nmax = 0")
			}
		}()
		p := NewFieldPOD(space.NewFieldSpace(2, nil, nil))
		p.StoreSnapshot(mat.NewVecDense(2, []float64{1, 0}))
		p.Apply(0, 0.1)
	})
}

func TestClear(t *testing.T) {
	sp := space.NewFieldSpace(2, nil, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(2, []float64{1, 0}))
	_, _, _, err := p.Apply(1, 0)
	require.NoError(t, err)

	p.Clear()
	if p.Snapshots().Len() != 0 {
		t.Errorf("Expected empty container after Clear, got %d", p.Snapshots().Len())
	}
	if len(p.Eigenvalues()) != 0 {
		t.Errorf("Expected empty eigenvalue sequence after Clear, got %d", len(p.Eigenvalues()))
	}
}

func TestStoreWeightedSnapshot(t *testing.T) {
	// A weight w scales the single-snapshot eigenvalue by w^2
	sp := space.NewFieldSpace(3, nil, nil)

	plain := NewFieldPOD(sp)
	plain.StoreSnapshot(mat.NewVecDense(3, []float64{1, 2, 2}))
	eigsPlain, _, _, err := plain.Apply(1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, eigsPlain[0], 1.e-12)

	weighted := NewFieldPOD(sp)
	weighted.StoreWeightedSnapshot(mat.NewVecDense(3, []float64{1, 2, 2}), 2)
	eigsWeighted, _, _, err := weighted.Apply(1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 36.0, eigsWeighted[0], 1.e-12)
}

// ============================================================================
// Section 3: Tensor variant
// ============================================================================

func TestTensorPOD_MatchesFlattenedFieldPOD(t *testing.T) {
	a1 := mat.NewDense(2, 2, []float64{1, 0.5, 0, 2})
	a2 := mat.NewDense(2, 2, []float64{0, 1, 1.5, 0})

	tp := NewTensorPOD(space.NewOnlineSpace(4, nil))
	tp.StoreSnapshot(a1)
	tp.StoreSnapshot(a2)
	eigsTensor, _, nTensor, err := tp.Apply(2, 0)
	require.NoError(t, err)

	fp := NewFieldPOD(space.NewOnlineSpace(4, nil))
	fp.StoreSnapshot(mat.NewVecDense(4, []float64{1, 0.5, 0, 2}))
	fp.StoreSnapshot(mat.NewVecDense(4, []float64{0, 1, 1.5, 0}))
	eigsField, _, nField, err := fp.Apply(2, 0)
	require.NoError(t, err)

	require.Equal(t, nField, nTensor)
	assert.InDeltaSlice(t, eigsField, eigsTensor, 1.e-12)
}

func TestTensorPOD_DimensionMismatch(t *testing.T) {
	tp := NewTensorPOD(space.NewOnlineSpace(4, nil))
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for operator that does not flatten to the space dimension")
		}
	}()
	tp.StoreSnapshot(mat.NewDense(3, 2, nil))
}

// ============================================================================
// Section 4: Partitioned execution
// ============================================================================

func TestApply_PartitionedMatchesSerial(t *testing.T) {
	globalSnapshots := [][]float64{
		{1, 2, 0, 0, 1, 0.5},
		{0, 1, 1, 0.25, 0, 0},
		{2, 0, 0, 1, 0, 1},
	}

	serialSp := space.NewFieldSpace(6, nil, nil)
	serial := NewFieldPOD(serialSp)
	for _, s := range globalSnapshots {
		serial.StoreSnapshot(mat.NewVecDense(6, s))
	}
	eigsSerial, _, nSerial, err := serial.Apply(3, 0)
	require.NoError(t, err)

	const parts = 2
	ranges := comm.BlockRanges(6, parts)
	members := comm.NewLocalGroup(parts)

	eigsByRank := make([][]float64, parts)
	nByRank := make([]int, parts)
	var wg sync.WaitGroup
	errs := make([]error, parts)
	for rank := 0; rank < parts; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			r := ranges[rank]
			sp := space.NewFieldSpace(r.Count, nil, members[rank])
			p := NewFieldPOD(sp)
			for _, s := range globalSnapshots {
				p.StoreSnapshot(mat.NewVecDense(r.Count, s[r.Start:r.End()]))
			}
			eigsByRank[rank], _, nByRank[rank], errs[rank] = p.Apply(3, 0)
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < parts; rank++ {
		require.NoError(t, errs[rank], "rank %d", rank)
		require.Equal(t, nSerial, nByRank[rank], "rank %d retained count", rank)
		assert.InDeltaSlice(t, eigsSerial, eigsByRank[rank], 1.e-9, "rank %d eigenvalues", rank)
	}
}

// ============================================================================
// Section 5: Diagnostics persistence
// ============================================================================

func TestSaveEigenvaluesFile(t *testing.T) {
	dir := t.TempDir()
	sp := space.NewFieldSpace(3, nil, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(3, []float64{2, 0, 0}))
	p.StoreSnapshot(mat.NewVecDense(3, []float64{0, 1, 0}))
	_, _, _, err := p.Apply(2, 0)
	require.NoError(t, err)

	require.NoError(t, p.SaveEigenvaluesFile(dir, "eigenvalues.txt"))
	require.NoError(t, p.SaveRetainedEnergyFile(dir, "retained_energy.txt"))

	values := readIndexedValues(t, filepath.Join(dir, "eigenvalues.txt"))
	assert.InDeltaSlice(t, p.Eigenvalues(), values, 1.e-12)

	retained := readIndexedValues(t, filepath.Join(dir, "retained_energy.txt"))
	assert.InDeltaSlice(t, p.RetainedEnergy(), retained, 1.e-12)
}

func TestSaveEigenvaluesFile_MissingDirectory(t *testing.T) {
	sp := space.NewFieldSpace(2, nil, nil)
	p := NewFieldPOD(sp)
	p.StoreSnapshot(mat.NewVecDense(2, []float64{1, 0}))
	_, _, _, err := p.Apply(1, 0)
	require.NoError(t, err)

	if err := p.SaveEigenvaluesFile(filepath.Join(t.TempDir(), "absent"), "e.txt"); err == nil {
		t.Error("Expected error for missing output directory")
	}
}

func TestSaveEigenvaluesFile_OwnerWritesForGroup(t *testing.T) {
	dir := t.TempDir()
	globalSnapshots := [][]float64{
		{1, 0, 0, 1},
		{0, 2, 1, 0},
	}

	const parts = 2
	ranges := comm.BlockRanges(4, parts)
	members := comm.NewLocalGroup(parts)

	var wg sync.WaitGroup
	errs := make([]error, parts)
	for rank := 0; rank < parts; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			r := ranges[rank]
			sp := space.NewFieldSpace(r.Count, nil, members[rank])
			p := NewFieldPOD(sp)
			for _, s := range globalSnapshots {
				p.StoreSnapshot(mat.NewVecDense(r.Count, s[r.Start:r.End()]))
			}
			if _, _, _, err := p.Apply(2, 0); err != nil {
				errs[rank] = err
				return
			}
			errs[rank] = p.SaveEigenvaluesFile(dir, "eigenvalues.txt")
		}(rank)
	}
	wg.Wait()
	for rank, err := range errs {
		require.NoError(t, err, "rank %d", rank)
	}

	// Exactly one file, written by the owner, with one line per snapshot
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	values := readIndexedValues(t, filepath.Join(dir, "eigenvalues.txt"))
	require.Len(t, values, len(globalSnapshots))
}

func readIndexedValues(t *testing.T, path string) []float64 {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var values []float64
	for i, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fields := strings.Fields(line)
		require.Len(t, fields, 2, "line %d", i)
		require.Equal(t, strconv.Itoa(i), fields[0], "index on line %d", i)
		v, err := strconv.ParseFloat(fields[1], 64)
		require.NoError(t, err, "value on line %d", i)
		values = append(values, v)
	}
	return values
}
