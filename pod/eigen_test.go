package pod

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestEigenDecompose_Ordering(t *testing.T) {
	c := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 5, 0,
		0, 0, 1,
	})

	values, vectors, err := eigenDecompose(c)
	if err != nil {
		t.Fatalf("Decomposition failed: %v", err)
	}

	assert.InDeltaSlice(t, []float64{5, 2, 1}, values, 1.e-12)

	// Column k is the eigenvector of values[k]; for a diagonal matrix these
	// are unit vectors up to sign
	expectedRows := []int{1, 0, 2}
	for col, row := range expectedRows {
		for r := 0; r < 3; r++ {
			got := math.Abs(vectors.At(r, col))
			want := 0.0
			if r == row {
				want = 1.0
			}
			assert.InDelta(t, want, got, 1.e-12, "vector %d entry %d", col, r)
		}
	}
}

func TestEigenDecompose_ComplexPairIsFatal(t *testing.T) {
	// Rotation matrix: eigenvalues +/- i, which a symmetric correlation
	// matrix can never produce
	c := mat.NewDense(2, 2, []float64{
		0, -1,
		1, 0,
	})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for non-real eigenvalue")
		}
	}()
	eigenDecompose(c)
}

func TestRetainedEnergyProfile(t *testing.T) {
	testCases := []struct {
		name        string
		eigenvalues []float64
		expected    []float64
	}{
		{"decaying", []float64{2, 1, 1}, []float64{0.5, 0.75, 1}},
		{"negative_by_magnitude", []float64{-2, 1}, []float64{2. / 3, 1}},
		{"all_zero", []float64{0, 0, 0}, []float64{1, 1, 1}},
		{"single", []float64{7}, []float64{1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := retainedEnergyProfile(tc.eigenvalues)
			assert.InDeltaSlice(t, tc.expected, got, 1.e-14)
			for i := 1; i < len(got); i++ {
				if got[i] < got[i-1] {
					t.Errorf("Profile decreases at %d: %v -> %v", i, got[i-1], got[i])
				}
			}
		})
	}
}
