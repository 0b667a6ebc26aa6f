package utils

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// CopyVec returns an independent copy of v, so later mutation of the
// argument cannot reach the copy.
func CopyVec(v *mat.VecDense) *mat.VecDense {
	c := mat.NewVecDense(v.Len(), nil)
	c.CopyVec(v)
	return c
}

// SaveMatrix writes m to path in the gonum binary encoding.
func SaveMatrix(path string, m *mat.Dense) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadMatrix reads a matrix written by SaveMatrix.
func LoadMatrix(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode matrix %s: %w", path, err)
	}
	return &m, nil
}

// SaveVector writes v to path in the gonum binary encoding.
func SaveVector(path string, v *mat.VecDense) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadVector reads a vector written by SaveVector.
func LoadVector(path string) (*mat.VecDense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var v mat.VecDense
	if err := v.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode vector %s: %w", path, err)
	}
	return &v, nil
}

// SaveScalar writes one float64 to path as 8 little-endian bytes.
func SaveScalar(path string, v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	if err := os.WriteFile(path, buf[:], 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadScalar reads a float64 written by SaveScalar.
func LoadScalar(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("scalar file %s has %d bytes, want 8", path, len(data))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
}

// WriteIndexedValues writes values as "<index> <value>" lines, one per
// entry, indices counting from 0. The value formatting is the shortest
// representation that round-trips.
func WriteIndexedValues(path string, values []float64) error {
	var sb strings.Builder
	for i, v := range values {
		fmt.Fprintf(&sb, "%d %v\n", i, v)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
