// Package affine stores the parameter-independent terms of an affine
// operator expansion. A Storage is a fixed-capacity container, indexed by
// one term index q or by a pair (q1, q2), whose elements are dense
// matrices, vectors, scalars, or nested storages. The container carries a
// lazily computed dense view of its contents that is cached until an
// element is overwritten, and it persists itself through a YAML manifest
// plus one artifact file per element.
package affine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Storage holds the Q (or Q1 x Q2) terms of an affine expansion. Elements
// are set and retrieved by index; capacity is fixed at construction. The
// zero value is not usable, construct with NewStorage, NewStorage2, or
// NewStorageFrom.
type Storage struct {
	rows, cols int // cols == 0 for a single-indexed storage
	double     bool
	content    []interface{}
	view       *mat.Dense // cached dense view, nil when stale
}

// NewStorage returns an empty single-indexed storage with q slots.
func NewStorage(q int) *Storage {
	if q < 1 {
		panic("affine: expansion size must be positive")
	}
	return &Storage{rows: q, content: make([]interface{}, q)}
}

// NewStorage2 returns an empty double-indexed storage with q1 x q2 slots.
func NewStorage2(q1, q2 int) *Storage {
	if q1 < 1 || q2 < 1 {
		panic("affine: expansion sizes must be positive")
	}
	return &Storage{
		rows:    q1,
		cols:    q2,
		double:  true,
		content: make([]interface{}, q1*q2),
	}
}

// NewStorageFrom returns a storage of the same shape as other that holds
// references to the same elements. The cached dense view, if other has
// one, is shared at construction time; afterwards each storage invalidates
// only its own cache when an element is overwritten.
func NewStorageFrom(other *Storage) *Storage {
	s := &Storage{
		rows:    other.rows,
		cols:    other.cols,
		double:  other.double,
		content: make([]interface{}, len(other.content)),
		view:    other.view,
	}
	copy(s.content, other.content)
	return s
}

// Len returns the total number of slots, Q for a single-indexed storage
// and Q1*Q2 for a double-indexed one.
func (s *Storage) Len() int { return len(s.content) }

// Dims returns the index bounds. A single-indexed storage reports (Q, 0).
func (s *Storage) Dims() (int, int) { return s.rows, s.cols }

// IsDouble reports whether the storage is indexed by a pair of terms.
func (s *Storage) IsDouble() bool { return s.double }

// Set stores item at term index i of a single-indexed storage and
// invalidates the cached dense view. Accepted item types are *mat.Dense,
// *mat.VecDense, float64, and *Storage; anything else panics.
func (s *Storage) Set(i int, item interface{}) {
	if s.double {
		panic("affine: Set on a double-indexed storage, use Set2")
	}
	s.checkIndex(i, s.rows)
	s.content[i] = validated(item)
	s.view = nil
}

// At returns the element at term index i of a single-indexed storage, or
// nil if the slot has not been set.
func (s *Storage) At(i int) interface{} {
	if s.double {
		panic("affine: At on a double-indexed storage, use At2")
	}
	s.checkIndex(i, s.rows)
	return s.content[i]
}

// Set2 stores item at term index (i, j) of a double-indexed storage and
// invalidates the cached dense view.
func (s *Storage) Set2(i, j int, item interface{}) {
	if !s.double {
		panic("affine: Set2 on a single-indexed storage, use Set")
	}
	s.checkIndex(i, s.rows)
	s.checkIndex(j, s.cols)
	s.content[i*s.cols+j] = validated(item)
	s.view = nil
}

// At2 returns the element at term index (i, j) of a double-indexed
// storage, or nil if the slot has not been set.
func (s *Storage) At2(i, j int) interface{} {
	if !s.double {
		panic("affine: At2 on a single-indexed storage, use At")
	}
	s.checkIndex(i, s.rows)
	s.checkIndex(j, s.cols)
	return s.content[i*s.cols+j]
}

func (s *Storage) checkIndex(i, bound int) {
	if i < 0 || i >= bound {
		panic(fmt.Sprintf("affine: term index %d out of range [0,%d)", i, bound))
	}
}

func validated(item interface{}) interface{} {
	switch item.(type) {
	case *mat.Dense, *mat.VecDense, float64, *Storage:
		return item
	}
	panic(fmt.Sprintf("affine: unsupported item type %T", item))
}

// AsMatrix returns a dense view of the stored terms, computing it on first
// use and reusing the cached matrix until an element is overwritten. For a
// single-indexed storage the view has Q rows, row q holding the entries of
// term q flattened row-major; every term must flatten to the same length.
// For a double-indexed storage all terms must be scalars and the view is
// the Q1 x Q2 matrix of their values. Unset slots and nested storages have
// no dense view and panic.
func (s *Storage) AsMatrix() *mat.Dense {
	if s.view == nil {
		s.view = s.denseView()
	}
	return s.view
}

func (s *Storage) denseView() *mat.Dense {
	if s.double {
		v := mat.NewDense(s.rows, s.cols, nil)
		for i := 0; i < s.rows; i++ {
			for j := 0; j < s.cols; j++ {
				item := s.content[i*s.cols+j]
				x, ok := item.(float64)
				if !ok {
					panic(fmt.Sprintf("affine: dense view of a double-indexed storage needs scalar terms, term (%d,%d) is %T", i, j, item))
				}
				v.Set(i, j, x)
			}
		}
		return v
	}

	width := -1
	rows := make([][]float64, s.rows)
	for q := 0; q < s.rows; q++ {
		row := flatten(s.content[q], q)
		if width < 0 {
			width = len(row)
		} else if len(row) != width {
			panic(fmt.Sprintf("affine: dense view needs terms of equal size, term %d flattens to %d entries, want %d", q, len(row), width))
		}
		rows[q] = row
	}
	v := mat.NewDense(s.rows, width, nil)
	for q, row := range rows {
		v.SetRow(q, row)
	}
	return v
}

func flatten(item interface{}, q int) []float64 {
	switch x := item.(type) {
	case float64:
		return []float64{x}
	case *mat.VecDense:
		out := make([]float64, x.Len())
		for i := range out {
			out[i] = x.AtVec(i)
		}
		return out
	case *mat.Dense:
		r, c := x.Dims()
		out := make([]float64, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out[i*c+j] = x.At(i, j)
			}
		}
		return out
	case *Storage:
		panic(fmt.Sprintf("affine: dense view undefined for nested storage at term %d", q))
	case nil:
		panic(fmt.Sprintf("affine: dense view of storage with unset term %d", q))
	}
	panic(fmt.Sprintf("affine: unsupported item type %T", item))
}

// viewable reports whether denseView would succeed, so that loading can
// eagerly rebuild the cache without panicking on contents that have no
// dense representation.
func (s *Storage) viewable() bool {
	if s.double {
		for _, item := range s.content {
			if _, ok := item.(float64); !ok {
				return false
			}
		}
		return true
	}
	width := -1
	for _, item := range s.content {
		var n int
		switch x := item.(type) {
		case float64:
			n = 1
		case *mat.VecDense:
			n = x.Len()
		case *mat.Dense:
			r, c := x.Dims()
			n = r * c
		default:
			return false
		}
		if width < 0 {
			width = n
		} else if n != width {
			return false
		}
	}
	return true
}
