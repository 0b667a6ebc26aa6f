// Package integration binds the reduction engine to nodal discontinuous
// Galerkin discretizations. A TetDomain adapts a tetrahedral element set
// into the vector space the engine reduces over: nodal fields flatten to
// element-major coefficient vectors and the element mass matrices supply
// the inner product that makes snapshot norms mesh independent.
package integration

import (
	"fmt"

	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"github.com/notargets/gocfd/DG3D/tetrahedra/tetelement"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/space"
)

// TetDomain is a tetrahedral element set viewed as a snapshot space.
type TetDomain struct {
	el *tetelement.Element3D
	np int
	k  int
}

// NewTetDomain reads meshfile and builds a tetrahedral element set of the
// given polynomial order.
func NewTetDomain(order int, meshfile string) (*TetDomain, error) {
	msh, err := readers.ReadMeshFile(meshfile)
	if err != nil {
		return nil, fmt.Errorf("integration: read mesh %s: %w", meshfile, err)
	}
	el, err := tetelement.NewElement3DFromMesh(order, msh)
	if err != nil {
		return nil, fmt.Errorf("integration: build order %d elements: %w", order, err)
	}
	dg := el.DG3D
	_, k := dg.J.Dims()
	return &TetDomain{el: el, np: dg.Np, k: k}, nil
}

// Order returns the polynomial order of the element set.
func (d *TetDomain) Order() int { return d.el.DG3D.N }

// Np returns the nodal points per element.
func (d *TetDomain) Np() int { return d.np }

// NumElements returns the element count of the mesh.
func (d *TetDomain) NumElements() int { return d.k }

// Dim returns the total nodal degree-of-freedom count, Np per element
// across all elements.
func (d *TetDomain) Dim() int { return d.np * d.k }

// FlattenField packs an Np x K nodal field into the element-major
// coefficient vector the reduction engine stores, node i of element k at
// position k*Np + i.
func (d *TetDomain) FlattenField(f mat.Matrix) *mat.VecDense {
	r, c := f.Dims()
	if r != d.np || c != d.k {
		panic(fmt.Sprintf("integration: field is %dx%d, want %dx%d", r, c, d.np, d.k))
	}
	out := mat.NewVecDense(d.np*d.k, nil)
	for k := 0; k < d.k; k++ {
		for i := 0; i < d.np; i++ {
			out.SetVec(k*d.np+i, f.At(i, k))
		}
	}
	return out
}

// MassOperator returns the block-diagonal mass matrix of the element set
// as an inner product operator. The reference block is inv(V*Vt) from the
// element's orthonormal Vandermonde; each element scales it by its
// Jacobian determinant. Affine tetrahedra carry a constant Jacobian, so
// the first nodal value stands for the element.
func (d *TetDomain) MassOperator() (space.Operator, error) {
	dg := d.el.DG3D
	if dg.V.IsEmpty() {
		return nil, fmt.Errorf("integration: element set has no Vandermonde matrix")
	}
	vvt := mat.NewDense(d.np, d.np, nil)
	vvt.Mul(dg.V, dg.V.T())
	ref := mat.NewDense(d.np, d.np, nil)
	if err := ref.Inverse(vvt); err != nil {
		return nil, fmt.Errorf("integration: invert V*Vt: %w", err)
	}
	scale := make([]float64, d.k)
	for k := 0; k < d.k; k++ {
		scale[k] = dg.J.At(0, k)
	}
	return &massOperator{np: d.np, k: d.k, ref: ref, scale: scale}, nil
}

// LumpedMassWeights returns the row-sum lumped diagonal of the mass
// matrix in element-major layout. The lumping trades quadrature accuracy
// for a diagonal metric that device-side Gram assembly can apply.
func (d *TetDomain) LumpedMassWeights() ([]float64, error) {
	op, err := d.MassOperator()
	if err != nil {
		return nil, err
	}
	m := op.(*massOperator)
	w := make([]float64, d.np*d.k)
	for k := 0; k < d.k; k++ {
		for i := 0; i < d.np; i++ {
			var row float64
			for j := 0; j < d.np; j++ {
				row += m.ref.At(i, j)
			}
			w[k*d.np+i] = m.scale[k] * row
		}
	}
	return w, nil
}

// massOperator applies one reference mass block per element, scaled by
// the element Jacobian, to element-major coefficient vectors.
type massOperator struct {
	np    int
	k     int
	ref   *mat.Dense
	scale []float64
}

func (m *massOperator) Dim() int { return m.np * m.k }

func (m *massOperator) Apply(dst, src *mat.VecDense) {
	if src.Len() != m.Dim() || dst.Len() != m.Dim() {
		panic(fmt.Sprintf("integration: mass apply on length %d/%d, want %d",
			dst.Len(), src.Len(), m.Dim()))
	}
	for k := 0; k < m.k; k++ {
		base := k * m.np
		for i := 0; i < m.np; i++ {
			var acc float64
			for j := 0; j < m.np; j++ {
				acc += m.ref.At(i, j) * src.AtVec(base+j)
			}
			dst.SetVec(base+i, m.scale[k]*acc)
		}
	}
}
