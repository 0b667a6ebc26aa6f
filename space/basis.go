package space

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/notargets/ROMKernel/utils"
)

// BasisContainer is the growing ordered basis a decomposition enriches.
type BasisContainer interface {
	// Enrich appends a copy of v as the next basis member.
	Enrich(v *mat.VecDense)

	// Len is the current number of members.
	Len() int

	// At returns the i-th member. The returned vector is the stored one;
	// callers must not mutate it.
	At(i int) *mat.VecDense
}

// BasisSet implements BasisContainer over a VectorSpace. Each participant
// stores its local block of every member; orthonormalization works in the
// space's inner product and is therefore collective.
type BasisSet struct {
	sp   VectorSpace
	vecs []*mat.VecDense
}

// NewBasisSet creates an empty basis over sp.
func NewBasisSet(sp VectorSpace) *BasisSet {
	return &BasisSet{sp: sp}
}

// Space returns the vector space the basis lives in.
func (b *BasisSet) Space() VectorSpace { return b.sp }

func (b *BasisSet) Len() int { return len(b.vecs) }

func (b *BasisSet) At(i int) *mat.VecDense {
	if i < 0 || i >= len(b.vecs) {
		panic(fmt.Sprintf("space: basis index %d out of range [0,%d)", i, len(b.vecs)))
	}
	return b.vecs[i]
}

func (b *BasisSet) Enrich(v *mat.VecDense) {
	if v.Len() != b.sp.Dim() {
		panic(fmt.Sprintf("space: enriching with length %d into dimension %d", v.Len(), b.sp.Dim()))
	}
	b.vecs = append(b.vecs, utils.CopyVec(v))
}

// EnrichOrthonormalized appends v after a modified Gram-Schmidt sweep
// against the existing members in the space's inner product, normalized
// unless the residual norm is exactly zero (then the zero vector is stored,
// mirroring the zero-norm policy of the decomposition). Collective.
func (b *BasisSet) EnrichOrthonormalized(v *mat.VecDense) {
	if v.Len() != b.sp.Dim() {
		panic(fmt.Sprintf("space: enriching with length %d into dimension %d", v.Len(), b.sp.Dim()))
	}
	r := utils.CopyVec(v)
	for _, z := range b.vecs {
		coef := b.sp.InnerProduct(r, z)
		r.AddScaledVec(r, -coef, z)
	}
	if norm := b.sp.Norm(r); norm != 0 {
		r.ScaleVec(1/norm, r)
	}
	b.vecs = append(b.vecs, r)
}

// basisManifest records what a persisted basis looks like so a load can
// validate before touching member artifacts.
type basisManifest struct {
	Members      int `yaml:"members"`
	Participants int `yaml:"participants"`
}

// Save persists the basis under dir with the given base name: one artifact
// per member per participant block, plus a manifest written by the I/O
// owner. Collective; every participant writes its own block and reaches the
// closing barrier.
func (b *BasisSet) Save(dir, name string) error {
	c := b.sp.Comm()

	var err error
	for i, v := range b.vecs {
		if werr := utils.SaveVector(memberPath(dir, name, c.Rank(), i), v); werr != nil {
			err = fmt.Errorf("save basis member %d: %w", i, werr)
			break
		}
	}
	if err == nil && c.IsIOOwner() {
		manifest := basisManifest{Members: len(b.vecs), Participants: c.Size()}
		data, merr := yaml.Marshal(&manifest)
		if merr != nil {
			err = fmt.Errorf("encode basis manifest: %w", merr)
		} else if werr := os.WriteFile(manifestPath(dir, name), data, 0644); werr != nil {
			err = fmt.Errorf("write basis manifest: %w", werr)
		}
	}

	c.Barrier()
	return err
}

// Load restores a basis saved by Save into this (empty or not) basis,
// replacing its members. Every participant reads the manifest and its own
// block artifacts. Collective.
func (b *BasisSet) Load(dir, name string) error {
	c := b.sp.Comm()

	var err error
	var loaded []*mat.VecDense
	data, rerr := os.ReadFile(manifestPath(dir, name))
	if rerr != nil {
		err = fmt.Errorf("read basis manifest: %w", rerr)
	} else {
		var manifest basisManifest
		if merr := yaml.Unmarshal(data, &manifest); merr != nil {
			err = fmt.Errorf("decode basis manifest: %w", merr)
		} else if manifest.Participants != c.Size() {
			err = fmt.Errorf("basis was saved by %d participants, group has %d",
				manifest.Participants, c.Size())
		} else {
			loaded = make([]*mat.VecDense, manifest.Members)
			for i := range loaded {
				v, verr := utils.LoadVector(memberPath(dir, name, c.Rank(), i))
				if verr != nil {
					err = fmt.Errorf("load basis member %d: %w", i, verr)
					break
				}
				if v.Len() != b.sp.Dim() {
					err = fmt.Errorf("basis member %d has length %d, space dimension is %d",
						i, v.Len(), b.sp.Dim())
					break
				}
				loaded[i] = v
			}
		}
	}

	c.Barrier()
	if err != nil {
		return err
	}
	b.vecs = loaded
	return nil
}

func manifestPath(dir, name string) string {
	return filepath.Join(dir, name+".yaml")
}

func memberPath(dir, name string, rank, i int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_r%d_%d.dat", name, rank, i))
}
