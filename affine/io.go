package affine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/notargets/ROMKernel/comm"
	"github.com/notargets/ROMKernel/utils"
)

const (
	kindMatrix  = "matrix"
	kindVector  = "vector"
	kindScalar  = "scalar"
	kindStorage = "storage"
)

// storageManifest is the YAML index of a persisted storage: its shape plus
// one record per term pointing at the term's artifact file. A nested
// storage's record points at the prefix of its own manifest.
type storageManifest struct {
	Rows  int          `yaml:"rows"`
	Cols  int          `yaml:"cols,omitempty"`
	Items []itemRecord `yaml:"items"`
}

type itemRecord struct {
	Kind string `yaml:"kind"`
	File string `yaml:"file"`
}

// Save persists the storage under dir with the given base name. Expansion
// terms are replicated across a group, so only the I/O owner writes; the
// others wait at the barrier so nobody reads files mid-write. A nil
// communicator saves for the calling process alone.
func (s *Storage) Save(dir, name string, c comm.Communicator) error {
	if c == nil {
		c = comm.Self()
	}
	var err error
	if c.IsIOOwner() {
		err = s.write(dir, name)
	}
	c.Barrier()
	return err
}

func (s *Storage) write(dir, name string) error {
	m := storageManifest{Rows: s.rows, Cols: s.cols}
	for idx, item := range s.content {
		if item == nil {
			return fmt.Errorf("affine: cannot save storage with unset term %s", s.indexLabel(idx))
		}
		base := name + "_" + s.indexLabel(idx)
		rec := itemRecord{File: base + ".dat"}
		var err error
		switch x := item.(type) {
		case *mat.Dense:
			rec.Kind = kindMatrix
			err = utils.SaveMatrix(filepath.Join(dir, rec.File), x)
		case *mat.VecDense:
			rec.Kind = kindVector
			err = utils.SaveVector(filepath.Join(dir, rec.File), x)
		case float64:
			rec.Kind = kindScalar
			err = utils.SaveScalar(filepath.Join(dir, rec.File), x)
		case *Storage:
			rec.Kind = kindStorage
			rec.File = base
			err = x.write(dir, base)
		}
		if err != nil {
			return err
		}
		m.Items = append(m.Items, rec)
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("affine: encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0644); err != nil {
		return fmt.Errorf("affine: write manifest: %w", err)
	}
	return nil
}

func (s *Storage) indexLabel(idx int) string {
	if s.double {
		return fmt.Sprintf("%d_%d", idx/s.cols, idx%s.cols)
	}
	return strconv.Itoa(idx)
}

// Load replaces the contents with the terms persisted under dir with the
// given base name. The persisted shape must match the receiver's, or Load
// fails with ErrManifestMismatch. Every caller reads the same files, so no
// communicator is involved; replicated storages stay replicated. The
// cached dense view is dropped and, when the loaded terms admit one,
// rebuilt immediately.
func (s *Storage) Load(dir, name string) error {
	m, err := readManifest(dir, name)
	if err != nil {
		return err
	}
	if m.Rows != s.rows || m.Cols != s.cols {
		return fmt.Errorf("%w: manifest %dx%d, storage %dx%d",
			ErrManifestMismatch, m.Rows, m.Cols, s.rows, s.cols)
	}
	content, err := readItems(dir, m)
	if err != nil {
		return err
	}
	s.content = content
	s.view = nil
	if s.viewable() {
		s.view = s.denseView()
	}
	return nil
}

func readManifest(dir, name string) (*storageManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("affine: read manifest: %w", err)
	}
	var m storageManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("affine: decode manifest: %w", err)
	}
	return &m, nil
}

func readItems(dir string, m *storageManifest) ([]interface{}, error) {
	want := m.Rows
	if m.Cols > 0 {
		want *= m.Cols
	}
	if len(m.Items) != want {
		return nil, fmt.Errorf("%w: manifest lists %d items for a %dx%d storage",
			ErrManifestMismatch, len(m.Items), m.Rows, m.Cols)
	}
	content := make([]interface{}, len(m.Items))
	for idx, rec := range m.Items {
		switch rec.Kind {
		case kindMatrix:
			a, err := utils.LoadMatrix(filepath.Join(dir, rec.File))
			if err != nil {
				return nil, err
			}
			content[idx] = a
		case kindVector:
			v, err := utils.LoadVector(filepath.Join(dir, rec.File))
			if err != nil {
				return nil, err
			}
			content[idx] = v
		case kindScalar:
			x, err := utils.LoadScalar(filepath.Join(dir, rec.File))
			if err != nil {
				return nil, err
			}
			content[idx] = x
		case kindStorage:
			nested, err := loadNested(dir, rec.File)
			if err != nil {
				return nil, err
			}
			content[idx] = nested
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownItemKind, rec.Kind)
		}
	}
	return content, nil
}

func loadNested(dir, name string) (*Storage, error) {
	m, err := readManifest(dir, name)
	if err != nil {
		return nil, err
	}
	if m.Rows < 1 || m.Cols < 0 {
		return nil, fmt.Errorf("%w: nested storage %dx%d", ErrManifestMismatch, m.Rows, m.Cols)
	}
	var s *Storage
	if m.Cols > 0 {
		s = NewStorage2(m.Rows, m.Cols)
	} else {
		s = NewStorage(m.Rows)
	}
	content, err := readItems(dir, m)
	if err != nil {
		return nil, err
	}
	s.content = content
	if s.viewable() {
		s.view = s.denseView()
	}
	return s, nil
}
