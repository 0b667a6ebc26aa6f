// Package device offloads snapshot correlation assembly to an OCCA
// accelerator. The Gram assembler keeps a snapshot buffer resident on the
// device and evaluates all pairwise weighted dot products in one kernel
// launch, producing the same local contribution the reduction engine
// would otherwise assemble entry by entry on the host.
package device

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"gonum.org/v1/gonum/mat"
)

// gramKernelSource is the OKL source for the pairwise product kernel. The
// snapshot count varies per launch; capacity and snapshot length are baked
// in as compile-time constants so the loop bounds stay static.
const gramKernelSource = `
#define CAPACITY %d
#define LENGTH %d

@kernel void gramAccumulate(const double *snapshots,
                            const double *weights,
                            const int nSnap,
                            double *gram) {
	for (int i = 0; i < CAPACITY; ++i; @outer) {
		for (int j = 0; j < CAPACITY; ++j; @inner) {
			if (i < nSnap && j < nSnap && j <= i) {
				double acc = 0.0;
				for (int d = 0; d < LENGTH; ++d) {
					acc += weights[d] * snapshots[i * LENGTH + d] * snapshots[j * LENGTH + d];
				}
				gram[i * CAPACITY + j] = acc;
				gram[j * CAPACITY + i] = acc;
			}
		}
	}
}
`

// Gram evaluates snapshot Gram matrices on an OCCA device. It satisfies
// the correlation assembler contract of the pod package: the matrix it
// returns covers this process's degrees of freedom only, with the
// cross-process reduction left to the engine.
type Gram struct {
	device    *gocca.OCCADevice
	kernel    *gocca.OCCAKernel
	snapMem   *gocca.OCCAMemory
	weightMem *gocca.OCCAMemory
	gramMem   *gocca.OCCAMemory
	length    int
	capacity  int
}

// NewGram compiles the pairwise product kernel and allocates device
// buffers for up to capacity snapshots of the given length. weights holds
// one factor per degree of freedom for diagonally weighted inner products;
// nil selects the plain dot product. The device remains owned by the
// caller, Free releases only what NewGram allocated.
func NewGram(device *gocca.OCCADevice, length, capacity int, weights []float64) (*Gram, error) {
	if length < 1 || capacity < 1 {
		panic("device: gram assembler needs positive snapshot length and capacity")
	}
	if weights != nil && len(weights) != length {
		panic(fmt.Sprintf("device: %d weights for snapshot length %d", len(weights), length))
	}
	w := weights
	if w == nil {
		w = make([]float64, length)
		for i := range w {
			w[i] = 1
		}
	}

	source := fmt.Sprintf(gramKernelSource, capacity, length)
	var kernel *gocca.OCCAKernel
	var err error
	if device.Mode() == "OpenMP" {
		// OCCA does not pass a default -O3 to the OpenMP backend.
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = device.BuildKernelFromString(source, "gramAccumulate", props)
	} else {
		kernel, err = device.BuildKernelFromString(source, "gramAccumulate", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("device: build gram kernel: %w", err)
	}

	g := &Gram{
		device:   device,
		kernel:   kernel,
		length:   length,
		capacity: capacity,
	}
	g.snapMem = device.Malloc(int64(capacity*length*8), nil, nil)
	g.weightMem = device.Malloc(int64(length*8), unsafe.Pointer(&w[0]), nil)
	g.gramMem = device.Malloc(int64(capacity*capacity*8), nil, nil)
	return g, nil
}

// Assemble uploads the snapshots, launches the kernel once over all
// pairs, and copies the leading n x n block back to the host.
func (g *Gram) Assemble(snapshots []*mat.VecDense) (*mat.Dense, error) {
	n := len(snapshots)
	if n == 0 {
		return nil, fmt.Errorf("device: no snapshots to correlate")
	}
	if n > g.capacity {
		return nil, fmt.Errorf("device: %d snapshots exceed assembler capacity %d", n, g.capacity)
	}

	row := make([]float64, g.length)
	for i, s := range snapshots {
		if s.Len() != g.length {
			return nil, fmt.Errorf("device: snapshot %d has length %d, want %d", i, s.Len(), g.length)
		}
		for d := range row {
			row[d] = s.AtVec(d)
		}
		g.snapMem.CopyFromWithOffset(unsafe.Pointer(&row[0]),
			int64(g.length*8), int64(i*g.length*8))
	}

	if err := g.kernel.RunWithArgs(g.snapMem, g.weightMem, n, g.gramMem); err != nil {
		return nil, fmt.Errorf("device: run gram kernel: %w", err)
	}
	g.device.Finish()

	// Rows are laid out with the full capacity stride, so pull the first
	// n rows and re-pack the leading block.
	raw := make([]float64, n*g.capacity)
	g.gramMem.CopyTo(unsafe.Pointer(&raw[0]), int64(len(raw)*8))
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, raw[i*g.capacity+j])
		}
	}
	return out, nil
}

// Free releases the kernel and the device buffers. The device itself is
// left alone.
func (g *Gram) Free() {
	if g.kernel != nil {
		g.kernel.Free()
	}
	if g.snapMem != nil {
		g.snapMem.Free()
	}
	if g.weightMem != nil {
		g.weightMem.Free()
	}
	if g.gramMem != nil {
		g.gramMem.Free()
	}
}
