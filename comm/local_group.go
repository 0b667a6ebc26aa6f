package comm

import (
	"fmt"
	"sync"
)

// group holds the shared reduction and barrier state of an in-process
// participant group. All members serialize on one mutex; generation counters
// let a member distinguish the round it joined from the round that follows.
type group struct {
	size int

	mu   sync.Mutex
	cond *sync.Cond

	// all-reduce state
	acc       []float64
	result    []float64
	joined    int
	reduceGen int

	// barrier state
	waiting    int
	barrierGen int
}

// localMember is one participant of an in-process group.
type localMember struct {
	rank int
	g    *group
}

// NewLocalGroup creates an in-process group of n participants and returns
// one Communicator per rank. Each returned communicator must be driven by
// its own goroutine; collectives block until all n participants arrive.
func NewLocalGroup(n int) []Communicator {
	if n < 1 {
		panic(fmt.Sprintf("comm: group size must be positive, got %d", n))
	}
	g := &group{size: n}
	g.cond = sync.NewCond(&g.mu)

	members := make([]Communicator, n)
	for rank := 0; rank < n; rank++ {
		members[rank] = &localMember{rank: rank, g: g}
	}
	return members
}

func (m *localMember) Rank() int       { return m.rank }
func (m *localMember) Size() int       { return m.g.size }
func (m *localMember) IsIOOwner() bool { return m.rank == 0 }

func (m *localMember) AllReduceSum(x []float64) {
	g := m.g
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.joined == 0 {
		g.acc = make([]float64, len(x))
	} else if len(x) != len(g.acc) {
		panic(fmt.Sprintf("comm: all-reduce length mismatch, %d vs %d", len(x), len(g.acc)))
	}
	for i, v := range x {
		g.acc[i] += v
	}
	g.joined++

	gen := g.reduceGen
	if g.joined == g.size {
		// Last to arrive publishes the round's result and releases the rest.
		g.result = g.acc
		g.joined = 0
		g.reduceGen++
		g.cond.Broadcast()
	} else {
		for gen == g.reduceGen {
			g.cond.Wait()
		}
	}
	// The next round cannot complete until this member joins it, so result
	// stays valid while stragglers copy it out.
	copy(x, g.result)
}

func (m *localMember) Barrier() {
	g := m.g
	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.barrierGen
	g.waiting++
	if g.waiting == g.size {
		g.waiting = 0
		g.barrierGen++
		g.cond.Broadcast()
		return
	}
	for gen == g.barrierGen {
		g.cond.Wait()
	}
}
