// Package comm coordinates the cooperating participants of a distributed
// reduced-basis computation. Each participant owns a disjoint block of the
// global degrees of freedom; inner products and correlation assembly combine
// per-participant partial sums through AllReduceSum, and persistence follows
// a designated-writer protocol where the I/O owner writes while every
// participant synchronizes on the same barrier afterwards.
//
// Collective calls must be made by every participant of a group in lockstep.
// A participant that skips a collective call leaves the others blocked; that
// is a caller contract violation, not a condition this package detects.
package comm

// Communicator is the collective-operation surface shared by all
// participants of one group.
type Communicator interface {
	// Rank identifies this participant within the group, 0 <= Rank < Size.
	Rank() int

	// Size is the number of participants in the group.
	Size() int

	// AllReduceSum replaces x on every participant with the element-wise sum
	// of all participants' x. Collective; all callers must pass slices of the
	// same length.
	AllReduceSum(x []float64)

	// Barrier blocks until every participant of the group has entered it.
	Barrier()

	// IsIOOwner reports whether this participant is the group's designated
	// writer. Exactly one participant per group owns I/O.
	IsIOOwner() bool
}

// selfComm is the single-participant communicator. Collectives are no-ops
// since the calling participant is the whole group.
type selfComm struct{}

// Self returns the communicator for a computation with a single participant.
func Self() Communicator { return selfComm{} }

func (selfComm) Rank() int                { return 0 }
func (selfComm) Size() int                { return 1 }
func (selfComm) AllReduceSum(x []float64) {}
func (selfComm) Barrier()                 {}
func (selfComm) IsIOOwner() bool          { return true }
