package pod

import "math"

// retainedEnergyProfile computes the cumulative fraction of total
// eigenvalue magnitude captured by the first k modes, for every k. When the
// total energy is zero every entry is 1: all snapshots are zero vectors and
// any basis retains everything immediately.
func retainedEnergyProfile(eigenvalues []float64) []float64 {
	profile := make([]float64, len(eigenvalues))

	total := 0.0
	for i, v := range eigenvalues {
		total += math.Abs(v)
		profile[i] = total
	}

	if total > 0 {
		for i := range profile {
			profile[i] /= total
		}
	} else {
		for i := range profile {
			profile[i] = 1
		}
	}
	return profile
}
