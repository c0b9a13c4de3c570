package hmm

import "math"

// Decode returns the most likely hidden-state sequence for seq via the log-
// domain Viterbi algorithm.
func Decode(m *Model, seq Sequence) []int {
	T := len(seq)
	if T == 0 {
		return nil
	}
	logTrans := logMatrix3(m.Trans)
	logEmit := logMatrix36(m.Emit)
	logInit := logVec3(m.Initial)

	delta := make([][NumStates]float64, T)
	psi := make([][NumStates]int, T)

	for i := 0; i < NumStates; i++ {
		delta[0][i] = logInit[i] + logEmit[i][seq[0]]
	}
	for t := 1; t < T; t++ {
		for j := 0; j < NumStates; j++ {
			best := math.Inf(-1)
			bestI := 0
			for i := 0; i < NumStates; i++ {
				v := delta[t-1][i] + logTrans[i][j]
				if v > best {
					best = v
					bestI = i
				}
			}
			delta[t][j] = best + logEmit[j][seq[t]]
			psi[t][j] = bestI
		}
	}

	path := make([]int, T)
	best := math.Inf(-1)
	for i := 0; i < NumStates; i++ {
		if delta[T-1][i] > best {
			best = delta[T-1][i]
			path[T-1] = i
		}
	}
	for t := T - 2; t >= 0; t-- {
		path[t] = psi[t+1][path[t+1]]
	}
	return path
}

// DistinctStates returns the count of distinct hidden states in path.
func DistinctStates(path []int) int {
	seen := make(map[int]bool)
	for _, s := range path {
		seen[s] = true
	}
	return len(seen)
}

// IsAnomalous implements property 9: a sequence decodes as
// anomalous iff its path visits exactly two distinct hidden states.
func IsAnomalous(path []int) bool {
	return DistinctStates(path) == 2
}

func logMatrix3(m [NumStates][NumStates]float64) [NumStates][NumStates]float64 {
	var out [NumStates][NumStates]float64
	for i := range m {
		for j := range m[i] {
			out[i][j] = safeLog(m[i][j])
		}
	}
	return out
}

func logMatrix36(m [NumStates][NumSymbols]float64) [NumStates][NumSymbols]float64 {
	var out [NumStates][NumSymbols]float64
	for i := range m {
		for j := range m[i] {
			out[i][j] = safeLog(m[i][j])
		}
	}
	return out
}

func logVec3(v [NumStates]float64) [NumStates]float64 {
	var out [NumStates]float64
	for i := range v {
		out[i] = safeLog(v[i])
	}
	return out
}

func safeLog(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return math.Log(x)
}
