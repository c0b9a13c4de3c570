// Package hmm trains and decodes a multinomial Hidden Markov Model over
// per-(user,host,day) event-id sequences. No HMM library exists
// in this codebase's dependency lineage (the nearest relative,
// internal/recommend/algorithms' MarkovChain, models transition
// probabilities directly rather than latent states), so the model is
// implemented directly: a 3-state, 6-symbol multinomial HMM with Baum-Welch
// training and Viterbi decoding.
package hmm

import (
	"math"
	"math/rand"

	"github.com/tomtom215/adgraph/internal/extractor"
)

const (
	NumStates = 3
	NumSymbols = 6
)

// Alphabet maps the six watched event ids to dense symbol indices.
var Alphabet = map[extractor.EventID]int{
	extractor.EventCredentialValidate: 0,
	extractor.EventKerberosTGT:        1,
	extractor.EventKerberosService:    2,
	extractor.EventLogonSuccess:       3,
	extractor.EventLogonFailure:       4,
	extractor.EventAuditPolicyChange:  5,
}

// Model is a fitted multinomial HMM: row-stochastic Trans[i][j], row-
// stochastic Emit[state][symbol], and an initial state distribution.
type Model struct {
	Trans   [NumStates][NumStates]float64
	Emit    [NumStates][NumSymbols]float64
	Initial [NumStates]float64
}

// Params configures training.
type Params struct {
	MaxIter int
	Tol     float64
	Seed    int64
}

// DefaultParams returns the default training budget: up to 10,000
// Baum-Welch iterations or a log-likelihood improvement below 1e-6.
func DefaultParams() Params {
	return Params{MaxIter: 10000, Tol: 1e-6, Seed: 1}
}

// NewRandomModel returns a model with uniformly-random-but-normalized
// parameters, sized for the 6-symbol alphabet rather than any hand-seeded
// emission matrix: the model starts here and Baum-Welch converges it.
func NewRandomModel(seed int64) *Model {
	rng := rand.New(rand.NewSource(seed))
	m := &Model{}
	copy(m.Initial[:], randomVec(rng, NumStates))
	for i := 0; i < NumStates; i++ {
		copy(m.Trans[i][:], randomVec(rng, NumStates))
		copy(m.Emit[i][:], randomVec(rng, NumSymbols))
	}
	return m
}

func randomVec(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	var sum float64
	for i := range v {
		v[i] = rng.Float64() + 0.01
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
	return v
}

// Sequence is one training/decoding example: the ordered symbol stream for
// a single (user, host, day) with length > 2.
type Sequence []int

// ToSymbols converts an ordered event-id slice into a Sequence, dropping ids
// outside Alphabet.
func ToSymbols(ids []extractor.EventID) Sequence {
	out := make(Sequence, 0, len(ids))
	for _, id := range ids {
		if s, ok := Alphabet[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}
