package hmm

import "math"

// Fit runs Baum-Welch (forward-backward EM) over the given sequences,
// starting from init (or a fresh random model if init is nil), for up to
// params.MaxIter iterations or until log-likelihood improvement drops below
// params.Tol ("up to 10,000 iterations").
func Fit(sequences []Sequence, params Params, init *Model) *Model {
	m := init
	if m == nil {
		m = NewRandomModel(params.Seed)
	}

	prevLL := math.Inf(-1)
	for iter := 0; iter < params.MaxIter; iter++ {
		acc := newAccumulator()
		var ll float64
		for _, seq := range sequences {
			if len(seq) == 0 {
				continue
			}
			alpha, scale := forward(m, seq)
			beta := backward(m, seq, scale)
			accumulate(m, seq, alpha, beta, scale, acc)
			for _, c := range scale {
				ll += math.Log(c)
			}
		}
		if len(sequences) == 0 {
			break
		}
		m = acc.toModel(m)
		if math.Abs(ll-prevLL) < params.Tol {
			break
		}
		prevLL = ll
	}
	return m
}

type accumulator struct {
	initNum                [NumStates]float64
	transNum, transDen     [NumStates][NumStates]float64
	emitNum                [NumStates][NumSymbols]float64
	emitDen                [NumStates]float64
	sequences              int
}

func newAccumulator() *accumulator { return &accumulator{} }

func (a *accumulator) toModel(prev *Model) *Model {
	m := &Model{}
	var initSum float64
	for i := 0; i < NumStates; i++ {
		initSum += a.initNum[i]
	}
	for i := 0; i < NumStates; i++ {
		if initSum > 0 {
			m.Initial[i] = a.initNum[i] / initSum
		} else {
			m.Initial[i] = prev.Initial[i]
		}
		denT := sumRow(a.transDen[i][:])
		for j := 0; j < NumStates; j++ {
			if denT > 0 {
				m.Trans[i][j] = a.transNum[i][j] / denT
			} else {
				m.Trans[i][j] = prev.Trans[i][j]
			}
		}
		if a.emitDen[i] > 0 {
			for s := 0; s < NumSymbols; s++ {
				m.Emit[i][s] = a.emitNum[i][s] / a.emitDen[i]
			}
		} else {
			m.Emit[i] = prev.Emit[i]
		}
	}
	return m
}

func sumRow(row []float64) float64 {
	var s float64
	for _, v := range row {
		s += v
	}
	return s
}

// forward runs the scaled forward algorithm; scale[t] is the per-step
// normalization factor (sum over states at t), so log P(seq) = sum(log(scale)).
func forward(m *Model, seq Sequence) ([][NumStates]float64, []float64) {
	T := len(seq)
	alpha := make([][NumStates]float64, T)
	scale := make([]float64, T)

	for i := 0; i < NumStates; i++ {
		alpha[0][i] = m.Initial[i] * m.Emit[i][seq[0]]
	}
	scale[0] = sumRow(alpha[0][:])
	normalize(alpha[0][:], scale[0])

	for t := 1; t < T; t++ {
		for j := 0; j < NumStates; j++ {
			var s float64
			for i := 0; i < NumStates; i++ {
				s += alpha[t-1][i] * m.Trans[i][j]
			}
			alpha[t][j] = s * m.Emit[j][seq[t]]
		}
		scale[t] = sumRow(alpha[t][:])
		normalize(alpha[t][:], scale[t])
	}
	return alpha, scale
}

func backward(m *Model, seq Sequence, scale []float64) [][NumStates]float64 {
	T := len(seq)
	beta := make([][NumStates]float64, T)
	for i := 0; i < NumStates; i++ {
		beta[T-1][i] = 1
	}
	for t := T - 2; t >= 0; t-- {
		for i := 0; i < NumStates; i++ {
			var s float64
			for j := 0; j < NumStates; j++ {
				s += m.Trans[i][j] * m.Emit[j][seq[t+1]] * beta[t+1][j]
			}
			beta[t][i] = s
		}
		normalize(beta[t][:], scale[t+1])
	}
	return beta
}

func normalize(v []float64, denom float64) {
	if denom <= 0 {
		return
	}
	for i := range v {
		v[i] /= denom
	}
}

func accumulate(m *Model, seq Sequence, alpha, beta [][NumStates]float64, scale []float64, acc *accumulator) {
	T := len(seq)

	gamma := make([][NumStates]float64, T)
	for t := 0; t < T; t++ {
		var denom float64
		for i := 0; i < NumStates; i++ {
			gamma[t][i] = alpha[t][i] * beta[t][i]
			denom += gamma[t][i]
		}
		normalize(gamma[t][:], denom)
	}

	for i := 0; i < NumStates; i++ {
		acc.initNum[i] += gamma[0][i]
		acc.emitDen[i] += sumColumn(gamma, i)
		for t := 0; t < T; t++ {
			acc.emitNum[i][seq[t]] += gamma[t][i]
		}
	}

	for t := 0; t < T-1; t++ {
		var denom float64
		var xi [NumStates][NumStates]float64
		for i := 0; i < NumStates; i++ {
			for j := 0; j < NumStates; j++ {
				xi[i][j] = alpha[t][i] * m.Trans[i][j] * m.Emit[j][seq[t+1]] * beta[t+1][j]
				denom += xi[i][j]
			}
		}
		if denom <= 0 {
			continue
		}
		for i := 0; i < NumStates; i++ {
			for j := 0; j < NumStates; j++ {
				acc.transNum[i][j] += xi[i][j] / denom
				acc.transDen[i][j] += xi[i][j] / denom
			}
		}
	}
}

func sumColumn(gamma [][NumStates]float64, state int) float64 {
	// emitDen sums gamma over every time step, including the last, which is
	// the standard Baum-Welch emission denominator (only the transition
	// denominator stops one step short).
	var s float64
	for t := range gamma {
		s += gamma[t][state]
	}
	return s
}
