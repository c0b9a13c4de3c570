package changefinder

import "math"

// sdar is a Sequentially Discounting AutoRegressive model: an online AR(k)
// fit whose statistics are exponentially discounted by r so older
// observations matter less, the core of the ChangeFinder algorithm
// (Yamanishi & Takeuchi, 2002). No third-party Go port of ChangeFinder/SDAR
// exists in this codebase's dependency lineage, so it is implemented
// directly against the standard library (DESIGN.md: stdlib justification).
type sdar struct {
	r     float64
	order int

	mu    float64
	c     []float64 // discounted autocovariances, c[0..order]
	coef  []float64 // AR coefficients, length order
	sigma2 float64
	hist  []float64 // last `order` observations, most recent last
	n     int
}

func newSDAR(r float64, order int) *sdar {
	return &sdar{
		r: r, order: order,
		c:      make([]float64, order+1),
		coef:   make([]float64, order),
		sigma2: 1,
	}
}

// prime warms the model up on a value without scoring it: feeds the
// cross-user hourly mean in before scoring a user's own series.
func (m *sdar) prime(x float64) {
	m.update(x)
}

// score feeds x through the model and returns its outlier score
// (negative log-likelihood under the model's one-step-ahead prediction),
// then updates the model with x.
func (m *sdar) score(x float64) float64 {
	pred := m.predict()
	diff := x - pred
	variance := m.sigma2
	if variance < 1e-10 {
		variance = 1e-10
	}
	loss := 0.5*math.Log(2*math.Pi*variance) + (diff*diff)/(2*variance)

	m.update(x)
	return loss
}

func (m *sdar) predict() float64 {
	if m.n < m.order {
		return m.mu
	}
	pred := m.mu
	for i := 0; i < m.order; i++ {
		// hist is ordered oldest-first; lag i+1 is hist[len-1-i]
		lagVal := m.hist[len(m.hist)-1-i]
		pred += m.coef[i] * (lagVal - m.mu)
	}
	return pred
}

func (m *sdar) update(x float64) {
	r := m.r
	prevMu := m.mu
	m.mu = (1-r)*m.mu + r*x

	// Discounted autocovariances at lags 0..order, computed against the
	// pre-update mean so the current observation contributes like any
	// other.
	for lag := 0; lag <= m.order; lag++ {
		var lagVal float64
		have := false
		if lag == 0 {
			lagVal, have = x, true
		} else if len(m.hist) >= lag {
			lagVal, have = m.hist[len(m.hist)-lag], true
		}
		if have {
			cov := (x - prevMu) * (lagVal - prevMu)
			m.c[lag] = (1-r)*m.c[lag] + r*cov
		}
	}

	m.coef = levinsonDurbin(m.c, m.order)

	pred := m.predictWithCoef(prevMu)
	diff := x - pred
	m.sigma2 = (1-r)*m.sigma2 + r*diff*diff

	m.hist = append(m.hist, x)
	if len(m.hist) > m.order {
		m.hist = m.hist[len(m.hist)-m.order:]
	}
	m.n++
}

func (m *sdar) predictWithCoef(mean float64) float64 {
	pred := mean
	for i := 0; i < m.order && i < len(m.hist); i++ {
		lagVal := m.hist[len(m.hist)-1-i]
		pred += m.coef[i] * (lagVal - mean)
	}
	return pred
}

// levinsonDurbin solves the Yule-Walker equations for AR coefficients of
// the given order from autocovariances c[0..order].
func levinsonDurbin(c []float64, order int) []float64 {
	coef := make([]float64, order)
	if c[0] <= 1e-12 {
		return coef
	}
	a := make([]float64, order+1)
	errv := c[0]
	for k := 1; k <= order; k++ {
		acc := c[k]
		for j := 1; j < k; j++ {
			acc -= a[j] * c[k-j]
		}
		if errv < 1e-12 {
			break
		}
		kReflect := acc / errv
		newA := make([]float64, order+1)
		copy(newA, a)
		newA[k] = kReflect
		for j := 1; j < k; j++ {
			newA[j] = a[j] - kReflect*a[k-j]
		}
		a = newA
		errv *= 1 - kReflect*kReflect
	}
	copy(coef, a[1:])
	return coef
}
