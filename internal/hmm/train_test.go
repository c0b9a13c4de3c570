package hmm

import (
	"math"
	"testing"
)

func TestFitConvergesOnRepeatingSequence(t *testing.T) {
	seq := Sequence{0, 1, 2, 0, 1, 2, 0, 1, 2, 0, 1, 2}
	m := Fit([]Sequence{seq}, Params{MaxIter: 200, Tol: 1e-8, Seed: 1}, nil)

	for i := 0; i < NumStates; i++ {
		if math.Abs(rowSum(m.Trans[i][:])-1) > 1e-6 {
			t.Errorf("Trans row %d not normalized after fit: %v", i, m.Trans[i])
		}
		if math.Abs(rowSum(m.Emit[i][:])-1) > 1e-6 {
			t.Errorf("Emit row %d not normalized after fit: %v", i, m.Emit[i])
		}
	}
}

func TestFitSkipsEmptySequences(t *testing.T) {
	m := Fit([]Sequence{{}, {0, 1, 2}}, DefaultParams(), nil)
	if m == nil {
		t.Fatal("expected a model even with some empty sequences")
	}
}

func TestFitNoSequencesReturnsInitModel(t *testing.T) {
	init := NewRandomModel(3)
	got := Fit(nil, DefaultParams(), init)
	if got != init {
		t.Error("expected Fit with no sequences to return the initial model unchanged")
	}
}

func TestForwardBackwardLengthsAndPositiveScales(t *testing.T) {
	m := NewRandomModel(1)
	seq := Sequence{0, 1, 2, 3}
	alpha, scale := forward(m, seq)
	if len(alpha) != len(seq) || len(scale) != len(seq) {
		t.Fatalf("expected forward output length %d, got alpha=%d scale=%d", len(seq), len(alpha), len(scale))
	}
	for t2 := range scale {
		if scale[t2] <= 0 {
			t.Errorf("expected a positive scale factor at step %d, got %v", t2, scale[t2])
		}
	}
	beta := backward(m, seq, scale)
	if len(beta) != len(seq) {
		t.Fatalf("expected backward output length %d, got %d", len(seq), len(beta))
	}
}
