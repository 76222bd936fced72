package factor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorlab/shorlab/internal/modules/circuit"
	"github.com/shorlab/shorlab/internal/modules/operator"
	"github.com/shorlab/shorlab/internal/modules/sampler"
	"github.com/shorlab/shorlab/pkg/logger"
	"github.com/shorlab/shorlab/pkg/modmath"
)

func newService(t *testing.T, smp sampler.Sampler) *Service {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	return NewService(circuit.NewAssembler(operator.StrategyAuto), smp, log)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		n, a, r    int64
		wantState  State
		wantReason Reason
		wantP      int64
		wantQ      int64
	}{
		{name: "true order splits 15", n: 15, a: 2, r: 4, wantState: StateSuccess, wantP: 3, wantQ: 5},
		{name: "true order splits 15 base 7", n: 15, a: 7, r: 4, wantState: StateSuccess, wantP: 3, wantQ: 5},
		{name: "divisor of order can still split", n: 15, a: 7, r: 2, wantState: StateSuccess, wantP: 3, wantQ: 5},
		{name: "true order splits 21", n: 21, a: 2, r: 6, wantState: StateSuccess, wantP: 7, wantQ: 3},
		{name: "odd order retries", n: 15, a: 2, r: 3, wantState: StateRetry, wantReason: ReasonOddOrder},
		{name: "self inverse retries", n: 15, a: 14, r: 2, wantState: StateRetry, wantReason: ReasonSelfInverse},
		{name: "trivial gcds retry", n: 21, a: 9, r: 2, wantState: StateRetry, wantReason: ReasonTrivialGCD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Evaluate(tt.n, tt.a, tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, ev.State)
			assert.Equal(t, tt.wantReason, ev.Reason)
			if tt.wantState == StateSuccess {
				assert.Equal(t, tt.wantP, ev.P)
				assert.Equal(t, tt.wantQ, ev.Q)
			}
		})
	}
}

func TestEvaluateRejectsBadInputs(t *testing.T) {
	_, err := Evaluate(1, 2, 4)
	assert.ErrorIs(t, err, modmath.ErrInvalidModulus)

	_, err = Evaluate(15, 2, 0)
	assert.Error(t, err)

	_, err = Evaluate(15, 2, 15)
	assert.Error(t, err)
}

func TestFactorSucceedsInOneAttemptFromGoodSample(t *testing.T) {
	// Phase 0.25 decodes to r = 4, and gcd(2^2 ± 1, 15) splits 15 into
	// 3 × 5 on the first attempt.
	svc := newService(t, &sampler.Fixed{Bitstring: "01000000"})

	res, err := svc.Factor(context.Background(), Request{
		N: 15, A: 2, ControlSize: 8, Shots: 100, MaxAttempts: 5,
	})
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, int64(3), res.P)
	assert.Equal(t, int64(5), res.Q)
	assert.Equal(t, int64(4), res.Order)
	assert.Equal(t, int64(2), res.Base)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, res.History, 1)
	assert.Equal(t, StateSuccess, res.History[0].State)
	assert.InDelta(t, 0.25, res.History[0].Phase, 1e-12)
}

func TestFactorExhaustsOnDegenerateSamples(t *testing.T) {
	// A sampler stuck on phase 0 never yields an order. The controller must
	// retry up to the budget, report exhaustion without error, and never
	// surface 1 or N as a factor.
	svc := newService(t, &sampler.Fixed{Bitstring: "00000000"})

	res, err := svc.Factor(context.Background(), Request{
		N: 15, A: 2, ControlSize: 8, Shots: 100, MaxAttempts: 3,
	})
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Zero(t, res.P)
	assert.Zero(t, res.Q)
	assert.Equal(t, 3, res.Attempts)
	require.Len(t, res.History, 3)
	for _, rec := range res.History {
		assert.Equal(t, StateRetry, rec.State)
		assert.Equal(t, ReasonDegeneratePhase, rec.Reason)
	}
}

func TestFactorEndToEndWithSimulator(t *testing.T) {
	// Full pipeline on the exact simulator. Every nonzero peak of the
	// N=15, a=7 distribution decodes to an informative order, so success
	// within the budget is certain for any seed.
	log := logger.New(logger.Config{Level: "error"})
	sim := sampler.NewSimulator(sampler.SimulatorConfig{Seed: 11}, log)
	svc := newService(t, sim)

	res, err := svc.Factor(context.Background(), Request{
		N: 15, A: 7, ControlSize: 8, Shots: 1024, MaxAttempts: 16,
	})
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, int64(15), res.P*res.Q)
	assert.Greater(t, res.P, int64(1))
	assert.Greater(t, res.Q, int64(1))
}

func TestFactorEvenModulusSkipsSampling(t *testing.T) {
	svc := newService(t, &sampler.Fixed{Bitstring: "00000000"})

	res, err := svc.Factor(context.Background(), Request{N: 22})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, int64(2), res.P)
	assert.Equal(t, int64(11), res.Q)
	assert.Zero(t, res.Attempts)
}

func TestFactorBaseSharingFactorSkipsSampling(t *testing.T) {
	svc := newService(t, &sampler.Fixed{Bitstring: "00000000"})

	res, err := svc.Factor(context.Background(), Request{
		N: 15, A: 5, ControlSize: 8, Shots: 100, MaxAttempts: 3,
	})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, int64(5), res.P)
	assert.Equal(t, int64(3), res.Q)
	assert.Zero(t, res.Attempts)
}

func TestFactorUnpinnedBaseAdvancesAfterUninformativeBatch(t *testing.T) {
	// With no base pinned and a degenerate sampler, base 2 burns one
	// attempt, then base 3 splits 15 classically via its shared factor.
	svc := newService(t, &sampler.Fixed{Bitstring: "00000000"})

	res, err := svc.Factor(context.Background(), Request{
		N: 15, ControlSize: 8, Shots: 100, MaxAttempts: 10,
	})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, int64(3), res.P)
	assert.Equal(t, int64(5), res.Q)
	assert.Equal(t, int64(3), res.Base)
	assert.Equal(t, 1, res.Attempts)
}

func TestFactorConcurrentFindsFactorAcrossBases(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	sim := sampler.NewSimulator(sampler.SimulatorConfig{Seed: 5}, log)
	svc := newService(t, sim)

	res, err := svc.FactorConcurrent(context.Background(), Request{
		N: 15, ControlSize: 8, Shots: 512, MaxAttempts: 8,
	}, []int64{2, 7, 13})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, int64(15), res.P*res.Q)
}

func TestFactorConcurrentRejectsEmptyBases(t *testing.T) {
	svc := newService(t, &sampler.Fixed{Bitstring: "01000000"})
	_, err := svc.FactorConcurrent(context.Background(), Request{N: 15}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFactorRequestValidation(t *testing.T) {
	svc := newService(t, &sampler.Fixed{Bitstring: "01000000"})

	_, err := svc.Factor(context.Background(), Request{N: 3})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Factor(context.Background(), Request{N: 15, A: 1, ControlSize: 8})
	assert.ErrorIs(t, err, circuit.ErrBaseOutOfRange)

	_, err = svc.Factor(context.Background(), Request{N: 15, A: 15, ControlSize: 8})
	assert.ErrorIs(t, err, circuit.ErrBaseOutOfRange)
}

func TestFactorPropagatesSamplerFailure(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	sim := sampler.NewSimulator(sampler.SimulatorConfig{Seed: 1}, log)
	svc := newService(t, sim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Factor(ctx, Request{N: 15, A: 7, ControlSize: 8, Shots: 64, MaxAttempts: 4})
	assert.ErrorIs(t, err, sampler.ErrSamplerFailure)
}
