package sampler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorlab/shorlab/internal/modules/circuit"
	"github.com/shorlab/shorlab/internal/modules/operator"
	"github.com/shorlab/shorlab/pkg/logger"
)

func TestDistributionTextbookPeaks(t *testing.T) {
	// N=15, a=2, m=8: the ideal distribution is uniform over exactly the
	// four bitstrings 0, 64, 128, 192, at phases 0, 1/4, 1/2, 3/4 for
	// order 4.
	log := logger.New(logger.Config{Level: "error"})
	asm := circuit.NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	sim := NewSimulator(SimulatorConfig{Seed: 1}, log)
	dist, err := sim.Distribution(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, dist, 256)

	for y, p := range dist {
		switch y {
		case 0, 64, 128, 192:
			assert.InDelta(t, 0.25, p, 1e-9, "y=%d", y)
		default:
			assert.InDelta(t, 0, p, 1e-9, "y=%d", y)
		}
	}
}

func TestDistributionIsNormalized(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	asm := circuit.NewAssembler(operator.StrategyAuto)

	for _, tc := range []struct {
		n, a int64
		m    int
	}{
		{n: 15, a: 7, m: 8},
		{n: 15, a: 13, m: 8},
		{n: 21, a: 2, m: 10},
	} {
		c, err := asm.Assemble(tc.n, tc.a, tc.m)
		require.NoError(t, err)
		sim := NewSimulator(SimulatorConfig{Seed: 1}, log)
		dist, err := sim.Distribution(context.Background(), c)
		require.NoError(t, err)

		total := 0.0
		for _, p := range dist {
			total += p
		}
		assert.InDelta(t, 1.0, total, 1e-9, "N=%d a=%d", tc.n, tc.a)
	}
}

func TestRunShotAccounting(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	asm := circuit.NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	sim := NewSimulator(SimulatorConfig{Seed: 42, Workers: 4}, log)
	outcome, err := sim.Run(context.Background(), c, 1024)
	require.NoError(t, err)

	assert.Equal(t, 1024, outcome.Shots())
	for bits := range outcome {
		assert.Len(t, bits, 8)
		switch bits {
		case "00000000", "01000000", "10000000", "11000000":
		default:
			t.Errorf("impossible bitstring sampled: %q", bits)
		}
	}
}

func TestRunIsReplayablePerSeed(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	asm := circuit.NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	simA := NewSimulator(SimulatorConfig{Seed: 7, Workers: 2}, log)
	simB := NewSimulator(SimulatorConfig{Seed: 7, Workers: 2}, log)
	a, err := simA.Run(context.Background(), c, 512)
	require.NoError(t, err)
	b, err := simB.Run(context.Background(), c, 512)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunRejectsInvalidShots(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	asm := circuit.NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	sim := NewSimulator(SimulatorConfig{Seed: 1}, log)
	_, err = sim.Run(context.Background(), c, 0)
	assert.ErrorIs(t, err, ErrInvalidShots)
}

func TestRunHonorsQubitCeiling(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	asm := circuit.NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8) // 12 qubits
	require.NoError(t, err)

	sim := NewSimulator(SimulatorConfig{Seed: 1, MaxQubits: 10}, log)
	_, err = sim.Run(context.Background(), c, 16)
	assert.ErrorIs(t, err, ErrCircuitTooWide)
}

func TestRunSurfacesCancellationAsSamplerFailure(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	asm := circuit.NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(SimulatorConfig{Seed: 1}, log)
	_, err = sim.Run(ctx, c, 16)
	assert.ErrorIs(t, err, ErrSamplerFailure)
}

func TestFixedSampler(t *testing.T) {
	asm := circuit.NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	fixed := &Fixed{Bitstring: "01000000"}
	outcome, err := fixed.Run(context.Background(), c, 100)
	require.NoError(t, err)
	assert.Equal(t, Outcome{"01000000": 100}, outcome)

	_, err = fixed.Run(context.Background(), c, 0)
	assert.ErrorIs(t, err, ErrInvalidShots)

	short := &Fixed{Bitstring: "0100"}
	_, err = short.Run(context.Background(), c, 10)
	assert.Error(t, err)
}

func TestKeepAboveHalfMax(t *testing.T) {
	counts := Outcome{
		"00000000": 264,
		"01000000": 268,
		"10000000": 249,
		"11000000": 243,
		"01000001": 12, // hardware leakage
	}
	kept := counts.KeepAboveHalfMax()
	assert.Len(t, kept, 4)
	assert.NotContains(t, kept, "01000001")
}

func TestFormatBitstring(t *testing.T) {
	assert.Equal(t, "01000000", FormatBitstring(64, 8))
	assert.Equal(t, "00000000", FormatBitstring(0, 8))
	assert.Equal(t, "11000000", FormatBitstring(192, 8))
	assert.Equal(t, "1111", FormatBitstring(15, 4))
}
