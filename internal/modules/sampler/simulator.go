package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shorlab/shorlab/internal/modules/circuit"
)

// ErrCircuitTooWide is returned when a circuit needs more qubits than the
// simulator is configured to hold in memory.
var ErrCircuitTooWide = errors.New("circuit exceeds simulator qubit ceiling")

// DefaultMaxQubits bounds the state vector to 2^26 amplitudes (1 GiB of
// complex128), which comfortably covers every modulus the engine is meant
// to factor on one machine.
const DefaultMaxQubits = 26

// SimulatorConfig holds simulator configuration.
type SimulatorConfig struct {
	Seed      uint64 // Seed for the shot-sampling sources; runs are replayable per seed
	MaxQubits int    // State vector width ceiling (DefaultMaxQubits when 0)
	Workers   int    // Parallel shot-drawing workers (GOMAXPROCS when 0)
}

// Simulator is the exact reference implementation of the Sampler contract:
// it evolves the full state vector gate by gate, computes the final
// probability distribution over control-register basis states with the
// target register traced out, and then draws independent samples from that
// distribution. All randomness lives in the sampling step; the amplitudes
// are exact.
type Simulator struct {
	cfg SimulatorConfig
	log zerolog.Logger
}

// NewSimulator creates a state-vector simulator.
func NewSimulator(cfg SimulatorConfig, log zerolog.Logger) *Simulator {
	if cfg.MaxQubits <= 0 {
		cfg.MaxQubits = DefaultMaxQubits
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Simulator{
		cfg: cfg,
		log: log.With().Str("component", "simulator").Logger(),
	}
}

// Run computes the exact output distribution of the circuit and draws the
// requested number of i.i.d. shots from it. Shots are split across workers
// with independently seeded sources; there is no shared mutable state
// between workers beyond the precomputed distribution.
func (s *Simulator) Run(ctx context.Context, c *circuit.Circuit, shots int) (Outcome, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("simulator: %w (got %d)", ErrInvalidShots, shots)
	}

	dist, err := s.Distribution(ctx, c)
	if err != nil {
		return nil, err
	}

	workers := s.cfg.Workers
	if workers > shots {
		workers = shots
	}

	results := make([]Outcome, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		share := shots / workers
		if w < shots%workers {
			share++
		}
		wg.Add(1)
		go func(w, share int) {
			defer wg.Done()
			results[w] = drawShots(ctx, dist, c.ControlSize, share, s.cfg.Seed+uint64(w)+1)
		}(w, share)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulator: %w: %w", ErrSamplerFailure, err)
	}

	outcome := make(Outcome)
	for _, r := range results {
		for bits, count := range r {
			outcome[bits] += count
		}
	}

	s.log.Debug().
		Int64("modulus", c.Modulus).
		Int64("base", c.Base).
		Int("shots", shots).
		Int("distinct", len(outcome)).
		Msg("Sampled circuit")

	return outcome, nil
}

// Distribution evolves the circuit and returns the exact probability of
// each control-register basis state, target register traced out. The state
// vector indexes the control register in the low ControlSize bits, so the
// measured integer y is the index modulo 2^m.
func (s *Simulator) Distribution(ctx context.Context, c *circuit.Circuit) ([]float64, error) {
	width := c.Qubits()
	if width > s.cfg.MaxQubits {
		return nil, fmt.Errorf("simulator: %w (%d qubits, ceiling %d)", ErrCircuitTooWide, width, s.cfg.MaxQubits)
	}

	m := c.ControlSize
	controlDim := 1 << m
	dim := 1 << width

	vec := make([]complex128, dim)
	vec[0] = 1

	var fft *fourier.CmplxFFT
	for _, g := range c.Gates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulator: %w: %w", ErrSamplerFailure, err)
		}
		switch g.Kind {
		case circuit.GateX:
			applyX(vec, m+g.Qubit)
		case circuit.GateH:
			applyH(vec, g.Qubit)
		case circuit.GateCMul:
			vec = applyCMul(vec, g, m)
		case circuit.GateInvQFT:
			if fft == nil {
				fft = fourier.NewCmplxFFT(controlDim)
			}
			applyInverseQFT(vec, fft, m, width)
		default:
			return nil, fmt.Errorf("simulator: unsupported gate kind %q", g.Kind)
		}
	}

	// Trace out the target register.
	probs := make([]float64, controlDim)
	for i, amp := range vec {
		probs[i&(controlDim-1)] += real(amp)*real(amp) + imag(amp)*imag(amp)
	}
	return probs, nil
}

// applyX flips the given global qubit.
func applyX(vec []complex128, qubit int) {
	mask := 1 << qubit
	for i := range vec {
		if i&mask == 0 {
			vec[i], vec[i|mask] = vec[i|mask], vec[i]
		}
	}
}

// applyH applies the Hadamard butterfly on the given global qubit.
func applyH(vec []complex128, qubit int) {
	mask := 1 << qubit
	norm := complex(1/math.Sqrt2, 0)
	for i := range vec {
		if i&mask == 0 {
			a, b := vec[i], vec[i|mask]
			vec[i] = (a + b) * norm
			vec[i|mask] = (a - b) * norm
		}
	}
}

// applyCMul applies a controlled modular multiplication: amplitudes whose
// control qubit is set have their target value mapped through the
// permutation table; the rest pass through.
func applyCMul(vec []complex128, g circuit.Gate, m int) []complex128 {
	out := make([]complex128, len(vec))
	controlMask := 1 << g.Control
	lowMask := (1 << m) - 1
	for i, amp := range vec {
		if amp == 0 {
			continue
		}
		if i&controlMask == 0 {
			out[i] = amp
			continue
		}
		t := int64(i >> m)
		out[int(g.Table[t])<<m|i&lowMask] = amp
	}
	return out
}

// applyInverseQFT applies the inverse Fourier transform over the control
// register. With the control register in the low index bits, the 2^m
// control amplitudes for each target value form one contiguous block, and
// the inverse QFT on that block is the forward DFT scaled by 1/sqrt(2^m).
func applyInverseQFT(vec []complex128, fft *fourier.CmplxFFT, m, width int) {
	controlDim := 1 << m
	norm := complex(1/math.Sqrt(float64(controlDim)), 0)
	scratch := make([]complex128, controlDim)
	for t := 0; t < 1<<(width-m); t++ {
		block := vec[t<<m : t<<m+controlDim]
		fft.Coefficients(scratch, block)
		for i := range block {
			block[i] = scratch[i] * norm
		}
	}
}

// drawShots draws n independent samples from the distribution using a
// categorical sampler over its own seeded source.
func drawShots(ctx context.Context, dist []float64, m, n int, seed uint64) Outcome {
	cat := distuv.NewCategorical(dist, rand.NewSource(seed))
	out := make(Outcome)
	for i := 0; i < n; i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return out
		}
		y := int64(cat.Rand())
		out[FormatBitstring(y, m)]++
	}
	return out
}
