package factor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/shorlab/shorlab/internal/modules/circuit"
	"github.com/shorlab/shorlab/internal/modules/decoder"
	"github.com/shorlab/shorlab/internal/modules/sampler"
	"github.com/shorlab/shorlab/pkg/modmath"
)

// Defaults applied to zero-valued request fields.
const (
	DefaultShots       = 1024
	DefaultMaxAttempts = 16
)

// ErrInvalidRequest is returned for requests that fail validation before any
// circuit is assembled.
var ErrInvalidRequest = errors.New("invalid factorization request")

// Service drives the full hybrid loop: assemble the order-finding circuit,
// sample it, decode candidates, evaluate them, and retry within the attempt
// budget. The sampler behind it is the only source of randomness.
type Service struct {
	asm *circuit.Assembler
	smp sampler.Sampler
	log zerolog.Logger
}

// NewService creates a factorization service on top of an assembler and a
// sampler.
func NewService(asm *circuit.Assembler, smp sampler.Sampler, log zerolog.Logger) *Service {
	return &Service{
		asm: asm,
		smp: smp,
		log: log.With().Str("component", "factor").Logger(),
	}
}

// Factor runs the retry loop for one request. Infrastructure failures from
// the sampler propagate as errors; running out of attempts does not, and
// instead returns a Result with Found false and the attempt history.
func (s *Service) Factor(ctx context.Context, req Request) (Result, error) {
	if err := s.normalize(&req); err != nil {
		return Result{}, err
	}

	// Even moduli never need a quantum step.
	if req.N%2 == 0 {
		return Result{Found: true, P: 2, Q: req.N / 2}, nil
	}

	bases := []int64{req.A}
	pinned := req.A != 0
	if !pinned {
		bases = make([]int64, 0, req.N-2)
		for a := int64(2); a < req.N; a++ {
			bases = append(bases, a)
		}
	}

	res := Result{}
	for _, a := range bases {
		// A base sharing a factor with N is a factor by itself.
		if g := modmath.GCD(a, req.N); g > 1 && g < req.N {
			s.log.Info().Int64("modulus", req.N).Int64("base", a).Int64("gcd", g).
				Msg("Base shares a factor with the modulus, no sampling needed")
			res.Found, res.P, res.Q, res.Base = true, g, req.N/g, a
			return res, nil
		}

		done, err := s.runBase(ctx, req, a, &res)
		if err != nil {
			return res, err
		}
		if done {
			return res, nil
		}
		if pinned {
			break
		}
	}

	s.log.Warn().Int64("modulus", req.N).Int("attempts", res.Attempts).
		Msg("Attempt budget exhausted without a factor")
	return res, nil
}

// runBase spends attempt budget on a single base. It reports done when
// either a factor was found or the budget ran out; for an unpinned base a
// fully uninformative batch moves the controller to the next base instead.
func (s *Service) runBase(ctx context.Context, req Request, a int64, res *Result) (bool, error) {
	circ, err := s.asm.Assemble(req.N, a, req.ControlSize)
	if err != nil {
		return false, err
	}

	for res.Attempts < req.MaxAttempts {
		outcome, err := s.smp.Run(ctx, circ, req.Shots)
		if err != nil {
			return false, fmt.Errorf("factor: sampling base %d: %w", a, err)
		}
		if req.KeepAboveHalfMax {
			outcome = outcome.KeepAboveHalfMax()
		}

		for _, bits := range sortedBitstrings(outcome) {
			res.Attempts++
			rec := AttemptRecord{Bitstring: bits, Base: a}
			if phase, err := decoder.ParseBitstring(bits); err == nil {
				rec.Phase = phase.Float()
			}

			r, err := decoder.OrderCandidate(bits, req.N)
			switch {
			case errors.Is(err, decoder.ErrDegeneratePhase):
				rec.State, rec.Reason = StateRetry, ReasonDegeneratePhase
			case err != nil:
				return false, fmt.Errorf("factor: decoding %q: %w", bits, err)
			default:
				rec.Order = r
				ev, err := Evaluate(req.N, a, r)
				if err != nil {
					return false, err
				}
				rec.State, rec.Reason = ev.State, ev.Reason
				if ev.State == StateSuccess {
					res.History = append(res.History, rec)
					res.Found, res.P, res.Q = true, ev.P, ev.Q
					res.Order, res.Base = r, a
					s.log.Info().Int64("modulus", req.N).Int64("base", a).
						Int64("order", r).Int64("p", ev.P).Int64("q", ev.Q).
						Int("attempts", res.Attempts).Msg("Factored modulus")
					return true, nil
				}
			}

			res.History = append(res.History, rec)
			s.log.Debug().Int64("base", a).Str("bitstring", bits).
				Str("reason", string(rec.Reason)).Msg("Uninformative attempt")
			if res.Attempts >= req.MaxAttempts {
				return true, nil
			}
		}

		// Every candidate in this batch was uninformative. A pinned base
		// draws a fresh batch; otherwise the next base gets a turn.
		if req.A == 0 {
			return false, nil
		}
	}
	return true, nil
}

// FactorConcurrent races the retry loop across several bases and returns the
// first factor found, cancelling the rest. With no success it reports the
// total attempts spent across all bases.
func (s *Service) FactorConcurrent(ctx context.Context, req Request, bases []int64) (Result, error) {
	if len(bases) == 0 {
		return Result{}, fmt.Errorf("factor: %w: no bases given", ErrInvalidRequest)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type baseOutcome struct {
		res Result
		err error
	}
	results := make(chan baseOutcome, len(bases))
	for _, a := range bases {
		go func(a int64) {
			r := req
			r.A = a
			res, err := s.Factor(ctx, r)
			results <- baseOutcome{res: res, err: err}
		}(a)
	}

	exhausted := Result{}
	var firstErr error
	for range bases {
		out := <-results
		if out.err != nil {
			// Losers cancelled after a win surface as sampler failures;
			// those are ours, not the backend's.
			if firstErr == nil && ctx.Err() == nil {
				firstErr = out.err
			}
			continue
		}
		if out.res.Found {
			cancel()
			out.res.Attempts += exhausted.Attempts
			return out.res, nil
		}
		exhausted.Attempts += out.res.Attempts
		exhausted.History = append(exhausted.History, out.res.History...)
	}
	if firstErr != nil {
		return Result{}, firstErr
	}
	return exhausted, nil
}

func (s *Service) normalize(req *Request) error {
	if req.N <= 3 {
		return fmt.Errorf("factor: %w: modulus %d has no nontrivial factorization to find", ErrInvalidRequest, req.N)
	}
	if req.ControlSize == 0 {
		req.ControlSize = 2 * modmath.RegisterSize(req.N)
	}
	if req.Shots == 0 {
		req.Shots = DefaultShots
	}
	if req.MaxAttempts == 0 {
		req.MaxAttempts = DefaultMaxAttempts
	}
	if req.A != 0 {
		return circuit.Validate(req.N, req.A, req.ControlSize)
	}
	return nil
}

// sortedBitstrings fixes the decode order of a batch: most frequent first,
// ties broken lexicographically. Map iteration order must never influence
// which attempt consumes the budget.
func sortedBitstrings(o sampler.Outcome) []string {
	keys := make([]string, 0, len(o))
	for bits := range o {
		keys = append(keys, bits)
	}
	sort.Slice(keys, func(i, j int) bool {
		if o[keys[i]] != o[keys[j]] {
			return o[keys[i]] > o[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
