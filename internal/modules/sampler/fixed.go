package sampler

import (
	"context"
	"fmt"

	"github.com/shorlab/shorlab/internal/modules/circuit"
)

// Fixed is a deterministic Sampler that always returns a canned outcome.
// It backs the exact property tests and API dry runs: with a Fixed source
// the whole pipeline from bitstring to factor is replayable.
type Fixed struct {
	// Bitstring, when set, receives all shots.
	Bitstring string
	// Counts, when non-nil, is returned as-is (scaled copies are not made);
	// it takes precedence over Bitstring.
	Counts Outcome
}

// Run returns the canned outcome, validating bitstring width against the
// circuit's control register.
func (f *Fixed) Run(_ context.Context, c *circuit.Circuit, shots int) (Outcome, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("fixed sampler: %w (got %d)", ErrInvalidShots, shots)
	}
	if f.Counts != nil {
		for bits := range f.Counts {
			if len(bits) != c.ControlSize {
				return nil, fmt.Errorf("fixed sampler: bitstring %q does not match control size %d", bits, c.ControlSize)
			}
		}
		return f.Counts, nil
	}
	if len(f.Bitstring) != c.ControlSize {
		return nil, fmt.Errorf("fixed sampler: bitstring %q does not match control size %d", f.Bitstring, c.ControlSize)
	}
	return Outcome{f.Bitstring: shots}, nil
}
