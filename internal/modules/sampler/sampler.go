// Package sampler defines the execution boundary of the order-finding
// engine. The engine depends only on the Sampler contract; whether outcomes
// come from the exact reference simulator in this package, a hardware
// backend, or a canned stub is irrelevant to its correctness.
package sampler

import (
	"context"
	"errors"
	"fmt"

	"github.com/shorlab/shorlab/internal/modules/circuit"
)

// ErrSamplerFailure marks infrastructure failure at the sampling boundary
// (backend error, timeout, cancellation). Callers must be able to
// distinguish it from expected statistical failure, which is never an error.
var ErrSamplerFailure = errors.New("sampler failure")

// ErrInvalidShots is returned for a non-positive shot count.
var ErrInvalidShots = errors.New("shot count must be positive")

// Outcome maps fixed-length measurement bitstrings (control register, most
// significant qubit first) to nonnegative shot counts.
type Outcome map[string]int

// Shots returns the total number of shots recorded in the outcome.
func (o Outcome) Shots() int {
	total := 0
	for _, c := range o {
		total += c
	}
	return total
}

// KeepAboveHalfMax returns the outcomes whose counts exceed half of the
// maximum count. On noisy backends this trims leakage into neighboring
// bitstrings, but it carries no formal guarantee, so it stays optional on
// top of the retry protocol.
func (o Outcome) KeepAboveHalfMax() Outcome {
	max := 0
	for _, c := range o {
		if c > max {
			max = c
		}
	}
	kept := make(Outcome)
	for bits, c := range o {
		if c > max/2 {
			kept[bits] = c
		}
	}
	return kept
}

// Sampler executes an assembled circuit and returns the distribution of
// control-register measurements over the requested number of shots. Each
// shot is independent and identically distributed. Run is the engine's only
// suspension point; implementations must honor ctx.
type Sampler interface {
	Run(ctx context.Context, c *circuit.Circuit, shots int) (Outcome, error)
}

// FormatBitstring renders a measured control-register value as an m-bit
// binary string, most significant qubit first.
func FormatBitstring(y int64, m int) string {
	return fmt.Sprintf("%0*b", m, y)
}
