// Package decoder converts measured control-register bitstrings into order
// candidates. A bitstring is read as an unsigned integer y, giving the
// exact rational phase y/2^m; the candidate order is the denominator of the
// best rational approximation to that phase with denominator below the
// modulus, found by continued fractions. All arithmetic is integer-exact,
// so for a phase equal to k/r in lowest terms with r < N the decoder
// recovers r precisely.
package decoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDegeneratePhase marks the measured phase 0: a designed-for outcome
// that carries no order information. The retry controller treats it as an
// uninformative sample, never as a hard failure.
var ErrDegeneratePhase = errors.New("degenerate sample: measured phase is zero")

// ErrMalformedBitstring is returned for bitstrings with characters other
// than 0 and 1, or an empty string.
var ErrMalformedBitstring = errors.New("malformed measurement bitstring")

// ErrControlTooLarge guards the int64 phase arithmetic (2^m must fit).
var ErrControlTooLarge = errors.New("control register exceeds 62 qubits")

// Phase is the exact rational y/2^m derived from one measurement.
type Phase struct {
	Numerator   int64 // y, the bitstring as an unsigned integer
	Denominator int64 // 2^m
}

// Float returns the phase as a float64, for logging and reporting only;
// decoding never leaves integer arithmetic.
func (p Phase) Float() float64 {
	return float64(p.Numerator) / float64(p.Denominator)
}

// ParseBitstring reads an m-qubit measurement bitstring (most significant
// qubit first) into its exact phase.
func ParseBitstring(bits string) (Phase, error) {
	m := len(bits)
	if m == 0 || strings.Trim(bits, "01") != "" {
		return Phase{}, fmt.Errorf("decoder: %w: %q", ErrMalformedBitstring, bits)
	}
	if m > 62 {
		return Phase{}, fmt.Errorf("decoder: %w (m=%d)", ErrControlTooLarge, m)
	}
	y, err := strconv.ParseInt(bits, 2, 64)
	if err != nil {
		return Phase{}, fmt.Errorf("decoder: %w: %q", ErrMalformedBitstring, bits)
	}
	return Phase{Numerator: y, Denominator: int64(1) << m}, nil
}

// OrderCandidate decodes one bitstring into a candidate order for the given
// modulus. The degenerate phase 0 returns ErrDegeneratePhase; everything
// else yields the denominator of the bounded-denominator approximation,
// guaranteed to lie in [1, N).
func OrderCandidate(bits string, n int64) (int64, error) {
	phase, err := ParseBitstring(bits)
	if err != nil {
		return 0, err
	}
	if phase.Numerator == 0 {
		return 0, ErrDegeneratePhase
	}
	_, r := LimitDenominator(phase.Numerator, phase.Denominator, n-1)
	return r, nil
}

// LimitDenominator returns the fraction closest to num/den whose
// denominator is at most maxDen, as a (numerator, denominator) pair in
// lowest terms. It walks the continued-fraction expansion, stopping at the
// first convergent whose denominator would exceed the bound, then compares
// the last convergent against the best semiconvergent under the bound and
// keeps the closer of the two.
func LimitDenominator(num, den, maxDen int64) (int64, int64) {
	if maxDen < 1 {
		maxDen = 1
	}
	if den <= maxDen {
		g := gcd(num, den)
		return num / g, den / g
	}

	// Convergents p/q of the continued fraction of num/den.
	p0, q0, p1, q1 := int64(0), int64(1), int64(1), int64(0)
	n, d := num, den
	for d != 0 {
		a := n / d
		q2 := q0 + a*q1
		if q2 > maxDen {
			break
		}
		p0, q0, p1, q1 = p1, q1, p0+a*p1, q2
		n, d = d, n-a*d
	}
	if d == 0 {
		// Expansion terminated within the bound: the value is exact.
		return p1, q1
	}

	// Best semiconvergent under the bound versus the last full convergent.
	k := (maxDen - q0) / q1
	sp, sq := p0+k*p1, q0+k*q1

	// Compare |num/den - sp/sq| against |num/den - p1/q1| without leaving
	// integer arithmetic: cross-multiply both differences by den·sq·q1.
	diffSemi := abs(num*sq-sp*den) * q1
	diffConv := abs(num*q1-p1*den) * sq
	if diffConv <= diffSemi {
		return p1, q1
	}
	return sp, sq
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
