// Package factor turns order candidates into nontrivial factors and owns
// the retry protocol around the sampling boundary. The decision logic is an
// explicit state machine with a pure transition function, so the
// failure-probability contract is testable without any sampling at all.
package factor

import (
	"fmt"

	"github.com/shorlab/shorlab/pkg/modmath"
)

// State enumerates the retry controller's states. One attempt moves
// AwaitingSample → HaveOrder → Success or Retry; the run as a whole is
// terminal on Success or Exhausted.
type State string

const (
	// StateAwaitingSample means the controller needs a measurement.
	StateAwaitingSample State = "awaiting_sample"
	// StateHaveOrder means a candidate order has been decoded.
	StateHaveOrder State = "have_order"
	// StateSuccess means a nontrivial factor was extracted.
	StateSuccess State = "success"
	// StateRetry means the attempt was uninformative; the loop continues.
	StateRetry State = "retry"
	// StateExhausted means the attempt budget ran out without a factor.
	StateExhausted State = "exhausted"
)

// Reason explains why an attempt was uninformative. These are designed-for
// outcomes with known nonzero probability, not errors.
type Reason string

const (
	// ReasonDegeneratePhase: the measured phase was 0.
	ReasonDegeneratePhase Reason = "degenerate_phase"
	// ReasonOddOrder: the candidate order is odd, a^(r/2) undefined.
	ReasonOddOrder Reason = "odd_order"
	// ReasonSelfInverse: a^(r/2) ≡ −1 (mod N), both GCD candidates trivial.
	ReasonSelfInverse Reason = "self_inverse"
	// ReasonTrivialGCD: both gcd(a^(r/2)±1, N) came out as 1 or N.
	ReasonTrivialGCD Reason = "trivial_gcd"
)

// Evaluation is the outcome of the pure transition from a candidate order:
// either Success with a factor pair or Retry with a reason.
type Evaluation struct {
	State  State
	Reason Reason
	P, Q   int64
}

// Evaluate is the pure transition function from (N, a, candidate order r)
// to Success or Retry. It never samples and never retries on its own.
func Evaluate(n, a, r int64) (Evaluation, error) {
	if n <= 1 {
		return Evaluation{}, fmt.Errorf("factor: %w (got %d)", modmath.ErrInvalidModulus, n)
	}
	if r < 1 || r >= n {
		return Evaluation{}, fmt.Errorf("factor: candidate order %d outside [1, %d)", r, n)
	}
	if r%2 != 0 {
		return Evaluation{State: StateRetry, Reason: ReasonOddOrder}, nil
	}

	x, err := modmath.PowMod(a, r/2, n)
	if err != nil {
		return Evaluation{}, err
	}
	if x == n-1 {
		// a^(r/2) ≡ −1 (mod N): both a^(r/2)±1 collapse to trivial GCDs.
		return Evaluation{State: StateRetry, Reason: ReasonSelfInverse}, nil
	}

	for _, d := range []int64{modmath.GCD(x-1, n), modmath.GCD(x+1, n)} {
		if d > 1 && d < n {
			return Evaluation{State: StateSuccess, P: d, Q: n / d}, nil
		}
	}
	return Evaluation{State: StateRetry, Reason: ReasonTrivialGCD}, nil
}

// Request describes one factorization run.
type Request struct {
	N                int64 // Modulus to factor; must be composite and not a prime power (caller pre-checks)
	A                int64 // Base; 0 lets the controller iterate candidates
	ControlSize      int   // Estimation qubits; 0 defaults to 2·ceil(log2 N)
	Shots            int   // Shots per sampler invocation
	MaxAttempts      int   // Attempt budget; one decoded bitstring is one attempt
	KeepAboveHalfMax bool  // Optional noise pre-filter on each shot histogram
}

// AttemptRecord captures one decoded attempt for reporting and persistence.
type AttemptRecord struct {
	Bitstring string  `json:"bitstring"`
	Phase     float64 `json:"phase"`
	Order     int64   `json:"order"`
	Base      int64   `json:"base"`
	State     State   `json:"state"`
	Reason    Reason  `json:"reason,omitempty"`
}

// Result is the outcome of a run: a factor pair, or a structured "not
// found" with the number of attempts made. Exhaustion is not an error;
// each attempt has a known nonzero failure probability.
type Result struct {
	Found    bool            `json:"found"`
	P        int64           `json:"p,omitempty"`
	Q        int64           `json:"q,omitempty"`
	Order    int64           `json:"order,omitempty"`
	Base     int64           `json:"base,omitempty"`
	Attempts int             `json:"attempts"`
	History  []AttemptRecord `json:"history,omitempty"`
}
