package circuit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shorlab/shorlab/internal/modules/operator"
	"github.com/shorlab/shorlab/pkg/modmath"
)

// Input validation errors. These are fatal caller mistakes, rejected before
// any operator or circuit is built; they are never retried.
var (
	// ErrInvalidModulus re-exports the modular arithmetic sentinel for
	// callers that only import this package.
	ErrInvalidModulus = modmath.ErrInvalidModulus
	// ErrBaseOutOfRange is returned when the base is outside [2, N-1].
	ErrBaseOutOfRange = errors.New("base must be in [2, N-1]")
	// ErrInsufficientPrecision is returned when the control register is
	// smaller than the target register: fewer estimation qubits than target
	// qubits cannot distinguish any nontrivial order.
	ErrInsufficientPrecision = errors.New("control register smaller than target register")
	// ErrControlTooLarge guards the int64 phase arithmetic downstream.
	ErrControlTooLarge = errors.New("control register exceeds 62 qubits")
)

// Assembler builds order-finding circuits. Construction is pure and
// stateless, so assembled circuits are cached per (N, a, m) triple.
type Assembler struct {
	strategy operator.Strategy

	mu    sync.RWMutex
	cache map[Key]*Circuit
}

// NewAssembler creates an assembler that synthesizes multiplication
// operators with the given strategy (StrategyAuto when empty).
func NewAssembler(strategy operator.Strategy) *Assembler {
	if strategy == "" {
		strategy = operator.StrategyAuto
	}
	return &Assembler{
		strategy: strategy,
		cache:    make(map[Key]*Circuit),
	}
}

// Validate checks an (N, a, m) triple against the input error taxonomy
// without building anything.
func Validate(n, a int64, m int) error {
	if n <= 1 {
		return fmt.Errorf("circuit: %w (got %d)", ErrInvalidModulus, n)
	}
	if a < 2 || a >= n {
		return fmt.Errorf("circuit: %w (a=%d, N=%d)", ErrBaseOutOfRange, a, n)
	}
	if m < modmath.RegisterSize(n) {
		return fmt.Errorf("circuit: %w (m=%d, n=%d)", ErrInsufficientPrecision, m, modmath.RegisterSize(n))
	}
	if m > 62 {
		return fmt.Errorf("circuit: %w (m=%d)", ErrControlTooLarge, m)
	}
	return nil
}

// Assemble builds the phase-estimation circuit for order finding of base a
// modulo N with m estimation qubits:
//
//  1. target size n = ceil(log2 N)
//  2. multiplier ladder b_k = a^(2^k) mod N for k = 0..m-1
//  3. target prepared in the basis state for value 1 (X on target qubit 0);
//     value 1 is the uniform superposition of every eigenvector of the
//     multiply-by-a operator, so each run samples a usable phase k/r
//  4. per control qubit k: one H, then the controlled M_{b_k}; ladder
//     entries with b_k = 1 are skipped (identity, pure optimization)
//  5. inverse QFT over the control register
//  6. measurement of the control register only
//
// Results are memoized; the returned circuit is shared and must be treated
// as read-only.
func (asm *Assembler) Assemble(n, a int64, m int) (*Circuit, error) {
	if err := Validate(n, a, m); err != nil {
		return nil, err
	}
	if !modmath.Coprime(a, n) {
		// The controller short-circuits this case classically long before
		// assembly; reaching here still has to fail cleanly.
		return nil, fmt.Errorf("circuit: base %d mod %d: %w", a, n, operator.ErrNotCoprime)
	}

	key := Key{Modulus: n, Base: a, ControlSize: m}
	asm.mu.RLock()
	if c, ok := asm.cache[key]; ok {
		asm.mu.RUnlock()
		return c, nil
	}
	asm.mu.RUnlock()

	targetSize := modmath.RegisterSize(n)
	ladder, err := modmath.MultiplierLadder(a, n, m)
	if err != nil {
		return nil, fmt.Errorf("circuit: %w", err)
	}

	gates := make([]Gate, 0, 2*m+2)
	gates = append(gates, Gate{Kind: GateX, Qubit: 0}) // target |1>

	for k := 0; k < m; k++ {
		gates = append(gates, Gate{Kind: GateH, Qubit: k})
		if ladder[k] == 1 {
			continue
		}
		res, err := operator.Build(ladder[k], n, asm.strategy)
		if err != nil {
			return nil, fmt.Errorf("circuit: building M_%d mod %d: %w", ladder[k], n, err)
		}
		gates = append(gates, Gate{
			Kind:       GateCMul,
			Control:    k,
			Multiplier: ladder[k],
			Table:      res.Permutation.Table(),
		})
	}

	gates = append(gates, Gate{Kind: GateInvQFT})

	c := &Circuit{
		Modulus:     n,
		Base:        a,
		ControlSize: m,
		TargetSize:  targetSize,
		Ladder:      ladder,
		Registers: []Register{
			{Name: "C", Size: m},
			{Name: "T", Size: targetSize},
		},
		Gates: gates,
	}

	asm.mu.Lock()
	asm.cache[key] = c
	asm.mu.Unlock()
	return c, nil
}
