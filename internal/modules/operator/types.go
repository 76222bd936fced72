// Package operator builds the modular multiplication operators used by the
// order-finding circuit. A multiplier b coprime to the modulus N defines a
// permutation of the computational basis states of the smallest register
// that holds 0..N-1: x maps to b·x mod N below N, and the padding states at
// N and above are fixed points. The package offers two synthesis strategies
// for realizing that permutation as elementary operations, a cost report for
// comparing them, and the controlled form used by phase estimation.
package operator

import (
	"errors"
	"fmt"

	"github.com/shorlab/shorlab/pkg/modmath"
)

// ErrNotCoprime is returned when the multiplier shares a factor with the
// modulus. The induced map is then not a bijection, so no unitary exists.
var ErrNotCoprime = errors.New("multiplier and modulus are not coprime")

// ErrStructuralUnavailable is returned by the structural strategy when the
// permutation is not a register bit rotation. Only multiplication by a power
// of two modulo 2^n - 1 decomposes into a plain qubit-exchange network; every
// other multiplier needs the generic synthesis path.
var ErrStructuralUnavailable = errors.New("no structural swap decomposition for this multiplier")

// Strategy selects how a permutation operator is synthesized into
// elementary operations.
type Strategy string

const (
	// StrategyAuto prefers the structural decomposition and falls back to
	// generic synthesis when none exists.
	StrategyAuto Strategy = "auto"
	// StrategyStructural hand-derives a minimal qubit-exchange network.
	// Shallow circuits, but only available for bit-rotation multipliers.
	StrategyStructural Strategy = "structural"
	// StrategyGeneric builds the explicit permutation matrix and decomposes
	// it into two-level transpositions. Always correct, always deeper.
	StrategyGeneric Strategy = "generic"
)

// OpKind distinguishes the elementary operations emitted by synthesis.
type OpKind string

const (
	// OpSwap exchanges two qubits of the target register.
	OpSwap OpKind = "swap"
	// OpTransposition exchanges two basis states of the target register.
	OpTransposition OpKind = "transposition"
)

// Op is one elementary operation in a synthesized sequence. For OpSwap, A
// and B are qubit indices; for OpTransposition they are basis state indices.
type Op struct {
	Kind OpKind `json:"kind"`
	A    int64  `json:"a"`
	B    int64  `json:"b"`
}

// CostReport summarizes the resource usage of a synthesized operation
// sequence. Depth is the limiting resource on hardware: for swap networks it
// counts layers of disjoint exchanges, for transposition sequences every
// operation is its own layer because each one touches the whole register
// once decomposed into multi-controlled gates.
type CostReport struct {
	Strategy Strategy `json:"strategy"`
	OpCount  int      `json:"op_count"`
	Depth    int      `json:"depth"`
}

// Permutation is the action table of a modular multiplication operator over
// the full 2^n-state register, padding states included.
type Permutation struct {
	Modulus    int64
	Multiplier int64
	Qubits     int
	table      []int64
}

// NewPermutation builds the action table for multiplier b modulo n.
func NewPermutation(b, n int64) (*Permutation, error) {
	if n <= 1 {
		return nil, fmt.Errorf("operator: %w (got %d)", modmath.ErrInvalidModulus, n)
	}
	b %= n
	if b < 0 {
		b += n
	}
	if !modmath.Coprime(b, n) {
		return nil, fmt.Errorf("operator: multiplier %d mod %d: %w", b, n, ErrNotCoprime)
	}

	qubits := modmath.RegisterSize(n)
	dim := int64(1) << qubits
	table := make([]int64, dim)
	for x := int64(0); x < n; x++ {
		table[x] = b * x % n
	}
	for x := n; x < dim; x++ {
		table[x] = x
	}

	return &Permutation{
		Modulus:    n,
		Multiplier: b,
		Qubits:     qubits,
		table:      table,
	}, nil
}

// Apply maps a basis state through the permutation.
func (p *Permutation) Apply(x int64) int64 {
	return p.table[x]
}

// Dim returns the number of basis states, 2^Qubits.
func (p *Permutation) Dim() int64 {
	return int64(len(p.table))
}

// Table returns a copy of the action table.
func (p *Permutation) Table() []int64 {
	out := make([]int64, len(p.table))
	copy(out, p.table)
	return out
}

// Equivalent reports whether two permutations have identical action tables.
// This is the primary verification property between synthesis strategies:
// gate sequences may differ, state mappings may not.
func Equivalent(a, b *Permutation) bool {
	if a == nil || b == nil || len(a.table) != len(b.table) {
		return false
	}
	for i := range a.table {
		if a.table[i] != b.table[i] {
			return false
		}
	}
	return true
}

// Compose returns the permutation obtained by applying p and then q.
// Both must act on registers of the same size.
func Compose(p, q *Permutation) (*Permutation, error) {
	if p.Qubits != q.Qubits {
		return nil, fmt.Errorf("operator: cannot compose %d-qubit and %d-qubit permutations", p.Qubits, q.Qubits)
	}
	table := make([]int64, len(p.table))
	for x := range p.table {
		table[x] = q.table[p.table[x]]
	}
	return &Permutation{
		Modulus:    p.Modulus,
		Multiplier: p.Multiplier * q.Multiplier % p.Modulus,
		Qubits:     p.Qubits,
		table:      table,
	}, nil
}
