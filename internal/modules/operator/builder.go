package operator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// BuildResult is a synthesized permutation operator: the action table, the
// elementary operation sequence that realizes it, and the cost of that
// sequence. Sequences from different strategies realize the identical table.
type BuildResult struct {
	Permutation *Permutation
	Ops         []Op
	Cost        CostReport
}

// Build synthesizes the permutation operator for multiplier b modulo n using
// the requested strategy. Every build is verified: the emitted operation
// sequence is replayed on all basis states and compared against the action
// table before the result is returned.
func Build(b, n int64, strategy Strategy) (*BuildResult, error) {
	perm, err := NewPermutation(b, n)
	if err != nil {
		return nil, err
	}

	var ops []Op
	var used Strategy
	switch strategy {
	case StrategyStructural:
		ops, err = structuralOps(perm)
		if err != nil {
			return nil, err
		}
		used = StrategyStructural
	case StrategyGeneric:
		ops = genericOps(perm)
		used = StrategyGeneric
	case StrategyAuto, "":
		ops, err = structuralOps(perm)
		used = StrategyStructural
		if err != nil {
			ops = genericOps(perm)
			used = StrategyGeneric
		}
	default:
		return nil, fmt.Errorf("operator: unknown strategy %q", strategy)
	}

	if err := verifyOps(perm, ops); err != nil {
		return nil, err
	}

	return &BuildResult{
		Permutation: perm,
		Ops:         ops,
		Cost: CostReport{
			Strategy: used,
			OpCount:  len(ops),
			Depth:    depth(ops),
		},
	}, nil
}

// structuralOps derives a qubit-exchange network for the permutation.
// Multiplication by 2^j modulo 2^n - 1 rotates the register bits left by j
// (2^n is congruent to 1, so every bit weight wraps around), and a bit
// rotation is a product of disjoint qubit cycles, each realized by a short
// run of pairwise exchanges. This covers exactly the multipliers the N=15
// operators are hand-built from: M2 is three swaps, M4 is two.
func structuralOps(p *Permutation) ([]Op, error) {
	if p.Multiplier == 1 {
		return nil, nil // identity
	}
	if p.Modulus != p.Dim()-1 {
		return nil, fmt.Errorf("operator: modulus %d is not 2^%d-1: %w", p.Modulus, p.Qubits, ErrStructuralUnavailable)
	}
	shift := powerOfTwoExponent(p.Multiplier)
	if shift < 0 {
		return nil, fmt.Errorf("operator: multiplier %d is not a power of two: %w", p.Multiplier, ErrStructuralUnavailable)
	}

	// Bit i of the input ends up at bit (i+shift) mod n. Decompose that
	// qubit permutation into cycles and emit each cycle as a run of
	// adjacent exchanges, last pair first.
	n := p.Qubits
	var ops []Op
	seen := make([]bool, n)
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		var cycle []int
		for q := start; !seen[q]; q = (q + shift) % n {
			seen[q] = true
			cycle = append(cycle, q)
		}
		for i := len(cycle) - 2; i >= 0; i-- {
			ops = append(ops, Op{Kind: OpSwap, A: int64(cycle[i]), B: int64(cycle[i+1])})
		}
	}
	return ops, nil
}

// genericOps synthesizes the permutation mechanically: materialize the full
// 2^n x 2^n permutation matrix and decompose it into two-level basis-state
// transpositions, one cycle at a time. Always applicable, but each
// transposition becomes a multi-controlled gate after compilation, so the
// resulting circuits are asymptotically deeper than a swap network.
func genericOps(p *Permutation) []Op {
	table := tableFromMatrix(Matrix(p))

	dim := len(table)
	var ops []Op
	seen := make([]bool, dim)
	for start := 0; start < dim; start++ {
		if seen[start] || table[start] == int64(start) {
			seen[start] = true
			continue
		}
		var cycle []int64
		for x := int64(start); !seen[x]; x = table[x] {
			seen[x] = true
			cycle = append(cycle, x)
		}
		for i := len(cycle) - 2; i >= 0; i-- {
			ops = append(ops, Op{Kind: OpTransposition, A: cycle[i], B: cycle[i+1]})
		}
	}
	return ops
}

// Matrix returns the explicit permutation matrix U with U[b·x mod N][x] = 1
// for x < N and U[x][x] = 1 for the padding states.
func Matrix(p *Permutation) *mat.Dense {
	dim := int(p.Dim())
	u := mat.NewDense(dim, dim, nil)
	for x := 0; x < dim; x++ {
		u.Set(int(p.table[x]), x, 1)
	}
	return u
}

// IsUnitary reports whether a real square matrix satisfies UᵀU = I. For
// permutation matrices this doubles as a bijectivity check.
func IsUnitary(u *mat.Dense) bool {
	r, c := u.Dims()
	if r != c {
		return false
	}
	var prod mat.Dense
	prod.Mul(u.T(), u)
	identity := mat.NewDiagDense(r, onesVector(r))
	return mat.EqualApprox(&prod, identity, 1e-12)
}

func onesVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// tableFromMatrix recovers the action table from a permutation matrix.
// The generic path deliberately round-trips through the matrix so that it
// exercises the same machinery an arbitrary-unitary synthesis pass would.
func tableFromMatrix(u *mat.Dense) []int64 {
	dim, _ := u.Dims()
	table := make([]int64, dim)
	for x := 0; x < dim; x++ {
		for y := 0; y < dim; y++ {
			if u.At(y, x) == 1 {
				table[x] = int64(y)
				break
			}
		}
	}
	return table
}

// verifyOps replays an operation sequence on every basis state and checks
// the result against the action table.
func verifyOps(p *Permutation, ops []Op) error {
	for x := int64(0); x < p.Dim(); x++ {
		got := applyOps(ops, x, p.Qubits)
		if got != p.table[x] {
			return fmt.Errorf("operator: synthesized sequence maps %d to %d, table says %d", x, got, p.table[x])
		}
	}
	return nil
}

// applyOps runs a basis state through an operation sequence.
func applyOps(ops []Op, x int64, qubits int) int64 {
	for _, op := range ops {
		switch op.Kind {
		case OpSwap:
			bitA := (x >> op.A) & 1
			bitB := (x >> op.B) & 1
			if bitA != bitB {
				x ^= (1 << op.A) | (1 << op.B)
			}
		case OpTransposition:
			if x == op.A {
				x = op.B
			} else if x == op.B {
				x = op.A
			}
		}
	}
	return x
}

// depth computes the layered depth of an operation sequence. Swaps on
// disjoint qubit pairs pack into one layer greedily; transpositions never
// pack because each one occupies the full register.
func depth(ops []Op) int {
	layers := 0
	var layerBusy map[int64]bool
	for _, op := range ops {
		if op.Kind != OpSwap {
			// Flush any open swap layer, then count the transposition.
			layerBusy = nil
			layers++
			continue
		}
		if layerBusy == nil || layerBusy[op.A] || layerBusy[op.B] {
			layerBusy = map[int64]bool{}
			layers++
		}
		layerBusy[op.A] = true
		layerBusy[op.B] = true
	}
	return layers
}

// powerOfTwoExponent returns j when v == 2^j, and -1 otherwise.
func powerOfTwoExponent(v int64) int {
	if v <= 0 || v&(v-1) != 0 {
		return -1
	}
	j := 0
	for v > 1 {
		v >>= 1
		j++
	}
	return j
}
