package operator

// ControlledPermutation is the one-control-line form of a permutation
// operator: the target register passes through untouched when the control
// qubit is 0, and through the base permutation when it is 1. It is a pure
// function of the base operator's action table, so it composes identically
// no matter which synthesis strategy produced the base.
type ControlledPermutation struct {
	base *Permutation
}

// Controlled wraps a permutation operator with a single control line.
func Controlled(p *Permutation) *ControlledPermutation {
	return &ControlledPermutation{base: p}
}

// Base returns the underlying permutation.
func (c *ControlledPermutation) Base() *Permutation {
	return c.base
}

// Qubits returns the total qubit count: one control plus the target register.
func (c *ControlledPermutation) Qubits() int {
	return c.base.Qubits + 1
}

// Apply maps a target basis state through the operator for a given control
// bit value. Control values other than 0 are treated as 1.
func (c *ControlledPermutation) Apply(control int64, x int64) int64 {
	if control == 0 {
		return x
	}
	return c.base.Apply(x)
}
