// Package circuit assembles the phase-estimation circuit for modular
// order finding. A circuit is an immutable, inspectable description (an
// ordered gate list over two named registers plus a control-register
// measurement) and never drives execution itself; sampling is a separate
// concern behind the sampler boundary.
package circuit

import "fmt"

// GateKind identifies the operations the order-finding circuit is built
// from. The engine only ever assembles this exact shape, so the vocabulary
// is deliberately small.
type GateKind string

const (
	// GateX flips one qubit. Used once, to prepare the target register in
	// the basis state for integer value 1.
	GateX GateKind = "x"
	// GateH applies the basis-mixing (Hadamard) operation to one control
	// qubit before the controlled-multiplication ladder.
	GateH GateKind = "h"
	// GateCMul applies a modular multiplication permutation to the target
	// register, controlled on one estimation qubit.
	GateCMul GateKind = "cmul"
	// GateInvQFT applies the inverse quantum Fourier transform across the
	// whole control register.
	GateInvQFT GateKind = "invqft"
)

// Gate is one operation in the circuit. Qubit indexes the single qubit a
// GateX or GateH acts on (control register indices for GateH, target
// register indices for GateX). Control and Multiplier describe a GateCMul:
// the estimation qubit it is conditioned on and the classical multiplier
// whose permutation it applies. Table carries that permutation's action
// table so downstream consumers need no access to the operator builder.
type Gate struct {
	Kind       GateKind `json:"kind"`
	Qubit      int      `json:"qubit,omitempty"`
	Control    int      `json:"control,omitempty"`
	Multiplier int64    `json:"multiplier,omitempty"`
	Table      []int64  `json:"-"`
}

// Register is a named group of qubits.
type Register struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Circuit is a fully assembled order-finding circuit: control register of
// ControlSize estimation qubits, target register of TargetSize qubits, the
// ordered gate list, and a measurement over the control register. The target
// register is never measured.
type Circuit struct {
	Modulus     int64      `json:"modulus"`
	Base        int64      `json:"base"`
	ControlSize int        `json:"control_size"`
	TargetSize  int        `json:"target_size"`
	Ladder      []int64    `json:"ladder"`
	Registers   []Register `json:"registers"`
	Gates       []Gate     `json:"gates"`
}

// Qubits returns the total width of the circuit.
func (c *Circuit) Qubits() int {
	return c.ControlSize + c.TargetSize
}

// GateCounts tallies gates by kind, mirroring the op-count reports used to
// compare transpiled depth on hardware.
func (c *Circuit) GateCounts() map[GateKind]int {
	counts := make(map[GateKind]int)
	for _, g := range c.Gates {
		counts[g.Kind]++
	}
	return counts
}

// Key identifies the (modulus, base, control size) triple a circuit was
// assembled for. Construction is pure, so circuits are memoized per key.
type Key struct {
	Modulus     int64
	Base        int64
	ControlSize int
}

func (k Key) String() string {
	return fmt.Sprintf("N=%d a=%d m=%d", k.Modulus, k.Base, k.ControlSize)
}
