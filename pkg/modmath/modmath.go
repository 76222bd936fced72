// Package modmath provides the classical modular arithmetic used by the
// order-finding engine: exponentiation by squaring, GCDs, and the
// repeated-squaring ladder that feeds the modular multiplication operators.
package modmath

import (
	"errors"
	"fmt"
)

// ErrInvalidModulus is returned when a modulus of 1 or less is supplied.
var ErrInvalidModulus = errors.New("modulus must be greater than 1")

// GCD returns the greatest common divisor of a and b.
func GCD(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Coprime reports whether a and n share no factor other than 1.
func Coprime(a, n int64) bool {
	return GCD(a, n) == 1
}

// PowMod returns a^e mod n computed by square-and-multiply.
// All intermediate products stay below n², so n must fit in 32 bits
// to avoid overflow of the int64 intermediates.
func PowMod(a, e, n int64) (int64, error) {
	if n <= 1 {
		return 0, fmt.Errorf("powmod: %w (got %d)", ErrInvalidModulus, n)
	}
	if e < 0 {
		return 0, fmt.Errorf("powmod: negative exponent %d", e)
	}
	a %= n
	if a < 0 {
		a += n
	}
	result := int64(1)
	for e > 0 {
		if e&1 == 1 {
			result = result * a % n
		}
		a = a * a % n
		e >>= 1
	}
	return result, nil
}

// PowMod2k returns a^(2^k) mod n, computed by k successive squarings
// rather than by direct exponentiation. This is the classical half of the
// modular exponentiation ladder: the multiplier controlled by estimation
// qubit k is a^(2^k) mod n.
func PowMod2k(a, k, n int64) (int64, error) {
	if n <= 1 {
		return 0, fmt.Errorf("powmod2k: %w (got %d)", ErrInvalidModulus, n)
	}
	if k < 0 {
		return 0, fmt.Errorf("powmod2k: negative squaring count %d", k)
	}
	a %= n
	if a < 0 {
		a += n
	}
	for i := int64(0); i < k; i++ {
		a = a * a % n
	}
	return a, nil
}

// MultiplierLadder returns the m multipliers b_0..b_{m-1} with
// b_k = a^(2^k) mod n, one per estimation qubit.
func MultiplierLadder(a, n int64, m int) ([]int64, error) {
	if n <= 1 {
		return nil, fmt.Errorf("ladder: %w (got %d)", ErrInvalidModulus, n)
	}
	if m <= 0 {
		return nil, fmt.Errorf("ladder: control size must be positive, got %d", m)
	}
	ladder := make([]int64, m)
	b := a % n
	if b < 0 {
		b += n
	}
	for k := 0; k < m; k++ {
		ladder[k] = b
		b = b * b % n
	}
	return ladder, nil
}

// RegisterSize returns the number of qubits needed to hold the values
// 0..n-1, i.e. ceil(log2(n)).
func RegisterSize(n int64) int {
	size := 0
	for v := n - 1; v > 0; v >>= 1 {
		size++
	}
	if size == 0 {
		size = 1
	}
	return size
}

// Order returns the multiplicative order of a modulo n by brute force.
// It is used for verification in tests and capacity planning, never in the
// decoding path (the whole point of the engine is to avoid this loop).
func Order(a, n int64) (int64, error) {
	if n <= 1 {
		return 0, fmt.Errorf("order: %w (got %d)", ErrInvalidModulus, n)
	}
	if !Coprime(a, n) {
		return 0, fmt.Errorf("order: %d and %d are not coprime", a, n)
	}
	x := a % n
	for r := int64(1); r < n; r++ {
		if x == 1 {
			return r, nil
		}
		x = x * a % n
	}
	return 0, fmt.Errorf("order: no order found for %d mod %d", a, n)
}
