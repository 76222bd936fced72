package modmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowMod2k(t *testing.T) {
	tests := []struct {
		name     string
		a, k, n  int64
		expected int64
	}{
		{name: "2^(2^0) mod 15", a: 2, k: 0, n: 15, expected: 2},
		{name: "2^(2^1) mod 15", a: 2, k: 1, n: 15, expected: 4},
		{name: "2^(2^2) mod 15", a: 2, k: 2, n: 15, expected: 1},
		{name: "2^(2^3) mod 15", a: 2, k: 3, n: 15, expected: 1},
		{name: "7^(2^3) mod 15", a: 7, k: 3, n: 15, expected: 1},
		{name: "2^(2^4) mod 21", a: 2, k: 4, n: 21, expected: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PowMod2k(tt.a, tt.k, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPowMod2kMatchesPowMod(t *testing.T) {
	// a^(2^k) computed by squaring must agree with direct exponentiation.
	for _, n := range []int64{7, 15, 21} {
		for a := int64(2); a < n; a++ {
			for k := int64(0); k < 8; k++ {
				squared, err := PowMod2k(a, k, n)
				require.NoError(t, err)
				direct, err := PowMod(a, int64(1)<<k, n)
				require.NoError(t, err)
				assert.Equal(t, direct, squared, "a=%d k=%d n=%d", a, k, n)
			}
		}
	}
}

func TestPowMod2kRejectsInvalidModulus(t *testing.T) {
	_, err := PowMod2k(2, 3, 1)
	assert.ErrorIs(t, err, ErrInvalidModulus)

	_, err = PowMod2k(2, 3, 0)
	assert.ErrorIs(t, err, ErrInvalidModulus)
}

func TestMultiplierLadder(t *testing.T) {
	// The ladder for N=15, a=2, m=8:
	// [2, 4, 1, 1, 1, 1, 1, 1].
	ladder, err := MultiplierLadder(2, 15, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 1, 1, 1, 1, 1, 1}, ladder)
}

func TestGCD(t *testing.T) {
	assert.Equal(t, int64(1), GCD(2, 15))
	assert.Equal(t, int64(3), GCD(6, 15))
	assert.Equal(t, int64(5), GCD(10, 15))
	assert.Equal(t, int64(15), GCD(0, 15))
	assert.Equal(t, int64(3), GCD(-6, 15))
}

func TestRegisterSize(t *testing.T) {
	tests := []struct {
		n        int64
		expected int
	}{
		{n: 2, expected: 1},
		{n: 7, expected: 3},
		{n: 15, expected: 4},
		{n: 16, expected: 4},
		{n: 17, expected: 5},
		{n: 21, expected: 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, RegisterSize(tt.n), "n=%d", tt.n)
	}
}

func TestOrder(t *testing.T) {
	r, err := Order(2, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(4), r)

	r, err = Order(7, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(4), r)

	r, err = Order(4, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r)

	_, err = Order(6, 15)
	assert.Error(t, err, "6 and 15 share a factor")
}
