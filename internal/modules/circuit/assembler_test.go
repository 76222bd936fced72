package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorlab/shorlab/internal/modules/operator"
)

func TestAssembleTextbookCircuit(t *testing.T) {
	// N=15, a=2, m=8: ladder [2 4 1 1 1 1 1 1], so only control qubits 0
	// and 1 carry a controlled multiplication; the identity entries are
	// skipped.
	asm := NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	assert.Equal(t, 8, c.ControlSize)
	assert.Equal(t, 4, c.TargetSize)
	assert.Equal(t, 12, c.Qubits())
	assert.Equal(t, []int64{2, 4, 1, 1, 1, 1, 1, 1}, c.Ladder)

	counts := c.GateCounts()
	assert.Equal(t, 1, counts[GateX])
	assert.Equal(t, 8, counts[GateH])
	assert.Equal(t, 2, counts[GateCMul])
	assert.Equal(t, 1, counts[GateInvQFT])
}

func TestAssembleGateOrdering(t *testing.T) {
	asm := NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	// Target preparation first, inverse QFT last.
	assert.Equal(t, GateX, c.Gates[0].Kind)
	assert.Equal(t, 0, c.Gates[0].Qubit)
	assert.Equal(t, GateInvQFT, c.Gates[len(c.Gates)-1].Kind)

	// Each control qubit receives exactly one H, and it precedes that
	// qubit's controlled multiplication.
	hSeen := make(map[int]int)
	for i, g := range c.Gates {
		switch g.Kind {
		case GateH:
			_, dup := hSeen[g.Qubit]
			assert.False(t, dup, "control qubit %d mixed twice", g.Qubit)
			hSeen[g.Qubit] = i
		case GateCMul:
			hIdx, ok := hSeen[g.Control]
			assert.True(t, ok, "cmul on control %d before its H", g.Control)
			assert.Less(t, hIdx, i)
		}
	}
	assert.Len(t, hSeen, c.ControlSize)
}

func TestAssembleCMulTables(t *testing.T) {
	asm := NewAssembler(operator.StrategyAuto)
	c, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)

	for _, g := range c.Gates {
		if g.Kind != GateCMul {
			continue
		}
		p, err := operator.NewPermutation(g.Multiplier, 15)
		require.NoError(t, err)
		assert.Equal(t, p.Table(), g.Table, "M_%d table", g.Multiplier)
	}
}

func TestAssembleMemoizes(t *testing.T) {
	asm := NewAssembler(operator.StrategyAuto)
	c1, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)
	c2, err := asm.Assemble(15, 2, 8)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	c3, err := asm.Assemble(15, 7, 8)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		n, a    int64
		m       int
		wantErr error
	}{
		{name: "valid", n: 15, a: 2, m: 8, wantErr: nil},
		{name: "modulus too small", n: 1, a: 2, m: 8, wantErr: ErrInvalidModulus},
		{name: "base too small", n: 15, a: 1, m: 8, wantErr: ErrBaseOutOfRange},
		{name: "base too large", n: 15, a: 15, m: 8, wantErr: ErrBaseOutOfRange},
		{name: "m below target size", n: 15, a: 2, m: 3, wantErr: ErrInsufficientPrecision},
		{name: "m above int64 phase range", n: 15, a: 2, m: 63, wantErr: ErrControlTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.n, tt.a, tt.m)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAssembleRejectsNonCoprimeBase(t *testing.T) {
	asm := NewAssembler(operator.StrategyAuto)
	_, err := asm.Assemble(15, 6, 8)
	assert.ErrorIs(t, err, operator.ErrNotCoprime)
}
