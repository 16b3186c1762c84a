package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_IsValid(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected bool
	}{
		{PhaseMEN, true},
		{PhaseROP, true},
		{PhaseRAD, true},
		{PhaseREC, true},
		{PhaseREV, true},
		{Phase("XXX"), false},
		{Phase(""), false},
	}

	for _, tc := range tests {
		t.Run(string(tc.phase), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.phase.IsValid())
		})
	}
}

func TestPhase_Next(t *testing.T) {
	tests := []struct {
		phase    Phase
		next     Phase
		hasNext  bool
	}{
		{PhaseMEN, PhaseROP, true},
		{PhaseROP, PhaseRAD, true},
		{PhaseRAD, PhaseREC, true},
		{PhaseREC, PhaseREV, true},
		{PhaseREV, "", false},
	}

	for _, tc := range tests {
		t.Run(string(tc.phase), func(t *testing.T) {
			next, ok := tc.phase.Next()
			assert.Equal(t, tc.hasNext, ok)
			assert.Equal(t, tc.next, next)
		})
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	assert.True(t, PhaseREV.IsTerminal())
	assert.False(t, PhaseMEN.IsTerminal())
	assert.False(t, PhaseREC.IsTerminal())
}

func TestPhase_CanFollow(t *testing.T) {
	tests := []struct {
		name     string
		phase    Phase
		previous Phase
		expected bool
	}{
		{"same phase repeats", PhaseROP, PhaseROP, true},
		{"advance one step", PhaseROP, PhaseMEN, true},
		{"skip a step", PhaseRAD, PhaseMEN, false},
		{"backward", PhaseMEN, PhaseROP, false},
		{"after terminal", PhaseMEN, PhaseREV, false},
		{"terminal repeats", PhaseREV, PhaseREV, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.phase.CanFollow(tc.previous))
		})
	}
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("RAD")
	require.NoError(t, err)
	assert.Equal(t, PhaseRAD, p)

	_, err = ParsePhase("NOPE")
	assert.Error(t, err)
}

func TestValidatePhaseSequence(t *testing.T) {
	t.Run("first cycle must be MEN", func(t *testing.T) {
		assert.NoError(t, ValidatePhaseSequence(PhaseMEN, "", false))
		assert.Error(t, ValidatePhaseSequence(PhaseROP, "", false))
	})

	t.Run("advance or repeat", func(t *testing.T) {
		assert.NoError(t, ValidatePhaseSequence(PhaseROP, PhaseMEN, true))
		assert.NoError(t, ValidatePhaseSequence(PhaseMEN, PhaseMEN, true))
		assert.Error(t, ValidatePhaseSequence(PhaseREC, PhaseMEN, true))
		assert.Error(t, ValidatePhaseSequence(PhaseMEN, PhaseRAD, true))
	})
}
