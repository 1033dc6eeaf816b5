package session

import (
	"testing"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineTransitionTable(t *testing.T) {
	m := NewMachine()
	cases := []struct {
		from, to Phase
		allowed  bool
	}{
		{PhaseIdle, PhaseAwaitingAddress, true},
		{PhaseIdle, PhaseAwaitingPayment, false},
		{PhaseAwaitingAddress, PhaseAwaitingPayment, true},
		{PhaseAwaitingAddress, PhaseIdle, true},
		{PhaseAwaitingPayment, PhaseIdle, true},
		{PhaseAwaitingPayment, PhaseAwaitingAddress, false},
		{"", PhaseAwaitingAddress, true},
		{PhaseAwaitingPayment, PhaseAwaitingPayment, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, m.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionRejectsSkippingAddress(t *testing.T) {
	rec := &Record{Key: "7"}
	err := NewMachine().Transition(rec, PhaseAwaitingPayment)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, Phase(""), rec.Phase, "rejected transition must not mutate the record")

	require.NoError(t, NewMachine().Transition(rec, PhaseAwaitingAddress))
	assert.Equal(t, PhaseAwaitingAddress, rec.Phase)
}

func TestPhaseZeroValueIsIdle(t *testing.T) {
	var p Phase
	assert.Equal(t, PhaseIdle, p.Normalize())
	assert.Equal(t, "idle", p.String())
}
