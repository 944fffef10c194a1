package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeerSlotIdempotentWithinEpoch(t *testing.T) {
	m := &PeerSlotMap{}
	s1 := m.Slot(1000, 0xabc)
	s2 := m.Slot(1000, 0xabc)
	assert.Equal(t, s1, s2)
	assert.NotEqual(t, uint16(0), s1)
}

func TestPeerSlotDifferentPeersGetDifferentSlots(t *testing.T) {
	m := &PeerSlotMap{}
	a := m.Slot(1000, 1)
	b := m.Slot(1000, 2)
	assert.NotEqual(t, a, b)
}

func TestPeerSlotExhaustionReturnsNoSlot(t *testing.T) {
	m := &PeerSlotMap{}
	for i := uint64(1); i < MaxPeerID; i++ {
		got := m.Slot(0, i)
		if got == NoSlot {
			t.Fatalf("unexpected exhaustion at peer %d", i)
		}
	}
	assert.Equal(t, uint16(NoSlot), m.Slot(0, uint64(MaxPeerID)+1))
}

func TestPeerSlotResetAllClearsEpochs(t *testing.T) {
	m := &PeerSlotMap{}
	s1 := m.Slot(1000, 42)
	m.ResetAll()
	s2 := m.Slot(1000, 99)
	assert.Equal(t, s1, s2) // both land in the first empty slot after reset
}

func TestPeerPresenceMarkAndKnown(t *testing.T) {
	var p PeerPresence
	assert.False(t, p.Known(5))
	p.Mark(5)
	assert.True(t, p.Known(5))
	assert.False(t, p.Known(6))
}
