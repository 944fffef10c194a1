package dex

// PeerSlotMap assigns each host-supplied numeric peer id a compact slot
// (1..MaxPeerID-1) within the current 5-minute epoch, per spec §3. Slot 0 is
// reserved; 0xFFFF signals the epoch's slots are exhausted.
type PeerSlotMap struct {
	epochs [EpochsPerDay][MaxPeerID]uint64
}

// NoSlot is returned when an epoch's row is full — the sybil defense in
// §4.3: the peer is dropped for the rest of that epoch.
const NoSlot = 0xFFFF

// Slot returns the peer's slot for the epoch containing timestamp,
// assigning one from the first empty row entry if the peer has none yet.
// It is idempotent within an epoch (testable property 5).
func (m *PeerSlotMap) Slot(timestamp uint32, peerID uint64) uint16 {
	epoch := (timestamp % SecondsPerDay) / PeerPeriod
	row := &m.epochs[epoch]
	for i := 1; i < MaxPeerID; i++ {
		if row[i] == peerID {
			return uint16(i)
		}
		if row[i] == 0 {
			row[i] = peerID
			return uint16(i)
		}
	}
	return NoSlot
}

// ResetAll clears every epoch row, invoked at the daily boundary
// (timestamp mod 86400 == 86399) per §3's lifecycle rule.
func (m *PeerSlotMap) ResetAll() {
	m.epochs = [EpochsPerDay][MaxPeerID]uint64{}
}
