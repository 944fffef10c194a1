package dex

// PeerPresence is the fixed-size bitmap (§3, 1024 bits) recording which
// peer slots are known to hold a given blob.
type PeerPresence [PeerMaskBytes]byte

// Mark sets the bit for slot. Slots outside the mask (0, 0xFFFF) are
// no-ops rather than panics, since callers already filter those.
func (p *PeerPresence) Mark(slot uint16) {
	if slot == 0 || int(slot) >= MaxPeerID {
		return
	}
	p[slot>>3] |= 1 << (slot & 7)
}

// Known reports whether slot's bit is set.
func (p *PeerPresence) Known(slot uint16) bool {
	if slot == 0 || int(slot) >= MaxPeerID {
		return false
	}
	return p[slot>>3]&(1<<(slot&7)) != 0
}

// Blob is a single gossiped quote (spec §3, entity B). data owns the whole
// wire frame — routing header, quote header, payload, and trailing nonce —
// exactly as the original's ptr->data[] does; payload_offset marks where
// the opaque payload begins within it.
type Blob struct {
	Hash           [32]byte
	ShortHash      uint32
	Timestamp      uint32
	RecvTime       uint32
	RelayRemaining uint8
	NumSent        uint8
	Presence       PeerPresence
	PayloadOffset  int
	Data           []byte

	Prev [MaxIndices]*Blob
	Next [MaxIndices]*Blob

	// indexRef records which IndexEntry currently owns this blob on each
	// axis, so Unlink can retarget that entry's tip and decrement its
	// count in O(1) without scanning the axis array. It has no wire
	// representation; the original scans the axis array by tip==ptr
	// instead.
	indexRef [MaxIndices]*IndexEntry
}

// Payload returns the opaque application bytes carried after the quote
// header, i.e. everything before the trailing 4-byte nonce.
func (b *Blob) Payload() []byte {
	if b.PayloadOffset >= len(b.Data)-4 {
		return nil
	}
	return b.Data[b.PayloadOffset : len(b.Data)-4]
}

// IndexEntry is one secondary index (spec §3, entity I): a key, its tip,
// and a live count. Axis records which of the three prev/next slots on a
// member blob belongs to this entry's list.
type IndexEntry struct {
	Key   []byte
	Tip   *Blob
	Count int32
	Axis  int
}
