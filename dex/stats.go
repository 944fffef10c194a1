package dex

// Stats mirrors the perf counters original_source logs periodically from
// komodo_DEXpurge (DEX_totaladd, DEX_duplicate, ...). The distilled spec
// treats these as internal; SPEC_FULL.md's RPC surface exposes them
// read-only as `/api/v1/dex/stats` diagnostics.
type Stats struct {
	TotalAdd    int64 // blobs newly admitted
	TotalRecv   int64 // Q frames received (admitted or not)
	TotalSent   int64 // frames sent out (push forwards + G responses)
	Duplicate   int64 // Q frames matching an already-stored short hash
	TotalLag    int64 // sum of (now - timestamp) across admitted Q frames
	PurgedLag   int64 // sum of (recv_time - timestamp) across purged blobs

	RejectedPoW      int64
	FutureDrops      int64
	MaxLagDrops      int64 // DEX_maxlag
	Collision32      int64 // DEX_collision32
	SybilDrops       int64
	IndexAxisFull    int64
	MalformedDrops   int64
	HashtableFull    int64
	DuplicateAtOrigin int64

	NumPending float64 // DEX_Numpending, decayed by 0.995 each purge tick
}

// Snapshot returns a copy safe to read without the engine's lock, taken
// by the caller while holding it.
func (s Stats) Snapshot() Stats { return s }
