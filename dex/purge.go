package dex

import "log"

// Purge advances the time wheel by exactly one second, freeing every blob
// whose bucket is `cutoff` (§4.7 C8). It is invoked once per advanced
// second by the poll hook's catch-up loop, never directly by transport
// code.
func (e *Engine) Purge(cutoff uint32) int {
	if cutoff%SecondsPerDay == SecondsPerDay-1 {
		e.peerSlots.ResetAll()
	}

	bucket := e.store.Bucket(cutoff)
	slots := e.store.Slots(bucket)
	freed := 0
	for slot, blob := range slots {
		if blob == nil {
			continue
		}
		if blob.Timestamp != cutoff {
			log.Printf("dex: purge bucket %d slot %d timestamp %d != cutoff %d", bucket, slot, blob.Timestamp, cutoff)
		}
		// Read recv_time/timestamp before clearing the slot — the source's
		// free-then-read ordering in this branch is a likely bug (§9);
		// read-before-clear is the assumed-correct fix.
		e.stats.PurgedLag += int64(blob.RecvTime) - int64(blob.Timestamp)
		e.index.Unlink(blob)
		e.store.Clear(bucket, slot)
		freed++
	}

	e.stats.NumPending *= 0.995
	return freed
}

// catchUpPurge runs Purge for every second between the engine's last
// purge point and now-(PURGE_SECONDS-MAX_LAG), per the poll hook's
// catch-up rule — this keeps the purge cursor trailing the write edge by
// nearly a full ring so blobs live close to their full PURGE_SECONDS
// lifetime instead of being reaped MAX_LAG seconds after insertion. On
// the very first call it synchronizes purgeTime to that point without
// running any purges, so a freshly constructed engine handed a realistic
// unix timestamp doesn't try to walk the ring from zero.
func (e *Engine) catchUpPurge(now uint32) {
	target := int64(now) - (PurgeSeconds - MaxLag)
	if !e.purgeStarted {
		e.purgeTime = target
		e.purgeStarted = true
		return
	}
	for e.purgeTime < target {
		e.Purge(uint32(e.purgeTime))
		e.purgeTime++
	}
}
