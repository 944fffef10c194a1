package dex

// FindResult is the outcome of Store.Find: either an existing occupied
// slot, an open slot ready for insertion, or "full" if neither exists
// after a full probe of the bucket.
type FindResult struct {
	Slot       int
	Found      bool
	Full       bool
	Collisions int // occupied, non-matching slots probed past before Slot was reached
}

// Store is the time-bucketed short-hash table and blob ring (C1 + C2).
// Bucket count and per-bucket capacity are constructor parameters so
// tests can run against a small store; NewStore returns one sized to the
// production constants (PurgeSeconds buckets of HashCapacity slots each).
type Store struct {
	buckets  int
	capacity int

	hashSlots [][]uint32
	blobs     [][]*Blob
}

// NewStore returns a Store sized to the spec's production constants.
func NewStore() *Store {
	return NewStoreSized(PurgeSeconds, HashCapacity)
}

// NewStoreSized returns a Store with the given bucket count and
// per-bucket capacity, for tests that don't want to allocate the full
// production-sized ring.
func NewStoreSized(buckets, capacity int) *Store {
	s := &Store{
		buckets:   buckets,
		capacity:  capacity,
		hashSlots: make([][]uint32, buckets),
		blobs:     make([][]*Blob, buckets),
	}
	for i := range s.hashSlots {
		s.hashSlots[i] = make([]uint32, capacity)
		s.blobs[i] = make([]*Blob, capacity)
	}
	return s
}

// Buckets returns the number of time buckets (normally PurgeSeconds).
func (s *Store) Buckets() int { return s.buckets }

// Capacity returns the per-bucket slot count (normally HashCapacity).
func (s *Store) Capacity() int { return s.capacity }

// Bucket maps an epoch-seconds timestamp to its ring bucket.
func (s *Store) Bucket(timestamp uint32) int {
	return int(timestamp % uint32(s.buckets))
}

// Find probes bucket starting at h mod capacity, wrapping, stopping at
// the first empty cell (open slot) or an equal cell (found). Slot value 0
// is the empty sentinel; short hashes that happen to be 0 are not
// distinguishable from empty, an edge case the original shares.
func (s *Store) Find(bucket int, h uint32) FindResult {
	row := s.hashSlots[bucket]
	idx := int(h % uint32(s.capacity))
	collisions := 0
	for i := 0; i < s.capacity; i++ {
		v := row[idx]
		if v == 0 {
			return FindResult{Slot: idx, Collisions: collisions}
		}
		if v == h {
			return FindResult{Slot: idx, Found: true, Collisions: collisions}
		}
		collisions++
		idx++
		if idx >= s.capacity {
			idx = 0
		}
	}
	return FindResult{Slot: -1, Full: true, Collisions: collisions}
}

// Insert places blob into (bucket, slot). Fails with ErrOccupied if the
// slot is already taken, indicating a caller bug (a stale Find result).
func (s *Store) Insert(bucket, slot int, blob *Blob) error {
	if s.blobs[bucket][slot] != nil {
		return ErrOccupied
	}
	s.hashSlots[bucket][slot] = blob.ShortHash
	s.blobs[bucket][slot] = blob
	return nil
}

// Get returns a borrow of the blob at (bucket, slot), or nil if empty.
func (s *Store) Get(bucket, slot int) *Blob {
	return s.blobs[bucket][slot]
}

// Clear empties (bucket, slot), used only by purge.
func (s *Store) Clear(bucket, slot int) {
	s.hashSlots[bucket][slot] = 0
	s.blobs[bucket][slot] = nil
}

// Slots returns the full slot array of a bucket, for the purge scan and
// the push poll's per-bucket walk. Callers must not mutate the slice
// structure, only the blobs it references.
func (s *Store) Slots(bucket int) []*Blob {
	return s.blobs[bucket]
}
