package dex

import "encoding/hex"

// Match is one entry returned by List, shaped after komodo_DEXlist's
// output object (spec §6's CLI/RPC surface).
type Match struct {
	Timestamp uint32
	ID        uint32 // short_hash
	Payload   []byte
	Hex       string
	AmountA   uint64
	AmountB   uint64
	Priority  int
	TagA      string
	TagB      string
	DestPub   string
}

// ListQuery holds the filter parameters of the List query surface
// (§4.9), mirroring DEX_list's argument list.
type ListQuery struct {
	StopAtID    uint32
	MinPriority int
	TagA        []byte
	TagB        []byte
	DestPub     []byte
	MinA, MaxA  uint64
	MinB, MaxB  uint64
}

// List walks the secondary indices matching the query's non-empty key(s),
// most-recent-first, filtering by priority and amount ranges, and stops
// once an entry's short hash equals StopAtID.
func (e *Engine) List(q ListQuery) []Match {
	e.mu.Lock()
	defer e.mu.Unlock()

	var entries []*IndexEntry
	if len(q.DestPub) == 33 {
		if e := e.index.Lookup(AxisDestPub, destPubKey(q.DestPub)); e != nil {
			entries = append(entries, e)
		}
	}
	// A query naming both tags asks for the pair specifically and
	// resolves against the tagAB axis alone; naming tagA alone resolves
	// against the single-tag axis. The two axes are never combined in one
	// query — §9's "intentional redundancy" note is about the same blob
	// being reachable through either query shape, not about summing them.
	switch {
	case len(q.TagA) > 0 && len(q.TagB) > 0:
		if e := e.index.Lookup(AxisTagAB, tagABKey(q.TagA, q.TagB)); e != nil {
			entries = append(entries, e)
		}
	case len(q.TagA) > 0:
		if e := e.index.Lookup(AxisTagA, tagAKey(q.TagA)); e != nil {
			entries = append(entries, e)
		}
	}

	var matches []Match
	for _, entry := range entries {
		for b := entry.Tip; b != nil; {
			next := b.Prev[entry.Axis]
			if b.ShortHash == q.StopAtID {
				break
			}
			m, ok := e.toMatch(b, q)
			if ok {
				matches = append(matches, m)
			}
			b = next
		}
	}
	return matches
}

func (e *Engine) toMatch(b *Blob, q ListQuery) (Match, bool) {
	amountA, amountB, destpub, tagA, tagB, offset, err := DecodeQuoteHeader(b.Data[RouteSize:])
	if err != nil {
		return Match{}, false
	}
	priority := Priority(b.Hash)
	if priority < q.MinPriority {
		return Match{}, false
	}
	if q.MaxA > 0 && (amountA < q.MinA || amountA > q.MaxA) {
		return Match{}, false
	}
	if q.MaxB > 0 && (amountB < q.MinB || amountB > q.MaxB) {
		return Match{}, false
	}
	payloadEnd := len(b.Data) - 4
	payloadStart := RouteSize + offset
	var payload []byte
	if payloadStart < payloadEnd {
		payload = append([]byte(nil), b.Data[payloadStart:payloadEnd]...)
	}
	return Match{
		Timestamp: b.Timestamp,
		ID:        b.ShortHash,
		Payload:   payload,
		Hex:       hex.EncodeToString(payload),
		AmountA:   amountA,
		AmountB:   amountB,
		Priority:  priority,
		TagA:      string(tagA),
		TagB:      string(tagB),
		DestPub:   hex.EncodeToString(destpub),
	}, true
}
