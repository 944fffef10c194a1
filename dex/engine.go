package dex

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// Peer is the neighbor handle the host's peer manager supplies (spec §6,
// "Host ↔ core"). The engine never holds onto a Peer across a call; it
// only uses it to send a reply or a forward during the current dispatch.
type Peer interface {
	ID() uint64
	Send(frame []byte) error
}

// Engine is the gossip engine (C7): the receive-dispatch state machine,
// push fanout, and pull exchange, plus the store/index/presence state it
// owns. All mutation is serialized under one coarse mutex (§5) — there is
// no finer-grained locking, by design.
type Engine struct {
	mu sync.Mutex

	store    *Store
	index    *Indices
	peerSlots *PeerSlotMap
	pending  *PendingSet
	stats    Stats

	lastPing        map[uint64]uint32
	gotRecentQuote  uint32
	purgeTime       int64
	purgeStarted    bool

	rng *rand.Rand
}

// NewEngine builds an engine sized to the production constants.
func NewEngine() *Engine {
	return &Engine{
		store:     NewStore(),
		index:     &Indices{},
		peerSlots: &PeerSlotMap{},
		pending:   NewPendingSet(),
		lastPing:  make(map[uint64]uint32),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewEngineSized builds an engine with a smaller store, for tests.
func NewEngineSized(buckets, capacity int) *Engine {
	e := NewEngine()
	e.store = NewStoreSized(buckets, capacity)
	return e
}

// Stats returns a snapshot of the engine's perf counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.Snapshot()
}

// OnMessage is the receive-dispatch entry point (§4.7). peer is the
// neighbor the frame arrived from.
func (e *Engine) OnMessage(now uint32, peer Peer, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.peerSlots.Slot(now, peer.ID())
	if slot == NoSlot {
		e.stats.SybilDrops++
		return ErrPeerSlotExhausted
	}
	if len(data) < RouteSize {
		e.stats.MalformedDrops++
		return ErrMalformedFrame
	}
	relay, funcid, ts, err := DecodeRoutingHeader(data)
	if err != nil {
		e.stats.MalformedDrops++
		return err
	}
	if ts > now+Heartbeat {
		e.stats.FutureDrops++
		return ErrFutureFrame
	}
	lag := int64(0)
	if int64(now) > int64(ts) {
		lag = int64(now) - int64(ts)
	}
	if lag > MaxLag {
		e.stats.MaxLagDrops++
		return ErrStaleFrame
	}

	switch funcid {
	case FuncQuote:
		return e.handleQuote(now, peer, slot, data, relay, ts, lag)
	case FuncPing:
		return e.handlePing(now, peer, slot, data)
	case FuncGet:
		return e.handleGet(peer, slot, data)
	default:
		e.stats.MalformedDrops++
		return fmt.Errorf("dex: funcid %q: %w", funcid, ErrMalformedFrame)
	}
}

// handleQuote implements the Q path of §4.7. Caller holds e.mu.
func (e *Engine) handleQuote(now uint32, peer Peer, slot uint16, data []byte, relay uint8, ts uint32, lag int64) error {
	if relay > RelayDepth && relay != RelaySentinel {
		e.stats.MalformedDrops++
		return fmt.Errorf("dex: relay %d exceeds RELAY_DEPTH: %w", relay, ErrMalformedFrame)
	}
	e.stats.TotalRecv++

	hash, shortHash := FrameHash(data)
	if !ValidPoW(hash) {
		e.stats.RejectedPoW++
		return ErrInvalidPoW
	}

	bucket := e.store.Bucket(ts)
	find := e.store.Find(bucket, shortHash)
	e.stats.Collision32 += int64(find.Collisions)
	if find.Full {
		e.stats.HashtableFull++
		log.Printf("dex: hashtable full for bucket %d", bucket)
		return ErrHashtableFull
	}
	if find.Found {
		e.stats.Duplicate++
		if b := e.store.Get(bucket, find.Slot); b != nil {
			b.Presence.Mark(slot)
		}
		return nil
	}

	blob := &Blob{
		Hash:           hash,
		ShortHash:      shortHash,
		Timestamp:      ts,
		RecvTime:       now,
		RelayRemaining: relay,
		Data:           append([]byte(nil), data...),
	}
	if relay != RelaySentinel {
		blob.RelayRemaining = relay - 1
	}
	blob.Data[0] = blob.RelayRemaining

	if err := e.store.Insert(bucket, find.Slot, blob); err != nil {
		e.stats.MalformedDrops++
		return err
	}
	e.stats.TotalAdd++

	_, _, destpub, tagA, tagB, offset, err := DecodeQuoteHeader(data[RouteSize:])
	if err != nil {
		e.stats.MalformedDrops++
		return nil // blob is already admitted into C1/C2; indexing just can't proceed
	}
	blob.PayloadOffset = RouteSize + offset

	if errMask := e.index.UpdateTips(blob, destpub, tagA, tagB); errMask != 0 {
		e.stats.IndexAxisFull++
		log.Printf("dex: index axis full, mask=%#x for short_hash=%#x", errMask, shortHash)
	}

	blob.Presence.Mark(slot)

	if e.pending.ClearIfMatch(shortHash) {
		if e.stats.NumPending > 0 {
			e.stats.NumPending--
		}
	}

	e.gotRecentQuote = now
	e.stats.TotalLag += lag

	_ = peer // the originating peer needs no further action on this path
	return nil
}

// handlePing implements the P path of §4.7. Caller holds e.mu.
func (e *Engine) handlePing(now uint32, peer Peer, slot uint16, data []byte) error {
	_, modval, hashes, err := DecodePing(data[RouteSize:])
	if err != nil {
		e.stats.MalformedDrops++
		return err
	}
	bucket := int(modval) % e.store.Buckets()
	for _, h := range hashes {
		if e.stats.NumPending > HashCapacity {
			break
		}
		find := e.store.Find(bucket, h)
		e.stats.Collision32 += int64(find.Collisions)
		if find.Found {
			continue
		}
		if e.pending.Contains(h) {
			continue
		}
		e.pending.Add(h)
		e.stats.NumPending++
		get := EncodeGet(now, h, modval)
		if err := peer.Send(get); err != nil {
			log.Printf("dex: send get to peer %d: %v", peer.ID(), err)
		}
	}
	return nil
}

// handleGet implements the G path of §4.7. Caller holds e.mu.
func (e *Engine) handleGet(peer Peer, slot uint16, data []byte) error {
	shortHash, modval, err := DecodeGet(data[RouteSize:])
	if err != nil {
		e.stats.MalformedDrops++
		return err
	}
	bucket := int(modval) % e.store.Buckets()
	find := e.store.Find(bucket, shortHash)
	e.stats.Collision32 += int64(find.Collisions)
	if !find.Found {
		return nil
	}
	blob := e.store.Get(bucket, find.Slot)
	if blob == nil || blob.Presence.Known(slot) {
		return nil
	}
	return e.sendBlob(peer, blob, slot, 0)
}

// sendBlob marks slot present on blob and sends it to peer with the given
// relay byte. G-responses use relay=0 (leaves, never re-broadcast); push
// forwards use blob.RelayRemaining.
func (e *Engine) sendBlob(peer Peer, blob *Blob, slot uint16, relayByte uint8) error {
	blob.Presence.Mark(slot)
	frame := append([]byte(nil), blob.Data...)
	frame[0] = relayByte
	if err := peer.Send(frame); err != nil {
		return fmt.Errorf("dex: send blob to peer %d: %w", peer.ID(), err)
	}
	e.stats.TotalSent++
	return nil
}

// OnPoll is the poll hook, invoked per neighbor at heartbeat cadence
// (§4.7 "Push (poll hook...)"). It runs the purge catch-up loop, then —
// if due — scans recent buckets for blobs peer hasn't seen, forwarding
// eligible ones and batching the rest into a single ping.
func (e *Engine) OnPoll(now uint32, peer Peer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.catchUpPurge(now)

	id := peer.ID()
	burst := now == e.gotRecentQuote
	due := now >= e.lastPing[id]+Heartbeat
	if !burst && !due {
		return nil
	}

	slot := e.peerSlots.Slot(now, id)
	if slot == NoSlot {
		return ErrPeerSlotExhausted
	}

	var recent []uint32
	for i := 0; i < MaxLag/3; i++ {
		modval := ((int64(now) + 1 - int64(i)) % PurgeSeconds)
		if modval < 0 {
			modval += PurgeSeconds
		}
		bucket := int(modval) % e.store.Buckets()
		for _, blob := range e.store.Slots(bucket) {
			if blob == nil {
				continue
			}
			if now >= blob.Timestamp+MaxLag {
				continue
			}
			if blob.Presence.Known(slot) {
				continue
			}
			recent = append(recent, blob.ShortHash)
			if blob.NumSent < Fanout &&
				e.stats.NumPending < HashCapacity/8 &&
				blob.RelayRemaining >= 1 && blob.RelayRemaining <= RelayDepth &&
				now < blob.Timestamp+Heartbeat {
				if err := e.sendBlob(peer, blob, slot, blob.RelayRemaining); err == nil {
					blob.NumSent++
				}
			}
		}
	}

	if len(recent) > 0 {
		ping := EncodePing(now, uint32(e.store.Bucket(now)), recent)
		if err := peer.Send(ping); err != nil {
			log.Printf("dex: send ping to peer %d: %v", id, err)
		}
	}
	e.lastPing[id] = now
	return nil
}
