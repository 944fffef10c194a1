package dex

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"strconv"
)

// blastPayload is the magic literal that switches Broadcast into load-test
// mode: fill the payload with random bytes and retry up to blastRetries
// times instead of treating a duplicate short hash as fatal.
const blastPayload = "ffff"

const blastRetries = 10

// blastPayloadSize is an arbitrary but realistic quote-sized payload used
// only in blast mode, where the caller has no real payload to send.
const blastPayloadSize = 256

// ParseVolume parses a decimal amount string into satoshi units (1e8 per
// unit), matching the CLI's volA/volB convention.
func ParseVolume(s string) (uint64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("dex: parse volume %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("dex: parse volume %q: negative", s)
	}
	return uint64(math.Round(f * 1e8)), nil
}

// Broadcast assembles and originates a new quote (§4.7 "Origination"): it
// grinds a nonce to satisfy PoW + priority, then runs the result through
// the same admission path as a received Q so the originator's own store
// and indices are populated. It returns the number of bytes sent, or 0 on
// an unresolved duplicate short hash.
func (e *Engine) Broadcast(now uint32, priority int, hexPayload, tagA, tagB, destpubHex, volA, volB string) (int, error) {
	if priority < 0 || priority > MaxPriority {
		priority = MaxPriority
	}
	if len(tagA) > TagSize || len(tagB) > TagSize {
		return 0, fmt.Errorf("dex: broadcast: %w", ErrTagTooLong)
	}

	amountA, err := ParseVolume(volA)
	if err != nil {
		return 0, err
	}
	amountB, err := ParseVolume(volB)
	if err != nil {
		return 0, err
	}

	var destpub []byte
	if destpubHex != "" {
		destpub, err = hex.DecodeString(destpubHex)
		if err != nil || len(destpub) != 33 {
			return 0, fmt.Errorf("dex: broadcast: %w", ErrInvalidDestPub)
		}
	}

	blast := hexPayload == blastPayload
	attempts := 1
	if blast {
		attempts = blastRetries
	}

	for i := 0; i < attempts; i++ {
		payload, err := resolvePayload(hexPayload, blast, e.rng)
		if err != nil {
			return 0, err
		}
		n, err := e.tryOriginate(now, priority, amountA, amountB, destpub, []byte(tagA), []byte(tagB), payload)
		if err == nil {
			return n, nil
		}
		if blast {
			continue
		}
		return 0, err
	}
	return 0, ErrDuplicateBroadcast
}

func resolvePayload(hexPayload string, blast bool, rng *rand.Rand) ([]byte, error) {
	if blast {
		buf := make([]byte, blastPayloadSize)
		rng.Read(buf) //nolint:errcheck // math/rand.Rand.Read never errors
		return buf, nil
	}
	payload, err := hex.DecodeString(hexPayload)
	if err != nil {
		return nil, fmt.Errorf("dex: broadcast: decode payload: %w", err)
	}
	return payload, nil
}

// tryOriginate grinds the frame without the mutex held, then reacquires it
// once to check for a duplicate short hash and install the blob — the
// discipline §5 requires of mint_quote.
func (e *Engine) tryOriginate(now uint32, priority int, amountA, amountB uint64, destpub, tagA, tagB, payload []byte) (int, error) {
	frame, err := EncodeQuoteFrame(RelayDepth, now, amountA, amountB, destpub, tagA, tagB, payload, 0)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	rng := e.rng
	e.mu.Unlock()

	hash, shortHash, err := MintQuote(frame, priority, rng)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bucket := e.store.Bucket(now)
	find := e.store.Find(bucket, shortHash)
	e.stats.Collision32 += int64(find.Collisions)
	if find.Found {
		return 0, ErrDuplicateBroadcast
	}
	if find.Full {
		return 0, ErrHashtableFull
	}

	blob := &Blob{
		Hash:           hash,
		ShortHash:      shortHash,
		Timestamp:      now,
		RecvTime:       now,
		RelayRemaining: RelayDepth - 1,
		Data:           frame,
	}
	frame[0] = blob.RelayRemaining

	if err := e.store.Insert(bucket, find.Slot, blob); err != nil {
		return 0, err
	}
	e.stats.TotalAdd++

	_, _, decDestpub, decTagA, decTagB, offset, err := DecodeQuoteHeader(frame[RouteSize:])
	if err == nil {
		blob.PayloadOffset = RouteSize + offset
		if errMask := e.index.UpdateTips(blob, decDestpub, decTagA, decTagB); errMask != 0 {
			e.stats.IndexAxisFull++
		}
	}

	e.gotRecentQuote = now
	return len(frame), nil
}
