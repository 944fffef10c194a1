package dex

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// MaxGrindAttempts bounds mint_quote's nonce search. At targetPriority=20
// the expected attempt count is 4096*2^20, far beyond any attempt budget a
// node would spend on one quote; callers requesting that much priority are
// expected to use it rarely (it's a deliberate cost knob, spec §4.5).
const MaxGrindAttempts = 200_000_000

// FrameHash hashes a frame the way komodo_DEXquotehash does: SHA-256 over
// everything after the relay byte (frame[0]), never the relay byte itself,
// since relay is decremented hop to hop and must not perturb the hash two
// nodes derive for the same quote.
func FrameHash(frame []byte) (hash [32]byte, shortHash uint32) {
	hash = sha256.Sum256(frame[1:])
	shortHash = binary.LittleEndian.Uint32(hash[0:4])
	return hash, shortHash
}

// hashWord1 is hash.u64[1] from the spec: the second 8-byte little-endian
// word of the 256-bit digest, the word the PoW admission rule and the
// priority extraction both read.
func hashWord1(hash [32]byte) uint64 {
	return binary.LittleEndian.Uint64(hash[8:16])
}

// ValidPoW is the admission gate: hash.u64[1] & TXPOW_MASK == 0x777 & TXPOW_MASK.
func ValidPoW(hash [32]byte) bool {
	return hashWord1(hash)&TxPowMask == TxPowMagic&TxPowMask
}

// Priority is the count of LSB-first zero bits of hash.u64[1] >> TXPOW_BITS,
// saturating at 64.
func Priority(hash [32]byte) int {
	h := hashWord1(hash) >> TxPowBits
	for i := 0; i < 64; i++ {
		if h&1 != 0 {
			return i
		}
		h >>= 1
	}
	return 64
}

// MintQuote grinds frame's trailing 4-byte nonce until the frame's hash
// passes PoW admission and has priority >= targetPriority, per §4.5. It
// must be called without the engine's mutex held (§5): grinding is
// CPU-bound and releasing the lock lets other frames process concurrently
// while one peer mints a quote.
func MintQuote(frame []byte, targetPriority int, rng *rand.Rand) (hash [32]byte, shortHash uint32, err error) {
	nonce := rng.Uint32()
	for attempt := 0; attempt < MaxGrindAttempts; attempt++ {
		SetNonce(frame, nonce)
		hash, shortHash = FrameHash(frame)
		if ValidPoW(hash) && Priority(hash) >= targetPriority {
			return hash, shortHash, nil
		}
		nonce++
	}
	return hash, shortHash, fmt.Errorf("dex: mint quote: exhausted %d attempts at priority %d", MaxGrindAttempts, targetPriority)
}
