package dex

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSeedRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func mintTestFrame(t *testing.T, ts uint32, priority int, tagA, tagB, destpub, payload []byte, amountA, amountB uint64) []byte {
	t.Helper()
	frame, err := EncodeQuoteFrame(RelayDepth, ts, amountA, amountB, destpub, tagA, tagB, payload, 0)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	_, _, err = MintQuote(frame, priority, rng)
	require.NoError(t, err)
	return frame
}

func TestValidPoWAndPriority(t *testing.T) {
	frame := mintTestFrame(t, 1000, 0, []byte("btc"), []byte("usd"), nil, []byte("payload"), 1, 2)
	hash, _ := FrameHash(frame)
	assert.True(t, ValidPoW(hash))
	assert.GreaterOrEqual(t, Priority(hash), 0)
}

func TestMintQuoteSatisfiesTargetPriority(t *testing.T) {
	const target = 4
	frame := mintTestFrame(t, 1000, target, nil, nil, nil, nil, 0, 0)
	hash, _ := FrameHash(frame)
	require.True(t, ValidPoW(hash))
	require.GreaterOrEqual(t, Priority(hash), target)
}

func TestValidPoWRejectsArbitraryHash(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	assert.False(t, ValidPoW(hash))
}

func TestPrioritySaturatesAtSixtyFour(t *testing.T) {
	var hash [32]byte // all-zero word1 -> infinite trailing zeros, saturates
	assert.Equal(t, 64, Priority(hash))
}
