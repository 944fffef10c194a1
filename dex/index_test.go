package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOrCreateAppendsAtTip(t *testing.T) {
	idx := &Indices{}
	b1 := &Blob{ShortHash: 1, RecvTime: 1}
	b2 := &Blob{ShortHash: 2, RecvTime: 2}
	key := tagAKey([]byte("btc"))

	e1, full := idx.SearchOrCreate(AxisTagA, key, b1)
	require.False(t, full)
	assert.Equal(t, int32(1), e1.Count)
	assert.Same(t, b1, e1.Tip)

	e2, full := idx.SearchOrCreate(AxisTagA, key, b2)
	require.False(t, full)
	assert.Same(t, e1, e2)
	assert.Equal(t, int32(2), e2.Count)
	assert.Same(t, b2, e2.Tip)
	assert.Same(t, b1, b2.Prev[AxisTagA])
	assert.Same(t, b2, b1.Next[AxisTagA])
}

// walkList follows prev[axis] from tip, returning recv_time in visit order.
func walkList(entry *IndexEntry) []uint32 {
	var out []uint32
	for b := entry.Tip; b != nil; b = b.Prev[entry.Axis] {
		out = append(out, b.RecvTime)
	}
	return out
}

func TestIndexListDescendingAndCountMatches(t *testing.T) {
	idx := &Indices{}
	key := tagAKey([]byte("btc"))
	var entry *IndexEntry
	for i := uint32(1); i <= 5; i++ {
		b := &Blob{ShortHash: i, RecvTime: i}
		e, full := idx.SearchOrCreate(AxisTagA, key, b)
		require.False(t, full)
		entry = e
	}
	order := walkList(entry)
	require.Len(t, order, 5)
	for i := 0; i < len(order)-1; i++ {
		assert.Greater(t, order[i], order[i+1])
	}
	assert.EqualValues(t, len(order), entry.Count)
}

func TestUnlinkSplicesAndDecrementsCount(t *testing.T) {
	idx := &Indices{}
	key := tagAKey([]byte("btc"))
	blobs := make([]*Blob, 3)
	var entry *IndexEntry
	for i := range blobs {
		blobs[i] = &Blob{ShortHash: uint32(i + 1), RecvTime: uint32(i + 1)}
		e, _ := idx.SearchOrCreate(AxisTagA, key, blobs[i])
		entry = e
	}
	// Unlink the middle blob.
	idx.Unlink(blobs[1])
	assert.EqualValues(t, 2, entry.Count)
	order := walkList(entry)
	assert.Equal(t, []uint32{3, 1}, order)

	// Unlinking the tip retargets it to the former tip's predecessor.
	idx.Unlink(blobs[2])
	assert.EqualValues(t, 1, entry.Count)
	assert.Same(t, blobs[0], entry.Tip)
}

func TestIndexAxisFullReturnsError(t *testing.T) {
	idx := &Indices{}
	for i := 0; i < MaxIndex; i++ {
		key := tagAKey([]byte{byte(i)})
		_, full := idx.SearchOrCreate(AxisTagA, key, &Blob{ShortHash: uint32(i + 1)})
		require.False(t, full)
	}
	_, full := idx.SearchOrCreate(AxisTagA, tagAKey([]byte("overflow")), &Blob{ShortHash: 999})
	assert.True(t, full)
}

// TestTagAxisIsolation is scenario S6: 100 blobs tagged (X,Y) and 100
// tagged (X,Z) put the tagA-only index "X" at count 200 while the two
// tagAB indices sit at 100 each; purging all "X/Y" blobs leaves "X" at
// 100 and "X/Z" untouched.
func TestTagAxisIsolation(t *testing.T) {
	idx := &Indices{}
	x, y, z := []byte("X"), []byte("Y"), []byte("Z")

	var xyBlobs []*Blob
	for i := 0; i < 100; i++ {
		b := &Blob{ShortHash: uint32(i + 1), RecvTime: uint32(i + 1)}
		errMask := idx.UpdateTips(b, nil, x, y)
		require.Zero(t, errMask)
		xyBlobs = append(xyBlobs, b)
	}
	for i := 0; i < 100; i++ {
		b := &Blob{ShortHash: uint32(1000 + i), RecvTime: uint32(1000 + i)}
		errMask := idx.UpdateTips(b, nil, x, z)
		require.Zero(t, errMask)
	}

	tagAEntry := idx.Lookup(AxisTagA, tagAKey(x))
	require.NotNil(t, tagAEntry)
	assert.EqualValues(t, 200, tagAEntry.Count)

	xyEntry := idx.Lookup(AxisTagAB, tagABKey(x, y))
	xzEntry := idx.Lookup(AxisTagAB, tagABKey(x, z))
	require.NotNil(t, xyEntry)
	require.NotNil(t, xzEntry)
	assert.EqualValues(t, 100, xyEntry.Count)
	assert.EqualValues(t, 100, xzEntry.Count)

	for _, b := range xyBlobs {
		idx.Unlink(b)
	}
	assert.EqualValues(t, 100, tagAEntry.Count)
	assert.EqualValues(t, 0, xyEntry.Count)
	assert.EqualValues(t, 100, xzEntry.Count)
}
