package dex

import (
	"encoding/binary"
	"fmt"
)

// EncodeRoutingHeader writes the 6-byte header shared by every frame:
// relay(1) + funcid(1) + timestamp(4, little-endian).
func EncodeRoutingHeader(relay uint8, funcid byte, timestamp uint32) []byte {
	buf := make([]byte, RouteSize)
	buf[0] = relay
	buf[1] = funcid
	binary.LittleEndian.PutUint32(buf[2:6], timestamp)
	return buf
}

// DecodeRoutingHeader parses the 6-byte header from the front of data.
func DecodeRoutingHeader(data []byte) (relay uint8, funcid byte, timestamp uint32, err error) {
	if len(data) < RouteSize {
		return 0, 0, 0, fmt.Errorf("dex: routing header: %w", ErrMalformedFrame)
	}
	relay = data[0]
	funcid = data[1]
	timestamp = binary.LittleEndian.Uint32(data[2:6])
	return relay, funcid, timestamp, nil
}

// EncodeQuoteHeader lays out the fixed-format fields that follow the
// routing header in a Q frame: amountA, amountB (big-endian, the one
// exception to the little-endian body rule), an optional 33-byte destpub,
// and up to two length-prefixed tags.
func EncodeQuoteHeader(amountA, amountB uint64, destpub, tagA, tagB []byte) ([]byte, error) {
	if len(destpub) != 0 && len(destpub) != 33 {
		return nil, fmt.Errorf("dex: encode quote header: %w", ErrInvalidDestPub)
	}
	if len(tagA) > TagSize || len(tagB) > TagSize {
		return nil, fmt.Errorf("dex: encode quote header: %w", ErrTagTooLong)
	}
	buf := make([]byte, 0, 16+1+len(destpub)+1+len(tagA)+1+len(tagB))
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amountA)
	buf = append(buf, amt[:]...)
	binary.BigEndian.PutUint64(amt[:], amountB)
	buf = append(buf, amt[:]...)
	buf = append(buf, byte(len(destpub)))
	buf = append(buf, destpub...)
	buf = append(buf, byte(len(tagA)))
	buf = append(buf, tagA...)
	buf = append(buf, byte(len(tagB)))
	buf = append(buf, tagB...)
	return buf, nil
}

// DecodeQuoteHeader parses the fields EncodeQuoteHeader writes. offset is
// the number of bytes consumed, so callers can locate the payload that
// follows. A tag length over TAG_SIZE (16) is rejected per the boundary
// case in the testable-properties list ("a tag of length 17 is rejected").
func DecodeQuoteHeader(data []byte) (amountA, amountB uint64, destpub, tagA, tagB []byte, offset int, err error) {
	if len(data) < 16+1+1+1 {
		return 0, 0, nil, nil, nil, 0, fmt.Errorf("dex: decode quote header: %w", ErrMalformedFrame)
	}
	pos := 0
	amountA = binary.BigEndian.Uint64(data[pos : pos+8])
	pos += 8
	amountB = binary.BigEndian.Uint64(data[pos : pos+8])
	pos += 8

	plen := int(data[pos])
	pos++
	if plen != 0 && plen != 33 {
		return 0, 0, nil, nil, nil, 0, fmt.Errorf("dex: decode quote header plen=%d: %w", plen, ErrMalformedFrame)
	}
	if len(data) < pos+plen+1 {
		return 0, 0, nil, nil, nil, 0, fmt.Errorf("dex: decode quote header: %w", ErrMalformedFrame)
	}
	if plen != 0 {
		destpub = append([]byte(nil), data[pos:pos+plen]...)
		pos += plen
	}

	lenA := int(data[pos])
	pos++
	if lenA > TagSize {
		return 0, 0, nil, nil, nil, 0, fmt.Errorf("dex: decode quote header lenA=%d: %w", lenA, ErrTagTooLong)
	}
	if len(data) < pos+lenA+1 {
		return 0, 0, nil, nil, nil, 0, fmt.Errorf("dex: decode quote header: %w", ErrMalformedFrame)
	}
	if lenA != 0 {
		tagA = append([]byte(nil), data[pos:pos+lenA]...)
		pos += lenA
	}

	lenB := int(data[pos])
	pos++
	if lenB > TagSize {
		return 0, 0, nil, nil, nil, 0, fmt.Errorf("dex: decode quote header lenB=%d: %w", lenB, ErrTagTooLong)
	}
	if len(data) < pos+lenB {
		return 0, 0, nil, nil, nil, 0, fmt.Errorf("dex: decode quote header: %w", ErrMalformedFrame)
	}
	if lenB != 0 {
		tagB = append([]byte(nil), data[pos:pos+lenB]...)
		pos += lenB
	}

	return amountA, amountB, destpub, tagA, tagB, pos, nil
}

// EncodeQuoteFrame assembles a full Q frame: routing header + quote header
// + payload + trailing 4-byte little-endian nonce. relay is the initial
// hop counter (RelayDepth for a freshly originated quote).
func EncodeQuoteFrame(relay uint8, timestamp uint32, amountA, amountB uint64, destpub, tagA, tagB, payload []byte, nonce uint32) ([]byte, error) {
	header, err := EncodeQuoteHeader(amountA, amountB, destpub, tagA, tagB)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, RouteSize+len(header)+len(payload)+4)
	frame = append(frame, EncodeRoutingHeader(relay, FuncQuote, timestamp)...)
	frame = append(frame, header...)
	frame = append(frame, payload...)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], nonce)
	frame = append(frame, n[:]...)
	return frame, nil
}

// SetNonce rewrites the trailing 4-byte nonce of a Q frame in place, used
// by the grinder to avoid reallocating the frame on every attempt.
func SetNonce(frame []byte, nonce uint32) {
	binary.LittleEndian.PutUint32(frame[len(frame)-4:], nonce)
}

// EncodePing builds a P frame advertising the given recent short hashes
// from bucket modval.
func EncodePing(timestamp uint32, modval uint32, hashes []uint32) []byte {
	buf := make([]byte, 0, RouteSize+2+4+4*len(hashes))
	buf = append(buf, EncodeRoutingHeader(0, FuncPing, timestamp)...)
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(hashes)))
	buf = append(buf, n[:]...)
	var m [4]byte
	binary.LittleEndian.PutUint32(m[:], modval)
	buf = append(buf, m[:]...)
	var h [4]byte
	for _, v := range hashes {
		binary.LittleEndian.PutUint32(h[:], v)
		buf = append(buf, h[:]...)
	}
	return buf
}

// DecodePing parses a P frame's body (everything after the routing header).
func DecodePing(body []byte) (n uint16, modval uint32, hashes []uint32, err error) {
	if len(body) < 6 {
		return 0, 0, nil, fmt.Errorf("dex: decode ping: %w", ErrMalformedFrame)
	}
	n = binary.LittleEndian.Uint16(body[0:2])
	modval = binary.LittleEndian.Uint32(body[2:6])
	need := 6 + 4*int(n)
	if len(body) < need {
		return 0, 0, nil, fmt.Errorf("dex: decode ping: %w", ErrMalformedFrame)
	}
	hashes = make([]uint32, n)
	pos := 6
	for i := range hashes {
		hashes[i] = binary.LittleEndian.Uint32(body[pos : pos+4])
		pos += 4
	}
	return n, modval, hashes, nil
}

// EncodeGet builds a G frame requesting (shorthash, modval).
func EncodeGet(timestamp uint32, shortHash uint32, modval uint32) []byte {
	buf := make([]byte, 0, RouteSize+8)
	buf = append(buf, EncodeRoutingHeader(0, FuncGet, timestamp)...)
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], shortHash)
	buf = append(buf, w[:]...)
	binary.LittleEndian.PutUint32(w[:], modval)
	buf = append(buf, w[:]...)
	return buf
}

// DecodeGet parses a G frame's body.
func DecodeGet(body []byte) (shortHash uint32, modval uint32, err error) {
	if len(body) < 8 {
		return 0, 0, fmt.Errorf("dex: decode get: %w", ErrMalformedFrame)
	}
	shortHash = binary.LittleEndian.Uint32(body[0:4])
	modval = binary.LittleEndian.Uint32(body[4:8])
	return shortHash, modval, nil
}
