// Package dex implements the decentralized order-gossip core: a
// time-bucketed quote store, its push/ping/get wire protocol, secondary
// indexing, peer-presence tracking, and the purge loop that bounds memory.
package dex

// Wire/protocol constants, resolved against original_source/komodo_DEX.h's
// KOMODO_DEX_* defines where the distilled spec left a bare name.
const (
	RouteSize = 6 // routing header: relay(1) + funcid(1) + timestamp(4)

	Heartbeat  = 1  // seconds between poll-hook invocations
	MaxHops    = 10
	RelayDepth = MaxHops
	MaxLag     = 60 + Heartbeat*MaxHops // 70s
	Fanout     = 3

	HashLog2     = 14
	HashCapacity = 1 << HashLog2 // 16384
	PurgeSeconds = 3600

	SecondsPerDay = 86400
	PeerPeriod    = 300
	EpochsPerDay  = SecondsPerDay / PeerPeriod // 288
	MaxPeerID     = 1024                       // 128-byte bitmap, 1024 bits
	PeerMaskBytes = MaxPeerID / 8

	TagSize     = 16
	MaxKeySize  = 34
	MaxIndex    = 64
	MaxIndices  = 3 // axes: destpub, tagA, tagA+tagB
	MaxPriority = 20

	TxPowBits  = 12
	TxPowMask  = (1 << TxPowBits) - 1
	TxPowMagic = 0x777

	PendingCapacity = MaxLag*HashCapacity - 1
)

// Axis identifiers for the three secondary-index arrays.
const (
	AxisDestPub = iota
	AxisTagA
	AxisTagAB
)

// Wire function ids, the second byte of every routing header.
const (
	FuncQuote byte = 'Q'
	FuncPing  byte = 'P'
	FuncGet   byte = 'G'
)

// RelaySentinel marks a blob whose relay_remaining is never decremented.
const RelaySentinel = 0xFF

// ProtocolTag is the transport-level tag the host dispatches DEX frames on.
const ProtocolTag = "DEX"
