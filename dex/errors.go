package dex

import "errors"

// Local, non-propagating error kinds (spec §7). None of these ever travel
// back to the sending peer; they only drive local counters and logging.
var (
	ErrMalformedFrame     = errors.New("dex: malformed frame")
	ErrPeerSlotExhausted  = errors.New("dex: peer slot exhausted for epoch")
	ErrInvalidPoW         = errors.New("dex: invalid proof of work")
	ErrFutureFrame        = errors.New("dex: timestamp is in the future")
	ErrStaleFrame         = errors.New("dex: lag exceeds MAX_LAG")
	ErrOccupied           = errors.New("dex: store slot already occupied")
	ErrOutOfMemory        = errors.New("dex: allocation failed")
	ErrHashtableFull      = errors.New("dex: hashtable full for bucket")
	ErrDuplicateBroadcast = errors.New("dex: duplicate short hash at origination")
	ErrTagTooLong         = errors.New("dex: tag exceeds TAG_SIZE")
	ErrInvalidDestPub     = errors.New("dex: destpub must be 33 bytes")
)
