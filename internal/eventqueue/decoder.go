// Package eventqueue decodes the raw bytes of a venue's on-chain event queue
// account into taker fills newer than an ingestion cursor.
//
// The account is a fixed header followed by a circular slot array. The header
// carries the venue's running sequence counter plus the ring layout (head
// index, live-slot count, slot size); each slot embeds its own sequence
// number, so a decode can resume precisely after the last ingested fill.
package eventqueue

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	headerSize  = 24
	minSlotSize = 40

	// BootstrapDepth bounds how many of the newest live slots are considered
	// on a first run (no cursor), so a fresh deployment does not replay the
	// venue's full retained history.
	BootstrapDepth = 25
)

// Slot flag bits.
const (
	flagFill  = 0x1
	flagOut   = 0x2
	flagBid   = 0x4
	flagMaker = 0x8
)

// ErrDecode reports malformed or truncated event queue bytes.
var ErrDecode = errors.New("malformed event queue")

// ErrSequenceDiscontinuity reports a venue sequence counter below the stored
// cursor. The caller must treat this as a venue state reset and restart from
// an undefined cursor.
var ErrSequenceDiscontinuity = errors.New("sequence discontinuity")

// Fill is a single taker-side execution decoded from the queue.
type Fill struct {
	Seq       uint64
	Price     float64
	Size      float64
	Side      string // "buy" or "sell"
	Taker     bool
	Timestamp int64 // unix seconds embedded by the venue; 0 for spot queues
}

type header struct {
	head     uint32
	count    uint32
	seqNum   uint64
	slotSize uint32
}

// Decoder converts native integer quantities into display prices and sizes
// using the market's decimal precision. One decoder per market.
type Decoder struct {
	priceDiv float64
	sizeDiv  float64
}

func NewDecoder(baseDecimals, quoteDecimals int) *Decoder {
	return &Decoder{
		priceDiv: math.Pow10(quoteDecimals),
		sizeDiv:  math.Pow10(baseDecimals),
	}
}

// Decode parses raw queue bytes and returns the header's running sequence
// counter plus taker fills with sequence numbers above since. A nil since
// means first run: only the newest BootstrapDepth live slots are considered.
// Returned fills are strictly increasing by sequence number.
func (d *Decoder) Decode(raw []byte, since *uint64) (uint64, []Fill, error) {
	h, capacity, err := parseHeader(raw)
	if err != nil {
		return 0, nil, err
	}

	if since != nil && h.seqNum < *since {
		return 0, nil, fmt.Errorf("%w: header seq %d below cursor %d",
			ErrSequenceDiscontinuity, h.seqNum, *since)
	}

	start := 0
	if since == nil && int(h.count) > BootstrapDepth {
		start = int(h.count) - BootstrapDepth
	}

	var fills []Fill
	var last uint64
	for i := start; i < int(h.count); i++ {
		idx := (int(h.head) + i) % capacity
		off := headerSize + idx*int(h.slotSize)
		slot := raw[off : off+int(h.slotSize)]

		flags := slot[0]
		if flags&flagFill == 0 || flags&flagMaker != 0 {
			continue
		}

		seq := binary.LittleEndian.Uint64(slot[8:16])
		if since != nil && seq <= *since {
			continue
		}
		if len(fills) > 0 && seq <= last {
			continue
		}

		side := "sell"
		if flags&flagBid != 0 {
			side = "buy"
		}

		fills = append(fills, Fill{
			Seq:       seq,
			Price:     float64(binary.LittleEndian.Uint64(slot[16:24])) / d.priceDiv,
			Size:      float64(binary.LittleEndian.Uint64(slot[24:32])) / d.sizeDiv,
			Side:      side,
			Taker:     true,
			Timestamp: int64(binary.LittleEndian.Uint64(slot[32:40])),
		})
		last = seq
	}

	return h.seqNum, fills, nil
}

func parseHeader(raw []byte) (header, int, error) {
	if len(raw) < headerSize {
		return header{}, 0, fmt.Errorf("%w: %d bytes, want at least %d header bytes",
			ErrDecode, len(raw), headerSize)
	}

	h := header{
		head:     binary.LittleEndian.Uint32(raw[0:4]),
		count:    binary.LittleEndian.Uint32(raw[4:8]),
		seqNum:   binary.LittleEndian.Uint64(raw[8:16]),
		slotSize: binary.LittleEndian.Uint32(raw[16:20]),
	}

	if h.slotSize < minSlotSize {
		return header{}, 0, fmt.Errorf("%w: slot size %d below minimum %d",
			ErrDecode, h.slotSize, minSlotSize)
	}

	capacity := (len(raw) - headerSize) / int(h.slotSize)
	if capacity == 0 {
		return header{}, 0, fmt.Errorf("%w: no room for slot array", ErrDecode)
	}
	if int(h.count) > capacity {
		return header{}, 0, fmt.Errorf("%w: count %d exceeds capacity %d",
			ErrDecode, h.count, capacity)
	}
	if int(h.head) >= capacity {
		return header{}, 0, fmt.Errorf("%w: head %d exceeds capacity %d",
			ErrDecode, h.head, capacity)
	}

	return h, capacity, nil
}
