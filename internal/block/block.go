// Package block implements the fixed 8-byte wire record every peer mines
// and gossips, and the truncated id derived from it.
package block

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Size is the on-wire length of a block record in bytes.
const Size = 8

// GenesisID is the fixed id of the (unstored) genesis block.
const GenesisID uint16 = 0x9E1C

// ErrMalformedBlock is returned when a byte slice isn't exactly Size bytes.
var ErrMalformedBlock = errors.New("malformed block")

// Block is the three-field record every miner produces.
//
//	prev_id   : u16 - id this block was mined on top of
//	nonce     : u16 - uniformly random, stands in for a merkle root
//	timestamp : u32 - seconds since the epoch, wall clock at mine time
type Block struct {
	PrevID    uint16
	Nonce     uint16
	Timestamp uint32
}

// Encode serializes b to its 8-byte little-endian wire form.
func Encode(b Block) [Size]byte {
	var out [Size]byte
	binary.LittleEndian.PutUint16(out[0:2], b.PrevID)
	binary.LittleEndian.PutUint16(out[2:4], b.Nonce)
	binary.LittleEndian.PutUint32(out[4:8], b.Timestamp)
	return out
}

// Decode parses an 8-byte wire record. It fails with ErrMalformedBlock if
// msg is not exactly Size bytes long.
func Decode(msg []byte) (Block, error) {
	if len(msg) != Size {
		return Block{}, errors.Wrapf(ErrMalformedBlock, "got %d bytes, want %d", len(msg), Size)
	}
	return Block{
		PrevID:    binary.LittleEndian.Uint16(msg[0:2]),
		Nonce:     binary.LittleEndian.Uint16(msg[2:4]),
		Timestamp: binary.LittleEndian.Uint32(msg[4:8]),
	}, nil
}

// ID returns the low 16 bits of SHA-256 over the block's encoded bytes.
// Truncating a real digest to 16 bits is deliberate: the simulation
// studies propagation and selfish mining, not proof-of-work difficulty,
// and id collisions are expected and handled by the block tree.
func ID(b Block) uint16 {
	enc := Encode(b)
	return IDOf(enc[:])
}

// IDOf computes the truncated id directly from an encoded 8-byte message,
// avoiding a decode round-trip for callers that already hold the raw bytes.
func IDOf(msg []byte) uint16 {
	sum := sha256.Sum256(msg)
	return uint16(sum[len(sum)-2])<<8 | uint16(sum[len(sum)-1])
}
