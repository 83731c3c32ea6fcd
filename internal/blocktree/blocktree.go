// Package blocktree stores every block a peer has validated, layered by
// depth from genesis, and resolves the longest chain.
package blocktree

import (
	"time"

	"github.com/pkg/errors"

	"github.com/rkj2096/gossip-protocol/internal/block"
)

// MaxClockSkew bounds how far a block's timestamp may drift from "now"
// before it is rejected as stale.
const MaxClockSkew = 3600 * time.Second

// Sentinel error kinds, matching the §7 error taxonomy. Wrap these with
// errors.Wrap at the raise site and compare with errors.Is at the log
// site.
var (
	ErrStaleTimestamp = errors.New("stale timestamp")
	ErrUnknownParent  = errors.New("unknown parent")
)

// entry is a stored block plus the id it was filed under, so repeated
// hashing is avoided during the parent scan.
type entry struct {
	raw [block.Size]byte
	blk block.Block
	id  uint16
}

// Kind distinguishes why an insertion succeeded.
type Kind int

const (
	// Rejected means the message was not stored.
	Rejected Kind = iota
	// NewTip means the tree grew a new, deeper layer; the miner must
	// restart mining on top of it.
	NewTip
	// Extended means the block was filed into a layer that already
	// existed (a side block, or a sibling of the current tip at the
	// deepest layer), so the depth did not change; the miner continues.
	Extended
)

// InsertResult reports what TryInsert (or Insert) did with a message.
type InsertResult struct {
	Kind   Kind
	Layer  int   // layer the block was filed at, meaningful unless Rejected
	ErrKind error // non-nil only when Kind == Rejected
}

// Tree is an ordered sequence of layers; layer d holds every known block
// whose shortest path to genesis has d edges. It is not safe for
// concurrent use — callers serialize access through the message mutex
// (Node.Mu in internal/node).
type Tree struct {
	layers [][]entry
	now    func() time.Time
}

// New returns an empty tree. nowFn lets tests fix the wall clock; pass nil
// in production code to use time.Now.
func New(nowFn func() time.Time) *Tree {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Tree{now: nowFn}
}

// Depth returns the number of layers currently stored.
func (t *Tree) Depth() int {
	return len(t.layers)
}

// PrevIDToMineOn returns the id a miner should build its next block on,
// and the layer that block would occupy. On an empty tree this is the
// genesis id at layer 0.
func (t *Tree) PrevIDToMineOn() (id uint16, layer int) {
	if len(t.layers) == 0 {
		return block.GenesisID, 0
	}
	deepest := t.layers[len(t.layers)-1]
	return deepest[0].id, len(t.layers)
}

// TryInsert decodes and validates msg, then files it into the tree.
// msg must already have passed the dedup cache.
func (t *Tree) TryInsert(msg []byte) InsertResult {
	blk, err := block.Decode(msg)
	if err != nil {
		return InsertResult{Kind: Rejected, ErrKind: err}
	}
	if age := t.now().Sub(time.Unix(int64(blk.Timestamp), 0)); age > MaxClockSkew || age < -MaxClockSkew {
		return InsertResult{Kind: Rejected, ErrKind: errors.Wrapf(ErrStaleTimestamp, "timestamp %d, now %d", blk.Timestamp, t.now().Unix())}
	}

	var raw [block.Size]byte
	copy(raw[:], msg)
	id := block.IDOf(msg)
	e := entry{raw: raw, blk: blk, id: id}

	// Scan from the deepest layer back to layer 0. The deepest match wins
	// on an id collision across layers, matching the documented behavior
	// of the original design (a truncated 16-bit id can legitimately
	// collide; we do not attempt to disambiguate by full hash).
	for d := len(t.layers) - 1; d >= 0; d-- {
		for _, candidate := range t.layers[d] {
			if candidate.id == blk.PrevID {
				return t.file(e, d+1)
			}
		}
	}

	if blk.PrevID == block.GenesisID {
		return t.file(e, 0)
	}

	return InsertResult{Kind: Rejected, ErrKind: errors.Wrapf(ErrUnknownParent, "prev_id %#04x", blk.PrevID)}
}

// file appends e to layer d if it already exists (Extended), or creates
// layer d as a brand new deepest layer (NewTip).
func (t *Tree) file(e entry, d int) InsertResult {
	if d < len(t.layers) {
		t.layers[d] = append(t.layers[d], e)
		return InsertResult{Kind: Extended, Layer: d}
	}
	// d == len(t.layers); the caller never passes a d further out than
	// that, since a parent is only ever found at an existing layer.
	t.layers = append(t.layers, []entry{e})
	return InsertResult{Kind: NewTip, Layer: d}
}

// LongestChain returns a path from a tip at the deepest layer back to a
// layer-0 block, deepest block first. Ties at the deepest layer are
// broken by first arrival (the earliest-inserted block in that layer).
func (t *Tree) LongestChain() []block.Block {
	if len(t.layers) == 0 {
		return nil
	}
	chain := make([]block.Block, 0, len(t.layers))
	cur := t.layers[len(t.layers)-1][0]
	chain = append(chain, cur.blk)
	for d := len(t.layers) - 2; d >= 0; d-- {
		for _, candidate := range t.layers[d] {
			if candidate.id == cur.blk.PrevID {
				cur = candidate
				chain = append(chain, cur.blk)
				break
			}
		}
	}
	return chain
}

// TotalBlocks returns the count of every stored block across all layers.
func (t *Tree) TotalBlocks() int {
	n := 0
	for _, layer := range t.layers {
		n += len(layer)
	}
	return n
}

// LayerSize returns how many blocks are stored at layer d, or 0 if d is
// out of range.
func (t *Tree) LayerSize(d int) int {
	if d < 0 || d >= len(t.layers) {
		return 0
	}
	return len(t.layers[d])
}

// Insert force-files a raw message at an explicit layer without running
// timestamp/parent validation, used by the selfish strategy to migrate an
// already-validated private block into the public tree. The caller is
// responsible for ensuring d is either an existing layer or exactly the
// next one.
func (t *Tree) Insert(msg []byte, d int) InsertResult {
	blk, err := block.Decode(msg)
	if err != nil {
		return InsertResult{Kind: Rejected, ErrKind: err}
	}
	var raw [block.Size]byte
	copy(raw[:], msg)
	id := block.IDOf(msg)
	return t.file(entry{raw: raw, blk: blk, id: id}, d)
}
