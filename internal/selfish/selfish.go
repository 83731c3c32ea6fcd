// Package selfish implements the selfish-mining state machine: a private
// branch that withholds newly mined blocks from the rest of the network
// and decides, on every honest arrival, whether to keep the secret, tie,
// or fully publish.
//
// An honest peer needs none of this — it restarts mining on every NewTip
// insertion and otherwise only forwards what it receives, which is
// handled directly in internal/node. Strategy exists only for peers
// configured to run the selfish variant.
package selfish

import (
	"github.com/rkj2096/gossip-protocol/internal/block"
	"github.com/rkj2096/gossip-protocol/internal/blocktree"
)

// entry is one private block paired with the layer it would occupy once
// published.
type entry struct {
	msg   [block.Size]byte
	layer int
}

// Strategy tracks a peer's private chain against a shared block tree. It
// is not safe for concurrent use; callers serialize access through the
// same message mutex that guards the tree (Node.Mu in internal/node).
type Strategy struct {
	tree         *blocktree.Tree
	private      []entry
	privatePoint int
}

// New returns a selfish strategy bound to tree, the same tree the peer's
// receive path inserts honest blocks into.
func New(tree *blocktree.Tree) *Strategy {
	return &Strategy{tree: tree}
}

// ParentForMining decides what the next private (or public) block should
// build on:
//   - an empty private chain mines on the public tip;
//   - once the public tip's layer has overtaken the private chain's
//     latest layer, the private chain is abandoned and mining resumes on
//     the public tip;
//   - otherwise mining extends the private chain one layer further.
func (s *Strategy) ParentForMining() (prevID uint16, layer int) {
	if len(s.private) == 0 {
		return s.tree.PrevIDToMineOn()
	}
	last := s.private[len(s.private)-1]
	publicTipLayer := s.tree.Depth() - 1
	if last.layer < publicTipLayer {
		return s.tree.PrevIDToMineOn()
	}
	return block.IDOf(last.msg[:]), last.layer + 1
}

// RecordMined appends a freshly mined block at the given layer (as
// returned alongside its parent id by ParentForMining) to the private
// chain and applies the eager-publish rule: once the private chain has
// grown two entries ahead of what's already been published, the entire
// unpublished backlog is filed into the public tree (in layer order, so
// the tree's parent-chain invariant is never violated by publishing a
// block before its own private predecessor) and returned for broadcast.
func (s *Strategy) RecordMined(msg [block.Size]byte, layer int) (toPublish [][]byte) {
	s.private = append(s.private, entry{msg: msg, layer: layer})
	if len(s.private)-s.privatePoint != 2 {
		return nil
	}
	return s.publishFrom(s.privatePoint, len(s.private))
}

// OnHonestArrival reacts to an honest block that just became the new
// deepest layer h of the shared tree. It returns whether the mining loop
// must restart (abandon its current timer and redraw) and any private
// blocks that must now be broadcast as brand-new gossip messages.
func (s *Strategy) OnHonestArrival(h int) (restart bool, toPublish [][]byte) {
	lead := -1
	if len(s.private) > 0 {
		lead = s.private[len(s.private)-1].layer
	}
	lead -= h

	switch {
	case lead < 0:
		// The honest chain has overtaken; stop withholding and restart.
		s.privatePoint = len(s.private)
		return true, nil
	case lead == 0:
		// Tie: publish only the latest private block to match depth;
		// private_point is left untouched (matching the original's single
		// append), so an earlier backlog, if any, stays withheld. Does not
		// restart.
		last := s.private[len(s.private)-1]
		s.tree.Insert(last.msg[:], last.layer)
		return false, [][]byte{append([]byte(nil), last.msg[:]...)}
	case lead == 1:
		// One-block lead: release everything withheld so far.
		return false, s.publishFrom(s.privatePoint, len(s.private))
	default:
		// Lead >= 2: the secret is safe, keep mining in private.
		return false, nil
	}
}

// publishFrom files private entries [from, to) into the tree in order
// and advances the watermark past them.
func (s *Strategy) publishFrom(from, to int) [][]byte {
	var out [][]byte
	for i := from; i < to; i++ {
		e := s.private[i]
		s.tree.Insert(e.msg[:], e.layer)
		out = append(out, e.msg[:])
	}
	s.privatePoint = to
	return out
}

// PrivatePoint reports how many prefix entries of the private chain have
// already been published, for tests and liveness checks.
func (s *Strategy) PrivatePoint() int {
	return s.privatePoint
}

// PrivateLen reports the total number of entries mined into the private
// chain so far, published or not.
func (s *Strategy) PrivateLen() int {
	return len(s.private)
}
