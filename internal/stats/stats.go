// Package stats computes the longest-chain summary a peer prints on
// SIGINT (spec §6 "prints longest-chain statistics and exits"), grounded
// on two originals: LarryRuane-minesim's common-ancestor walk (used there
// to measure reorg depth) and selfish_miner.py's exit handler, which
// walks the longest chain back from its tip and counts how many entries
// belong to the local miner.
package stats

import (
	"github.com/rkj2096/gossip-protocol/internal/block"
	"github.com/rkj2096/gossip-protocol/internal/blocktree"
)

// Summary is the peer's self-reported view of the network at exit time.
type Summary struct {
	TotalBlocks      int
	Depth            int
	LongestChainLen  int
	OwnBlocksInChain int
}

// Summarize walks tree's longest chain and counts how many of its blocks
// satisfy isOwn (true for blocks this peer itself mined, honest or
// private). Pass a nil isOwn to skip that accounting.
func Summarize(tree *blocktree.Tree, isOwn func(block.Block) bool) Summary {
	chain := tree.LongestChain()
	s := Summary{
		TotalBlocks:     tree.TotalBlocks(),
		Depth:           tree.Depth(),
		LongestChainLen: len(chain),
	}
	if isOwn == nil {
		return s
	}
	for _, b := range chain {
		if isOwn(b) {
			s.OwnBlocksInChain++
		}
	}
	return s
}
