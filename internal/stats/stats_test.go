package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkj2096/gossip-protocol/internal/block"
	"github.com/rkj2096/gossip-protocol/internal/blocktree"
	"github.com/rkj2096/gossip-protocol/internal/stats"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func encodeBytes(b block.Block) []byte {
	enc := block.Encode(b)
	return enc[:]
}

func TestSummarizeEmptyTree(t *testing.T) {
	tr := blocktree.New(nil)
	s := stats.Summarize(tr, nil)
	assert.Equal(t, stats.Summary{}, s)
}

func TestSummarizeCountsOwnBlocksInLongestChain(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := blocktree.New(fixedClock(now))
	ts := uint32(now.Unix())

	genesisChild := block.Block{PrevID: block.GenesisID, Nonce: 1, Timestamp: ts}
	require.Equal(t, blocktree.NewTip, tr.TryInsert(encodeBytes(genesisChild)).Kind)

	// A short-lived fork at layer 0 that never gets extended.
	fork := block.Block{PrevID: block.GenesisID, Nonce: 2, Timestamp: ts}
	require.Equal(t, blocktree.Extended, tr.TryInsert(encodeBytes(fork)).Kind)

	tip := block.Block{PrevID: block.ID(genesisChild), Nonce: 3, Timestamp: ts}
	require.Equal(t, blocktree.NewTip, tr.TryInsert(encodeBytes(tip)).Kind)

	own := map[uint16]struct{}{block.ID(genesisChild): {}}
	isOwn := func(b block.Block) bool {
		_, ok := own[block.ID(b)]
		return ok
	}

	s := stats.Summarize(tr, isOwn)
	assert.Equal(t, 3, s.TotalBlocks)
	assert.Equal(t, 2, s.Depth)
	assert.Equal(t, 2, s.LongestChainLen)
	assert.Equal(t, 1, s.OwnBlocksInChain)
}

func TestSummarizeNilIsOwnSkipsAccounting(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := blocktree.New(fixedClock(now))
	ts := uint32(now.Unix())
	b := block.Block{PrevID: block.GenesisID, Nonce: 1, Timestamp: ts}
	tr.TryInsert(encodeBytes(b))

	s := stats.Summarize(tr, nil)
	assert.Equal(t, 0, s.OwnBlocksInChain)
	assert.Equal(t, 1, s.TotalBlocks)
}
