package selfish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkj2096/gossip-protocol/internal/block"
	"github.com/rkj2096/gossip-protocol/internal/blocktree"
)

// This file is a white-box (same-package) test: it reaches into
// Strategy's unexported fields to set up the exact S6 precondition
// (private blocks at layers [1,2], private_point=0), a state the public
// RecordMined API cannot itself produce since its own eager-publish rule
// never lets the unpublished backlog grow past one entry.

// S6 — selfish lead = 0 tie, two-entry backlog: only the latest private
// block is published, matching spec.md §4.C ("publish exactly one
// matching block (the latest private one)") and
// original_source/selfish_miner.py's selfish_step lead==0 branch (a
// single self.private_chain[-1] append), as distinct from lead==1's loop
// over the whole backlog.
func TestHonestArrivalLeadZeroWithTwoEntryBacklogPublishesOnlyLatest(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := blocktree.New(func() time.Time { return now })
	ts := uint32(now.Unix())

	genesisChild := block.Block{PrevID: block.GenesisID, Nonce: 0xAAAA, Timestamp: ts}
	require.Equal(t, blocktree.NewTip, tr.TryInsert(encodeMsg(genesisChild)).Kind)

	priv1 := block.Block{PrevID: block.ID(genesisChild), Nonce: 1, Timestamp: ts}
	priv2 := block.Block{PrevID: block.ID(priv1), Nonce: 2, Timestamp: ts}

	s := &Strategy{
		tree: tr,
		private: []entry{
			{msg: block.Encode(priv1), layer: 1},
			{msg: block.Encode(priv2), layer: 2},
		},
		privatePoint: 0,
	}

	// Honest peer ties the private chain's deepest layer (2) exactly:
	// lead = 2 - 2 == 0.
	restart, toPublish := s.OnHonestArrival(2)

	assert.False(t, restart)
	require.Len(t, toPublish, 1, "lead==0 must publish only the latest private block, not the whole backlog")
	assert.Equal(t, block.Encode(priv2), asArray(toPublish[0]))
	assert.Equal(t, 0, s.PrivatePoint(), "private_point is untouched by a lead==0 tie, matching the original's single append")
	assert.Equal(t, 2, s.PrivateLen())
}

func encodeMsg(b block.Block) []byte {
	enc := block.Encode(b)
	return enc[:]
}

func asArray(b []byte) [block.Size]byte {
	var out [block.Size]byte
	copy(out[:], b)
	return out
}
