// Package mining runs one peer's block-production loop: it draws an
// exponentially distributed solve time, races it against the node's
// level-triggered new-tip signal, and on expiry produces, stores, and
// gossips a block. The exponential draw follows the same inverse-CDF
// sampling LarryRuane-minesim uses for its solve-time events, generalized
// from a discrete-event queue to a real wall-clock timer.
package mining

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rkj2096/gossip-protocol/internal/block"
	"github.com/rkj2096/gossip-protocol/internal/node"
)

// Miner drives block production for one peer.
type Miner struct {
	Node         *node.Node
	Log          *logrus.Entry
	HashPower    float64       // this peer's share of total network hash power, in (0, 1]
	InterArrival time.Duration // mean network-wide block interval
	Rand         *rand.Rand
	Selfish      bool
}

// New returns a miner seeded from seed for reproducible runs, matching the
// teacher's --seed convention (0 means let the runtime pick one).
func New(n *node.Node, log *logrus.Entry, hashPower float64, interArrival time.Duration, seed int64, selfish bool) *Miner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Miner{
		Node:         n,
		Log:          log,
		HashPower:    hashPower,
		InterArrival: interArrival,
		Rand:         rand.New(rand.NewSource(seed)),
		Selfish:      selfish,
	}
}

// nextSolveTime draws a solve time for this peer: the network-wide mean
// interval scaled down by this peer's hash share, via the standard
// inverse-CDF exponential sampler.
func (m *Miner) nextSolveTime() time.Duration {
	mean := float64(m.InterArrival) / m.HashPower
	draw := -math.Log(1.0-m.Rand.Float64()) * mean
	return time.Duration(draw)
}

// Run mines until ctx is cancelled. Each iteration races a fresh timer
// against the node's tip signal; a tip arrival restarts the timer on the
// new parent without producing a block, and a timer expiry produces one.
func (m *Miner) Run(ctx context.Context) {
	timer := time.NewTimer(m.nextSolveTime())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.Node.TipSignal:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(m.nextSolveTime())
		case <-timer.C:
			m.mineOne()
			timer.Reset(m.nextSolveTime())
		}
	}
}

// mineOne produces exactly one block on top of the current parent (the
// private chain tip if this miner withholds, otherwise the public tip),
// records it locally, and gossips whatever the strategy says should now
// become visible.
func (m *Miner) mineOne() {
	m.Node.Mu.Lock()
	var prevID uint16
	var layer int
	if m.Node.Strategy != nil {
		prevID, layer = m.Node.Strategy.ParentForMining()
	} else {
		prevID, layer = m.Node.Tree.PrevIDToMineOn()
	}

	b := block.Block{
		PrevID:    prevID,
		Nonce:     uint16(m.Rand.Intn(1 << 16)),
		Timestamp: uint32(time.Now().Unix()),
	}
	raw := block.Encode(b)

	m.Node.Dedup.Mark(raw[:])
	var toGossip [][]byte
	if m.Node.Strategy != nil {
		toGossip = m.Node.Strategy.RecordMined(raw, layer)
	} else {
		m.Node.Tree.TryInsert(raw[:])
		toGossip = [][]byte{raw[:]}
	}
	m.Node.Mu.Unlock()

	m.Node.MarkOwn(raw[:])
	m.Log.WithField("layer", layer).Debug("mined block")

	for _, msg := range toGossip {
		m.Node.Peers.Broadcast(msg, nil)
	}
}
