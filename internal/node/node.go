// Package node wires the protocol components together: the block tree,
// the optional selfish strategy, the dedup cache, and the peer connection
// manager, under the single message mutex the spec's concurrency model
// requires. It is the "central tip manager" the design notes call for: it
// owns the tree and publishes restarts over a channel instead of a shared
// condition variable with a double-purpose lock.
package node

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rkj2096/gossip-protocol/internal/block"
	"github.com/rkj2096/gossip-protocol/internal/blocktree"
	"github.com/rkj2096/gossip-protocol/internal/dedup"
	"github.com/rkj2096/gossip-protocol/internal/peer"
	"github.com/rkj2096/gossip-protocol/internal/selfish"
)

// StartMining is the 8-byte ASCII sentinel that triggers every peer's
// mining task the first time it's observed.
var StartMining = []byte("START-MN")

// Node is one peer's whole protocol runtime: the shared block tree, dedup
// cache, optional selfish strategy, and the connection manager that feeds
// it inbound messages.
type Node struct {
	SelfID string
	Log    *logrus.Entry

	Mu       sync.Mutex // the single message mutex (§5): guards Tree, Strategy, and Dedup together
	Tree     *blocktree.Tree
	Dedup    *dedup.Cache
	Strategy *selfish.Strategy // nil for an honest peer
	Peers    *peer.Manager

	// TipSignal is a capacity-1, level-triggered restart signal: a
	// pending restart coalesces any number of NewTip arrivals that occur
	// before the mining loop next wakes and drains it.
	TipSignal chan struct{}

	// OnStartMining is invoked exactly once, the first time this node
	// observes the START-MINING sentinel (locally synthesized or
	// received). Wired by cmd/peer to launch the mining goroutine,
	// keeping this package free of a dependency on internal/mining.
	OnStartMining func()
	miningOnce    sync.Once

	// ownMined records the raw bytes of every block this node itself
	// produced (honest or selfish-private), so stats.Summarize can report
	// how many of the longest chain's blocks are this peer's own.
	ownMu    sync.Mutex
	ownMined map[[block.Size]byte]struct{}

	// audit is invoked for every accepted (non-duplicate) inbound
	// message, matching the outputfile_<port>.txt side output.
	audit func(peerID string, msg []byte)
}

// New constructs a node and wires its connection manager's message
// handler to this node's receive path. selfishMode selects whether the
// node runs the selfish strategy or behaves as a plain honest peer.
func New(selfID string, log *logrus.Entry, selfishMode bool, dedupSize int, auditFn func(peerID string, msg []byte)) *Node {
	tree := blocktree.New(nil)
	n := &Node{
		SelfID:    selfID,
		Log:       log,
		Tree:      tree,
		Dedup:     dedup.New(dedupSize),
		Peers:     peer.NewManager(selfID, log),
		TipSignal: make(chan struct{}, 1),
		ownMined:  make(map[[block.Size]byte]struct{}),
		audit:     auditFn,
	}
	if selfishMode {
		n.Strategy = selfish.New(tree)
	}
	n.Peers.OnMessage = n.handleMessage
	return n
}

// SignalNewTip raises the level-triggered restart signal without
// blocking; a pending, undrained signal is left as-is.
func (n *Node) SignalNewTip() {
	select {
	case n.TipSignal <- struct{}{}:
	default:
	}
}

// MarkOwn records msg as mined by this node, for the longest-chain
// summary at exit.
func (n *Node) MarkOwn(msg []byte) {
	var key [block.Size]byte
	copy(key[:], msg)
	n.ownMu.Lock()
	n.ownMined[key] = struct{}{}
	n.ownMu.Unlock()
}

// IsOwn reports whether b was produced by this node.
func (n *Node) IsOwn(b block.Block) bool {
	key := block.Encode(b)
	n.ownMu.Lock()
	defer n.ownMu.Unlock()
	_, ok := n.ownMined[key]
	return ok
}

// handleMessage is the Manager.Handler wired into Peers: it runs the §5
// locking discipline exactly — take the message mutex, consult dedup,
// release before any outbound I/O, signal the tip after releasing.
func (n *Node) handleMessage(msg []byte, origin *peer.Conn) {
	n.Mu.Lock()
	if n.Dedup.Observe(msg) {
		n.Mu.Unlock()
		return
	}

	if bytes.Equal(msg, StartMining) {
		n.Mu.Unlock()
		if n.audit != nil {
			n.audit(peerName(origin), msg)
		}
		n.Peers.Broadcast(msg, origin)
		n.miningOnce.Do(func() {
			if n.OnStartMining != nil {
				n.OnStartMining()
			}
		})
		return
	}

	res := n.Tree.TryInsert(msg)
	switch res.Kind {
	case blocktree.Rejected:
		n.Mu.Unlock()
		n.Log.WithError(res.ErrKind).WithField("peer", peerName(origin)).Warn("dropped invalid block")
		return
	case blocktree.Extended:
		n.Mu.Unlock()
		if n.audit != nil {
			n.audit(peerName(origin), msg)
		}
		n.Peers.Broadcast(msg, origin)
		return
	case blocktree.NewTip:
		restart := true
		var extra [][]byte
		if n.Strategy != nil {
			restart, extra = n.Strategy.OnHonestArrival(res.Layer)
		}
		n.Mu.Unlock()

		if n.audit != nil {
			n.audit(peerName(origin), msg)
		}
		n.Peers.Broadcast(msg, origin)
		if restart {
			n.SignalNewTip()
		}
		for _, b := range extra {
			n.Peers.Broadcast(b, nil)
		}
	}
}

func peerName(origin *peer.Conn) string {
	if origin == nil {
		return "local"
	}
	return origin.NodeID
}
