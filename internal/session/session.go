// Package session performs the one-time startup sequence described in
// §4.H: sample up to two peers from the registered roster, dial them
// concurrently, and, for the one designated genesis peer in the
// experiment, synthesize the START-MINING sentinel and let it propagate
// through gossip.
package session

import (
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/rkj2096/gossip-protocol/internal/node"
	"github.com/rkj2096/gossip-protocol/internal/registry"
)

// SampleSize is how many peers a session dials at startup; the overlay
// does not heal afterward if one of them later disconnects (see §9's
// documented limitation).
const SampleSize = 2

// ChoosePeers returns up to SampleSize addresses sampled uniformly at
// random without replacement from roster, excluding selfID.
func ChoosePeers(roster registry.Roster, selfID string, r *rand.Rand) []string {
	candidates := make([]string, 0, len(roster))
	for id := range roster {
		if id != selfID {
			candidates = append(candidates, id)
		}
	}
	r.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > SampleSize {
		candidates = candidates[:SampleSize]
	}
	return candidates
}

// Bootstrap dials every address in peers concurrently and, if genesis is
// true, gossips the START-MINING sentinel once every dial attempt has
// settled.
func Bootstrap(n *node.Node, peers []string, genesis bool) error {
	var g errgroup.Group
	for _, addr := range peers {
		addr := addr
		g.Go(func() error {
			return n.Peers.Dial(addr, addr)
		})
	}
	err := g.Wait()

	if genesis {
		n.Peers.OnMessage(node.StartMining, nil)
	}
	return err
}
