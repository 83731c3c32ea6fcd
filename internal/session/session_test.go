package session_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkj2096/gossip-protocol/internal/node"
	"github.com/rkj2096/gossip-protocol/internal/registry"
	"github.com/rkj2096/gossip-protocol/internal/session"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return logrus.NewEntry(l)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestChoosePeersExcludesSelfAndCapsAtSampleSize(t *testing.T) {
	roster := registry.Roster{
		"a:1": "a:1", "b:2": "b:2", "c:3": "c:3", "self:0": "self:0",
	}
	r := rand.New(rand.NewSource(1))
	chosen := session.ChoosePeers(roster, "self:0", r)

	require.Len(t, chosen, session.SampleSize)
	for _, addr := range chosen {
		assert.NotEqual(t, "self:0", addr)
	}
}

func TestChoosePeersReturnsFewerWhenRosterSmall(t *testing.T) {
	roster := registry.Roster{"a:1": "a:1"}
	r := rand.New(rand.NewSource(1))
	chosen := session.ChoosePeers(roster, "self:0", r)
	assert.Len(t, chosen, 1)
}

func TestBootstrapGenesisEmitsStartMining(t *testing.T) {
	server := node.New("server", discardLog(), false, 64, nil)
	ln, err := server.Peers.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go server.Peers.Accept(ln)

	started := make(chan struct{}, 1)
	server.OnStartMining = func() { started <- struct{}{} }

	client := node.New("client", discardLog(), false, 64, nil)
	err = session.Bootstrap(client, []string{ln.Addr().String()}, true)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("expected the server to observe START-MINING forwarded from the genesis client")
	}
}

func TestBootstrapNonGenesisDoesNotEmitStartMining(t *testing.T) {
	server := node.New("server", discardLog(), false, 64, nil)
	ln, err := server.Peers.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go server.Peers.Accept(ln)

	client := node.New("client", discardLog(), false, 64, nil)
	err = session.Bootstrap(client, []string{ln.Addr().String()}, false)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, client.Peers.NeighborCount())
}
