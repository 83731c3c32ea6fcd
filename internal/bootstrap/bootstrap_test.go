package bootstrap_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkj2096/gossip-protocol/internal/bootstrap"
	"github.com/rkj2096/gossip-protocol/internal/registry"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return logrus.NewEntry(l)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestFetchReturnsRosterRegisteredBeforeSelf(t *testing.T) {
	reg, err := registry.New(discardLog(), "")
	require.NoError(t, err)
	ln, err := reg.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go reg.Serve(ln)

	roster1, err := bootstrap.Fetch(ln.Addr().String(), "peer-a:1")
	require.NoError(t, err)
	assert.Empty(t, roster1, "the first peer to register sees an empty roster")

	roster2, err := bootstrap.Fetch(ln.Addr().String(), "peer-b:2")
	require.NoError(t, err)
	require.Len(t, roster2, 1)
	_, ok := roster2["peer-a:1"]
	assert.True(t, ok, "the second peer must see the first peer, registered before it")
	_, selfPresent := roster2["peer-b:2"]
	assert.False(t, selfPresent, "a peer is never included in its own bootstrap response")
}

func TestFetchUnreachableRegistryIsFatal(t *testing.T) {
	_, err := bootstrap.Fetch("127.0.0.1:1", "peer-a:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, bootstrap.ErrRegistryUnavailable)
}
