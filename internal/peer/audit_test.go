package peer_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkj2096/gossip-protocol/internal/peer"
)

func TestFileAuditHookWritesOnlyTaggedEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(nopWriter{})
	logger.AddHook(peer.NewFileAuditHook(&buf))
	entry := logger.WithField("component", "peer")

	entry.Info("peer connected")
	assert.Empty(t, buf.String(), "entries without the audit field must not be written")

	peer.AuditMessage(entry, "1.2.3.4:5", []byte("12345678"))
	require.NotEmpty(t, buf.String())
	assert.Contains(t, buf.String(), "1.2.3.4:5->")
	assert.Contains(t, buf.String(), "3132333435363738")
}
