// Package bootstrap is the one-shot registry round trip every peer makes
// at startup: connect, send identity, read back the roster of peers
// registered before it, close.
package bootstrap

import (
	"bufio"
	"encoding/gob"
	"net"

	"github.com/pkg/errors"

	"github.com/rkj2096/gossip-protocol/internal/registry"
)

// ErrRegistryUnavailable wraps any failure to reach or complete the
// handshake with the bootstrap registry; callers treat this as fatal.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// Fetch performs the round trip described in §4.G: dial registryAddr,
// announce selfID, and decode the roster of peers already registered.
func Fetch(registryAddr, selfID string) (registry.Roster, error) {
	c, err := net.Dial("tcp", registryAddr)
	if err != nil {
		return nil, errors.Wrapf(ErrRegistryUnavailable, "dial %s: %v", registryAddr, err)
	}
	defer c.Close()

	if _, err := c.Write([]byte(selfID)); err != nil {
		return nil, errors.Wrapf(ErrRegistryUnavailable, "send identity: %v", err)
	}

	var roster registry.Roster
	if err := gob.NewDecoder(bufio.NewReader(c)).Decode(&roster); err != nil {
		return nil, errors.Wrapf(ErrRegistryUnavailable, "decode roster: %v", err)
	}
	return roster, nil
}
