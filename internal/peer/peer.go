// Package peer is the connection manager: it accepts and dials TCP
// sessions, performs the one-line identity handshake, frames every
// subsequent message to the fixed 8-byte block record, and fans out
// broadcasts to the live neighbor set. It knows nothing about blocks,
// dedup, or mining — message interpretation is delegated to a handler
// supplied by the caller (internal/node), which keeps this package a thin,
// reusable transport layer.
package peer

import (
	"bufio"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FrameSize is the length of every message exchanged after the identity
// handshake: either an 8-byte block record or the START-MINING sentinel.
const FrameSize = 8

// ErrPeerIO wraps any socket read/write failure; the offending connection
// is dropped and its receive goroutine exits, but the process continues.
var ErrPeerIO = errors.New("peer io error")

// HandshakeBufferSize is how many bytes are read for the identity line,
// matching the "up to 4096 bytes" framing in the spec's identity
// handshake and registry protocol.
const HandshakeBufferSize = 4096

// Handler processes one accepted, framed message. origin is the
// connection it arrived on (nil for a locally produced message), so the
// handler's eventual broadcast can exclude the peer the message came
// from.
type Handler func(msg []byte, origin *Conn)

// Conn is a live peer session: its framed reader/writer and identity.
type Conn struct {
	NodeID string
	conn   net.Conn
	mu     sync.Mutex // serializes writes; see Send
}

// Send writes msg verbatim to this peer. Concurrent broadcasts to the
// same peer are serialized so frames are never interleaved.
func (c *Conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(msg)
	if err != nil {
		return errors.Wrapf(ErrPeerIO, "write to %s: %v", c.NodeID, err)
	}
	return nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// Manager owns the listening socket and the live neighbor set for one
// local node, and fans broadcasts out to every neighbor but the origin.
type Manager struct {
	SelfID string
	log    *logrus.Entry

	mu        sync.RWMutex // guards neighbors; see doc note below
	neighbors map[*Conn]struct{}

	OnMessage Handler
	OnPeerUp  func(nodeID string)
}

// NewManager returns a connection manager identifying itself as selfID
// ("ip:port") to every peer it handshakes with.
func NewManager(selfID string, log *logrus.Entry) *Manager {
	return &Manager{
		SelfID:    selfID,
		log:       log,
		neighbors: make(map[*Conn]struct{}),
	}
}

// Listen binds addr (reuse-address is the default on most platforms for
// TCP listeners bound after a clean shutdown; Go's net package does not
// expose SO_REUSEADDR directly, so a short-lived rebind race is possible
// but immaterial to a short simulation run) and returns the listener. It
// does not accept sessions itself; Accept does that until the caller
// closes the listener.
func (m *Manager) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "bind failed")
	}
	return ln, nil
}

// Accept services one listener forever, spawning a receive goroutine for
// every incoming session.
func (m *Manager) Accept(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			m.log.WithError(err).Warn("accept failed, listener shutting down")
			return
		}
		go m.serveInbound(c)
	}
}

// serveInbound reads the identity handshake from a freshly accepted
// socket and then begins the framed receive loop.
func (m *Manager) serveInbound(c net.Conn) {
	buf := make([]byte, HandshakeBufferSize)
	n, err := c.Read(buf)
	if err != nil {
		m.log.WithError(err).Warn("handshake read failed")
		c.Close()
		return
	}
	nodeID := string(buf[:n])
	m.receive(m.add(nodeID, c))
}

// Dial opens a session to addr, sends the local identity, registers the
// peer as a neighbor, and starts its receive loop in a new goroutine, so
// Dial returns once the session is set up. nodeID is the remote identity
// string used for logging and the §6 audit line ("<peer_id>-><raw_msg>").
func (m *Manager) Dial(nodeID, addr string) error {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "dial %s", addr)
	}
	if _, err := c.Write([]byte(m.SelfID)); err != nil {
		c.Close()
		return errors.Wrapf(ErrPeerIO, "identity send to %s: %v", nodeID, err)
	}
	go m.receive(m.add(nodeID, c))
	return nil
}

func (m *Manager) add(nodeID string, c net.Conn) *Conn {
	pc := &Conn{NodeID: nodeID, conn: c}
	m.mu.Lock()
	m.neighbors[pc] = struct{}{}
	m.mu.Unlock()

	if m.OnPeerUp != nil {
		m.OnPeerUp(nodeID)
	}
	m.log.WithField("peer", nodeID).Info("peer connected")
	return pc
}

// receive accumulates exactly FrameSize bytes per message, forever, until
// the socket errs or closes; on any error the peer is dropped from the
// neighbor set and this goroutine ends, without affecting any other
// peer's session.
func (m *Manager) receive(pc *Conn) {
	defer m.drop(pc)
	r := bufio.NewReaderSize(pc.conn, FrameSize)
	for {
		frame := make([]byte, FrameSize)
		if _, err := io.ReadFull(r, frame); err != nil {
			if err != io.EOF {
				m.log.WithError(err).WithField("peer", pc.NodeID).Warn("peer read failed")
			}
			return
		}
		if m.OnMessage != nil {
			m.OnMessage(frame, pc)
		}
	}
}

func (m *Manager) drop(pc *Conn) {
	m.mu.Lock()
	delete(m.neighbors, pc)
	m.mu.Unlock()
	pc.Close()
	m.log.WithField("peer", pc.NodeID).Info("peer disconnected")
}

// Broadcast writes msg to every live neighbor except origin. origin is
// nil for a locally mined block, which is therefore sent to every
// neighbor. A write failure on one neighbor is logged and does not abort
// the fan-out to the rest; the neighbor set reflects the drop on its own
// next read error.
//
// The neighbor set is read without holding mu across the writes
// themselves (only the snapshot copy is taken under lock): per the
// concurrency model this is an accepted, benign race — a peer dropped
// concurrently with a broadcast may receive one extra write, which the
// now-closed socket simply discards the error from.
func (m *Manager) Broadcast(msg []byte, origin *Conn) {
	m.mu.RLock()
	targets := make([]*Conn, 0, len(m.neighbors))
	for pc := range m.neighbors {
		if pc != origin {
			targets = append(targets, pc)
		}
	}
	m.mu.RUnlock()

	for _, pc := range targets {
		if err := pc.Send(msg); err != nil {
			m.log.WithError(err).WithField("peer", pc.NodeID).Warn("broadcast write failed")
		}
	}
}

// NeighborCount reports the current live neighbor count, for stats/tests.
func (m *Manager) NeighborCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.neighbors)
}
