// Package registry implements the bootstrap registry server: it accepts
// one short-lived TCP session per peer, records the peer's identity, and
// replies with the roster of every peer registered before it. The global
// peer map is a bounded component with explicit construction and a
// snapshot read, per the design notes' redesign of the source's
// process-wide mutable map.
package registry

import (
	"bufio"
	"encoding/gob"
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Roster is the wire mapping returned to a newly registering peer: every
// "ip:port" identity seen so far, keyed by itself for direct lookup. It is
// encoded with encoding/gob, the standard library's own binary codec —
// the registry and every peer are the same Go binary, so there is no
// cross-language or schema-evolution need that would justify reaching for
// one of the domain stack's wire-format libraries here.
type Roster map[string]string

// Server owns the peer map for the lifetime of one simulation run.
type Server struct {
	log *logrus.Entry

	mu    sync.Mutex
	peers Roster
}

// New returns an empty registry, or one preloaded from a prior run's
// resume file if path is non-empty.
func New(log *logrus.Entry, resumePath string) (*Server, error) {
	s := &Server{log: log, peers: make(Roster)}
	if resumePath == "" {
		return s, nil
	}
	f, err := os.Open(resumePath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrapf(err, "open resume file %s", resumePath)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&s.peers); err != nil {
		return nil, errors.Wrapf(err, "decode resume file %s", resumePath)
	}
	return s, nil
}

// Snapshot returns a copy of the currently registered roster.
func (s *Server) Snapshot() Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Roster, len(s.peers))
	for k, v := range s.peers {
		out[k] = v
	}
	return out
}

// Save persists the current roster to path using gob, the equivalent of
// the source's client_list.pkl checkpoint on SIGINT.
func (s *Server) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create resume file %s", path)
	}
	defer f.Close()
	return errors.Wrap(gob.NewEncoder(f).Encode(s.Snapshot()), "encode resume file")
}

// Listen binds addr and returns the listener; Serve handles bootstrap
// requests on it until it is closed.
func (s *Server) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "bind failed")
	}
	return ln, nil
}

// Serve accepts sessions from ln forever.
func (s *Server) Serve(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			s.log.WithError(err).Warn("registry accept failed, listener shutting down")
			return
		}
		go s.handle(c)
	}
}

// handle runs exactly one bootstrap round-trip: read the peer's identity,
// reply with the roster registered before it, then record the new peer.
func (s *Server) handle(c net.Conn) {
	defer c.Close()

	buf := make([]byte, 4096)
	n, err := c.Read(buf)
	if err != nil {
		s.log.WithError(err).Warn("registry read failed")
		return
	}
	nodeID := string(buf[:n])

	s.mu.Lock()
	reply := make(Roster, len(s.peers))
	for k, v := range s.peers {
		reply[k] = v
	}
	s.peers[nodeID] = nodeID
	s.mu.Unlock()

	w := bufio.NewWriter(c)
	if err := gob.NewEncoder(w).Encode(reply); err != nil {
		s.log.WithError(err).Warn("registry encode failed")
		return
	}
	if err := w.Flush(); err != nil {
		s.log.WithError(err).Warn("registry write failed")
		return
	}
	s.log.WithField("peer", nodeID).Info("peer registered")
}
