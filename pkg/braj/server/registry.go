package server

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the handle of one running conversation.
type Session struct {
	id         uuid.UUID // Connection identity
	conn       net.Conn  // Owned connection
	remoteAddr string    // Peer address at accept time
	started    time.Time // Accept time

	mu       sync.Mutex
	peerName string // Reverse DNS name, if resolved

	closeOnce sync.Once
	closeErr  error
}

// ID returns the session identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Close closes the underlying connection. Only the first call has effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) setPeerName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerName = name
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.id.String(),
		RemoteAddr: s.remoteAddr,
		PeerName:   s.peerName,
		Started:    s.started,
	}
}

// SessionInfo describes a registered conversation.
type SessionInfo struct {
	ID         string    // Session UUID
	RemoteAddr string    // Peer address
	PeerName   string    // Reverse DNS name, empty if not resolved
	Started    time.Time // Accept time
}

// Registry is the set of running conversations keyed by connection identity.
type Registry struct {
	mu       sync.RWMutex           // Protects sessions
	sessions map[uuid.UUID]*Session // Session ID to handle
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Register assigns a fresh identity to conn and adds it to the set.
func (r *Registry) Register(conn net.Conn) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	for {
		if _, exists := r.sessions[id]; !exists {
			break
		}
		id = uuid.New()
	}

	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	sess := &Session{
		id:         id,
		conn:       conn,
		remoteAddr: remote,
		started:    time.Now(),
	}
	r.sessions[id] = sess
	return sess
}

// Remove deletes a session from the set.
// This operation is idempotent - calling it multiple times is safe.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Snapshot returns all registered sessions, oldest first.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, sess.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Started.Equal(infos[j].Started) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Started.Before(infos[j].Started)
	})
	return infos
}
