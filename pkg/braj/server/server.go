package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tbxark/braj/pkg/braj/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Server struct {
	cfg      *Config      // Server configuration
	gate     Gate         // Capacity gate
	registry *Registry    // Running conversations
	resolver PeerResolver // Reverse lookups, nil when disabled
	logger   *zap.Logger  // Logger instance

	saturated rate.Sometimes // Throttles pool-full warnings

	mu      sync.Mutex
	addr    net.Addr
	started bool
}

// AcceptError is returned by Serve when the listener fails while the server
// is not shutting down. The server cannot continue after it.
type AcceptError struct {
	Err error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("%s: %v", common.ErrAcceptFailed, e.Err)
}

func (e *AcceptError) Unwrap() []error {
	return []error{common.ErrAcceptFailed, e.Err}
}

// NewServer creates a new Server.
func NewServer(cfg *Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gate, err := NewGate(cfg.Admission, cfg.PoolSize, cfg.PollInterval)
	if err != nil {
		return nil, err
	}

	var resolver PeerResolver
	if cfg.ResolvePeers {
		resolver = net.DefaultResolver
	}

	return &Server{
		cfg:       cfg,
		gate:      gate,
		registry:  NewRegistry(),
		resolver:  resolver,
		logger:    logger,
		saturated: rate.Sometimes{Interval: time.Second},
	}, nil
}

// SetResolver replaces the reverse lookup implementation. A nil resolver
// disables lookups. It must be called before Serve.
func (s *Server) SetResolver(r PeerResolver) {
	s.resolver = r
}

// Start binds the configured address and serves on it.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp4", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled or Accept
// fails. Each connection is handed to its own conversation goroutine once
// the capacity gate admits it.
//
// On cancellation Serve stops accepting, waits up to Config.DrainTimeout for
// running conversations, force-closes the rest and returns ctx.Err(). On an
// accept failure it force-closes all conversations and returns *AcceptError.
// The listener is closed in both cases. A Server can serve only once.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer func() {
		_ = listener.Close()
	}()

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return common.ErrServerClosed
	}
	s.started = true
	s.addr = listener.Addr()
	s.mu.Unlock()

	s.logger.Info("Server listening",
		zap.String("address", listener.Addr().String()),
		zap.Int("pool_size", s.gate.Size()),
		zap.String("admission", string(s.gate.Mode())))

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down server")
			_ = listener.Close()
		case <-done:
		}
	}()

	// Conversations outlive the accept loop during drain, so they get a
	// context that is only cancelled by forceClose.
	workerCtx, forceClose := context.WithCancel(context.WithoutCancel(ctx))
	defer forceClose()

	var wg sync.WaitGroup

	for {
		if s.gate.Active() >= s.gate.Size() {
			s.saturated.Do(func() {
				s.logger.Warn("Connection pool exhausted, waiting for a free slot",
					zap.Int("active", s.gate.Active()),
					zap.Int("pool_size", s.gate.Size()))
			})
		}

		if err := s.gate.Wait(ctx); err != nil {
			s.drain(&wg, forceClose, s.cfg.DrainTimeout)
			return err
		}
		if err := ctx.Err(); err != nil {
			s.gate.Abort()
			s.drain(&wg, forceClose, s.cfg.DrainTimeout)
			return err
		}

		conn, err := listener.Accept()
		if err != nil {
			s.gate.Abort()
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.drain(&wg, forceClose, s.cfg.DrainTimeout)
				return ctxErr
			}
			s.logger.Error("Failed to accept connection", zap.Error(err))
			s.drain(&wg, forceClose, 0)
			return &AcceptError{Err: err}
		}

		sess := s.registry.Register(conn)
		s.logger.Debug("Accepted new connection",
			zap.String("session_id", sess.ID().String()),
			zap.String("remote_addr", sess.remoteAddr))

		conv := newConversation(sess, s.gate, s.registry, s.resolver, s.logger)
		wg.Add(1)
		s.gate.Admitted()
		go func() {
			defer wg.Done()
			conv.run(workerCtx)
		}()
	}
}

// drain waits up to timeout for running conversations, then force-closes
// whatever is left and waits for those workers to exit.
func (s *Server) drain(wg *sync.WaitGroup, forceClose context.CancelFunc, timeout time.Duration) {
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-finished:
			return
		case <-timer.C:
		}
	}

	if sessions := s.registry.Snapshot(); len(sessions) > 0 {
		ids := make([]string, len(sessions))
		for i, info := range sessions {
			ids[i] = info.ID
		}
		s.logger.Info("Force closing conversations",
			zap.Int("count", len(ids)),
			zap.Strings("sessions", ids))
	}

	forceClose()
	<-finished
}

// Addr returns the listening address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Active returns the current value of the shared active-conversation counter.
func (s *Server) Active() int {
	return s.gate.Active()
}

// Peak returns the highest number of simultaneously active conversations.
func (s *Server) Peak() int {
	return s.gate.Peak()
}

// Sessions returns the running conversations, oldest first.
func (s *Server) Sessions() []SessionInfo {
	return s.registry.Snapshot()
}

// Mode returns the admission mode in use.
func (s *Server) Mode() AdmissionMode {
	return s.gate.Mode()
}
