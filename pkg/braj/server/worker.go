package server

import (
	"context"
	"errors"
	"io"

	"github.com/tbxark/braj/pkg/braj/proto"
	"go.uber.org/zap"
)

type convState int

const (
	stateReading convState = iota
	stateReplying
	stateClosed
)

func (s convState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateReplying:
		return "replying"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// conversation owns one connection from accept to close.
type conversation struct {
	sess     *Session
	gate     Gate
	registry *Registry
	resolver PeerResolver // nil disables reverse lookups
	logger   *zap.Logger
	state    convState
}

func newConversation(sess *Session, gate Gate, registry *Registry, resolver PeerResolver, logger *zap.Logger) *conversation {
	return &conversation{
		sess:     sess,
		gate:     gate,
		registry: registry,
		resolver: resolver,
		logger: logger.With(
			zap.String("session_id", sess.ID().String()),
			zap.String("remote_addr", sess.remoteAddr)),
		state: stateReading,
	}
}

// run reads chunks and acknowledges each one until the peer closes, an I/O
// call fails, or ctx is cancelled. Any of these ends the conversation.
func (c *conversation) run(ctx context.Context) {
	c.gate.Enter()

	stop := context.AfterFunc(ctx, func() {
		_ = c.sess.Close()
	})

	var cause error
	defer func() {
		stop()
		c.close(ctx, cause)
	}()

	c.announce(ctx)

	conn := c.sess.conn
	buf := make([]byte, proto.BufSize)
	for {
		c.state = stateReading
		n, err := conn.Read(buf)
		if n > 0 {
			c.state = stateReplying
			c.logger.Info("Received data",
				zap.Int("bytes", n),
				zap.ByteString("content", buf[:n]))

			if werr := proto.WriteReply(conn); werr != nil {
				cause = werr
				return
			}
		}
		if err != nil {
			cause = err
			return
		}
	}
}

func (c *conversation) announce(ctx context.Context) {
	if c.resolver == nil {
		c.logger.Info("Connection established")
		return
	}

	name, err := resolvePeerName(ctx, c.resolver, c.sess.remoteAddr)
	if err != nil {
		c.logger.Debug("Reverse lookup failed", zap.Error(err))
		c.logger.Info("Connection established")
		return
	}

	c.sess.setPeerName(name)
	c.logger.Info("Connection established", zap.String("peer_name", name))
}

func (c *conversation) close(ctx context.Context, cause error) {
	failedIn := c.state
	c.state = stateClosed

	c.gate.Leave()
	_ = c.sess.Close()
	c.registry.Remove(c.sess.ID())

	switch {
	case cause == nil, errors.Is(cause, io.EOF):
		c.logger.Debug("Peer closed connection")
	case ctx.Err() != nil:
		c.logger.Info("Connection closed by shutdown", zap.Stringer("state", failedIn))
	default:
		c.logger.Warn("Connection failed",
			zap.Stringer("state", failedIn),
			zap.Error(cause))
	}
}
