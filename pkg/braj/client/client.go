package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tbxark/braj/pkg/braj/common"
	"github.com/tbxark/braj/pkg/braj/proto"
	"go.uber.org/zap"
)

// Client dials a braj server and exchanges messages with it.
type Client struct {
	Config *Config     // Client configuration
	Logger *zap.Logger // Logger instance
}

// New creates a client after validating cfg. A nil logger discards output.
func New(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{Config: cfg, Logger: logger}, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.Config.MaxRetries)), ctx)
}

// Dial connects to the server, retrying failed attempts with exponential
// backoff up to Config.MaxRetries times.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	dialer := &net.Dialer{Timeout: c.Config.DialTimeout}

	var conn net.Conn
	operation := func() error {
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", c.Config.ServerAddr)
		return err
	}
	notify := func(err error, delay time.Duration) {
		c.Logger.Warn("Dial failed, will retry",
			zap.String("server", c.Config.ServerAddr),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify); err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Config.ServerAddr, err)
	}

	c.Logger.Debug("Connected to server",
		zap.String("server", c.Config.ServerAddr),
		zap.String("local_addr", conn.LocalAddr().String()))

	return &Conn{conn: conn, replyTimeout: c.Config.ReplyTimeout}, nil
}

// Conn is one established client connection.
type Conn struct {
	conn         net.Conn
	replyTimeout time.Duration
}

// Exchange writes payload and waits for a single acknowledgment. Both the
// write and the wait are bounded by Config.ReplyTimeout. The server
// acknowledges each read, so callers should not pipeline writes.
func (c *Conn) Exchange(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty payload gets no reply")
	}

	if err := common.SetWriteDeadline(c.conn, c.replyTimeout); err != nil {
		return err
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := common.SetReadDeadline(c.conn, c.replyTimeout); err != nil {
		return err
	}
	if err := proto.ReadReply(c.conn); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	return common.ClearDeadline(c.conn)
}

// LocalAddr returns the client side address of the connection.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
