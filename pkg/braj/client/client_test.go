package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/braj/pkg/braj/common"
	"github.com/tbxark/braj/pkg/braj/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func startServer(t *testing.T, poolSize int) string {
	t.Helper()

	cfg := server.DefaultConfig(0)
	cfg.PoolSize = poolSize
	cfg.ResolvePeers = false
	cfg.DrainTimeout = 0

	srv, err := server.NewServer(cfg, zap.NewNop())
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, listener)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return listener.Addr().String()
}

// closedAddr returns a loopback address nobody listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "no retries",
			mutate: func(c *Config) { c.MaxRetries = 0 },
		},
		{
			name:      "missing server",
			mutate:    func(c *Config) { c.ServerAddr = "" },
			expectErr: true,
		},
		{
			name:      "server without port",
			mutate:    func(c *Config) { c.ServerAddr = "localhost" },
			expectErr: true,
		},
		{
			name:      "zero dial timeout",
			mutate:    func(c *Config) { c.DialTimeout = 0 },
			expectErr: true,
		},
		{
			name:      "zero reply timeout",
			mutate:    func(c *Config) { c.ReplyTimeout = 0 },
			expectErr: true,
		},
		{
			name:      "negative retries",
			mutate:    func(c *Config) { c.MaxRetries = -1 },
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("127.0.0.1:9000")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New(&Config{}, nil)
	assert.Error(t, err)

	c, err := New(DefaultConfig("127.0.0.1:9000"), nil)
	require.NoError(t, err)
	assert.NotNil(t, c.Logger)
}

func TestDialAndExchange(t *testing.T) {
	addr := startServer(t, 2)

	c, err := New(DefaultConfig(addr), zap.NewNop())
	require.NoError(t, err)

	conn, err := c.Dial(context.Background())
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()
	assert.NotNil(t, conn.LocalAddr())

	require.NoError(t, conn.Exchange([]byte("hello\n")))
	require.NoError(t, conn.Exchange([]byte("hello\n")))

	assert.Error(t, conn.Exchange(nil), "empty payload")
}

func TestDial_RetriesWithBackoff(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	cfg := DefaultConfig(closedAddr(t))
	cfg.MaxRetries = 2
	c, err := New(cfg, zap.New(core))
	require.NoError(t, err)

	_, err = c.Dial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
	assert.Equal(t, 2, logs.FilterMessage("Dial failed, will retry").Len())
}

func TestDial_CancelledContext(t *testing.T) {
	cfg := DefaultConfig(closedAddr(t))
	cfg.MaxRetries = 100
	c, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.Dial(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "retries stop with the context")
}

// fakeServer accepts one connection and answers each read with reply.
func fakeServer(t *testing.T, reply []byte) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = l.Close()
	})

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer func() {
			_ = conn.Close()
		}()
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
			if reply != nil {
				if _, err := conn.Write(reply); err != nil {
					return
				}
			}
		}
	}()

	return l.Addr().String()
}

func TestExchange_UnexpectedReply(t *testing.T) {
	c, err := New(DefaultConfig(fakeServer(t, []byte("nope!"))), nil)
	require.NoError(t, err)

	conn, err := c.Dial(context.Background())
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	err = conn.Exchange([]byte("hi"))
	assert.True(t, errors.Is(err, common.ErrUnexpectedReply), "got %v", err)
}

func TestExchange_ReplyTimeout(t *testing.T) {
	cfg := DefaultConfig(fakeServer(t, nil))
	cfg.ReplyTimeout = 50 * time.Millisecond
	c, err := New(cfg, nil)
	require.NoError(t, err)

	conn, err := c.Dial(context.Background())
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	err = conn.Exchange([]byte("anyone?"))
	require.Error(t, err)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestRunLoad(t *testing.T) {
	addr := startServer(t, 4)

	c, err := New(DefaultConfig(addr), zap.NewNop())
	require.NoError(t, err)

	result, err := c.RunLoad(context.Background(), 4, 5, []byte("load\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Connections)
	assert.Equal(t, 20, result.Exchanges)
	assert.Greater(t, result.Elapsed, time.Duration(0))
}

func TestRunLoad_InvalidArguments(t *testing.T) {
	c, err := New(DefaultConfig("127.0.0.1:9000"), nil)
	require.NoError(t, err)

	_, err = c.RunLoad(context.Background(), 0, 1, []byte("x"))
	assert.Error(t, err)
	_, err = c.RunLoad(context.Background(), 1, 0, []byte("x"))
	assert.Error(t, err)
}

func TestRunLoad_ServerUnreachable(t *testing.T) {
	cfg := DefaultConfig(closedAddr(t))
	cfg.MaxRetries = 0
	c, err := New(cfg, nil)
	require.NoError(t, err)

	result, err := c.RunLoad(context.Background(), 3, 1, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 0, result.Connections)
	assert.Equal(t, 0, result.Exchanges)
}

func TestExchange_WriteTimeout(t *testing.T) {
	server, clientSide := net.Pipe()
	defer func() {
		_ = server.Close()
		_ = clientSide.Close()
	}()

	// Nobody reads from server, so the pipe write blocks.
	conn := &Conn{conn: clientSide, replyTimeout: 50 * time.Millisecond}

	start := time.Now()
	err := conn.Exchange([]byte("stuck"))
	require.Error(t, err)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
	assert.Less(t, time.Since(start), 2*time.Second)
}
