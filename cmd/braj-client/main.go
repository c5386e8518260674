package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tbxark/braj/pkg/braj/client"
	"github.com/tbxark/braj/pkg/braj/common"
	"github.com/tbxark/braj/pkg/braj/version"
)

func main() {
	logger, err := common.NewDefaultLogger()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var (
		serverAddr   string
		message      string
		count        int
		concurrency  int
		dialTimeout  time.Duration
		replyTimeout time.Duration
		retries      int
		showVersion  bool
	)

	pflag.StringVar(&serverAddr, "server", "", "Server address host:port (required)")
	pflag.StringVar(&message, "message", "hello\n", "Payload sent for each exchange")
	pflag.IntVar(&count, "count", 1, "Messages per connection")
	pflag.IntVar(&concurrency, "concurrency", 1, "Number of simultaneous connections")
	pflag.DurationVar(&dialTimeout, "dial-timeout", client.DefaultDialTimeout, "Timeout for each dial attempt")
	pflag.DurationVar(&replyTimeout, "timeout", client.DefaultReplyTimeout, "Timeout waiting for each reply")
	pflag.IntVar(&retries, "retries", client.DefaultMaxRetries, "Dial retries with exponential backoff")
	pflag.BoolVarP(&showVersion, "version", "v", false, "Show version information")

	pflag.Parse()

	if showVersion {
		fmt.Println(version.GetFullVersion("braj-client"))
		os.Exit(0)
	}

	if serverAddr == "" {
		logger.Fatal("--server is required")
	}

	cfg := &client.Config{
		ServerAddr:   serverAddr,
		DialTimeout:  dialTimeout,
		ReplyTimeout: replyTimeout,
		MaxRetries:   retries,
	}

	c, err := client.New(cfg, logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, stopping", zap.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("braj client starting",
		zap.String("server", serverAddr),
		zap.Int("concurrency", concurrency),
		zap.Int("count", count))

	result, err := c.RunLoad(ctx, concurrency, count, []byte(message))

	logger.Info("Run finished",
		zap.Int("connections", result.Connections),
		zap.Int("exchanges", result.Exchanges),
		zap.Duration("elapsed", result.Elapsed))

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Client error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
