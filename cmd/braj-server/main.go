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

	"github.com/tbxark/braj/pkg/braj/common"
	"github.com/tbxark/braj/pkg/braj/server"
	"github.com/tbxark/braj/pkg/braj/version"
)

type options struct {
	configPath   string
	logLevel     string
	poolSize     int
	admission    string
	pollInterval time.Duration
	drainTimeout time.Duration
	resolve      bool
	showVersion  bool
}

func main() {
	flags, opts := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		flags.Usage()
		os.Exit(1)
	}

	if opts.showVersion {
		fmt.Println(version.GetFullVersion("braj-server"))
		os.Exit(0)
	}

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(1)
	}

	cfg, err := buildConfig(flags, opts, flags.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, err := common.NewLoggerFromString(opts.logLevel)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("braj server starting",
		zap.String("version", version.GetVersion()),
		zap.String("listen", cfg.ListenAddr),
		zap.Int("pool_size", cfg.PoolSize),
		zap.String("admission", string(cfg.Admission)),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("drain_timeout", cfg.DrainTimeout),
		zap.Bool("resolve_peers", cfg.ResolvePeers))

	if cfg.Admission == server.AdmissionLiteral && cfg.PollInterval == 0 {
		logger.Warn("Literal admission with zero poll interval spins a CPU while the pool is full")
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		if err := <-errChan; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server error during shutdown", zap.Error(err))
			_ = logger.Sync()
			os.Exit(1)
		}
	case err := <-errChan:
		logger.Error("Server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("braj server stopped")
}

func newFlagSet() (*pflag.FlagSet, *options) {
	opts := &options{}
	flags := pflag.NewFlagSet("braj-server", pflag.ContinueOnError)

	flags.StringVar(&opts.configPath, "config", "", "YAML file with server settings (the listen address always comes from <port>)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.IntVar(&opts.poolSize, "pool-size", server.DefaultPoolSize, "Maximum number of concurrent conversations")
	flags.StringVar(&opts.admission, "admission", string(server.AdmissionStrict), "Admission mode: strict (semaphore) or literal (racy counter check)")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 0, "Delay between admission checks in literal mode (0 spins)")
	flags.DurationVar(&opts.drainTimeout, "drain-timeout", server.DefaultDrainTimeout, "Time to let conversations finish on shutdown before closing them")
	flags.BoolVar(&opts.resolve, "resolve", true, "Log the reverse DNS name of each peer")
	flags.BoolVarP(&opts.showVersion, "version", "v", false, "Show version information")

	flags.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "usage: %s [flags] <port>\n", flags.Name())
		flags.PrintDefaults()
	}

	return flags, opts
}

// buildConfig layers defaults, the optional config file and explicitly set
// flags, in that order.
func buildConfig(flags *pflag.FlagSet, opts *options, portArg string) (*server.Config, error) {
	port, err := common.ParsePort(portArg)
	if err != nil {
		return nil, err
	}

	cfg := server.DefaultConfig(port)

	if opts.configPath != "" {
		if err := server.LoadConfig(opts.configPath, cfg); err != nil {
			return nil, err
		}
		cfg.ListenAddr = server.ListenAddr(port)
	}

	if flags.Changed("pool-size") {
		cfg.PoolSize = opts.poolSize
	}
	if flags.Changed("admission") {
		cfg.Admission = server.AdmissionMode(opts.admission)
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = opts.pollInterval
	}
	if flags.Changed("drain-timeout") {
		cfg.DrainTimeout = opts.drainTimeout
	}
	if flags.Changed("resolve") {
		cfg.ResolvePeers = opts.resolve
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
