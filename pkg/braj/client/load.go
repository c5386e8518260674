package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoadResult summarizes a RunLoad call.
type LoadResult struct {
	Connections int           // Connections that completed all exchanges
	Exchanges   int           // Acknowledged messages across all connections
	Elapsed     time.Duration // Wall time of the run
}

// RunLoad opens concurrency connections and performs count exchanges of
// message on each. The first failure cancels the remaining connections.
func (c *Client) RunLoad(ctx context.Context, concurrency, count int, message []byte) (LoadResult, error) {
	if concurrency < 1 || count < 1 {
		return LoadResult{}, fmt.Errorf("concurrency and count must be positive")
	}

	start := time.Now()
	var connections, exchanges atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		worker := i
		g.Go(func() error {
			conn, err := c.Dial(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = conn.Close()
			}()

			for j := 0; j < count; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := conn.Exchange(message); err != nil {
					return fmt.Errorf("connection %d, message %d: %w", worker, j+1, err)
				}
				exchanges.Add(1)
			}

			connections.Add(1)
			c.Logger.Debug("Connection finished",
				zap.Int("worker", worker),
				zap.Int("exchanges", count))
			return nil
		})
	}

	err := g.Wait()
	result := LoadResult{
		Connections: int(connections.Load()),
		Exchanges:   int(exchanges.Load()),
		Elapsed:     time.Since(start),
	}
	return result, err
}
