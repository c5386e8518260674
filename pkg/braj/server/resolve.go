package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

const resolveTimeout = 2 * time.Second

// PeerResolver performs reverse lookups. *net.Resolver implements it.
type PeerResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// resolvePeerName returns the first reverse DNS name of the host part of
// remoteAddr.
func resolvePeerName(ctx context.Context, resolver PeerResolver, remoteAddr string) (string, error) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return "", fmt.Errorf("invalid peer address %q: %w", remoteAddr, err)
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	names, err := resolver.LookupAddr(ctx, host)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no names for %s", host)
	}

	return strings.TrimSuffix(names[0], "."), nil
}
