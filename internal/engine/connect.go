package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Connections are the open adapters of a run.
type Connections struct {
	Target core.Adapter
	Peers  map[sqltree.PeerKind]core.PeerHost
}

// Close closes every adapter, returning the first error.
func (c *Connections) Close() error {
	var first error
	if c.Target != nil {
		first = c.Target.Close()
	}
	for _, kind := range c.kinds() {
		if err := c.Peers[kind].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Connections) kinds() []sqltree.PeerKind {
	kinds := make([]sqltree.PeerKind, 0, len(c.Peers))
	for k := range c.Peers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// PeerKinds returns the connected peer kinds in ascending order.
func (c *Connections) PeerKinds() []sqltree.PeerKind {
	return c.kinds()
}

// Connect opens the target and every peer concurrently. peers is keyed by
// peer kind name. On any failure the adapters already opened are closed.
func Connect(ctx context.Context, target core.AdapterConfig, peers map[string]core.AdapterConfig,
	logger *slog.Logger) (*Connections, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conns := &Connections{Peers: make(map[sqltree.PeerKind]core.PeerHost, len(peers))}

	tgt, err := adapter.NewAdapter(target, logger)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	hosts := make(map[sqltree.PeerKind]struct {
		host core.PeerHost
		cfg  core.AdapterConfig
	}, len(peers))
	for name, cfg := range peers {
		kind, ok := sqltree.ParsePeerKind(name)
		if !ok {
			return nil, errors.Newf("unknown peer %q", name)
		}
		host, err := adapter.NewPeerHost(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", name, err)
		}
		hosts[kind] = struct {
			host core.PeerHost
			cfg  core.AdapterConfig
		}{host, cfg}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := tgt.Connect(gctx, target); err != nil {
			return fmt.Errorf("target: %w", err)
		}
		mu.Lock()
		conns.Target = tgt
		mu.Unlock()
		return nil
	})
	for kind, h := range hosts {
		g.Go(func() error {
			if err := h.host.Connect(gctx, h.cfg); err != nil {
				return fmt.Errorf("peer %s: %w", kind, err)
			}
			mu.Lock()
			conns.Peers[kind] = h.host
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = conns.Close()
		return nil, err
	}

	logger.Info("connected",
		slog.String("target", tgt.Name()),
		slog.Int("peers", len(conns.Peers)))
	return conns, nil
}
