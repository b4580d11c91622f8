package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Factory builds an unconnected adapter.
type Factory func(*slog.Logger) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an adapter available under name, which is matched case
// insensitively. It panics if name is taken or factory is nil. Adapter
// packages call it from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("adapter: Register factory is nil for " + name)
	}
	key := strings.ToLower(name)
	if _, dup := registry[key]; dup {
		panic("adapter: Register called twice for " + name)
	}
	registry[key] = factory
}

// Get retrieves an adapter factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// NewAdapter creates an unconnected adapter of cfg.Type. A nil logger
// discards.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// NewPeerHost creates an unconnected adapter of cfg.Type that can hold
// peer tables.
func NewPeerHost(cfg core.AdapterConfig, logger *slog.Logger) (PeerHost, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	host, ok := a.(PeerHost)
	if !ok {
		return nil, fmt.Errorf("adapter %s cannot hold peer tables", a.Name())
	}
	return host, nil
}

// ListAdapters returns all registered adapter names (sorted).
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListPeerHosts returns the registered adapter names whose adapters can
// hold peer tables (sorted).
func ListPeerHosts() []string {
	var names []string
	for _, name := range ListAdapters() {
		factory, _ := Get(name)
		if _, ok := factory(nil).(PeerHost); ok {
			names = append(names, name)
		}
	}
	return names
}

// IsRegistered checks if an adapter type is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: Check target.type and peers in leapfuzz.yaml", e.Type, e.Available)
}
