// Package adapter provides the registry of execution engines leapfuzz can
// drive, either as the server under test or as a peer holding copies of
// its tables.
//
// This package contains the public contract that all database adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
//
// Note: Core types (Config, Rows, Adapter, PeerHost) are defined in pkg/core.
// This package re-exports them via type aliases.
package adapter

import (
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Type aliases - these types are defined in pkg/core.
type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows

	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// PeerHost is an alias for core.PeerHost.
	PeerHost = core.PeerHost
)
