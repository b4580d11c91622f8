// Package core defines the shared language of the leapfuzz system.
//
// This package contains:
//   - Service interfaces (Adapter, PeerHost, Store)
//   - Connection configuration (AdapterConfig)
//   - Execution results (Result)
//   - Persisted entities (Run, Finding)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
