// Package core defines the shared language of the LeapML system.
//
// This package contains:
//   - The in-memory table model (Table, Column, Kind)
//   - Domain entities (Dataset, DatasetVersion, Experiment)
//   - Service interfaces (Adapter, Store)
//   - The error taxonomy shared by every layer
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
