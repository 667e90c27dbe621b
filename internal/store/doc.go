// Package store provides SQLite-backed persistence for programs and
// execution runs.
//
// Tables:
//   - programs: canonical wire JSON keyed by the program content hash
//   - runs: one row per execution (status, error kind, statistics)
//   - run_buffers: output buffer sections of successful runs, as BLOBs
//
// Programs are content-addressed: writing the same program twice is a
// no-op and returns the same hash. Runs are listed in insertion order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
