// Package ir provides the foundational types for Yoink: stream types,
// runtime tokens, and the dataflow graph representation.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// IR the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float payloads anywhere - Singleton values are string/int64/bool
//   - Types are immutable and structurally compared; there is no subtyping
//   - Graphs are append-only during construction and frozen afterwards
//   - A TypedGraph is produced only by the checker and never mutated
package ir
