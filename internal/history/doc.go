// Package history persists the scheduler's append-only lifecycle log.
//
// The in-memory store ring stays the source for status tails; sinks here
// are write-only audit destinations that survive restarts:
//   - "file": append-only JSON Lines
//   - "sqlite": embedded SQLite database
//   - "postgres": shared PostgreSQL table
package history
