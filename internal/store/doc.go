// Package store provides SQLite-backed storage for forecast sessions.
//
// A session is one ledger's settled table plus the account catalog that
// addresses it:
//   - Sessions: one row per ledger, ordered by a logical seq
//   - Accounts: display order and statement of every account
//   - Cells: settled values keyed by cell key
//   - Runs: rule set hash and compute settings of each compute
//
// # Critical Patterns
//
// Logical ordering
//   - Sessions are ordered by seq INTEGER, NEVER timestamps
//   - Accounts by position, cells by (year, account position)
//
// Deterministic query results
//   - Every query has an ORDER BY; ties break with COLLATE BINARY
//
// Idempotent writes
//   - WriteSession replaces a session's accounts and cells in one transaction
//   - WriteRun ignores an identical run (same hash and settings)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Rule sets are stored as canonical JSON (ir.MarshalCanonical) and hashed
// with ir.RuleSetHash.
package store
