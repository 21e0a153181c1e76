// Package ir provides the shared representation types for the forecasting engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the rule, node and
// ledger vocabulary in one foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Rule is a closed sum type; dispatch goes through RuleVisitor so that an
//     unhandled variant is a compile error, not a runtime default
//   - Graph nodes are addressed by opaque NodeID values, never pointers
//   - Ordered collections (RuleSet, Snapshot) preserve declaration order so
//     that compilation order and table row order are deterministic
//   - All JSON tags use snake_case
package ir
