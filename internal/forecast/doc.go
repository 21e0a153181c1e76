// Package forecast implements the sequential ledger: a forecasting session
// that imports actual snapshots, compiles rules into a node arena one fiscal
// year at a time, and settles each year before the next one is built.
//
// COMPUTE PIPELINE:
//
// For every forecast year, strictly in increasing order:
//  1. Resolve every ruled account through the compiler's Builder
//  2. Attach cash: prior-year cash + base profit of the year
//  3. Evaluate ruled accounts and cash in topological order
//  4. Write values back into the settled table
//  5. Apply balance & change instructions against the settled table
//  6. Seal the year so the next year's prior-period references read settled values
//
// Validation and cash-account checks run before any year is touched, so a
// rejected Compute leaves the table exactly as it was.
//
// A Ledger is not safe for concurrent use; callers serialize access.
package forecast
