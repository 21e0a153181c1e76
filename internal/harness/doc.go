// Package harness provides scenario-driven conformance testing for the
// forecast ledger.
//
// A scenario loads CUE spec files, runs ledger steps against them and
// checks the settled table and the persisted session.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/model.cue
//	session_id: scenario-0001
//	steps:
//	  - action: compute
//	    years: 2
//	  - action: set_rule
//	    account: COGS
//	    rule: { type: REFERENCE, ref: Gross }
//	  - action: compute
//	    expect:
//	      error: BUILD_CYCLE
//	assertions:
//	  - type: cell
//	    account: Sales
//	    year: 2001
//	    value: 1100
//	  - type: final_state
//	    table: runs
//	    where: { seq: 1 }
//	    expect: { years: 2 }
//
// # Step Actions
//
//   - compute: Runs Compute with the spec's compute section, overridden by
//     years, base_profit and cash
//   - set_rule: Compiles rule through the CUE rule compiler and replaces
//     the account's rule
//   - clear_balance_changes: Drops every balance & change instruction
//
// A step without expect must succeed. With expect, it must fail with the
// given code: a ledger error code, COMPILE, or ERROR.
//
// # Assertion Types
//
//   - cell: Verifies one displayed (rounded) value
//   - computed_years: Verifies the years settled by the last compute
//   - rows: Verifies table row order, optionally for one statement
//   - final_state: Queries a store table and verifies expected values
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed session ID (from scenario.session_id or a default)
//   - In-memory SQLite database (isolated per scenario)
//
// Every successful compute persists the session and its run, so identical
// scenarios produce identical tables and store rows.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/growth.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
