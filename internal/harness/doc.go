// Package harness replays sync scenarios against the engine.
//
// A scenario names a CUE table definition, an optional starting baseline
// and a sequence of batches. Each batch is run through the engine in
// memory; committed batches become the baseline of the next one.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	spec: ../tables/item_price.cue   # relative to the scenario file
//	table: item_price
//	baseline:
//	  header: [Item, Acct, Updated, Price]
//	  rows:
//	    - [A1, "10-100", "2024-01-05", "1.50"]
//	batches:
//	  - name: january
//	    files:
//	      - source: inc_1.xlsx
//	        header: [Item, Acct, Updated, Price]
//	        rows:
//	          - [A1, "10-100", "2024-02-01", "1.75"]
//	    expect:
//	      counts: { updated: 1 }
//	      rows: 1
//	      changes:
//	        - { key: "A1|10-100", field: Price, old: "1.5", new: "1.75" }
//	final:
//	  rows: 1
//	  contains:
//	    - key: "A1|10-100"
//	      expect: { Price: "1.75" }
//
// Empty cells are blank. Keys are written as their display form, with
// components joined by "|" and nulls shown as <null>. Expectations are
// subset matches: only what a scenario names is checked.
//
// # Deterministic Testing
//
// Run ids come from a fixed generator ("run-1", "run-2", ...) and the
// engine runs single-threaded, so RunWithGolden snapshots are stable.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/smart_sync.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
