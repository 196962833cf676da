// Package harness runs YAML scenarios against a real namedb store.
//
// Each scenario gets a fresh data directory. Record operations go through
// dispatch.Client, so steps marked async exercise the same issue-order
// guarantee a UI caller relies on. Operation IDs come from a sequence
// generator, which keeps traces byte-identical across runs and lets them be
// compared against golden files in testdata/golden.
//
// A scenario looks like:
//
//	name: basic_crud
//	description: create, rename and delete records
//	database: t.db
//	steps:
//	  - op: create
//	    name: Buy milk
//	    expect: {ok: true, id: 1}
//	  - op: delete
//	    id: 7
//	    expect: {changed: false}
//	assertions:
//	  - type: final_records
//	    records: [{id: 1, name: Buy milk}]
//
// Besides the record operations (create, list, update, delete, export,
// import, close) a step may open a second handle with "open" or write a raw
// file with "write_file". File paths are relative to the scenario's scratch
// directory and never appear resolved in the trace.
package harness
