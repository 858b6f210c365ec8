// Package engine finds compositions of catalog functions.
//
// # Search
//
// Search runs a uniform-cost search backwards from the goal type over the
// functions that produce it. Every path that reaches the source within the
// cost ceiling is returned, cheapest first; ties keep insertion order. A
// node is re-expanded only when reached more cheaply than before, so cyclic
// catalogs terminate, and MaxSteps bounds the total work.
//
//	results := engine.Search(cat, "Product", "CO2", engine.DefaultSearchOptions())
//	for _, r := range results {
//		fmt.Println(r.Cost, r.Path)
//	}
//
// An empty result means no composition exists; it is not an error. Functions
// whose declared arity does not match their product-typed domain are skipped.
//
// # Graph analysis
//
// GraphBuilder views the catalog as a graph with types as nodes and
// functions as edges. The Graph reports cycles, source and sink types, and
// renders as Graphviz DOT with an optional path highlighted.
//
// # Errors
//
// Error is the classified error used across typesynth. Each carries an
// ErrorClass (permanent, transient, degraded) and a stable Code such as
// PARSE_ERROR or DIMENSION_MISMATCH, and matches the sentinel errors
// (ErrParse, ErrNotFound, ...) with errors.Is.
package engine
