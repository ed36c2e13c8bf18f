// Package graphstore loads ingestion results into a property graph.
//
// Loads are idempotent: nodes are merged by id and relationships by their
// id (or endpoint and type signature when they have none), so loading the
// same Result twice leaves the graph unchanged. Aborted runs are never
// loaded.
package graphstore
