// Package graph holds the data model shared by every ingestion stage:
// normalized objects, the typed nodes and edges they validate into, type
// triples and the immutable allow-list of triples.
//
// Objects are plain attribute maps exactly as an adapter normalized them.
// Nodes and edges are typed views over those maps that keep the original
// attributes in Properties so nothing from the source is lost on load.
package graph
