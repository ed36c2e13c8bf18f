// Package triples persists the (source type, relationship type, target type)
// allow-list that the integrity checker consults.
//
// A Store loads the whole allow-list as an immutable graph.TripleSet and adds
// triples atomically. Four backends are provided:
//
//   - FileStore: a YAML document on local disk
//   - RedisStore: a Redis set, shared between hosts
//   - EtcdStore: one key per triple under an etcd prefix
//   - SQLiteStore: a table in a SQLite database
//
// A Learner sits in front of a Store and gives concurrent runs the snapshot
// plus proposal discipline: each run reads one snapshot at start and proposes
// the triples it learned at the end, serialized through the Learner.
package triples
