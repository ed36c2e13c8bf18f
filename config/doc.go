// Package config loads orbit's settings from a YAML file and the
// environment.
//
// Every key can be overridden by an ORBIT_ variable named after its path,
// e.g. ORBIT_NEO4J_URI for neo4j.uri. The UNIFIED_INGEST_* names and their
// unprefixed forms (NEO4J_URI, LLM_API_KEY, ...) are honored as aliases.
package config
