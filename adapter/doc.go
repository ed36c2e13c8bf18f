// Package adapter isolates source-specific fetch and normalize logic from the
// ingestion pipeline.
//
// An Adapter turns a location (a file path or an http(s) URL) into raw bytes
// and then into an ordered list of plain attribute maps. Adapters never
// validate: schema and integrity checks are centralized in the pipeline.
//
// Two adapters ship with orbit:
//
//   - attack: MITRE ATT&CK STIX 2.x bundles. Normalize returns the bundle's
//     "objects" array unchanged and in order.
//   - d3fend: the D3FEND ontology in JSON-LD. Normalize flattens "@graph" into
//     technique, tactic and digital-artifact nodes plus the relationships
//     between them.
//
// Adapters are looked up by name through a Registry:
//
//	reg := adapter.NewRegistry(adapter.NewAttack(), adapter.NewD3FEND())
//	a, err := reg.Get("attack")
//	if err != nil {
//		// err matches orbit.ErrUnknownSource and lists the available sources
//	}
package adapter
