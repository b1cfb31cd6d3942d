// Package searchemu provides an embeddable client for the search
// emulator's control plane, document operations, and query engine.
//
// This package follows the same Option-driven construction pattern as
// the lower-level internal packages it wires together, letting callers
// embed the full index/query/indexer lifecycle inside a host process
// without going through the HTTP API.
//
// # Architecture
//
//	┌──────────────────┐
//	│      Client       │  ← this package
//	└─────────┬─────────┘
//	          │
//	   ┌──────┼──────────┬──────────────┐
//	   │      │          │              │
//	┌──▼──┐ ┌─▼────┐ ┌───▼────┐  ┌──────▼─────┐
//	│meta-│ │text- │ │vector- │  │ indexerrun │
//	│data │ │index │ │store   │  │ (+docops,  │
//	│     │ │      │ │        │  │ queryengine)│
//	└─────┘ └──────┘ └────────┘  └────────────┘
//
// # Usage
//
//	client, err := searchemu.NewClient(searchemu.WithDataDirectory("./data"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.CreateIndex(idxSchema); err != nil {
//	    return err
//	}
//	resp, err := client.Search("hotels", queryengine.Request{Search: "spa"})
//
// # Thread Safety
//
// Client is safe for concurrent use; it delegates to the already
// concurrency-safe metadata store, text index, and vector store
// managers.
package searchemu
