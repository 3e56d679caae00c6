// Package registry exposes the RAGFlow retrieval tools as an MCP server.
//
// Registry combines toolfoundation/model tool definitions with the MCP go-sdk
// server and the ragflow, metadata, retrieval and search packages. Tools are
// registered at construction; the backend client and its caches are built on
// the first tool call that needs them.
//
// Built-in tools:
//   - search_documents (also ragflow_retrieval): retrieval with enrichment
//   - list_datasets: datasets visible to the API key
//   - health_check: backend reachability probe
//   - find_documents: document lookup by name, type or location
//
// Example usage:
//
//	cfg, err := config.Load(config.LoadOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg, err := registry.New(registry.Config{App: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
//
//	reg.ServeStdio(ctx)
package registry
