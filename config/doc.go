// Package config loads the server configuration.
//
// Sources are layered, later ones winning:
//
//  1. Default()
//  2. a .env file (optional unless named explicitly), loaded into the
//     process environment without overriding variables already set
//  3. a TOML file (ragflow-mcp.toml by default; a missing default file is
//     ignored, a missing explicit file is an error)
//  4. environment variables: RAGFLOW_BASE_URL, RAGFLOW_API_KEY and the
//     RAGFLOW_MCP_* family
//  5. command-line flags the user actually set
//
// The result is normalized and validated; a missing base URL or API key is
// reported with ErrMissingBaseURL or ErrMissingAPIKey.
//
// Durations are written as strings in TOML and in the environment:
//
//	[ragflow]
//	base_url = "http://ragflow:9380"
//	request_timeout = "30s"
//
//	[cache]
//	ttl = "5m"
package config
