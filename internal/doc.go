// Package internal documents the CultureRadar server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, and routing
// - domain: business logic and domain models
// - storage: database access and repositories (pgx + Postgres)
// - ingest: external source clients and the scheduled ingestion pass
// - auth, cache, config, metrics: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
