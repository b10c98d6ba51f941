// Package pg wires PostgreSQL connectivity: pool construction with
// startup retries, schema migrations via goose, and a health check
// closure for readiness probes. Query-level error helpers translate
// driver errors into the categories callers branch on.
package pg
