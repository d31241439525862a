// Package types holds the shared value types of the adapter: where clauses and
// their operator/connector enums, sort and page requests, compiled SQL filters,
// and JSON list column types.
package types
