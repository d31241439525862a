// Package repository defines the store contract the adapter talks to and the
// stores that implement it: an in-memory store, a JSON-file store, a bun (SQL)
// store and a DynamoDB store.
//
// Rows are plain records keyed by field name. Filters arrive already translated
// into the native filter form of package filter. Every store orders rows
// stably, with insertion order as the tie-breaker, so page-based reads are
// deterministic.
package repository
