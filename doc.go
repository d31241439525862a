// Package authbridge adapts an authentication framework's storage calls to
// repositories opened on a DataProvider: it translates where clauses into
// native filters, resolves models to repositories, pages results over
// limit/offset and emits bun entity source for the schema.
package authbridge
