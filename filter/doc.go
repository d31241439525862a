// Package filter translates the authentication framework's where clauses into
// the adapter's native filter, a nested map in the style of document-store
// query objects:
//
//	{"email": "a@b.c", "age": {"$gt": 18}, "$or": {"name": {"$startsWith": "A"}}}
//
// Entries outside "$or" are ANDed, entries inside "$or" are ORed with each
// other, and the two groups are ANDed. A native filter can be evaluated in
// process with Match, or compiled into a bun WHERE fragment with ToSQL.
package filter
