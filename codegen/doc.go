// Package codegen emits Go source for bun entity structs from an
// authentication schema description.
package codegen
