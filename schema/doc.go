// Package schema describes the authentication framework's storage schema:
// models, their fields and references. It ships the framework's core tables,
// reads YAML descriptions, and converts store-native values back to the
// declared field types.
package schema
