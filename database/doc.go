// Package database provides connection management, schema creation from
// authentication table descriptions, migration tracking, foreign keys,
// configuration, logging, query hooks and health checks built on top of Bun.
package database
