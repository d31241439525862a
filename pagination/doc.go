// Package pagination reads a limit/offset window from stores whose native
// paging is limit plus page number.
//
// Reads without an offset go straight to the store. With an offset, SQL
// stores run a hand-built SELECT with LIMIT and OFFSET; other stores are read
// page by page and the window is cut out in process.
package pagination
