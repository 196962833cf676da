// Package store provides SQLite-backed durable storage for short text records.
//
// A Store is a registry of database files under one data directory. Each file
// holds a single table:
//
//	names(id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)
//
// Callers obtain a Handle with Store.Open and issue every operation through it:
//   - Create, List, Update, Delete: single statements against the names table
//   - ExportTo: copy the whole database file to a Destination
//   - ImportFrom: replace the whole database file with the bytes of a Source
//
// # Handles
//
// Several handles may share one open file. ImportFrom swaps the file and
// re-binds the importing handle; every other handle to the same name becomes
// stale and fails with ErrStaleHandle instead of operating on the old file.
//
// # Concurrency
//
// Every operation on a file runs under that file's mutex, so mutations, lists
// and exports never observe each other half-applied. The connection pool is
// limited to one connection per file.
//
// # Database Configuration
//
//   - WAL mode: the log is checkpointed into the main file before export
//   - synchronous=FULL: a returned Create/Update/Delete is on disk
//   - busy_timeout: defaults to 5 seconds
//
// Ids come from AUTOINCREMENT and are never reused after a delete.
package store
