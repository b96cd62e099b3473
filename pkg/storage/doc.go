// Package storage defines the persistence contracts of the jot service
// and the sentinel errors shared across store implementations.
//
// Storage adapters (memory, postgres) implement the Store interface.
// Uniqueness races (duplicate username, duplicate active alias per owner)
// are surfaced as ErrConflict so the layers above can map them to a
// request-level conflict instead of a crash.
package storage
