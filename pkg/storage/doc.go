// Package storage persists users and regulated records in PostgreSQL or SQLite.
//
// # Overview
//
// Store is a single database/sql implementation of RecordStore and UserStore.
// Record kinds are described by pkg/records schemas, so one set of queries
// serves every kind; the Dialect interface covers placeholder syntax and key
// DDL. lib/pq and mattn/go-sqlite3 are both registered.
//
//	store, err := storage.Open(ctx, storage.Config{Driver: "postgres", URL: url})
//	if _, err := store.Migrate(ctx); err != nil { ... }
//
//	rec, err := store.Create(ctx, rbac.KindVehicle, values, identity.ID)
//
// # Errors
//
// Driver errors are mapped onto sentinels checked with errors.Is:
//
//   - ErrNotFound: no row with that id
//   - ErrConflict: unique violation, or deleting a row others still reference
//   - ErrInvalidReference: a foreign key on a write points at a missing row
//
// Context cancellation and deadlines are returned wrapped, unmapped.
//
// # Timestamps
//
// createdAt, updatedAt and issuedAt are stamped in Go (UTC) rather than by
// column defaults so both dialects behave the same.
package storage
