// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool pools SQLite connections for gatehouse's local
// databases (today: the decision journal).
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool with one fixed set
// of pragmas so every database in the process behaves the same:
//
//   - journal_mode=WAL — readers never block the writer. The journal
//     appends from request handlers while the status endpoint,
//     exports, and the retention loop read concurrently.
//   - synchronous=NORMAL — commits survive a process crash. An OS
//     crash can lose the tail of the WAL, which is acceptable for an
//     observability record that is never the source of truth.
//   - busy_timeout=5000 — wait up to five seconds for the write lock
//     rather than failing with SQLITE_BUSY.
//   - temp_store=MEMORY — temporary structures stay off disk.
//
// The package deliberately stops there. Callers write SQL against the
// borrowed *sqlite.Conn with sqlitex helpers; there is no query
// builder and no ORM. Schema creation belongs to the caller, run on a
// taken connection right after Open:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/gatehouse/journal.db",
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
//	    return err
//	}
package sqlitepool
