// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/gatehouse/lib/clock"
	"github.com/bureau-foundation/gatehouse/lib/sqlitepool"
)

// DefaultRetention is how long journal rows are kept before the
// retention loop prunes them.
const DefaultRetention = 7 * 24 * time.Hour

// retentionSweepInterval is how often the retention loop wakes. Rows
// may outlive the retention period by up to one interval.
const retentionSweepInterval = time.Hour

// Operations recorded for credential events.
const (
	OpIssue  = "issue"
	OpRotate = "rotate"
)

// OutcomeOK marks a successful credential operation. Failures record
// the error code in its place.
const OutcomeOK = "ok"

// schema creates the journal tables. Timestamps are Unix nanoseconds;
// the ts indexes serve both the retention delete and the export's
// ordered scan.
const schema = `
CREATE TABLE IF NOT EXISTS admission (
	ts              INTEGER NOT NULL,
	route           TEXT NOT NULL,
	policy          TEXT NOT NULL,
	identity_digest TEXT NOT NULL,
	admitted        INTEGER NOT NULL,
	reason          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admission_ts ON admission(ts);

CREATE TABLE IF NOT EXISTS credential (
	ts             INTEGER NOT NULL,
	op             TEXT NOT NULL,
	subject_digest TEXT NOT NULL,
	kind           TEXT NOT NULL,
	expires_at     INTEGER NOT NULL,
	outcome        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credential_ts ON credential(ts);
`

// AdmissionEntry is one admission decision as reported by the
// gateway. Identity is the raw rate-limit identity; RecordAdmission
// digests it before anything touches the database.
type AdmissionEntry struct {
	Time     time.Time
	Route    string
	Policy   string
	Identity string
	Admitted bool
	Reason   string
}

// CredentialEntry is one credential lifecycle event. Subject is raw
// and digested before storage. ExpiresAt is the minted credential's
// expiry; zero for failed operations.
type CredentialEntry struct {
	Time      time.Time
	Operation string
	Subject   string
	Kind      string
	ExpiresAt time.Time
	Outcome   string
}

// Counts reports journal table sizes for the admin status endpoint.
type Counts struct {
	AdmissionRows  int64
	CredentialRows int64
}

// Store is the SQLite-backed decision journal. Safe for concurrent
// use; writes from request handlers interleave through the pool.
type Store struct {
	pool      *sqlitepool.Pool
	clock     clock.Clock
	logger    *slog.Logger
	retention time.Duration
}

// StoreConfig holds the parameters for opening a journal store.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the connection pool size. Zero takes the pool
	// default.
	PoolSize int

	// Retention is how long rows are kept. Zero takes
	// DefaultRetention.
	Retention time.Duration

	// Clock drives retention decisions.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Open creates the journal store, creating the database file and
// schema if they do not exist.
func Open(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("journal: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("journal: Logger is required")
	}

	retention := cfg.Retention
	if retention == 0 {
		retention = DefaultRetention
	}
	if retention < 0 {
		return nil, fmt.Errorf("journal: negative retention %v", retention)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	store := &Store{
		pool:      pool,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		retention: retention,
	}

	if err := store.createSchema(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: creating schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) createSchema() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return sqlitex.ExecuteScript(conn, schema, nil)
}

// RecordAdmission journals one admission decision. The identity is
// digested; the raw value never reaches the database.
func (s *Store) RecordAdmission(ctx context.Context, entry AdmissionEntry) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: record admission: %w", err)
	}
	defer s.pool.Put(conn)

	admitted := 0
	if entry.Admitted {
		admitted = 1
	}

	err = sqlitex.Execute(conn, `INSERT INTO admission
		(ts, route, policy, identity_digest, admitted, reason)
		VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			entry.Time.UnixNano(),
			entry.Route,
			entry.Policy,
			IdentityDigest(entry.Identity),
			admitted,
			entry.Reason,
		},
	})
	if err != nil {
		return fmt.Errorf("journal: record admission: %w", err)
	}
	return nil
}

// RecordCredential journals one credential lifecycle event. The
// subject is digested; the raw value never reaches the database.
func (s *Store) RecordCredential(ctx context.Context, entry CredentialEntry) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: record credential: %w", err)
	}
	defer s.pool.Put(conn)

	var expiresAt int64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.UnixNano()
	}

	err = sqlitex.Execute(conn, `INSERT INTO credential
		(ts, op, subject_digest, kind, expires_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			entry.Time.UnixNano(),
			entry.Operation,
			IdentityDigest(entry.Subject),
			entry.Kind,
			expiresAt,
			entry.Outcome,
		},
	})
	if err != nil {
		return fmt.Errorf("journal: record credential: %w", err)
	}
	return nil
}

// Counts returns the journal table sizes.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("journal: counts: %w", err)
	}
	defer s.pool.Put(conn)

	var counts Counts
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM admission", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			counts.AdmissionRows = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return Counts{}, fmt.Errorf("journal: counting admission rows: %w", err)
	}
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM credential", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			counts.CredentialRows = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return Counts{}, fmt.Errorf("journal: counting credential rows: %w", err)
	}
	return counts, nil
}

// RunRetention prunes rows older than the configured retention on a
// ticker until ctx is cancelled. Sweep failures are logged and the
// loop keeps going.
func (s *Store) RunRetention(ctx context.Context) {
	ticker := s.clock.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := s.deleteExpired(ctx, now)
			if err != nil {
				s.logger.Warn("journal retention sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Debug("journal retention pruned rows", "rows", removed)
			}
		}
	}
}

// deleteExpired removes rows past the retention cutoff from both
// tables and reports how many went.
func (s *Store) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal: retention: %w", err)
	}
	defer s.pool.Put(conn)

	cutoff := now.Add(-s.retention).UnixNano()

	var removed int64
	for _, table := range []string{"admission", "credential"} {
		err := sqlitex.Execute(conn, "DELETE FROM "+table+" WHERE ts < ?", &sqlitex.ExecOptions{
			Args: []any{cutoff},
		})
		if err != nil {
			return removed, fmt.Errorf("journal: pruning %s: %w", table, err)
		}
		removed += int64(conn.Changes())
	}
	return removed, nil
}
