package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// timeLayout is fixed width so that stored timestamps compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dbFile is the database file name inside the data directory.
const dbFile = "digest.db"

// archiveKeep is how many digests per profile the archive retains.
const archiveKeep = 30

// Store is a SQLite-based storage that provides the history store and
// run lock through wrapper types.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-digest/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-digest", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// Open database with WAL mode so a reader never blocks the running digest
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// HistoryStore returns a HistoryStore interface backed by this store.
func (s *Store) HistoryStore() driven.HistoryStore {
	return &historyStore{store: s}
}

// DigestArchive returns a DigestArchive interface backed by this store.
func (s *Store) DigestArchive() driven.DigestArchive {
	return &digestArchive{store: s}
}

// RunLock returns a RunLock interface backed by this store.
func (s *Store) RunLock() driven.RunLock {
	return &runLock{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_delivery_history.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
		logger.Debug("sqlite: applied migration %s", name)
	}

	return nil
}

// ==================== History Store ====================

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
}

var _ driven.HistoryStore = (*historyStore)(nil)

// Append records deliveries in one transaction.
func (h *historyStore) Append(ctx context.Context, entries []domain.DeliveryHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := h.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO delivery_history (profile_id, document_id, delivered_at)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing history insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ProfileID == "" || e.DocumentID == "" {
			return fmt.Errorf("%w: history entry needs profile and document", domain.ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx, e.ProfileID, e.DocumentID, formatTime(e.DeliveredAt)); err != nil {
			return fmt.Errorf("inserting history entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history append: %w", err)
	}
	return nil
}

// LastDelivered returns the most recent delivery of a document to a profile.
func (h *historyStore) LastDelivered(ctx context.Context, profileID, documentID string) (time.Time, bool, error) {
	var last sql.NullString
	err := h.store.db.QueryRowContext(ctx, `
		SELECT MAX(delivered_at)
		FROM delivery_history
		WHERE profile_id = ? AND document_id = ?
	`, profileID, documentID).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying last delivery: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	t, err := parseTime(last.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// List returns entries newest first. An empty profileID lists everything.
func (h *historyStore) List(ctx context.Context, profileID string, limit int) ([]domain.DeliveryHistoryEntry, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as no limit
	}

	rows, err := h.store.db.QueryContext(ctx, `
		SELECT profile_id, document_id, delivered_at
		FROM delivery_history
		WHERE ? = '' OR profile_id = ?
		ORDER BY delivered_at DESC, id DESC
		LIMIT ?
	`, profileID, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []domain.DeliveryHistoryEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.DeliveryHistoryEntry
		var at string
		if err := rows.Scan(&e.ProfileID, &e.DocumentID, &at); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if e.DeliveredAt, err = parseTime(at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}

// DeleteBefore removes entries delivered strictly before t.
func (h *historyStore) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := h.store.db.ExecContext(ctx, `
		DELETE FROM delivery_history WHERE delivered_at < ?
	`, formatTime(t))
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned history: %w", err)
	}
	return int(n), nil
}

// ==================== Digest Archive ====================

// digestArchive implements driven.DigestArchive. Payloads are stored as JSON.
type digestArchive struct {
	store *Store
}

var _ driven.DigestArchive = (*digestArchive)(nil)

// Save stores the digest and trims the profile to the newest archiveKeep.
func (a *digestArchive) Save(ctx context.Context, d domain.ArchivedDigest) error {
	if d.ProfileID == "" {
		return fmt.Errorf("%w: archived digest needs a profile", domain.ErrInvalidInput)
	}
	// Errors are interfaces and do not survive JSON.
	d.Payload.Run.Errors = nil
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("encoding digest for %s: %w", d.ProfileID, err)
	}

	tx, err := a.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning archive save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO digest_archive (profile_id, run_id, delivered_at, payload)
		VALUES (?, ?, ?, ?)
	`, d.ProfileID, d.RunID, formatTime(d.DeliveredAt), string(payload)); err != nil {
		return fmt.Errorf("inserting archived digest: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM digest_archive
		WHERE profile_id = ? AND id NOT IN (
			SELECT id FROM digest_archive
			WHERE profile_id = ?
			ORDER BY delivered_at DESC, id DESC
			LIMIT ?
		)
	`, d.ProfileID, d.ProfileID, archiveKeep); err != nil {
		return fmt.Errorf("trimming digest archive: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive save: %w", err)
	}
	return nil
}

// Latest returns the newest digest of a profile.
func (a *digestArchive) Latest(ctx context.Context, profileID string) (domain.ArchivedDigest, error) {
	d := domain.ArchivedDigest{ProfileID: profileID}
	var at, payload string
	err := a.store.db.QueryRowContext(ctx, `
		SELECT run_id, delivered_at, payload
		FROM digest_archive
		WHERE profile_id = ?
		ORDER BY delivered_at DESC, id DESC
		LIMIT 1
	`, profileID).Scan(&d.RunID, &at, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ArchivedDigest{}, fmt.Errorf("%w: no archived digest for %s", domain.ErrNotFound, profileID)
	}
	if err != nil {
		return domain.ArchivedDigest{}, fmt.Errorf("querying digest archive: %w", err)
	}
	if d.DeliveredAt, err = parseTime(at); err != nil {
		return domain.ArchivedDigest{}, err
	}
	if err := json.Unmarshal([]byte(payload), &d.Payload); err != nil {
		return domain.ArchivedDigest{}, fmt.Errorf("decoding archived digest for %s: %w", profileID, err)
	}
	return d, nil
}

// ==================== Run Lock ====================

// runLock implements driven.RunLock with a single-row table.
type runLock struct {
	store *Store
}

var _ driven.RunLock = (*runLock)(nil)

// Acquire takes the lock for owner. The upsert only overwrites a row held by
// the same owner or one older than staleAfter, so the check and the write
// are a single atomic statement.
func (l *runLock) Acquire(ctx context.Context, owner string, staleAfter time.Duration) error {
	if owner == "" {
		return fmt.Errorf("%w: run lock owner is required", domain.ErrInvalidInput)
	}

	now := l.store.now()
	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO run_lock (id, owner, acquired_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner = excluded.owner, acquired_at = excluded.acquired_at
		WHERE run_lock.owner = excluded.owner OR run_lock.acquired_at < ?
	`, owner, formatTime(now), formatTime(now.Add(-staleAfter)))
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if n == 0 {
		return domain.ErrRunInProgress
	}
	return nil
}

// Release frees the lock if owner holds it.
func (l *runLock) Release(ctx context.Context, owner string) error {
	if _, err := l.store.db.ExecContext(ctx, `
		DELETE FROM run_lock WHERE id = 1 AND owner = ?
	`, owner); err != nil {
		return fmt.Errorf("releasing run lock: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
