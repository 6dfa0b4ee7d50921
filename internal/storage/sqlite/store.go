// Package sqlite provides the SQLite implementation of the Resonance storage
// interfaces. All lifecycle mutations are single UPDATE statements so that the
// database serialises concurrent decay and reinforcement.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// Compile-time interface checks.
var (
	_ storage.FeelingStore  = (*Store)(nil)
	_ storage.SamplingStore = (*Store)(nil)
	_ storage.EmotionStore  = (*Store)(nil)
	_ storage.TraitStore    = (*Store)(nil)
	_ storage.EntityStore   = (*Store)(nil)
)

// Store implements the record, lexicon and trait stores on one SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite store with WAL self-healing.
// If the initial open fails due to stale WAL files (left behind by a crashed
// process), it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func NewStore(dsn string) (*Store, error) {
	store, err := openStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// openStore opens a SQLite database, configures WAL mode, and creates the schema.
func openStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serialises writes and keeps an in-memory database shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// GetDB returns the underlying database handle, used to share it with the
// vector index.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

const feelingColumns = `
	id, text, label, intensity, pillar, weight, tags,
	charge, strength, sit_count, access_count,
	predecessor_id, resolution_id, resolution_note, entity,
	created_at, last_accessed_at, resolved_at`

// Insert stores a new feeling.
func (s *Store) Insert(ctx context.Context, f *types.Feeling) error {
	if f == nil {
		return storage.ErrInvalidInput
	}
	if f.ID == "" {
		return fmt.Errorf("%w: feeling ID is required", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(f.Text) == "" {
		return fmt.Errorf("%w: feeling text is required", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(f.Label) == "" {
		return fmt.Errorf("%w: feeling label is required", storage.ErrInvalidInput)
	}

	if f.PredecessorID != "" {
		ok, err := s.Exists(ctx, f.PredecessorID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: predecessor %s", storage.ErrNotFound, f.PredecessorID)
		}
	}

	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.Charge == "" {
		f.Charge = types.ChargeFresh
	}
	if f.Weight == "" {
		f.Weight = types.WeightMedium
	}
	f.Strength = types.ClampStrength(f.Strength)

	var tagsJSON []byte
	if len(f.Tags) > 0 {
		var err error
		tagsJSON, err = json.Marshal(f.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
	}

	query := `INSERT INTO feelings (` + feelingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.Text, f.Label,
		nullableString(string(f.Intensity)), nullableString(string(f.Pillar)), string(f.Weight),
		nullableBytes(tagsJSON),
		string(f.Charge), f.Strength, f.SitCount, f.AccessCount,
		nullableString(f.PredecessorID), nullableString(f.ResolutionID),
		nullableString(f.ResolutionNote), nullableString(f.Entity),
		f.CreatedAt, nullableTime(f.LastAccessedAt), nullableTime(f.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert feeling: %w", err)
	}
	return nil
}

// Get retrieves a feeling by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.Feeling, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: feeling ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+feelingColumns+` FROM feelings WHERE id = ?`, id)
	f, err := scanFeeling(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get feeling: %w", err)
	}
	return f, nil
}

// Exists reports whether a feeling with the given ID is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feelings WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to check existence: %w", err)
	}
	return count > 0, nil
}

// Decay applies one decay cycle inside a transaction.
func (s *Store) Decay(ctx context.Context, factors storage.DecayFactors) (storage.DecayResult, error) {
	var res storage.DecayResult
	if err := factors.Validate(); err != nil {
		return res, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("sqlite: failed to begin decay: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE feelings
		SET strength = MAX(?, strength * CASE weight
			WHEN 'heavy' THEN ?
			WHEN 'medium' THEN ?
			ELSE ?
		END)
		WHERE charge != 'metabolized'`,
		types.StrengthFloor, factors.Heavy, factors.Medium, factors.Light)
	if err != nil {
		return res, fmt.Errorf("sqlite: failed to decay strengths: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	res.Decayed = int(n)

	result, err = tx.ExecContext(ctx, `
		UPDATE feelings
		SET charge = 'cool'
		WHERE charge IN ('fresh', 'warm') AND strength < ?`, factors.CoolBelow)
	if err != nil {
		return res, fmt.Errorf("sqlite: failed to cool feelings: %w", err)
	}
	n, err = result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	res.Cooled = int(n)

	if err := tx.Commit(); err != nil {
		return storage.DecayResult{}, fmt.Errorf("sqlite: failed to commit decay: %w", err)
	}
	return res, nil
}

// Reinforce raises strength by delta and records the access.
func (s *Store) Reinforce(ctx context.Context, id string, delta float64) error {
	if id == "" {
		return fmt.Errorf("%w: feeling ID is required", storage.ErrInvalidInput)
	}
	if delta < 0 {
		return fmt.Errorf("%w: reinforcement delta must be non-negative", storage.ErrInvalidInput)
	}

	query := `
		UPDATE feelings
		SET strength = CASE WHEN charge = 'metabolized' THEN strength ELSE MIN(?, strength + ?) END,
		    access_count = access_count + 1,
		    last_accessed_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, types.StrengthCeiling, delta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to reinforce feeling: %w", err)
	}
	return requireAffected(result)
}

// Sit records an explicit engagement and advances the charge.
func (s *Store) Sit(ctx context.Context, id string) (*types.Feeling, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: feeling ID is required", storage.ErrInvalidInput)
	}

	// The CASE reads the pre-update sit_count, so 0 means this is the first sit.
	query := `
		UPDATE feelings
		SET charge = CASE
				WHEN charge IN ('cool', 'metabolized') THEN charge
				WHEN sit_count = 0 THEN 'warm'
				ELSE 'cool'
			END,
		    sit_count = sit_count + 1,
		    last_accessed_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to sit with feeling: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Resolve metabolizes a feeling.
func (s *Store) Resolve(ctx context.Context, id string, res storage.Resolution) (*types.Feeling, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: feeling ID is required", storage.ErrInvalidInput)
	}
	if res.ResolutionID == id {
		return nil, fmt.Errorf("%w: a feeling cannot resolve itself", storage.ErrInvalidInput)
	}
	if res.ResolutionID != "" {
		ok, err := s.Exists(ctx, res.ResolutionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: resolution %s", storage.ErrNotFound, res.ResolutionID)
		}
	}

	query := `
		UPDATE feelings
		SET charge = 'metabolized',
		    strength = ?,
		    resolution_id = ?,
		    resolution_note = ?,
		    resolved_at = ?
		WHERE id = ? AND charge != 'metabolized'`

	result, err := s.db.ExecContext(ctx, query,
		types.StrengthFloor, nullableString(res.ResolutionID), nullableString(res.Note),
		time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to resolve feeling: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to check rows affected: %w", err)
	}
	if n == 0 {
		ok, err := s.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s is already metabolized", storage.ErrInvalidTransition, id)
	}
	return s.Get(ctx, id)
}

// Lineage walks predecessor links from id, newest first.
func (s *Store) Lineage(ctx context.Context, id string) ([]*types.Feeling, error) {
	var chain []*types.Feeling
	visited := make(map[string]bool)

	current := id
	for current != "" && len(chain) < storage.MaxLineage {
		if visited[current] {
			break
		}
		visited[current] = true

		f, err := s.Get(ctx, current)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) && len(chain) > 0 {
				break
			}
			return nil, err
		}
		chain = append(chain, f)
		current = f.PredecessorID
	}
	return chain, nil
}

// Close flushes the WAL into the main database file and releases resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("sqlite: WAL checkpoint on close failed (non-fatal): %v", err)
	}
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeeling(row rowScanner) (*types.Feeling, error) {
	var (
		f                                     types.Feeling
		intensity, pillar, tagsJSON           sql.NullString
		predecessor, resolution, note, entity sql.NullString
		lastAccessed, resolvedAt              sql.NullTime
		weight, charge                        string
	)

	err := row.Scan(
		&f.ID, &f.Text, &f.Label, &intensity, &pillar, &weight, &tagsJSON,
		&charge, &f.Strength, &f.SitCount, &f.AccessCount,
		&predecessor, &resolution, &note, &entity,
		&f.CreatedAt, &lastAccessed, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Intensity = types.Intensity(intensity.String)
	f.Pillar = types.Pillar(pillar.String)
	f.Weight = types.Weight(weight)
	f.Charge = types.Charge(charge)
	f.PredecessorID = predecessor.String
	f.ResolutionID = resolution.String
	f.ResolutionNote = note.String
	f.Entity = entity.String

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &f.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		f.LastAccessedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		f.ResolvedAt = &t
	}
	return &f, nil
}

func scanFeelings(rows *sql.Rows) ([]*types.Feeling, error) {
	var out []*types.Feeling
	for rows.Next() {
		f, err := scanFeeling(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// requireAffected maps a zero-row UPDATE to ErrNotFound.
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// nullableTime converts a time pointer to sql.NullTime.
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullableBytes converts a byte slice to sql.NullString.
func nullableBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// nullableString converts a string to sql.NullString.
// An empty string is treated as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// buildInClause returns "?, ?, ?" for n placeholders.
func buildInClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// dbPathFromDSN extracts the filesystem path from a SQLite DSN.
// Returns empty string for in-memory databases or unparseable DSNs.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale checks whether -shm/-wal files exist for the given database path
// and no other process currently holds them open (via lsof).
// Returns false if lsof is unavailable.
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	output, err := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath).Output()
	if err != nil {
		// lsof exits 1 when no process has the files open.
		return true
	}
	return strings.TrimSpace(string(output)) == ""
}

// removeStaleWAL removes -shm and -wal files for the given database path.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
