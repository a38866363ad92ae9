package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/resilience"
)

const humanReviewStage = "human_review"

const migration = `
CREATE TABLE IF NOT EXISTS geocode_records (
	ticket_number      TEXT NOT NULL,
	version            INTEGER NOT NULL,
	geocode_key        TEXT NOT NULL,
	street             TEXT,
	intersection       TEXT,
	city               TEXT,
	county             TEXT,
	ticket_type        TEXT,
	duration           TEXT,
	work_type          TEXT,
	excavator          TEXT,
	latitude           REAL,
	longitude          REAL,
	method             TEXT,
	approach           TEXT,
	confidence         REAL,
	reasoning          TEXT,
	error_message      TEXT,
	quality_tier       TEXT NOT NULL,
	review_priority    TEXT NOT NULL,
	validation_flags   TEXT,
	supersedes         TEXT,
	is_current         INTEGER NOT NULL,
	created_at         TEXT NOT NULL,
	created_by_stage   TEXT,
	locked             INTEGER NOT NULL DEFAULT 0,
	lock_reason        TEXT,
	locked_at          TEXT,
	locked_by          TEXT,
	metadata           TEXT,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (ticket_number, version)
);
CREATE INDEX IF NOT EXISTS idx_geocode_records_current ON geocode_records (ticket_number, is_current);
CREATE INDEX IF NOT EXISTS idx_geocode_records_key ON geocode_records (geocode_key);
CREATE INDEX IF NOT EXISTS idx_geocode_records_tier ON geocode_records (quality_tier);
CREATE INDEX IF NOT EXISTS idx_geocode_records_priority ON geocode_records (review_priority);
CREATE INDEX IF NOT EXISTS idx_geocode_records_locked ON geocode_records (locked);
`

// SQLiteStore is the pure-Go, SQLite-backed Store implementation, adapted
// from the teacher's internal/store/sqlite.go (WAL pragmas embedded in the
// DSN, a single migration string, ping verification on open).
type SQLiteStore struct {
	db *sql.DB
	// mu serializes current-pointer updates; a single SQLite connection
	// already serializes writes, but the mutex also protects the
	// read-then-write race in Put/Lock/Unlock across the two statements.
	mu sync.Mutex

	// retryCfg and breaker absorb transient "database is locked" commit
	// failures (a concurrent-Put contention concern every batch actually
	// hits, per spec.md §5's per-ticket Put serialization) and stop
	// hammering the store once commits are persistently failing.
	retryCfg resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// NewSQLite opens (creating if necessary) a SQLite-backed cache store at
// dsn, applying the same WAL/busy-timeout pragmas as the teacher.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	full := dsn
	if !strings.Contains(dsn, "_pragma") && dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		full = dsn + sep + "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", full)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, eris.Wrap(err, "cache: ping sqlite")
	}
	if _, err := db.ExecContext(ctx, migration); err != nil {
		return nil, eris.Wrap(err, "cache: run migration")
	}

	zap.L().Info("cache store ready", zap.String("component", "cache"))
	return &SQLiteStore{
		db: db,
		retryCfg: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 20 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
			Multiplier:     2.0,
			JitterFraction: 0.2,
			OnRetry:        resilience.RetryLogger("cache", "put"),
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     5 * time.Second,
		}),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Current(ctx context.Context, ticketNumber string) (*model.GeocodeRecord, error) {
	return s.currentLocked(ctx, ticketNumber)
}

func (s *SQLiteStore) currentLocked(ctx context.Context, ticketNumber string) (*model.GeocodeRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM geocode_records WHERE ticket_number = ? AND is_current = 1`, ticketNumber)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: read current")
	}
	return rec, nil
}

func (s *SQLiteStore) History(ctx context.Context, ticketNumber string) ([]model.GeocodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM geocode_records WHERE ticket_number = ? ORDER BY version DESC`, ticketNumber)
	if err != nil {
		return nil, eris.Wrap(err, "cache: read history")
	}
	defer rows.Close()

	var out []model.GeocodeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "cache: scan history row")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, rec *model.GeocodeRecord, stageID string) (*model.GeocodeRecord, error) {
	if err := validateInvariants(rec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.currentLocked(ctx, rec.TicketNumber)
	if err != nil {
		return nil, err
	}
	if cur != nil && cur.Locked && stageID != humanReviewStage {
		return nil, model.NewLockedError(rec.TicketNumber)
	}

	version := 1
	var supersedes *string
	if cur != nil {
		version = cur.Version + 1
		id := fmt.Sprintf("%s@v%d", cur.TicketNumber, cur.Version)
		supersedes = &id
	}

	rec.Version = version
	rec.Supersedes = supersedes
	rec.IsCurrent = true
	rec.CreatedByStage = stageID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.GeocodeKey == "" {
		rec.GeocodeKey = Key(rec.Street, rec.Intersection, rec.City, rec.County)
	}

	stored, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*model.GeocodeRecord, error) {
		return resilience.DoVal(ctx, s.retryCfg, func(ctx context.Context) (*model.GeocodeRecord, error) {
			tx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				return nil, eris.Wrap(err, "begin transaction")
			}
			defer func() { _ = tx.Rollback() }()

			if cur != nil {
				if _, err := tx.ExecContext(ctx, `UPDATE geocode_records SET is_current = 0 WHERE ticket_number = ? AND version = ?`, cur.TicketNumber, cur.Version); err != nil {
					return nil, wrapPutErr(err, "clear prior current")
				}
			}

			if err := insertRecord(ctx, tx, rec); err != nil {
				return nil, wrapPutErr(err, "insert record")
			}

			if err := tx.Commit(); err != nil {
				return nil, wrapPutErr(err, "commit")
			}
			return rec, nil
		})
	})
	if err != nil {
		return nil, model.NewStorageError("put: " + err.Error())
	}
	return stored, nil
}

// wrapPutErr marks "database is locked"/busy failures as transient so
// resilience.DoVal retries them instead of failing the Put outright.
func wrapPutErr(err error, op string) error {
	wrapped := eris.Wrap(err, op)
	if isLockedErr(wrapped) {
		return resilience.NewTransientError(wrapped, 0)
	}
	return wrapped
}

func isLockedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "busy")
}

func (s *SQLiteStore) Lock(ctx context.Context, ticketNumber, reason, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.currentLocked(ctx, ticketNumber)
	if err != nil {
		return err
	}
	if cur == nil {
		return model.NewStorageError("cannot lock: no current record for ticket " + ticketNumber)
	}
	lockID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		UPDATE geocode_records
		SET locked = 1, lock_reason = ?, locked_at = ?, locked_by = ?
		WHERE ticket_number = ? AND version = ?`,
		reason, time.Now().UTC().Format(time.RFC3339Nano), lockIdentity(actor, lockID), ticketNumber, cur.Version)
	if err != nil {
		return model.NewStorageError("lock: " + err.Error())
	}
	return nil
}

func lockIdentity(actor, lockID string) string {
	if actor == "" {
		return lockID
	}
	return actor
}

func (s *SQLiteStore) Unlock(ctx context.Context, ticketNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE geocode_records
		SET locked = 0, lock_reason = NULL, locked_at = NULL, locked_by = NULL
		WHERE ticket_number = ? AND is_current = 1`, ticketNumber)
	if err != nil {
		return model.NewStorageError("unlock: " + err.Error())
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, filter Filter) ([]model.GeocodeRecord, error) {
	query := selectColumns + ` FROM geocode_records WHERE is_current = 1`
	var args []any

	if len(filter.QualityTiers) > 0 {
		query += " AND quality_tier IN (" + placeholders(len(filter.QualityTiers)) + ")"
		for _, t := range filter.QualityTiers {
			args = append(args, string(t))
		}
	}
	if len(filter.ReviewPriority) > 0 {
		query += " AND review_priority IN (" + placeholders(len(filter.ReviewPriority)) + ")"
		for _, p := range filter.ReviewPriority {
			args = append(args, string(p))
		}
	}
	if filter.Locked != nil {
		query += " AND locked = ?"
		args = append(args, boolToInt(*filter.Locked))
	}
	if len(filter.Methods) > 0 {
		query += " AND method IN (" + placeholders(len(filter.Methods)) + ")"
		for _, m := range filter.Methods {
			args = append(args, m)
		}
	}
	if filter.MinConfidence != nil {
		query += " AND confidence >= ?"
		args = append(args, *filter.MinConfidence)
	}
	if filter.GeocodeKey != "" {
		query += " AND geocode_key = ?"
		args = append(args, filter.GeocodeKey)
	}
	query += " ORDER BY ticket_number"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "cache: query")
	}
	defer rows.Close()

	var out []model.GeocodeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "cache: scan query row")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Statistics(ctx context.Context) (Stats, error) {
	stats := Stats{
		TierCounts:     map[model.QualityTier]int{},
		PriorityCounts: map[model.ReviewPriority]int{},
		MethodCounts:   map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_records WHERE is_current = 1`).Scan(&stats.TotalRecords); err != nil {
		return Stats{}, eris.Wrap(err, "cache: count total")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_records WHERE is_current = 1 AND locked = 1`).Scan(&stats.LockedCount); err != nil {
		return Stats{}, eris.Wrap(err, "cache: count locked")
	}

	if err := groupCount(ctx, s.db, `SELECT quality_tier, COUNT(*) FROM geocode_records WHERE is_current = 1 GROUP BY quality_tier`, func(k string, n int) {
		stats.TierCounts[model.QualityTier(k)] = n
	}); err != nil {
		return Stats{}, err
	}
	if err := groupCount(ctx, s.db, `SELECT review_priority, COUNT(*) FROM geocode_records WHERE is_current = 1 GROUP BY review_priority`, func(k string, n int) {
		stats.PriorityCounts[model.ReviewPriority(k)] = n
	}); err != nil {
		return Stats{}, err
	}
	if err := groupCount(ctx, s.db, `SELECT COALESCE(method,''), COUNT(*) FROM geocode_records WHERE is_current = 1 GROUP BY method`, func(k string, n int) {
		stats.MethodCounts[k] = n
	}); err != nil {
		return Stats{}, err
	}

	return stats, nil
}

func groupCount(ctx context.Context, db *sql.DB, query string, set func(string, int)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "cache: group count")
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return eris.Wrap(err, "cache: scan group count")
		}
		set(k, n)
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func validateInvariants(rec *model.GeocodeRecord) error {
	if rec.Latitude != nil && (*rec.Latitude < -90 || *rec.Latitude > 90) {
		return model.NewStorageError("latitude out of bounds")
	}
	if rec.Longitude != nil && (*rec.Longitude < -180 || *rec.Longitude > 180) {
		return model.NewStorageError("longitude out of bounds")
	}
	if rec.Confidence != nil && (*rec.Confidence < 0 || *rec.Confidence > 1) {
		return model.NewStorageError("confidence out of bounds")
	}
	if (rec.Latitude == nil) != (rec.Longitude == nil) {
		return model.NewStorageError("latitude and longitude must both be present or both absent")
	}
	return nil
}

const selectColumns = `SELECT
	ticket_number, version, geocode_key, street, intersection, city, county,
	ticket_type, duration, work_type, excavator, latitude, longitude, method,
	approach, confidence, reasoning, error_message, quality_tier,
	review_priority, validation_flags, supersedes, is_current, created_at,
	created_by_stage, locked, lock_reason, locked_at, locked_by, metadata,
	processing_time_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.GeocodeRecord, error) {
	var rec model.GeocodeRecord
	var lat, lng, confidence sql.NullFloat64
	var street, intersection, city, county, ticketType, duration, workType, excavator sql.NullString
	var method, approach, reasoning, errMsg sql.NullString
	var validationFlagsJSON, metadataJSON sql.NullString
	var supersedes, createdByStage, lockReason, lockedAt, lockedBy sql.NullString
	var isCurrent, locked int
	var createdAt string

	err := row.Scan(
		&rec.TicketNumber, &rec.Version, &rec.GeocodeKey, &street, &intersection, &city, &county,
		&ticketType, &duration, &workType, &excavator, &lat, &lng, &method,
		&approach, &confidence, &reasoning, &errMsg, &rec.QualityTier,
		&rec.ReviewPriority, &validationFlagsJSON, &supersedes, &isCurrent, &createdAt,
		&createdByStage, &locked, &lockReason, &lockedAt, &lockedBy, &metadataJSON,
		&rec.ProcessingTimeMs,
	)
	if err != nil {
		return nil, err
	}

	rec.Street, rec.Intersection, rec.City, rec.County = street.String, intersection.String, city.String, county.String
	rec.TicketType, rec.Duration, rec.WorkType, rec.Excavator = ticketType.String, duration.String, workType.String, excavator.String
	rec.Method, rec.Approach, rec.Reasoning, rec.ErrorMessage = method.String, approach.String, reasoning.String, errMsg.String
	rec.IsCurrent = isCurrent != 0
	rec.Locked = locked != 0
	rec.CreatedByStage = createdByStage.String
	rec.LockReason = lockReason.String
	rec.LockedBy = lockedBy.String

	if lat.Valid {
		v := lat.Float64
		rec.Latitude = &v
	}
	if lng.Valid {
		v := lng.Float64
		rec.Longitude = &v
	}
	if confidence.Valid {
		v := confidence.Float64
		rec.Confidence = &v
	}
	if supersedes.Valid {
		v := supersedes.String
		rec.Supersedes = &v
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if lockedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lockedAt.String); err == nil {
			rec.LockedAt = &t
		}
	}
	if validationFlagsJSON.Valid && validationFlagsJSON.String != "" {
		_ = json.Unmarshal([]byte(validationFlagsJSON.String), &rec.ValidationFlags)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata)
	}

	return &rec, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec *model.GeocodeRecord) error {
	flagsJSON, err := json.Marshal(rec.ValidationFlags)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}

	var lockedAt any
	if rec.LockedAt != nil {
		lockedAt = rec.LockedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO geocode_records (
			ticket_number, version, geocode_key, street, intersection, city, county,
			ticket_type, duration, work_type, excavator, latitude, longitude, method,
			approach, confidence, reasoning, error_message, quality_tier,
			review_priority, validation_flags, supersedes, is_current, created_at,
			created_by_stage, locked, lock_reason, locked_at, locked_by, metadata,
			processing_time_ms
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.TicketNumber, rec.Version, rec.GeocodeKey, nilIfEmpty(rec.Street), nilIfEmpty(rec.Intersection),
		nilIfEmpty(rec.City), nilIfEmpty(rec.County), nilIfEmpty(rec.TicketType), nilIfEmpty(rec.Duration),
		nilIfEmpty(rec.WorkType), nilIfEmpty(rec.Excavator), rec.Latitude, rec.Longitude, nilIfEmpty(rec.Method),
		nilIfEmpty(rec.Approach), rec.Confidence, nilIfEmpty(rec.Reasoning), nilIfEmpty(rec.ErrorMessage),
		string(rec.QualityTier), string(rec.ReviewPriority), string(flagsJSON), rec.Supersedes,
		boolToInt(rec.IsCurrent), rec.CreatedAt.UTC().Format(time.RFC3339Nano), nilIfEmpty(rec.CreatedByStage),
		boolToInt(rec.Locked), nilIfEmpty(rec.LockReason), lockedAt, nilIfEmpty(rec.LockedBy), string(metaJSON),
		rec.ProcessingTimeMs,
	)
	return err
}

// nilIfEmpty stores an empty string as SQL NULL, matching the teacher's
// pkg/geocode/cache.go helper of the same name.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
