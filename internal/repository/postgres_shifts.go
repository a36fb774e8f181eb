package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-shift/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	constraintPrimaryKey = "attendance_records_pkey"
	constraintOneOpen    = "idx_attendance_records_one_open"
)

// Schema attendance_records DDL. The partial unique index is what enforces a
// single open shift per owner at the database level.
const Schema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id                    BIGINT PRIMARY KEY,
	owner_id              TEXT NOT NULL,
	punch_in_at           TIMESTAMPTZ NOT NULL,
	punch_out_at          TIMESTAMPTZ,
	is_half_day           BOOLEAN NOT NULL DEFAULT FALSE,
	status                VARCHAR(16) NOT NULL,
	duration_hours        DOUBLE PRECISION,
	last_reminder_sent_at TIMESTAMPTZ,
	version               BIGINT NOT NULL DEFAULT 1,
	date                  TEXT NOT NULL,
	day                   TEXT NOT NULL,
	punch_in              TEXT NOT NULL,
	punch_out             TEXT,
	duration              TEXT,
	"timestamp"           TEXT NOT NULL,
	CHECK (punch_out_at IS NULL OR punch_out_at > punch_in_at)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_records_one_open
	ON attendance_records (owner_id) WHERE punch_out_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_attendance_records_owner
	ON attendance_records (owner_id, id DESC);
`

const recordColumns = `
	id,
	owner_id,
	punch_in_at,
	punch_out_at,
	is_half_day,
	status,
	duration_hours,
	last_reminder_sent_at,
	version`

// PostgresShiftRepository ShiftStore backed by PostgreSQL
type PostgresShiftRepository struct {
	db     *sql.DB
	loc    *time.Location // zone of the display columns (date/day/punch_in/punch_out)
	logger *zap.Logger
}

// NewPostgresShiftRepository creates the repository; loc may be nil (UTC).
func NewPostgresShiftRepository(db *sql.DB, loc *time.Location, logger *zap.Logger) *PostgresShiftRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresShiftRepository{db: db, loc: loc, logger: logger}
}

// 确保实现了接口
var _ ShiftStore = (*PostgresShiftRepository)(nil)

// EnsureSchema creates the table and indexes if missing.
func (r *PostgresShiftRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return wrapDBError("ensure schema", err)
	}
	return nil
}

// FindOpen returns the owner's open record
func (r *PostgresShiftRepository) FindOpen(ctx context.Context, ownerID string) (*domain.AttendanceRecord, error) {
	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE owner_id = $1 AND punch_out_at IS NULL
		LIMIT 1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		return nil, wrapDBError("find open shift", err)
	}
	return rec, nil
}

// FindByID returns a record by id
func (r *PostgresShiftRepository) FindByID(ctx context.Context, id int64) (*domain.AttendanceRecord, error) {
	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapDBError("find shift by id", err)
	}
	return rec, nil
}

// Insert creates a record; it never upserts.
func (r *PostgresShiftRepository) Insert(ctx context.Context, rec *domain.AttendanceRecord) error {
	v := rec.View(r.loc)
	query := `
		INSERT INTO attendance_records (
			id, owner_id, punch_in_at, punch_out_at, is_half_day, status,
			duration_hours, last_reminder_sent_at, version,
			date, day, punch_in, punch_out, duration, "timestamp"
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.PunchInAt,
		nullTime(rec.PunchOutAt),
		rec.IsHalfDay,
		string(rec.Status),
		nullFloat(rec.DurationHours),
		nullTime(rec.LastReminderSentAt),
		v.Date,
		v.Day,
		v.PunchIn,
		nullString(v.PunchOut),
		nullString(v.Duration),
		v.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case constraintOneOpen:
				return ErrOpenShiftExists
			case constraintPrimaryKey:
				return ErrDuplicateID
			}
		}
		return wrapDBError("insert shift", err)
	}

	rec.Version = 1
	return nil
}

// Update conditional write: matches id, owner, version and the row still being open.
func (r *PostgresShiftRepository) Update(ctx context.Context, rec *domain.AttendanceRecord, expectedVersion int64) error {
	v := rec.View(r.loc)
	query := `
		UPDATE attendance_records
		SET punch_out_at = $1,
			status = $2,
			duration_hours = $3,
			last_reminder_sent_at = $4,
			punch_out = $5,
			duration = $6,
			version = version + 1
		WHERE id = $7
		  AND owner_id = $8
		  AND version = $9
		  AND punch_out_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query,
		nullTime(rec.PunchOutAt),
		string(rec.Status),
		nullFloat(rec.DurationHours),
		nullTime(rec.LastReminderSentAt),
		nullString(v.PunchOut),
		nullString(v.Duration),
		rec.ID,
		rec.OwnerID,
		expectedVersion,
	)
	if err != nil {
		return wrapDBError("update shift", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("update shift", err)
	}
	if n == 0 {
		r.logger.Debug("Conditional shift update matched no row",
			zap.Int64("id", rec.ID),
			zap.String("owner_id", rec.OwnerID),
			zap.Int64("expected_version", expectedVersion),
		)
		return ErrVersionConflict
	}

	rec.Version = expectedVersion + 1
	return nil
}

// ListOpenAcrossOwners returns every open record, oldest first
func (r *PostgresShiftRepository) ListOpenAcrossOwners(ctx context.Context) ([]*domain.AttendanceRecord, error) {
	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE punch_out_at IS NULL
		ORDER BY id`
	return r.list(ctx, "list open shifts", query)
}

// ListByOwner returns the owner's history, newest first
func (r *PostgresShiftRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.AttendanceRecord, error) {
	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE owner_id = $1
		ORDER BY id DESC`
	return r.list(ctx, "list shifts by owner", query, ownerID)
}

func (r *PostgresShiftRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(op, err)
	}
	defer rows.Close()

	records := []*domain.AttendanceRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrapDBError(op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(op, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.AttendanceRecord, error) {
	var (
		rec        domain.AttendanceRecord
		status     string
		punchOutAt sql.NullTime
		duration   sql.NullFloat64
		reminderAt sql.NullTime
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.PunchInAt,
		&punchOutAt,
		&rec.IsHalfDay,
		&status,
		&duration,
		&reminderAt,
		&rec.Version,
	); err != nil {
		return nil, err
	}

	rec.Status = domain.StatusCode(status)
	if punchOutAt.Valid {
		t := punchOutAt.Time
		rec.PunchOutAt = &t
	}
	if duration.Valid {
		d := duration.Float64
		rec.DurationHours = &d
	}
	if reminderAt.Valid {
		t := reminderAt.Time
		rec.LastReminderSentAt = &t
	}
	return &rec, nil
}

// wrapDBError maps sql.ErrNoRows to ErrNotFound, connection-class failures to
// ErrStoreUnavailable and leaves server-side rejections as plain errors.
func wrapDBError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return unavailable(op, err)
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return unavailable(op, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
