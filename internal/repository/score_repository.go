// Package repository contains data access logic separated from HTTP handlers.
// This file defines the ScoreRepo, the append-only store for wellness score
// records. Rows are inserted by the submit endpoint and read back by the
// recovery plan and history endpoints; nothing updates or deletes them.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to match sql.ErrNoRows
	"fmt"          // fmt wraps driver errors with ErrStorageUnavailable

	"github.com/vaskular/vaskular-backend/internal/model"
)

// DefaultHistoryLimit is the number of rows returned by Recent when the
// caller does not ask for a specific limit.
const DefaultHistoryLimit = 10

// Schema statements per driver.  Each slice is executed in order by Init and
// every statement is create-if-absent so Init can run on every start.
var schemas = map[string][]string{
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS health_scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			circulation REAL NOT NULL,
			oxygen REAL NOT NULL,
			swelling_risk REAL NOT NULL,
			fatigue REAL NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_scores_user_ts ON health_scores(user_id, timestamp)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS health_scores (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			circulation DOUBLE NOT NULL,
			oxygen DOUBLE NOT NULL,
			swelling_risk DOUBLE NOT NULL,
			fatigue DOUBLE NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_health_scores_user_ts (user_id, timestamp)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

// ScoreRepo encapsulates all database queries related to score records.  It
// depends on a sql.DB connection which should be configured elsewhere; the
// driver name selects the DDL dialect used by Init.
type ScoreRepo struct {
	db     *sql.DB // db is the underlying database connection pool
	driver string  // driver is "sqlite3" or "mysql"
}

// NewScoreRepo constructs a ScoreRepo with the provided DB handle and driver
// name.  An unknown driver is accepted here and reported by Init.
func NewScoreRepo(db *sql.DB, driver string) *ScoreRepo {
	return &ScoreRepo{db: db, driver: driver}
}

// storageErr tags a driver error so handlers can map it with errors.Is.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// Init creates the health_scores table and its index when they do not yet
// exist.  Existing rows are never touched.
func (r *ScoreRepo) Init(ctx context.Context) error {
	stmts, ok := schemas[r.driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", r.driver)
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return storageErr("init schema", err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *ScoreRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Append inserts a new score record and returns its auto-generated id.  The
// timestamp is filled in by the column default.
func (r *ScoreRepo) Append(ctx context.Context, userID string, circulation, oxygen, swellingRisk, fatigue float64) (int64, error) {
	const q = `INSERT INTO health_scores (user_id, circulation, oxygen, swelling_risk, fatigue)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, userID, circulation, oxygen, swellingRisk, fatigue)
	if err != nil {
		return 0, storageErr("append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("append", err)
	}
	return id, nil
}

// Latest returns the most recent record for the user.  Rows sharing a
// timestamp are ordered by id so the last inserted one wins.  It returns
// ErrNotFound if the user has no records.
func (r *ScoreRepo) Latest(ctx context.Context, userID string) (*model.ScoreRecord, error) {
	const q = `SELECT id, user_id, circulation, oxygen, swelling_risk, fatigue, timestamp
	           FROM health_scores WHERE user_id = ?
	           ORDER BY timestamp DESC, id DESC LIMIT 1`
	var s model.ScoreRecord
	err := r.db.QueryRowContext(ctx, q, userID).
		Scan(&s.ID, &s.UserID, &s.Circulation, &s.Oxygen, &s.SwellingRisk, &s.Fatigue, &s.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("latest", err)
	}
	return &s, nil
}

// Recent returns up to limit records for the user, newest first.  A limit of
// zero or less means DefaultHistoryLimit.  Unlike a plain list query it
// returns ErrNotFound instead of an empty slice when the user has no rows.
func (r *ScoreRepo) Recent(ctx context.Context, userID string, limit int) ([]*model.ScoreRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	const q = `SELECT id, user_id, circulation, oxygen, swelling_risk, fatigue, timestamp
	           FROM health_scores WHERE user_id = ?
	           ORDER BY timestamp DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	defer rows.Close()

	var out []*model.ScoreRecord
	for rows.Next() {
		s := new(model.ScoreRecord)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Circulation, &s.Oxygen, &s.SwellingRisk, &s.Fatigue, &s.Timestamp); err != nil {
			return nil, storageErr("recent", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
