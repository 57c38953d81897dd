// File: internal/audit/store.go
// Description: persistent audit trail of turns. Every handled
// transcript is recorded with the action taken and the final risk
// verdict so incidents can be reconstructed after the fact. Auditing is
// best-effort: a failed insert is logged, never surfaced to the turn.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// DB is the slice of the pgx pool the store needs. Kept minimal so
// tests can substitute a mock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TurnRecord is one audited turn.
type TurnRecord struct {
	SessionID  string
	Transcript string
	ActionKind schemas.ActionKind
	ActionURL  string
	RiskLevel  schemas.RiskLevel
	Outcome    string
	OccurredAt time.Time
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS turn_audit (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT        NOT NULL,
	transcript  TEXT        NOT NULL,
	action_kind TEXT        NOT NULL,
	action_url  TEXT        NOT NULL DEFAULT '',
	risk_level  TEXT        NOT NULL,
	outcome     TEXT        NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`

const insertTurnSQL = `
INSERT INTO turn_audit (session_id, transcript, action_kind, action_url, risk_level, outcome, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Store writes turn records to Postgres.
type Store struct {
	db     DB
	logger *zap.Logger
}

// NewStore wraps an existing pool or mock.
func NewStore(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("audit")}
}

// NewPool connects the production pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging audit database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the audit table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("creating audit schema: %w", err)
	}
	return nil
}

// RecordTurn persists one turn. Failures are logged and swallowed; the
// audit trail must never take a turn down with it.
func (s *Store) RecordTurn(ctx context.Context, rec TurnRecord) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, insertTurnSQL,
		rec.SessionID, rec.Transcript, string(rec.ActionKind), rec.ActionURL,
		string(rec.RiskLevel), rec.Outcome, rec.OccurredAt)
	if err != nil {
		s.logger.Warn("Failed to record audit turn",
			zap.String("session_id", rec.SessionID), zap.Error(err))
	}
}
