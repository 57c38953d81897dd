// File: internal/audit/store_test.go
package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/audit"
)

func TestStore_EnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS turn_audit").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store := audit.NewStore(mock, zaptest.NewLogger(t))
	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EnsureSchemaError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS turn_audit").
		WillReturnError(errors.New("permission denied"))

	store := audit.NewStore(mock, zaptest.NewLogger(t))
	assert.Error(t, store.EnsureSchema(context.Background()))
}

func TestStore_RecordTurn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	occurred := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO turn_audit").
		WithArgs("sess-1", "pay my bill", "navigate", "https://www.pge.com",
			"HIGH_RISK", "awaiting_confirmation", occurred).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := audit.NewStore(mock, zaptest.NewLogger(t))
	store.RecordTurn(context.Background(), audit.TurnRecord{
		SessionID:  "sess-1",
		Transcript: "pay my bill",
		ActionKind: schemas.ActionNavigate,
		ActionURL:  "https://www.pge.com",
		RiskLevel:  schemas.RiskHighRisk,
		Outcome:    "awaiting_confirmation",
		OccurredAt: occurred,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordTurnSwallowsErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO turn_audit").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	store := audit.NewStore(mock, zaptest.NewLogger(t))
	// Must not panic or propagate; auditing is best-effort.
	store.RecordTurn(context.Background(), audit.TurnRecord{
		SessionID: "sess-1", Transcript: "hello",
		ActionKind: schemas.ActionNoop, RiskLevel: schemas.RiskSafe, Outcome: "completed",
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
