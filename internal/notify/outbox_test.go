package notify

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOutbox(t *testing.T) (*Outbox, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewOutbox(db), mock
}

func TestOutbox_Enqueue(t *testing.T) {
	outbox, mock := setupOutbox(t)

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs("proposal_accepted", "buyer@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := outbox.Enqueue(context.Background(), "proposal_accepted", "buyer@example.com", map[string]interface{}{
		"listing_title": "Go code review",
		"offer_cents":   5000,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutbox_ListUnsent(t *testing.T) {
	outbox, mock := setupOutbox(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, kind, recipient, payload, created_at`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "recipient", "payload", "created_at"}).
			AddRow(int64(1), "proposal_received", "seller@example.com", []byte(`{"listing_title":"Logo design"}`), now).
			AddRow(int64(2), "proposal_declined", "buyer@example.com", []byte(`{}`), now))

	got, err := outbox.ListUnsent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "proposal_received", got[0].Kind)
	assert.Equal(t, "seller@example.com", got[0].Recipient)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutbox_MarkSent(t *testing.T) {
	outbox, mock := setupOutbox(t)

	mock.ExpectExec(`UPDATE notifications`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, outbox.MarkSent(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutbox_MarkSent_AlreadySent(t *testing.T) {
	outbox, mock := setupOutbox(t)

	mock.ExpectExec(`UPDATE notifications`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := outbox.MarkSent(context.Background(), 7)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
