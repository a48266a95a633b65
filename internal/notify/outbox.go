package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Email is one queued notification.
type Email struct {
	ID        int64
	Kind      string
	Recipient string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

// Outbox journals notifications in Postgres so a crashed process never
// loses one. The worker drains unsent rows.
type Outbox struct {
	db *sql.DB
}

func NewOutbox(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) Enqueue(ctx context.Context, kind, recipient string, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	const q = `
INSERT INTO notifications (kind, recipient, payload)
VALUES ($1, $2, $3);
`
	if _, err := o.db.ExecContext(ctx, q, kind, recipient, b); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (o *Outbox) ListUnsent(ctx context.Context, limit int) ([]Email, error) {
	const q = `
SELECT id, kind, recipient, payload, created_at
FROM notifications
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1;
`
	rows, err := o.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsent: %w", err)
	}
	defer rows.Close()

	out := make([]Email, 0, limit)
	for rows.Next() {
		var e Email
		if err := rows.Scan(&e.ID, &e.Kind, &e.Recipient, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (o *Outbox) MarkSent(ctx context.Context, id int64) error {
	const q = `
UPDATE notifications
SET sent_at = now()
WHERE id = $1 AND sent_at IS NULL;
`
	res, err := o.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %d already sent or missing", id)
	}
	return nil
}
