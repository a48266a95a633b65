package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	transcriptKeyPrefix = "tutor:transcript:" // tutor:transcript:{user_id}:{session_id}
	transcriptTTL       = 7 * 24 * time.Hour
	// How many recent turns feed the next completion's context window.
	contextWindow = 12
)

var ErrSessionNotFound = errors.New("tutor session not found")

// Turn is one chat transcript entry.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcripts keeps the working transcript in Redis (the prompt context)
// and journals every turn durably in the messages table.
type Transcripts struct {
	rdb *redis.Client
	db  *pgxpool.Pool
}

func NewTranscripts(rdb *redis.Client, db *pgxpool.Pool) *Transcripts {
	return &Transcripts{rdb: rdb, db: db}
}

func transcriptKey(userID, sessionID string) string {
	return fmt.Sprintf("%s%s:%s", transcriptKeyPrefix, userID, sessionID)
}

// CreateSession opens a new tutor chat for the user.
func (t *Transcripts) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	if title == "" {
		title = "New chat"
	}

	const q = `
insert into tutor_sessions (user_id, title)
values ($1::uuid, $2)
returning id::text, title, created_at;
`
	var s Session
	if err := t.db.QueryRow(ctx, q, userID, title).Scan(&s.ID, &s.Title, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *Transcripts) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	const q = `
select id::text, title, created_at
from tutor_sessions
where user_id = $1::uuid
order by created_at desc;
`
	rows, err := t.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Session, 0, 8)
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// sessionExists guards every transcript operation: sessions are private.
func (t *Transcripts) sessionExists(ctx context.Context, userID, sessionID string) error {
	const q = `select 1 from tutor_sessions where id = $1::uuid and user_id = $2::uuid;`

	var one int
	err := t.db.QueryRow(ctx, q, sessionID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	return err
}

// Append records a turn in both stores.
func (t *Transcripts) Append(ctx context.Context, userID, sessionID string, turn Turn) error {
	if err := t.sessionExists(ctx, userID, sessionID); err != nil {
		return err
	}
	if turn.Ts == 0 {
		turn.Ts = time.Now().Unix()
	}

	const q = `
insert into messages (session_id, user_id, role, content)
values ($1::uuid, $2::uuid, $3, $4);
`
	if _, err := t.db.Exec(ctx, q, sessionID, userID, turn.Role, turn.Text); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}

	b, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	key := transcriptKey(userID, sessionID)
	pipe := t.rdb.Pipeline()
	pipe.RPush(ctx, key, b)
	pipe.LTrim(ctx, key, -int64(contextWindow), -1)
	pipe.Expire(ctx, key, transcriptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache turn: %w", err)
	}
	return nil
}

// Recent returns the context window for the next completion, from Redis
// when warm, rebuilt from Postgres when not.
func (t *Transcripts) Recent(ctx context.Context, userID, sessionID string) ([]Turn, error) {
	if err := t.sessionExists(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	vals, err := t.rdb.LRange(ctx, transcriptKey(userID, sessionID), 0, -1).Result()
	if err == nil && len(vals) > 0 {
		out := make([]Turn, 0, len(vals))
		for _, v := range vals {
			var turn Turn
			if json.Unmarshal([]byte(v), &turn) == nil {
				out = append(out, turn)
			}
		}
		return out, nil
	}

	const q = `
select role, content, extract(epoch from created_at)::bigint
from (
  select role, content, created_at
  from messages
  where session_id = $1::uuid and user_id = $2::uuid
  order by created_at desc
  limit $3
) recent
order by created_at;
`
	rows, err := t.db.Query(ctx, q, sessionID, userID, contextWindow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Turn, 0, contextWindow)
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.Role, &turn.Text, &turn.Ts); err != nil {
			return nil, err
		}
		out = append(out, turn)
	}
	return out, rows.Err()
}

// History returns the full durable transcript.
func (t *Transcripts) History(ctx context.Context, userID, sessionID string) ([]Turn, error) {
	if err := t.sessionExists(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	const q = `
select role, content, extract(epoch from created_at)::bigint
from messages
where session_id = $1::uuid and user_id = $2::uuid
order by created_at;
`
	rows, err := t.db.Query(ctx, q, sessionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Turn, 0, 32)
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.Role, &turn.Text, &turn.Ts); err != nil {
			return nil, err
		}
		out = append(out, turn)
	}
	return out, rows.Err()
}
