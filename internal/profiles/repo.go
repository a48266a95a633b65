package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound    = errors.New("profile not found")
	ErrHandleTaken = errors.New("handle already taken")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Profile is the public face of a member: what the community and
// marketplace pages render next to their work.
type Profile struct {
	UserID      string    `json:"user_id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Headline    string    `json:"headline"`
	Bio         string    `json:"bio"`
	Skills      []string  `json:"skills"`
	RateCents   *int64    `json:"rate_cents,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const profileCols = `
  p.user_id::text, p.handle, coalesce(u.display_name, ''), p.headline, p.bio,
  p.skills, p.rate_cents, coalesce(p.avatar_url, u.photo_url), p.created_at, p.updated_at`

func (r *Repo) scan(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.UserID, &p.Handle, &p.DisplayName, &p.Headline, &p.Bio,
		&p.Skills, &p.RateCents, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	const q = `
select ` + profileCols + `
from profiles p
join users u on u.id = p.user_id
where p.user_id = $1::uuid;
`
	return r.scan(r.db.QueryRow(ctx, q, userID))
}

func (r *Repo) GetByHandle(ctx context.Context, handle string) (*Profile, error) {
	const q = `
select ` + profileCols + `
from profiles p
join users u on u.id = p.user_id
where p.handle = $1;
`
	return r.scan(r.db.QueryRow(ctx, q, handle))
}

type UpsertParams struct {
	Handle    string
	Headline  string
	Bio       string
	Skills    []string
	RateCents *int64
	AvatarURL *string
}

// Upsert creates or replaces the caller's profile. The handle is unique
// across members; a collision surfaces as ErrHandleTaken.
func (r *Repo) Upsert(ctx context.Context, userID string, in UpsertParams) (*Profile, error) {
	const q = `
insert into profiles (user_id, handle, headline, bio, skills, rate_cents, avatar_url)
values ($1::uuid, $2, $3, $4, $5, $6, $7)
on conflict (user_id) do update
set
  handle     = excluded.handle,
  headline   = excluded.headline,
  bio        = excluded.bio,
  skills     = excluded.skills,
  rate_cents = excluded.rate_cents,
  avatar_url = excluded.avatar_url,
  updated_at = now();
`
	if _, err := r.db.Exec(ctx, q, userID, in.Handle, in.Headline, in.Bio, in.Skills, in.RateCents, in.AvatarURL); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrHandleTaken
		}
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}
