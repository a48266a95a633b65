package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillhive-app/skillhive-backend/internal/publicid"
)

const publicIDPrefix = "shv"

var ErrNotFound = errors.New("project not found")

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

type Project struct {
	PublicID    string    `json:"public_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	RepoURL     *string   `json:"repo_url,omitempty"`
	DemoURL     *string   `json:"demo_url,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateParams struct {
	Title       string
	Summary     string
	Description string
	Tags        []string
	RepoURL     *string
	DemoURL     *string
	Status      string
}

const projectCols = `public_id, owner_id::text, title, summary, description, tags, repo_url, demo_url, status, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.PublicID, &p.OwnerID, &p.Title, &p.Summary, &p.Description,
		&p.Tags, &p.RepoURL, &p.DemoURL, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Create(ctx context.Context, ownerID string, in CreateParams) (*Project, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title required")
	}
	if in.Status == "" {
		in.Status = StatusPublished
	}

	for i := 0; i < 5; i++ {
		publicID, err := publicid.New(publicIDPrefix)
		if err != nil {
			return nil, err
		}

		const q = `
insert into projects (public_id, owner_id, title, summary, description, tags, repo_url, demo_url, status)
values ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9)
returning ` + projectCols + `;
`
		p, err := scanProject(r.db.QueryRow(ctx, q, publicID, ownerID,
			in.Title, in.Summary, in.Description, in.Tags, in.RepoURL, in.DemoURL, in.Status))
		if err == nil {
			return p, nil
		}

		// unique violation on public_id → retry with a new one
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

func (r *Repo) ListOwn(ctx context.Context, ownerID string) ([]Project, error) {
	const q = `
select ` + projectCols + `
from projects
where owner_id = $1::uuid and deleted_at is null
order by created_at desc;
`
	return r.list(ctx, q, ownerID)
}

func (r *Repo) ListPublished(ctx context.Context) ([]Project, error) {
	const q = `
select ` + projectCols + `
from projects
where status = 'published' and deleted_at is null
order by created_at desc
limit 200;
`
	return r.list(ctx, q)
}

func (r *Repo) list(ctx context.Context, q string, args ...interface{}) ([]Project, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Project, 0, 16)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.PublicID, &p.OwnerID, &p.Title, &p.Summary, &p.Description,
			&p.Tags, &p.RepoURL, &p.DemoURL, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns a project visible to the caller: published ones are public,
// drafts only show to their owner.
func (r *Repo) Get(ctx context.Context, callerID, publicID string) (*Project, error) {
	const q = `
select ` + projectCols + `
from projects
where public_id = $1
  and deleted_at is null
  and (status = 'published' or owner_id = nullif($2,'')::uuid);
`
	return scanProject(r.db.QueryRow(ctx, q, publicID, callerID))
}

type UpdateParams struct {
	Title       *string
	Summary     *string
	Description *string
	Tags        []string
	RepoURL     *string
	DemoURL     *string
	Status      *string
}

func (r *Repo) Update(ctx context.Context, ownerID, publicID string, in UpdateParams) (*Project, error) {
	const q = `
update projects
set
  title       = coalesce($3, title),
  summary     = coalesce($4, summary),
  description = coalesce($5, description),
  tags        = coalesce($6, tags),
  repo_url    = coalesce($7, repo_url),
  demo_url    = coalesce($8, demo_url),
  status      = coalesce($9, status),
  updated_at  = now()
where owner_id = $1::uuid and public_id = $2 and deleted_at is null
returning ` + projectCols + `;
`
	return scanProject(r.db.QueryRow(ctx, q, ownerID, publicID,
		in.Title, in.Summary, in.Description, in.Tags, in.RepoURL, in.DemoURL, in.Status))
}

func (r *Repo) SoftDelete(ctx context.Context, ownerID, publicID string) (bool, error) {
	const q = `
update projects
set deleted_at = now(), updated_at = now()
where owner_id = $1::uuid and public_id = $2 and deleted_at is null;
`
	ct, err := r.db.Exec(ctx, q, ownerID, publicID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
