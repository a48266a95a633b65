package listings

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

const publicIDPrefix = "lst"

var ErrNotFound = errors.New("listing not found")

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusPaused  = "paused"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Listing is one marketplace service offer.
type Listing struct {
	PublicID     string    `json:"public_id"`
	SellerID     string    `json:"seller_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	PriceCents   int64     `json:"price_cents"`
	DeliveryDays int       `json:"delivery_days"`
	ImageURL     *string   `json:"image_url,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateParams struct {
	Title        string
	Description  string
	Category     string
	PriceCents   int64
	DeliveryDays int
	ImageURL     *string
}

const listingCols = `public_id, seller_id::text, title, description, category, price_cents, delivery_days, image_url, status, created_at, updated_at`

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	err := row.Scan(&l.PublicID, &l.SellerID, &l.Title, &l.Description, &l.Category,
		&l.PriceCents, &l.DeliveryDays, &l.ImageURL, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repo) Create(ctx context.Context, sellerID string, in CreateParams) (*Listing, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title required")
	}

	for i := 0; i < 5; i++ {
		publicID, err := publicid.New(publicIDPrefix)
		if err != nil {
			return nil, err
		}

		const q = `
insert into listings (public_id, seller_id, title, description, category, price_cents, delivery_days, image_url, status)
values ($1, $2::uuid, $3, $4, $5, $6, $7, $8, 'active')
returning ` + listingCols + `;
`
		l, err := scanListing(r.db.QueryRow(ctx, q, publicID, sellerID,
			in.Title, in.Description, in.Category, in.PriceCents, in.DeliveryDays, in.ImageURL))
		if err == nil {
			return l, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique listing id")
}

func (r *Repo) ListActive(ctx context.Context) ([]Listing, error) {
	const q = `
select ` + listingCols + `
from listings
where status = 'active' and deleted_at is null
order by created_at desc
limit 500;
`
	return r.list(ctx, q)
}

func (r *Repo) ListOwn(ctx context.Context, sellerID string) ([]Listing, error) {
	const q = `
select ` + listingCols + `
from listings
where seller_id = $1::uuid and deleted_at is null
order by created_at desc;
`
	return r.list(ctx, q, sellerID)
}

func (r *Repo) list(ctx context.Context, q string, args ...interface{}) ([]Listing, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Listing, 0, 16)
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.PublicID, &l.SellerID, &l.Title, &l.Description, &l.Category,
			&l.PriceCents, &l.DeliveryDays, &l.ImageURL, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Get returns an active listing, or any of the caller's own regardless of status.
func (r *Repo) Get(ctx context.Context, callerID, publicID string) (*Listing, error) {
	const q = `
select ` + listingCols + `
from listings
where public_id = $1
  and deleted_at is null
  and (status = 'active' or seller_id = nullif($2,'')::uuid);
`
	return scanListing(r.db.QueryRow(ctx, q, publicID, callerID))
}

type UpdateParams struct {
	Title        *string
	Description  *string
	Category     *string
	PriceCents   *int64
	DeliveryDays *int
	ImageURL     *string
	Status       *string
}

func (r *Repo) Update(ctx context.Context, sellerID, publicID string, in UpdateParams) (*Listing, error) {
	const q = `
update listings
set
  title         = coalesce($3, title),
  description   = coalesce($4, description),
  category      = coalesce($5, category),
  price_cents   = coalesce($6, price_cents),
  delivery_days = coalesce($7, delivery_days),
  image_url     = coalesce($8, image_url),
  status        = coalesce($9, status),
  updated_at    = now()
where seller_id = $1::uuid and public_id = $2 and deleted_at is null
returning ` + listingCols + `;
`
	return scanListing(r.db.QueryRow(ctx, q, sellerID, publicID,
		in.Title, in.Description, in.Category, in.PriceCents, in.DeliveryDays, in.ImageURL, in.Status))
}

func (r *Repo) SoftDelete(ctx context.Context, sellerID, publicID string) (bool, error) {
	const q = `
update listings
set deleted_at = now(), updated_at = now()
where seller_id = $1::uuid and public_id = $2 and deleted_at is null;
`
	ct, err := r.db.Exec(ctx, q, sellerID, publicID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
