package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("proposal not found")
	ErrInvalidTransition = errors.New("proposal is no longer pending")
	ErrOwnListing        = errors.New("cannot propose on your own listing")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

type Proposal struct {
	ID              string    `json:"id"`
	ListingPublicID string    `json:"listing_public_id"`
	ListingTitle    string    `json:"listing_title"`
	BuyerID         string    `json:"buyer_id"`
	SellerID        string    `json:"seller_id"`
	Message         string    `json:"message"`
	OfferCents      int64     `json:"offer_cents"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const proposalCols = `
  p.id::text, l.public_id, l.title, p.buyer_id::text, l.seller_id::text,
  p.message, p.offer_cents, p.status, p.created_at, p.updated_at`

// Create opens a pending proposal against an active listing. Proposing on
// your own listing is rejected.
func (r *Repo) Create(ctx context.Context, buyerID, listingPublicID, message string, offerCents int64) (*Proposal, error) {
	const lookup = `
select id::text, seller_id::text
from listings
where public_id = $1 and status = 'active' and deleted_at is null;
`
	var listingID, sellerID string
	err := r.db.QueryRow(ctx, lookup, listingPublicID).Scan(&listingID, &sellerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sellerID == buyerID {
		return nil, ErrOwnListing
	}

	const q = `
insert into proposals (listing_id, buyer_id, message, offer_cents, status)
values ($1::uuid, $2::uuid, $3, $4, 'pending')
returning id::text, created_at, updated_at;
`
	p := &Proposal{
		ListingPublicID: listingPublicID,
		BuyerID:         buyerID,
		SellerID:        sellerID,
		Message:         message,
		OfferCents:      offerCents,
		Status:          StatusPending,
	}
	if err := r.db.QueryRow(ctx, q, listingID, buyerID, message, offerCents).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// ListSent returns the proposals the caller made as a buyer.
func (r *Repo) ListSent(ctx context.Context, buyerID string) ([]Proposal, error) {
	const q = `
select ` + proposalCols + `
from proposals p
join listings l on l.id = p.listing_id
where p.buyer_id = $1::uuid
order by p.created_at desc;
`
	return r.list(ctx, q, buyerID)
}

// ListReceived returns the proposals on the caller's listings.
func (r *Repo) ListReceived(ctx context.Context, sellerID string) ([]Proposal, error) {
	const q = `
select ` + proposalCols + `
from proposals p
join listings l on l.id = p.listing_id
where l.seller_id = $1::uuid
order by p.created_at desc;
`
	return r.list(ctx, q, sellerID)
}

func (r *Repo) list(ctx context.Context, q string, args ...interface{}) ([]Proposal, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Proposal, 0, 8)
	for rows.Next() {
		var p Proposal
		if err := rows.Scan(&p.ID, &p.ListingPublicID, &p.ListingTitle, &p.BuyerID, &p.SellerID,
			&p.Message, &p.OfferCents, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns a proposal visible to either of its two parties.
func (r *Repo) Get(ctx context.Context, callerID, id string) (*Proposal, error) {
	const q = `
select ` + proposalCols + `
from proposals p
join listings l on l.id = p.listing_id
where p.id = $1::uuid and (p.buyer_id = $2::uuid or l.seller_id = $2::uuid);
`
	var p Proposal
	err := r.db.QueryRow(ctx, q, id, callerID).Scan(&p.ID, &p.ListingPublicID, &p.ListingTitle,
		&p.BuyerID, &p.SellerID, &p.Message, &p.OfferCents, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Transition moves a pending proposal to a new status on behalf of the
// caller. The role check and the pending guard both run again inside the
// statement, so a stale read can never bypass the flow.
func (r *Repo) Transition(ctx context.Context, callerID, id, to string, actor Actor) (*Proposal, error) {
	p, err := r.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	switch actor {
	case ActorBuyer:
		if p.BuyerID != callerID {
			return nil, ErrNotFound
		}
	case ActorSeller:
		if p.SellerID != callerID {
			return nil, ErrNotFound
		}
	}

	if !CanTransition(p.Status, to, actor) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}

	const q = `
update proposals
set status = $2, updated_at = now()
where id = $1::uuid and status = 'pending';
`
	ct, err := r.db.Exec(ctx, q, id, to)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}

	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return p, nil
}
