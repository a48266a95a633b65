package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillhive-app/skillhive-backend/internal/wizard"
)

// The four screens of the listing creation wizard.

type basicsStep struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"required,min=30,max=5000"`
	Category    string `json:"category" validate:"required,oneof=engineering ai design writing marketing other"`
}

type pricingStep struct {
	PriceCents   int64 `json:"price_cents" validate:"required,gte=100,lte=1000000"`
	DeliveryDays int   `json:"delivery_days" validate:"required,gte=1,lte=90"`
}

type mediaStep struct {
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

type reviewStep struct {
	AgreeTerms bool `json:"agree_terms" validate:"required,eq=true"`
}

// CreationFlow is the wizard definition for creating a service listing.
func CreationFlow() wizard.Definition {
	return wizard.Definition{
		Flow: "listing_create",
		Steps: []wizard.Step{
			{Name: "basics", Payload: func() interface{} { return &basicsStep{} }},
			{Name: "pricing", Payload: func() interface{} { return &pricingStep{} }},
			{Name: "media", Payload: func() interface{} { return &mediaStep{} }},
			{Name: "review", Payload: func() interface{} { return &reviewStep{} }},
		},
		TTL: 24 * time.Hour,
	}
}

// NewCreationWizard binds the flow to the repo; submit is the one insert.
func NewCreationWizard(rdb *redis.Client, repo *Repo, onCreated func()) *wizard.Handler {
	engine := wizard.NewEngine(CreationFlow(), rdb)

	commit := func(ctx context.Context, userID string, data map[string]json.RawMessage) (interface{}, error) {
		var basics basicsStep
		var pricing pricingStep
		var media mediaStep
		for name, dst := range map[string]interface{}{
			"basics":  &basics,
			"pricing": &pricing,
			"media":   &media,
		} {
			if err := json.Unmarshal(data[name], dst); err != nil {
				return nil, fmt.Errorf("decode %s step: %w", name, err)
			}
		}

		var imageURL *string
		if media.ImageURL != "" {
			imageURL = &media.ImageURL
		}

		l, err := repo.Create(ctx, userID, CreateParams{
			Title:        basics.Title,
			Description:  basics.Description,
			Category:     basics.Category,
			PriceCents:   pricing.PriceCents,
			DeliveryDays: pricing.DeliveryDays,
			ImageURL:     imageURL,
		})
		if err != nil {
			return nil, err
		}
		if onCreated != nil {
			onCreated()
		}
		return l, nil
	}

	return wizard.NewHandler(engine, commit)
}
