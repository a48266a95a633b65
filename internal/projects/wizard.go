package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillhive-app/skillhive-backend/internal/wizard"
)

// The four screens of the project submission wizard.

type basicsStep struct {
	Title   string   `json:"title" validate:"required,max=120"`
	Summary string   `json:"summary" validate:"required,max=280"`
	Tags    []string `json:"tags" validate:"max=8,dive,min=1,max=32"`
}

type detailsStep struct {
	Description string `json:"description" validate:"required,min=30,max=10000"`
}

type linksStep struct {
	RepoURL string `json:"repo_url" validate:"omitempty,url"`
	DemoURL string `json:"demo_url" validate:"omitempty,url"`
}

type reviewStep struct {
	PublishNow bool `json:"publish_now"`
}

// SubmissionFlow is the wizard definition for submitting a project.
func SubmissionFlow() wizard.Definition {
	return wizard.Definition{
		Flow: "project_submit",
		Steps: []wizard.Step{
			{Name: "basics", Payload: func() interface{} { return &basicsStep{} }},
			{Name: "details", Payload: func() interface{} { return &detailsStep{} }},
			{Name: "links", Payload: func() interface{} { return &linksStep{} }},
			{Name: "review", Payload: func() interface{} { return &reviewStep{} }},
		},
		TTL: 24 * time.Hour,
	}
}

// NewSubmissionWizard wires the flow to the repo: the final submit performs
// the single insert the SPA's wizard did.
func NewSubmissionWizard(rdb *redis.Client, repo *Repo, onCreated func()) *wizard.Handler {
	engine := wizard.NewEngine(SubmissionFlow(), rdb)

	commit := func(ctx context.Context, userID string, data map[string]json.RawMessage) (interface{}, error) {
		var basics basicsStep
		var details detailsStep
		var links linksStep
		var review reviewStep
		for name, dst := range map[string]interface{}{
			"basics":  &basics,
			"details": &details,
			"links":   &links,
			"review":  &review,
		} {
			if err := json.Unmarshal(data[name], dst); err != nil {
				return nil, fmt.Errorf("decode %s step: %w", name, err)
			}
		}

		status := StatusDraft
		if review.PublishNow {
			status = StatusPublished
		}

		p, err := repo.Create(ctx, userID, CreateParams{
			Title:       basics.Title,
			Summary:     basics.Summary,
			Description: details.Description,
			Tags:        basics.Tags,
			RepoURL:     optional(links.RepoURL),
			DemoURL:     optional(links.DemoURL),
			Status:      status,
		})
		if err != nil {
			return nil, err
		}
		if onCreated != nil {
			onCreated()
		}
		return p, nil
	}

	return wizard.NewHandler(engine, commit)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
