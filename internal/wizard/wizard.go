package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound       = errors.New("wizard session not found")
	ErrStepIncomplete = errors.New("current step is not complete")
	ErrNotFinalStep   = errors.New("wizard is not at the final step")
)

// Step is one screen of a linear flow. Payload returns a fresh pointer to
// the step's form struct; validation tags on that struct are the step's
// schema.
type Step struct {
	Name    string
	Payload func() interface{}
}

// Definition describes a whole flow: its ordered steps and how long an
// abandoned session survives.
type Definition struct {
	Flow  string
	Steps []Step
	TTL   time.Duration
}

// Session is the SPA wizard state held server-side: a single data object
// plus a 1-based step index. The index never leaves [1, len(steps)].
type Session struct {
	ID        string                     `json:"id"`
	Flow      string                     `json:"flow"`
	Step      int                        `json:"step"`
	Completed []bool                     `json:"completed"`
	Data      map[string]json.RawMessage `json:"data"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// StepName reports the name of the step the session currently shows.
func (s *Session) StepName(def Definition) string {
	return def.Steps[s.Step-1].Name
}

// FieldErrors maps form field -> human message, rendered inline by the SPA.
type FieldErrors map[string]string

// Engine drives one wizard flow over a Redis-backed session store.
type Engine struct {
	def      Definition
	store    *Store
	validate *validator.Validate
}

func NewEngine(def Definition, rdb *redis.Client) *Engine {
	if def.TTL == 0 {
		def.TTL = 24 * time.Hour
	}

	// Field errors are keyed by the JSON names the SPA posted, not the Go
	// struct field names, so inline errors land on the right inputs.
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Engine{
		def:      def,
		store:    NewStore(rdb, def.Flow, def.TTL),
		validate: v,
	}
}

func (e *Engine) Definition() Definition { return e.def }

// Start opens a new session at step 1 with no data.
func (e *Engine) Start(ctx context.Context, userID string) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		Flow:      e.def.Flow,
		Step:      1,
		Completed: make([]bool, len(e.def.Steps)),
		Data:      map[string]json.RawMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Put(ctx, userID, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) Get(ctx context.Context, userID, id string) (*Session, error) {
	return e.store.Get(ctx, userID, id)
}

// SavePayload validates raw against the current step's schema. On success
// the payload is stored and the step marked complete. On a validation
// failure the session does not change and the field errors are returned —
// an invalid step can never be marked complete.
func (e *Engine) SavePayload(ctx context.Context, userID, id string, raw json.RawMessage) (*Session, FieldErrors, error) {
	s, err := e.store.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	step := e.def.Steps[s.Step-1]
	payload := step.Payload()
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, FieldErrors{"_body": "invalid JSON payload"}, nil
	}

	if err := e.validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fieldErrors(verrs), nil
		}
		return nil, nil, fmt.Errorf("validate step %s: %w", step.Name, err)
	}

	normalized, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal step %s: %w", step.Name, err)
	}

	s.Data[step.Name] = normalized
	s.Completed[s.Step-1] = true
	s.UpdatedAt = time.Now().UTC()
	if err := e.store.Put(ctx, userID, s); err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

// Next advances one step. It refuses to move past an incomplete step and
// clamps at the final step no matter how often it is called.
func (e *Engine) Next(ctx context.Context, userID, id string) (*Session, error) {
	s, err := e.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if !s.Completed[s.Step-1] {
		return s, ErrStepIncomplete
	}

	if s.Step < len(e.def.Steps) {
		s.Step++
		s.UpdatedAt = time.Now().UTC()
		if err := e.store.Put(ctx, userID, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Prev moves one step back, clamping at step 1.
func (e *Engine) Prev(ctx context.Context, userID, id string) (*Session, error) {
	s, err := e.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if s.Step > 1 {
		s.Step--
		s.UpdatedAt = time.Now().UTC()
		if err := e.store.Put(ctx, userID, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CommitFunc performs the flow's single insert from the merged step data.
type CommitFunc func(ctx context.Context, data map[string]json.RawMessage) error

// Submit finishes the flow: only valid at the final step with every step
// complete. The session is deleted once the commit succeeds; a failed
// commit leaves it intact so the user can retry.
func (e *Engine) Submit(ctx context.Context, userID, id string, commit CommitFunc) error {
	s, err := e.store.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if s.Step != len(e.def.Steps) {
		return ErrNotFinalStep
	}
	for i, done := range s.Completed {
		if !done {
			return fmt.Errorf("%w: step %q", ErrStepIncomplete, e.def.Steps[i].Name)
		}
	}

	if err := commit(ctx, s.Data); err != nil {
		return err
	}

	return e.store.Delete(ctx, userID, id)
}

func fieldErrors(verrs validator.ValidationErrors) FieldErrors {
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = messageFor(fe)
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
