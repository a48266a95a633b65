package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type basicsStep struct {
	Title   string `json:"title" validate:"required,max=120"`
	Summary string `json:"summary" validate:"required,max=280"`
}

type detailsStep struct {
	Description string `json:"description" validate:"required,min=10"`
}

type reviewStep struct {
	Confirmed bool `json:"confirmed"`
}

func testEngine(t *testing.T) *Engine {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	def := Definition{
		Flow: "test_flow",
		Steps: []Step{
			{Name: "basics", Payload: func() interface{} { return &basicsStep{} }},
			{Name: "details", Payload: func() interface{} { return &detailsStep{} }},
			{Name: "review", Payload: func() interface{} { return &reviewStep{} }},
		},
		TTL: time.Hour,
	}
	return NewEngine(def, rdb)
}

func TestStart_OpensAtStepOne(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Step)
	assert.Equal(t, "basics", s.StepName(e.Definition()))
	assert.Len(t, s.Completed, 3)
	assert.Empty(t, s.Data)
}

func TestSavePayload_RequiredFieldBlocksAdvancement(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)

	// Missing summary: validation must fail and the step stays incomplete.
	_, fields, err := e.SavePayload(ctx, "user-1", s.ID, json.RawMessage(`{"title":"My project"}`))
	require.NoError(t, err)
	require.Contains(t, fields, "summary")
	assert.Equal(t, "this field is required", fields["summary"])

	_, err = e.Next(ctx, "user-1", s.ID)
	assert.ErrorIs(t, err, ErrStepIncomplete)

	got, err := e.Get(ctx, "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Step)
	assert.False(t, got.Completed[0])
}

func TestSavePayload_FieldErrorsUseJSONNames(t *testing.T) {
	type pricingStep struct {
		PriceCents   int64 `json:"price_cents" validate:"required,gte=100"`
		DeliveryDays int   `json:"delivery_days" validate:"required,gte=1"`
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := NewEngine(Definition{
		Flow: "pricing_flow",
		Steps: []Step{
			{Name: "pricing", Payload: func() interface{} { return &pricingStep{} }},
		},
		TTL: time.Hour,
	}, rdb)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)

	// Errors must be keyed by the JSON names the client posted, so the SPA
	// can attach them to the matching inputs.
	_, fields, err := e.SavePayload(ctx, "user-1", s.ID, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Contains(t, fields, "price_cents")
	require.Contains(t, fields, "delivery_days")
	assert.NotContains(t, fields, "pricecents")
	assert.NotContains(t, fields, "deliverydays")

	_, fields, err = e.SavePayload(ctx, "user-1", s.ID, json.RawMessage(`{"price_cents":50,"delivery_days":7}`))
	require.NoError(t, err)
	require.Contains(t, fields, "price_cents")
	assert.Equal(t, "must be 100 or more", fields["price_cents"])
	assert.NotContains(t, fields, "delivery_days")
}

func TestNextPrev_ClampToStepBounds(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)

	// Prev at step 1 stays at 1, however often it is called.
	for i := 0; i < 5; i++ {
		s, err = e.Prev(ctx, "user-1", s.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, s.Step)
	}

	complete := []json.RawMessage{
		json.RawMessage(`{"title":"T","summary":"S"}`),
		json.RawMessage(`{"description":"long enough text"}`),
		json.RawMessage(`{"confirmed":true}`),
	}
	for i, payload := range complete {
		_, fields, err := e.SavePayload(ctx, "user-1", s.ID, payload)
		require.NoError(t, err)
		require.Empty(t, fields, "step %d payload should validate", i+1)

		s, err = e.Next(ctx, "user-1", s.ID)
		require.NoError(t, err)
	}

	// Next at the final step stays at the final step.
	for i := 0; i < 5; i++ {
		s, err = e.Next(ctx, "user-1", s.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, s.Step)
	}
}

func TestSubmit_OnlyAtFinalStep(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)

	err = e.Submit(ctx, "user-1", s.ID, func(ctx context.Context, data map[string]json.RawMessage) error {
		t.Fatal("commit must not run before the final step")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFinalStep)
}

func TestSubmit_CommitsMergedDataAndDeletesSession(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)

	payloads := []json.RawMessage{
		json.RawMessage(`{"title":"T","summary":"S"}`),
		json.RawMessage(`{"description":"long enough text"}`),
		json.RawMessage(`{"confirmed":true}`),
	}
	for _, p := range payloads {
		_, fields, err := e.SavePayload(ctx, "user-1", s.ID, p)
		require.NoError(t, err)
		require.Empty(t, fields)
		s, err = e.Next(ctx, "user-1", s.ID)
		require.NoError(t, err)
	}

	var committed map[string]json.RawMessage
	err = e.Submit(ctx, "user-1", s.ID, func(ctx context.Context, data map[string]json.RawMessage) error {
		committed = data
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, committed, "basics")
	assert.Contains(t, committed, "details")
	assert.Contains(t, committed, "review")

	_, err = e.Get(ctx, "user-1", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmit_FailedCommitKeepsSession(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)

	payloads := []json.RawMessage{
		json.RawMessage(`{"title":"T","summary":"S"}`),
		json.RawMessage(`{"description":"long enough text"}`),
		json.RawMessage(`{"confirmed":true}`),
	}
	for _, p := range payloads {
		_, _, err := e.SavePayload(ctx, "user-1", s.ID, p)
		require.NoError(t, err)
		s, err = e.Next(ctx, "user-1", s.ID)
		require.NoError(t, err)
	}

	boom := errors.New("insert failed")
	err = e.Submit(ctx, "user-1", s.ID, func(ctx context.Context, data map[string]json.RawMessage) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// User can retry: the session is still there.
	got, err := e.Get(ctx, "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Step)
}

func TestSessions_AreScopedToUser(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, "user-1")
	require.NoError(t, err)

	_, err = e.Get(ctx, "user-2", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
