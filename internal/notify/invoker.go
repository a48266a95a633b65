package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skillhive-app/skillhive-backend/config"
)

// Invoker calls the hosted serverless email functions. The function bodies
// live outside this repo; we only own the invocation contract.
type Invoker struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewInvoker(cfg config.FunctionsConfig) *Invoker {
	return &Invoker{
		baseURL: cfg.BaseURL,
		secret:  cfg.Secret,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether a functions endpoint is set. Unconfigured
// environments (local dev) skip sending entirely.
func (i *Invoker) Configured() bool { return i.baseURL != "" }

// Send invokes the send-email function with the message kind, recipient
// and template payload.
func (i *Invoker) Send(ctx context.Context, kind, recipient string, payload map[string]interface{}) error {
	if !i.Configured() {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"kind":      kind,
		"recipient": recipient,
		"payload":   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/send-email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Function-Secret", i.secret)

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoke send-email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send-email returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
