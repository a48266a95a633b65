package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/skillhive-app/skillhive-backend/config"
)

const systemPrompt = `You are SkillHive's AI tutor. Answer questions about programming,
AI and the learner's projects. Keep answers concise and practical.`

// Client talks to the hosted tutor LLM service. Calls are rate limited so
// one busy learner cannot starve the shared quota.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.UpstreamConfig) *Client {
	rps := cfg.TutorRPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL: cfg.TutorURL,
		model:   cfg.TutorModel,
		// No overall timeout: completions stream for as long as they need.
		http:    &http.Client{Timeout: 0},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Delta is one decoded streaming fragment from the completion endpoint.
type Delta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream opens a streaming completion for the conversation so far. The
// caller owns the returned body and must close it.
func (c *Client) Stream(ctx context.Context, history []Turn, message string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, t := range history {
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Text})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: message})

	payload, err := json.Marshal(map[string]interface{}{
		"model":    c.model,
		"messages": msgs,
		"stream":   true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tutor upstream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("tutor upstream returned %d: %s", resp.StatusCode, string(b))
	}

	return resp.Body, nil
}

// DecodeDelta extracts the text fragment from one streamed data payload.
func DecodeDelta(data string) (string, bool) {
	var d Delta
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return "", false
	}
	if len(d.Choices) == 0 {
		return "", false
	}
	return d.Choices[0].Delta.Content, true
}
