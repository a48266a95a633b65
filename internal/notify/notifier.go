package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Notifier is the best-effort front door: enqueue never fails the request
// that triggered it, mirroring the SPA's "toast and move on" policy.
type Notifier struct {
	outbox  *Outbox
	invoker *Invoker
	log     *zap.Logger
}

func NewNotifier(outbox *Outbox, invoker *Invoker, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{outbox: outbox, invoker: invoker, log: log}
}

// Enqueue journals a notification for the worker to deliver. Failures are
// logged and swallowed.
func (n *Notifier) Enqueue(ctx context.Context, kind, recipient string, payload map[string]interface{}) {
	if n.outbox == nil {
		return
	}
	if err := n.outbox.Enqueue(ctx, kind, recipient, payload); err != nil {
		n.log.Error("notification enqueue failed",
			zap.String("kind", kind),
			zap.String("recipient", recipient),
			zap.Error(err))
	}
}

// Drain sends up to limit queued notifications and marks them sent.
// A send failure leaves the row unsent for the next pass.
func (n *Notifier) Drain(ctx context.Context, limit int) (int, error) {
	pending, err := n.outbox.ListUnsent(ctx, limit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range pending {
		var payload map[string]interface{}
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			n.log.Error("bad notification payload", zap.Int64("id", e.ID), zap.Error(err))
			continue
		}

		if err := n.invoker.Send(ctx, e.Kind, e.Recipient, payload); err != nil {
			n.log.Warn("notification send failed", zap.Int64("id", e.ID), zap.Error(err))
			continue
		}
		if err := n.outbox.MarkSent(ctx, e.ID); err != nil {
			n.log.Warn("notification mark-sent failed", zap.Int64("id", e.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
