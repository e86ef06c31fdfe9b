// Package webhooks implements the provider callback contracts: parsing,
// keyed-digest verification and ack vocabularies. Each processor turns a
// verified callback into orchestrator calls and always answers with the
// provider's own ack format; transport errors never leak provider secrets.
package webhooks

import (
	"context"

	"tolovpay.uz/app/internal/modules/intents"
)

// Applier is the orchestrator surface the processors drive.
type Applier interface {
	ApplyPrepare(ctx context.Context, in intents.WebhookInput) (intents.WebhookResult, error)
	ApplyComplete(ctx context.Context, in intents.WebhookInput) (intents.WebhookResult, error)
	ApplyFailure(ctx context.Context, in intents.WebhookInput) (intents.WebhookResult, error)
}

var _ Applier = (*intents.Service)(nil)
