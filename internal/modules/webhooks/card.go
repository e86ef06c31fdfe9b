package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
	"tolovpay.uz/app/internal/shared/apperr"
)

// Card acquirer webhook event types.
const (
	CardEventSucceeded = "payment.succeeded"
	CardEventFailed    = "payment.failed"
)

// CardSignatureTolerance bounds how stale a signed timestamp may be.
const CardSignatureTolerance = 5 * time.Minute

// CardEvent is the JSON webhook body from the card acquirer.
type CardEvent struct {
	Type        string `json:"type"`
	OrderRef    string `json:"order_ref"`    // acquirer transaction id
	MerchantRef string `json:"merchant_ref"` // our intent id
	AmountTiyin int64  `json:"amount"`
	Reason      string `json:"reason,omitempty"`
}

type CardProcessor struct {
	svc    Applier
	secret string
	logger *slog.Logger
	now    func() time.Time
}

func NewCardProcessor(svc Applier, webhookSecret string, logger *slog.Logger) *CardProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardProcessor{svc: svc, secret: webhookSecret, logger: logger, now: time.Now}
}

// Process verifies the signature header against the raw body, then applies
// the event. The error maps to an HTTP status upstream; the acquirer only
// needs 2xx vs not.
func (p *CardProcessor) Process(ctx context.Context, body []byte, sigHeader string) error {
	if err := p.verify(body, sigHeader); err != nil {
		p.logger.WarnContext(ctx, "card webhook signature rejected", "err", err)
		return apperr.InvalidSignatureErr()
	}

	var ev CardEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return apperr.InvalidErr("malformed webhook body", nil)
	}

	in := intents.WebhookInput{
		Provider:        gateway.ProviderCard,
		MerchantTransID: ev.MerchantRef,
		ProviderTransID: ev.OrderRef,
		AmountTiyin:     ev.AmountTiyin,
		Payload:         body,
	}

	switch ev.Type {
	case CardEventSucceeded:
		_, err := p.svc.ApplyComplete(ctx, in)
		return err
	case CardEventFailed:
		in.Reason = ev.Reason
		_, err := p.svc.ApplyFailure(ctx, in)
		return err
	default:
		// Unknown event types are acked so the acquirer stops redelivering.
		p.logger.InfoContext(ctx, "card webhook event ignored", "type", ev.Type)
		return nil
	}
}

// verify checks the `t=<unix>,v1=<hex>` header: HMAC-SHA256 over
// "<t>.<body>" with the shared webhook secret, timestamp within tolerance.
func (p *CardProcessor) verify(body []byte, header string) error {
	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return errors.New("bad timestamp")
			}
			ts = n
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return errors.New("missing signature fields")
	}

	age := p.now().Sub(time.Unix(ts, 0))
	if age > CardSignatureTolerance || age < -CardSignatureTolerance {
		return errors.New("timestamp outside tolerance")
	}

	want := CardSign(p.secret, ts, body)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(sig))) {
		return errors.New("digest mismatch")
	}
	return nil
}

// CardSign computes the acquirer webhook signature for a timestamp and raw
// body. Exposed so tools can sign synthetic deliveries.
func CardSign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
