package webhooks

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
)

// Oson callback actions.
const (
	OsonActionPrepare  = "prepare"
	OsonActionComplete = "complete"
	OsonActionFail     = "fail"
)

// Oson status codes in our ack.
const (
	OsonOK             = 0
	OsonErrSign        = -10
	OsonErrAmount      = -11
	OsonErrAlreadyDone = -12
	OsonErrNotFound    = -13
	OsonErrInternal    = -14
)

// OsonRequest is the JSON callback body. merchant_ref carries our intent
// id; amount is in tiyin, no decimal strings on this contract.
type OsonRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	MerchantRef   string `json:"merchant_ref" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	Action        string `json:"action" binding:"required"`
	Reason        string `json:"reason"`
	Timestamp     int64  `json:"timestamp" binding:"required"`
	Sign          string `json:"sign" binding:"required"`
}

type OsonResponse struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	MerchantRef string `json:"merchant_ref,omitempty"`
}

type OsonProcessor struct {
	svc       Applier
	secretKey string
	logger    *slog.Logger
}

func NewOsonProcessor(svc Applier, secretKey string, logger *slog.Logger) *OsonProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &OsonProcessor{svc: svc, secretKey: secretKey, logger: logger}
}

func (p *OsonProcessor) Process(ctx context.Context, req OsonRequest) OsonResponse {
	if !verifyOsonSign(p.secretKey, req) {
		p.logger.WarnContext(ctx, "oson callback signature rejected",
			"transaction_id", req.TransactionID, "action", req.Action)
		return OsonResponse{Status: OsonErrSign, Message: "invalid signature"}
	}

	payload, _ := json.Marshal(req)
	in := intents.WebhookInput{
		Provider:        gateway.ProviderOson,
		MerchantTransID: req.MerchantRef,
		ProviderTransID: req.TransactionID,
		AmountTiyin:     req.Amount,
		Payload:         payload,
	}

	var res intents.WebhookResult
	var err error
	switch req.Action {
	case OsonActionPrepare:
		res, err = p.svc.ApplyPrepare(ctx, in)
	case OsonActionComplete:
		in.MerchantPrepareID = req.MerchantRef
		res, err = p.svc.ApplyComplete(ctx, in)
	case OsonActionFail:
		in.Reason = req.Reason
		res, err = p.svc.ApplyFailure(ctx, in)
	default:
		return OsonResponse{Status: OsonErrInternal, Message: "unknown action"}
	}
	if err != nil {
		return osonReject(err)
	}

	msg := "ok"
	if res.Duplicate {
		msg = "already processed"
	}
	return OsonResponse{Status: OsonOK, Message: msg, MerchantRef: res.PrepareID}
}

func osonReject(err error) OsonResponse {
	switch {
	case errors.Is(err, intents.ErrIntentNotFound),
		errors.Is(err, intents.ErrNotPrepared),
		errors.Is(err, intents.ErrRefMismatch):
		return OsonResponse{Status: OsonErrNotFound, Message: "transaction not found"}
	case errors.Is(err, intents.ErrAmountMismatch):
		return OsonResponse{Status: OsonErrAmount, Message: "amount mismatch"}
	case errors.Is(err, intents.ErrAlreadyPaid),
		errors.Is(err, intents.ErrIntentCancelled):
		return OsonResponse{Status: OsonErrAlreadyDone, Message: "already processed"}
	default:
		return OsonResponse{Status: OsonErrInternal, Message: "internal error"}
	}
}

// OsonSign computes the Oson keyed digest: sha256 over secret +
// merchant_ref + transaction_id + amount + action + timestamp. Field order
// deliberately differs from Click's.
func OsonSign(secret string, req OsonRequest) string {
	h := sha256.Sum256([]byte(secret + req.MerchantRef + req.TransactionID +
		strconv.FormatInt(req.Amount, 10) + req.Action + strconv.FormatInt(req.Timestamp, 10)))
	return hex.EncodeToString(h[:])
}

func verifyOsonSign(secret string, req OsonRequest) bool {
	want := OsonSign(secret, req)
	got := strings.ToLower(strings.TrimSpace(req.Sign))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
