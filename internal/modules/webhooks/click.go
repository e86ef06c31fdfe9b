package webhooks

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
	"tolovpay.uz/app/internal/shared/money"
)

// Click callback actions.
const (
	ClickActionPrepare  = 0
	ClickActionComplete = 1
)

// Click ack codes. The provider retries or aborts based on these, so the
// vocabulary is part of the contract.
const (
	ClickOK             = 0
	ClickErrSign        = -1
	ClickErrAmount      = -2
	ClickErrAction      = -3
	ClickErrAlreadyPaid = -4
	ClickErrNotFound    = -5
	ClickErrNoTrans     = -6
	ClickErrBadRequest  = -8
	ClickErrCancelled   = -9
)

// ClickRequest is the form-encoded callback body. merchant_trans_id carries
// our intent id; merchant_prepare_id echoes what we returned from prepare.
type ClickRequest struct {
	ClickTransID      int64  `form:"click_trans_id" json:"click_trans_id" binding:"required"`
	ServiceID         int64  `form:"service_id" json:"service_id" binding:"required"`
	ClickPaydocID     int64  `form:"click_paydoc_id" json:"click_paydoc_id"`
	MerchantTransID   string `form:"merchant_trans_id" json:"merchant_trans_id" binding:"required"`
	MerchantPrepareID string `form:"merchant_prepare_id" json:"merchant_prepare_id"`
	Amount            string `form:"amount" json:"amount" binding:"required"`
	Action            int    `form:"action" json:"action"`
	ErrorCode         int    `form:"error" json:"error"`
	ErrorNote         string `form:"error_note" json:"error_note"`
	SignTime          string `form:"sign_time" json:"sign_time" binding:"required"`
	SignString        string `form:"sign_string" json:"sign_string" binding:"required"`
}

type ClickResponse struct {
	ClickTransID      int64  `json:"click_trans_id"`
	MerchantTransID   string `json:"merchant_trans_id"`
	MerchantPrepareID string `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID string `json:"merchant_confirm_id,omitempty"`
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
}

type ClickProcessor struct {
	svc       Applier
	serviceID int64
	secretKey string
	logger    *slog.Logger
}

func NewClickProcessor(svc Applier, serviceID int64, secretKey string, logger *slog.Logger) *ClickProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickProcessor{svc: svc, serviceID: serviceID, secretKey: secretKey, logger: logger}
}

// Process runs one callback and always produces an ack; HTTP-level failure
// would only make the provider redeliver.
func (p *ClickProcessor) Process(ctx context.Context, req ClickRequest) ClickResponse {
	ack := ClickResponse{ClickTransID: req.ClickTransID, MerchantTransID: req.MerchantTransID}

	// Verify before anything else. A bad digest gets the same answer no
	// matter whether the transaction exists.
	if !verifyClickSign(p.secretKey, req) {
		p.logger.WarnContext(ctx, "click callback signature rejected",
			"click_trans_id", req.ClickTransID, "action", req.Action)
		ack.Error = ClickErrSign
		ack.ErrorNote = "SIGN CHECK FAILED"
		return ack
	}
	if req.ServiceID != p.serviceID {
		ack.Error = ClickErrBadRequest
		ack.ErrorNote = "Unknown service"
		return ack
	}

	amount, err := money.ParseSumToTiyin(req.Amount)
	if err != nil {
		ack.Error = ClickErrAmount
		ack.ErrorNote = "Incorrect amount"
		return ack
	}

	payload, _ := json.Marshal(req)
	in := intents.WebhookInput{
		Provider:        gateway.ProviderClick,
		MerchantTransID: req.MerchantTransID,
		ProviderTransID: strconv.FormatInt(req.ClickTransID, 10),
		AmountTiyin:     amount,
		Payload:         payload,
	}

	switch req.Action {
	case ClickActionPrepare:
		res, err := p.svc.ApplyPrepare(ctx, in)
		if err != nil {
			return clickReject(ack, err)
		}
		ack.MerchantPrepareID = res.PrepareID
		ack.ErrorNote = "Success"
		return ack

	case ClickActionComplete:
		// error < 0 on a complete means the payment failed on the provider
		// side; we mark the intent failed and ack with the cancel code.
		if req.ErrorCode < 0 {
			in.Reason = req.ErrorNote
			if _, err := p.svc.ApplyFailure(ctx, in); err != nil && errors.Is(err, intents.ErrIntentNotFound) {
				return clickReject(ack, err)
			}
			ack.Error = ClickErrCancelled
			ack.ErrorNote = "Transaction cancelled"
			return ack
		}

		in.MerchantPrepareID = req.MerchantPrepareID
		res, err := p.svc.ApplyComplete(ctx, in)
		if err != nil {
			return clickReject(ack, err)
		}
		ack.MerchantConfirmID = res.PrepareID
		ack.ErrorNote = "Success"
		return ack

	default:
		ack.Error = ClickErrAction
		ack.ErrorNote = "Action not found"
		return ack
	}
}

func clickReject(ack ClickResponse, err error) ClickResponse {
	switch {
	case errors.Is(err, intents.ErrIntentNotFound):
		ack.Error, ack.ErrorNote = ClickErrNotFound, "Transaction not found"
	case errors.Is(err, intents.ErrAmountMismatch):
		ack.Error, ack.ErrorNote = ClickErrAmount, "Incorrect amount"
	case errors.Is(err, intents.ErrAlreadyPaid):
		ack.Error, ack.ErrorNote = ClickErrAlreadyPaid, "Already paid"
	case errors.Is(err, intents.ErrIntentCancelled):
		ack.Error, ack.ErrorNote = ClickErrCancelled, "Transaction cancelled"
	case errors.Is(err, intents.ErrNotPrepared), errors.Is(err, intents.ErrRefMismatch):
		ack.Error, ack.ErrorNote = ClickErrNoTrans, "Transaction does not exist"
	default:
		ack.Error, ack.ErrorNote = ClickErrBadRequest, "Error in request"
	}
	return ack
}

// ClickSign computes the Click keyed digest: md5 over click_trans_id +
// service_id + secret + merchant_trans_id [+ merchant_prepare_id on
// complete] + amount + action + sign_time. Exposed so tools can sign
// synthetic callbacks.
func ClickSign(secret string, req ClickRequest) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(req.ClickTransID, 10))
	b.WriteString(strconv.FormatInt(req.ServiceID, 10))
	b.WriteString(secret)
	b.WriteString(req.MerchantTransID)
	if req.Action == ClickActionComplete {
		b.WriteString(req.MerchantPrepareID)
	}
	b.WriteString(req.Amount)
	b.WriteString(strconv.Itoa(req.Action))
	b.WriteString(req.SignTime)
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func verifyClickSign(secret string, req ClickRequest) bool {
	want := ClickSign(secret, req)
	got := strings.ToLower(strings.TrimSpace(req.SignString))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
