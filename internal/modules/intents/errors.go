package intents

import "tolovpay.uz/app/internal/shared/apperr"

// Shared error instances so callback handlers can map each rejection to the
// provider-specific ack code with errors.Is. Public messages stay generic.
var (
	ErrIntentNotFound  = apperr.NotFoundErr("transaction not found")
	ErrAmountMismatch  = apperr.InvalidErr("amount mismatch", nil)
	ErrAlreadyPaid     = apperr.InvalidStateErr("already paid")
	ErrIntentCancelled = apperr.InvalidStateErr("transaction cancelled")
	ErrNotPrepared     = apperr.InvalidStateErr("transaction not prepared")
	ErrRefMismatch     = apperr.InvalidStateErr("transaction reference mismatch")
)
