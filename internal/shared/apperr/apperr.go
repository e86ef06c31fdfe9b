package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	Invalid          Kind = "validation_error"
	NotFound         Kind = "not_found"
	Forbidden        Kind = "forbidden"
	Duplicate        Kind = "duplicate"
	InvalidSignature Kind = "invalid_signature"
	InvalidState     Kind = "invalid_state_transition"
	FraudRejected    Kind = "fraud_rejected"
	GatewayTransient Kind = "gateway_transient"
	GatewayPermanent Kind = "gateway_permanent"
	Internal         Kind = "internal"
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// Constructors. PublicMsg must stay short and free of internals.
func InvalidErr(publicMsg string, fields map[string]string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg, Fields: fields}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

func ForbiddenErr(publicMsg string) *AppError {
	return &AppError{Kind: Forbidden, PublicMsg: publicMsg}
}

func DuplicateErr(publicMsg string) *AppError {
	return &AppError{Kind: Duplicate, PublicMsg: publicMsg}
}

func InvalidSignatureErr() *AppError {
	// Deliberately uniform: callers never learn whether the signature or the
	// referenced transaction was the problem.
	return &AppError{Kind: InvalidSignature, PublicMsg: "rejected"}
}

func InvalidStateErr(publicMsg string) *AppError {
	return &AppError{Kind: InvalidState, PublicMsg: publicMsg}
}

func FraudRejectedErr(publicMsg string) *AppError {
	return &AppError{Kind: FraudRejected, PublicMsg: publicMsg}
}

func GatewayTransientErr(err error) *AppError {
	return &AppError{Kind: GatewayTransient, PublicMsg: "payment provider temporarily unavailable", Err: err}
}

func GatewayPermanentErr(publicMsg string, err error) *AppError {
	return &AppError{Kind: GatewayPermanent, PublicMsg: publicMsg, Err: err}
}

// Wrap hides an internal error behind a generic public message (default 500).
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: Internal, PublicMsg: "Unexpected error.", Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsKind(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusBadRequest
		case NotFound:
			return http.StatusNotFound
		case Forbidden:
			return http.StatusForbidden
		case Duplicate, InvalidState:
			return http.StatusConflict
		case InvalidSignature:
			return http.StatusUnauthorized
		case FraudRejected:
			return http.StatusUnprocessableEntity
		case GatewayPermanent:
			return http.StatusPaymentRequired
		case GatewayTransient:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return "Unexpected error."
}

func PublicCode(err error) string {
	if ae, ok := As(err); ok {
		return string(ae.Kind)
	}
	return string(Internal)
}
