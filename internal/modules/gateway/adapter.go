package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNotFound: the provider has no record for the given reference.
// Reconciliation treats this as a finding, never as a failure.
var ErrNotFound = errors.New("gateway: transaction not found")

type CreateRequest struct {
	IntentID    string // merchant-side correlation id sent to the provider
	OrderID     string
	AmountTiyin int64
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

type CreateResponse struct {
	ProviderRef string // empty when the provider assigns it later (prepare callback)
	RedirectURL string // redirect methods
	ClientToken string // card tokenization flows
}

type RefundRequest struct {
	IntentID    string
	ProviderRef string
	AmountTiyin int64
	Reason      string
}

type RefundResponse struct {
	ProviderRef string
}

// Record is the provider's view of one transaction, used by reconciliation.
type Record struct {
	ProviderRef string
	MerchantRef string
	AmountTiyin int64
	Status      string
	PaidAt      *time.Time
}

// Adapter wraps one provider's call conventions behind a uniform surface.
// Implementations carry their own credentials and timeouts; none of them
// keeps mutable package-level state.
type Adapter interface {
	Name() string
	CreatePayment(ctx context.Context, req CreateRequest) (CreateResponse, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResponse, error)
	Lookup(ctx context.Context, providerRef string) (Record, error)
}

// Lister is an optional capability: providers that can enumerate their
// transactions for a window let reconciliation detect records missing locally.
type Lister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]Record, error)
}

// Error carries the transient/permanent classification the retry policy
// branches on.
type Error struct {
	Provider  string
	Transient bool
	Code      string
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func TransientErr(provider, msg string, err error) *Error {
	return &Error{Provider: provider, Transient: true, Msg: msg, Err: err}
}

func PermanentErr(provider, code, msg string) *Error {
	return &Error{Provider: provider, Transient: false, Code: code, Msg: msg}
}

// IsTransient classifies an adapter error. Network timeouts and anything an
// adapter tagged transient retry; everything else short-circuits.
func IsTransient(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Transient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// classifyStatus maps an HTTP response code: 5xx is transient, other
// non-2xx permanent.
func classifyStatus(provider string, status int) error {
	if status >= 500 {
		return TransientErr(provider, fmt.Sprintf("provider returned %d", status), nil)
	}
	return PermanentErr(provider, fmt.Sprintf("http_%d", status), fmt.Sprintf("provider rejected request (%d)", status))
}
