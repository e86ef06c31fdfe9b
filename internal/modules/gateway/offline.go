package gateway

import "context"

// Offline covers methods with no provider behind them (cash on delivery,
// bank transfer). Creation always succeeds, money movement is confirmed by
// an operator, and there is nothing to look up for reconciliation.
type Offline struct {
	name string
}

func NewOffline(name string) *Offline { return &Offline{name: name} }

func (o *Offline) Name() string { return o.name }

func (o *Offline) CreatePayment(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	return CreateResponse{}, nil
}

func (o *Offline) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	// Refunds for offline methods are handed back outside the system
	// (cash, counter-transfer); the ledger records them, nothing to call.
	return RefundResponse{}, nil
}

func (o *Offline) Lookup(ctx context.Context, providerRef string) (Record, error) {
	return Record{}, ErrNotFound
}
