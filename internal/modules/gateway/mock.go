package gateway

import (
	"context"
	"sync"
	"time"
)

// Mock is a scriptable adapter for tests and local development. Behavior is
// set through the *Func fields; unset operations succeed with zero values.
type Mock struct {
	NameValue string

	CreateFunc func(req CreateRequest) (CreateResponse, error)
	RefundFunc func(req RefundRequest) (RefundResponse, error)
	LookupFunc func(providerRef string) (Record, error)

	mu          sync.Mutex
	createCalls int
	refundCalls int
	lookupCalls int
}

func (m *Mock) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *Mock) CreatePayment(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(req)
	}
	return CreateResponse{}, nil
}

func (m *Mock) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	m.mu.Lock()
	m.refundCalls++
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(req)
	}
	return RefundResponse{}, nil
}

func (m *Mock) Lookup(ctx context.Context, providerRef string) (Record, error) {
	m.mu.Lock()
	m.lookupCalls++
	m.mu.Unlock()
	if m.LookupFunc != nil {
		return m.LookupFunc(providerRef)
	}
	return Record{}, ErrNotFound
}

func (m *Mock) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

func (m *Mock) RefundCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refundCalls
}

func (m *Mock) LookupCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupCalls
}

// MockLister additionally satisfies Lister for reconciliation tests.
type MockLister struct {
	Mock
	ListFunc func(from, to time.Time) ([]Record, error)
}

func (m *MockLister) ListBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	if m.ListFunc != nil {
		return m.ListFunc(from, to)
	}
	return nil, nil
}

var (
	_ Adapter = (*Mock)(nil)
	_ Adapter = (*Click)(nil)
	_ Adapter = (*Oson)(nil)
	_ Adapter = (*CardGate)(nil)
	_ Adapter = (*Offline)(nil)
	_ Lister  = (*Oson)(nil)
	_ Lister  = (*MockLister)(nil)
)
