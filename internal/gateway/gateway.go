// Package gateway defines the uniform payment-provider interface and the
// runtime registry that maps configured gateway names to adapters.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrUnknownGateway = errors.New("unknown payment gateway")

// Status is the provider-side view of an invoice.
type Status string

const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusAwaitingReceipt Status = "awaiting_receipt"
	StatusDisputed        Status = "disputed"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

type CreateInvoiceRequest struct {
	OrderID    uuid.UUID
	CustomerID int64
	Amount     decimal.Decimal
}

// RemoteInvoice is what a provider returns for a freshly created invoice.
// PaymentDetails is provider-specific (pay URL, bank requisites, ...).
type RemoteInvoice struct {
	GatewayInvoiceID string
	PaymentDetails   json.RawMessage
}

type Adapter interface {
	Name() string
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*RemoteInvoice, error)
	OrderStatus(ctx context.Context, gatewayInvoiceID string) (Status, error)
	// Confirm asks the provider to start processing a manually confirmed
	// payment. Providers without that step return nil.
	Confirm(ctx context.Context, gatewayInvoiceID string) error
	Cancel(ctx context.Context, gatewayInvoiceID string) error
	SendReceipt(ctx context.Context, gatewayInvoiceID, receiptURL string) error
}

// Registry resolves gateway names to adapters. Adapters are registered at
// startup from configuration; selection happens at request time.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
