package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PlatformAdapter integrates the manual card/SBP transfer provider: invoices
// carry bank requisites, the customer uploads a receipt, and an operator on
// the provider side confirms or disputes the payment.
type PlatformAdapter struct {
	name    string
	method  string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPlatformCardAdapter(baseURL, apiKey string) *PlatformAdapter {
	return newPlatformAdapter("platform_card", "card", baseURL, apiKey)
}

func NewPlatformSBPAdapter(baseURL, apiKey string) *PlatformAdapter {
	return newPlatformAdapter("platform_sbp", "sbp", baseURL, apiKey)
}

func newPlatformAdapter(name, method, baseURL, apiKey string) *PlatformAdapter {
	return &PlatformAdapter{
		name:    name,
		method:  method,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *PlatformAdapter) Name() string { return p.name }

type platformCreateRequest struct {
	ExternalID string `json:"external_id"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
}

type platformCreateResponse struct {
	ID         string `json:"id"`
	Requisites struct {
		BankName   string `json:"bank_name"`
		CardNumber string `json:"card_number,omitempty"`
		Phone      string `json:"phone,omitempty"`
		Holder     string `json:"holder"`
		Comment    string `json:"comment,omitempty"`
	} `json:"requisites"`
}

func (p *PlatformAdapter) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*RemoteInvoice, error) {
	body := platformCreateRequest{
		ExternalID: req.OrderID.String(),
		Amount:     req.Amount.StringFixed(2),
		Method:     p.method,
	}
	var resp platformCreateResponse
	if err := p.do(ctx, http.MethodPost, "/api/orders", body, &resp); err != nil {
		return nil, fmt.Errorf("platform create invoice: %w", err)
	}
	details, err := json.Marshal(resp.Requisites)
	if err != nil {
		return nil, err
	}
	return &RemoteInvoice{GatewayInvoiceID: resp.ID, PaymentDetails: details}, nil
}

type platformStatusResponse struct {
	Status string `json:"status"`
}

func (p *PlatformAdapter) OrderStatus(ctx context.Context, gatewayInvoiceID string) (Status, error) {
	var resp platformStatusResponse
	if err := p.do(ctx, http.MethodGet, "/api/orders/"+gatewayInvoiceID, nil, &resp); err != nil {
		return "", fmt.Errorf("platform invoice status: %w", err)
	}
	switch resp.Status {
	case "created", "new":
		return StatusPending, nil
	case "confirmed", "processing":
		return StatusProcessing, nil
	case "awaiting_receipt":
		return StatusAwaitingReceipt, nil
	case "receipt_review", "dispute":
		return StatusDisputed, nil
	case "done", "paid":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	case "failed", "expired":
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("platform invoice status: unknown status %q", resp.Status)
	}
}

func (p *PlatformAdapter) Confirm(ctx context.Context, gatewayInvoiceID string) error {
	if err := p.do(ctx, http.MethodPost, "/api/orders/"+gatewayInvoiceID+"/confirm", struct{}{}, nil); err != nil {
		return fmt.Errorf("platform confirm: %w", err)
	}
	return nil
}

func (p *PlatformAdapter) Cancel(ctx context.Context, gatewayInvoiceID string) error {
	if err := p.do(ctx, http.MethodPost, "/api/orders/"+gatewayInvoiceID+"/cancel", struct{}{}, nil); err != nil {
		return fmt.Errorf("platform cancel: %w", err)
	}
	return nil
}

type platformReceiptRequest struct {
	ReceiptURL string `json:"receipt_url"`
}

func (p *PlatformAdapter) SendReceipt(ctx context.Context, gatewayInvoiceID, receiptURL string) error {
	body := platformReceiptRequest{ReceiptURL: receiptURL}
	if err := p.do(ctx, http.MethodPost, "/api/orders/"+gatewayInvoiceID+"/receipt", body, nil); err != nil {
		return fmt.Errorf("platform send receipt: %w", err)
	}
	return nil
}

func (p *PlatformAdapter) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected code %d: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
