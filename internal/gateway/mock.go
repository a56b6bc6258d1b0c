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

// MockAdapter talks to the sandbox payment emulator. It auto-confirms
// invoices, which makes it the default gateway for staging installs.
type MockAdapter struct {
	baseURL string
	client  *http.Client
}

func NewMockAdapter(baseURL string) *MockAdapter {
	return &MockAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *MockAdapter) Name() string { return "mock" }

type mockCreateRequest struct {
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
}

type mockCreateResponse struct {
	InvoiceID string `json:"invoice_id"`
	PayURL    string `json:"pay_url"`
}

func (m *MockAdapter) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*RemoteInvoice, error) {
	body := mockCreateRequest{OrderID: req.OrderID.String(), Amount: req.Amount.StringFixed(2)}
	var resp mockCreateResponse
	if err := m.post(ctx, "/invoices", body, &resp); err != nil {
		return nil, fmt.Errorf("mock create invoice: %w", err)
	}
	details, err := json.Marshal(map[string]string{"pay_url": resp.PayURL})
	if err != nil {
		return nil, err
	}
	return &RemoteInvoice{GatewayInvoiceID: resp.InvoiceID, PaymentDetails: details}, nil
}

type mockStatusResponse struct {
	Status string `json:"status"`
}

func (m *MockAdapter) OrderStatus(ctx context.Context, gatewayInvoiceID string) (Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/invoices/"+gatewayInvoiceID, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mock invoice status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mock invoice status: unexpected code %d", resp.StatusCode)
	}
	var st mockStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return "", err
	}
	switch st.Status {
	case "paid":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	case "failed":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

func (m *MockAdapter) Confirm(ctx context.Context, gatewayInvoiceID string) error {
	return m.post(ctx, "/invoices/"+gatewayInvoiceID+"/confirm", struct{}{}, nil)
}

func (m *MockAdapter) Cancel(ctx context.Context, gatewayInvoiceID string) error {
	return m.post(ctx, "/invoices/"+gatewayInvoiceID+"/cancel", struct{}{}, nil)
}

func (m *MockAdapter) SendReceipt(ctx context.Context, gatewayInvoiceID, receiptURL string) error {
	// The sandbox auto-confirms; there is no receipt step.
	return nil
}

func (m *MockAdapter) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(httpReq)
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
