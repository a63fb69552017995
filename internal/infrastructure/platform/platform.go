// Package platform is the boundary to the commerce platform: fetching the
// authoritative checkout total at init() time (fixing the trust-boundary
// bug spec.md §9 flags) and submitting the completed order after
// capture-all succeeds (spec.md §4.7). Same net/http client shape as the
// provider package's HTTPAdapter, grounded on the teacher's
// HTTPWalletHandler.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL     string
	httpClient  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CheckoutTotal is the authoritative total the platform reports for a
// checkout token, fetched during init() instead of trusting the widget.
type CheckoutTotal struct {
	TotalAmountCents int64
	Currency         string
	CustomerEmail    string
}

func (c *Client) GetCheckoutTotal(ctx context.Context, accessToken, checkoutToken string) (*CheckoutTotal, error) {
	var resp struct {
		TotalAmountCents int64  `json:"total_amount_cents"`
		Currency         string `json:"currency"`
		CustomerEmail    string `json:"customer_email"`
	}
	path := fmt.Sprintf("/admin/checkouts/%s.json", checkoutToken)
	if err := c.doJSON(ctx, "GET", path, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return &CheckoutTotal{
		TotalAmountCents: resp.TotalAmountCents,
		Currency:         resp.Currency,
		CustomerEmail:    resp.CustomerEmail,
	}, nil
}

// OrderRequest is the payload submitted to the platform's order-create API
// once every card has been captured.
type OrderRequest struct {
	CheckoutToken string            `json:"checkout_token"`
	TotalCents    int64             `json:"total_amount_cents"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Note          string            `json:"note"`
	Tags          []string          `json:"tags"`
	Metafields    map[string]string `json:"metafields"`
}

type OrderResult struct {
	OrderID     string
	OrderNumber string
}

func (c *Client) SubmitOrder(ctx context.Context, accessToken string, req OrderRequest) (*OrderResult, error) {
	var resp struct {
		OrderID     string `json:"order_id"`
		OrderNumber string `json:"order_number"`
	}
	if err := c.doJSON(ctx, "POST", "/admin/orders.json", accessToken, req, &resp); err != nil {
		return nil, err
	}
	return &OrderResult{OrderID: resp.OrderID, OrderNumber: resp.OrderNumber}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, accessToken string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Platform-Access-Token", accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read platform response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform returned status %d: %s", resp.StatusCode, string(respBytes))
	}
	if out != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("failed to decode platform response: %w", err)
		}
	}
	return nil
}
