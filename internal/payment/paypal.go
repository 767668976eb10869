package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hstoff/storefront/internal/models"
)

// Config carries the PayPal REST credentials and the storefront base URL the
// customer returns to after approving a payment.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	FrontendURL  string
	Timeout      time.Duration
}

// Client talks to the PayPal Orders v2 API. An order-level authorization is
// opened with CreateAuthorization and finalized with Capture; the processor
// keeps the authoritative state, queryable via GetAuthorization.
type Client struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient creates new Client instance
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type amountPayload struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
	PurchaseUnits []struct {
		Amount   amountPayload `json:"amount"`
		Payments struct {
			Captures []struct {
				Status string        `json:"status"`
				Amount amountPayload `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type paypalErrorResponse struct {
	Name    string `json:"name"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

// CreateAuthorization opens a processor-side hold sized to the order total
// and returns the handle together with the approval URL for the redirect.
func (c *Client) CreateAuthorization(ctx context.Context, order *models.Order) (*models.Authorization, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": order.OrderNumber,
				"description":  fmt.Sprintf("Bestellung %s - Henkes Stoffzauber", order.OrderNumber),
				"amount": map[string]any{
					"currency_code": "EUR",
					"value":         formatAmount(order.Total),
					"breakdown": map[string]any{
						"item_total": amountPayload{CurrencyCode: "EUR", Value: formatAmount(order.Subtotal)},
						"shipping":   amountPayload{CurrencyCode: "EUR", Value: formatAmount(order.Shipping)},
					},
				},
				"items": paypalItems(order.Items),
			},
		},
		"application_context": map[string]any{
			"brand_name":  "Henkes Stoffzauber",
			"locale":      "de-DE",
			"user_action": "PAY_NOW",
			"return_url":  fmt.Sprintf("%s/checkout/success?orderNumber=%s", c.cfg.FrontendURL, url.QueryEscape(order.OrderNumber)),
			"cancel_url":  fmt.Sprintf("%s/checkout/cancel?orderNumber=%s", c.cfg.FrontendURL, url.QueryEscape(order.OrderNumber)),
		},
	}

	// PayPal-Request-Id makes the create call idempotent on the processor side
	resp, raw, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, uuid.NewString())
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp.StatusCode, raw, "create order")
	}

	var ppOrder paypalOrderResponse
	if err := json.Unmarshal(raw, &ppOrder); err != nil {
		return nil, fmt.Errorf("%w: decode create response: %v", models.ErrGatewayUnavailable, err)
	}

	approvalURL := ""
	for _, link := range ppOrder.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
		}
	}
	if approvalURL == "" {
		return nil, fmt.Errorf("%w: no approval link in response", models.ErrGatewayUnavailable)
	}

	c.logger.Info("paypal order created", zap.String("order", order.OrderNumber), zap.String("paypal_order", ppOrder.ID))

	return &models.Authorization{
		ProviderOrderID: ppOrder.ID,
		ApprovalURL:     approvalURL,
		Amount:          order.Total,
		Currency:        "EUR",
		Status:          models.AuthorizationCreated,
	}, nil
}

// Capture finalizes the authorization. A repeated capture of an already
// captured order is treated as success when the captured amount matches the
// one on file; a different amount is a consistency fault and surfaces as
// models.ErrCaptureMismatch.
func (c *Client) Capture(ctx context.Context, providerOrderID string) (*models.CaptureResult, error) {
	resp, raw, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+providerOrderID+"/capture", map[string]any{}, uuid.NewString())
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		var ppOrder paypalOrderResponse
		if err := json.Unmarshal(raw, &ppOrder); err != nil {
			return nil, fmt.Errorf("%w: decode capture response: %v", models.ErrGatewayUnavailable, err)
		}
		if ppOrder.Status == "COMPLETED" {
			return &models.CaptureResult{
				Status:         models.AuthorizationCompleted,
				CapturedAmount: capturedAmount(&ppOrder),
			}, nil
		}
		return &models.CaptureResult{Status: models.AuthorizationFailed}, nil

	case resp.StatusCode == http.StatusUnprocessableEntity:
		var ppErr paypalErrorResponse
		_ = json.Unmarshal(raw, &ppErr)
		for _, detail := range ppErr.Details {
			if detail.Issue == "ORDER_ALREADY_CAPTURED" {
				return c.resolveAlreadyCaptured(ctx, providerOrderID)
			}
		}
		// a definite processor rejection
		return &models.CaptureResult{Status: models.AuthorizationFailed}, nil

	default:
		return nil, c.classify(resp.StatusCode, raw, "capture")
	}
}

// GetAuthorization queries the processor's authoritative order state
func (c *Client) GetAuthorization(ctx context.Context, providerOrderID string) (*models.Authorization, error) {
	resp, raw, err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+providerOrderID, nil, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp.StatusCode, raw, "get order")
	}

	var ppOrder paypalOrderResponse
	if err := json.Unmarshal(raw, &ppOrder); err != nil {
		return nil, fmt.Errorf("%w: decode get response: %v", models.ErrGatewayUnavailable, err)
	}

	auth := &models.Authorization{
		ProviderOrderID: ppOrder.ID,
		Currency:        "EUR",
	}
	for _, link := range ppOrder.Links {
		if link.Rel == "approve" {
			auth.ApprovalURL = link.Href
		}
	}

	switch ppOrder.Status {
	case "COMPLETED":
		auth.Status = models.AuthorizationCompleted
		auth.Amount = capturedAmount(&ppOrder)
	case "VOIDED", "EXPIRED":
		auth.Status = models.AuthorizationFailed
	default:
		auth.Status = models.AuthorizationCreated
		if len(ppOrder.PurchaseUnits) > 0 {
			auth.Amount = parseAmount(ppOrder.PurchaseUnits[0].Amount.Value)
		}
	}

	return auth, nil
}

// resolveAlreadyCaptured distinguishes the harmless return-URL double-hit
// from a genuine amount mismatch.
func (c *Client) resolveAlreadyCaptured(ctx context.Context, providerOrderID string) (*models.CaptureResult, error) {
	auth, err := c.GetAuthorization(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}
	if auth.Status != models.AuthorizationCompleted {
		return nil, fmt.Errorf("%w: order reported captured but status is %s", models.ErrGatewayUnavailable, auth.Status)
	}
	return &models.CaptureResult{
		Status:         models.AuthorizationCompleted,
		CapturedAmount: auth.Amount,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, requestID string) (*http.Response, []byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, nil, err
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	return resp, raw, nil
}

// accessToken returns a cached client-credentials token, refreshing it
// shortly before expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", models.ErrGatewayUnavailable, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	c.token = token.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)

	return c.token, nil
}

// classify maps an unexpected processor response onto the gateway error
// taxonomy: server-side trouble is indeterminate, everything else definite.
func (c *Client) classify(status int, raw []byte, op string) error {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s returned %d", models.ErrGatewayUnavailable, op, status)
	}
	c.logger.Error("paypal request rejected", zap.String("op", op), zap.Int("status", status), zap.ByteString("body", raw))
	return fmt.Errorf("paypal %s rejected with status %d: %w", op, status, models.ErrCaptureDeclined)
}

func paypalItems(items []models.OrderItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		name := item.Name
		if len(name) > 127 {
			name = name[:127]
		}
		out = append(out, map[string]any{
			"name":        name,
			"quantity":    strconv.Itoa(item.Quantity),
			"category":    "PHYSICAL_GOODS",
			"unit_amount": amountPayload{CurrencyCode: "EUR", Value: formatAmount(item.Price)},
		})
	}
	return out
}

func capturedAmount(order *paypalOrderResponse) float64 {
	var sum float64
	for _, unit := range order.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			sum += parseAmount(capture.Amount.Value)
		}
	}
	return sum
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
