package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultTimeout            = 10 * time.Second
	defaultBreakerMaxFailures = 5
	paymentLinksPath          = "payment_links"
	callbackMethodGet         = "get"
	responseBodyReadLimit     = 1024

	opCreatePaymentLink      = "create_payment_link"
	opCreateSubscriptionLink = "create_subscription_link"
	opGetStatus              = "get_status"
	opFindByReference        = "find_by_reference"
)

// Status is the raw payment link state reported by the gateway.
type Status string

const (
	StatusCreated       Status = "created"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusExpired       Status = "expired"
	StatusCancelled     Status = "cancelled"
)

// Customer identifies the payer on the hosted payment page.
type Customer struct {
	Name    string
	Email   string
	Contact string
}

// Notify toggles gateway-side notifications to the payer.
type Notify struct {
	SMS   bool
	Email bool
}

// LinkRequest describes one hosted payment link.
type LinkRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	ReferenceID string
	Customer    Customer
	Notify      Notify
	CallbackURL string
}

// Link is the gateway-issued payment link.
type Link struct {
	ID  string
	URL string
}

// LinkStatus is the result of a status lookup.
type LinkStatus struct {
	ID     string
	URL    string
	Status Status
}

// Live reports whether the link can still take or has taken a payment.
func (s Status) Live() bool {
	switch s {
	case StatusCreated, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

type rawResponse struct {
	status int
	body   []byte
}

// Client talks to the payment-link REST API. It keeps no per-request state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[rawResponse]
	logg       *logger.Logger
	metrics    *metrics.PaymentMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

func WithMetrics(m *metrics.PaymentMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient validates credentials up front. A KindConfig error here is meant
// to stop the process before it serves traffic.
func NewClient(cfg config.GatewayConfig, opts ...Option) (*Client, error) {
	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, newError(KindConfig, "init", 0, "missing "+strings.Join(missing, ", "), nil)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		keyID:      strings.TrimSpace(cfg.KeyID),
		keySecret:  strings.TrimSpace(cfg.KeySecret),
		timeout:    timeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	client.breaker = gobreaker.NewCircuitBreaker[rawResponse](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			client.logWarn(context.Background(), "gateway.breaker_state", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return client, nil
}

// CreatePaymentLink issues a one-off hosted payment link.
func (c *Client) CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error) {
	return c.createLink(ctx, opCreatePaymentLink, req, map[string]string{"purchase_kind": "order"})
}

// CreateSubscriptionLink issues a hosted payment link for a plan purchase.
func (c *Client) CreateSubscriptionLink(ctx context.Context, req LinkRequest) (*Link, error) {
	return c.createLink(ctx, opCreateSubscriptionLink, req, map[string]string{"purchase_kind": "subscription"})
}

// GetStatus fetches the authoritative state of a payment link.
func (c *Client) GetStatus(ctx context.Context, linkID string) (*LinkStatus, error) {
	trimmed := strings.TrimSpace(linkID)
	if trimmed == "" {
		return nil, newError(KindValidation, opGetStatus, 0, "payment link id is required", nil)
	}

	var resp linkPayload
	path := paymentLinksPath + "/" + url.PathEscape(trimmed)
	if err := c.do(ctx, opGetStatus, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		resp.ID = trimmed
	}
	return resp.status(), nil
}

// FindLinkByReference returns the link created under referenceID, or nil
// when the gateway holds none. It recovers links whose create call timed out
// after the gateway had already accepted it.
func (c *Client) FindLinkByReference(ctx context.Context, referenceID string) (*LinkStatus, error) {
	trimmed := strings.TrimSpace(referenceID)
	if trimmed == "" {
		return nil, newError(KindValidation, opFindByReference, 0, "reference id is required", nil)
	}

	var resp struct {
		PaymentLinks []linkPayload `json:"payment_links"`
	}
	path := paymentLinksPath + "?" + url.Values{"reference_id": {trimmed}}.Encode()
	if err := c.do(ctx, opFindByReference, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	var found *LinkStatus
	for _, link := range resp.PaymentLinks {
		if link.ID == "" || (link.ReferenceID != "" && link.ReferenceID != trimmed) {
			continue
		}
		status := link.status()
		if status.Status.Live() {
			return status, nil
		}
		if found == nil {
			found = status
		}
	}
	return found, nil
}

type linkPayload struct {
	ID          string `json:"id"`
	ShortURL    string `json:"short_url"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

func (p linkPayload) status() *LinkStatus {
	return &LinkStatus{
		ID:     p.ID,
		URL:    p.ShortURL,
		Status: Status(strings.ToLower(strings.TrimSpace(p.Status))),
	}
}

type customerPayload struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type notifyPayload struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

type createLinkPayload struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	Customer       customerPayload   `json:"customer"`
	Notify         notifyPayload     `json:"notify"`
	CallbackURL    string            `json:"callback_url"`
	CallbackMethod string            `json:"callback_method"`
	Notes          map[string]string `json:"notes,omitempty"`
}

func (c *Client) createLink(ctx context.Context, op string, req LinkRequest, notes map[string]string) (*Link, error) {
	if err := validateLinkRequest(req); err != nil {
		return nil, newError(KindValidation, op, 0, err.Error(), nil)
	}

	payload := createLinkPayload{
		Amount:      req.AmountMinor,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Description: req.Description,
		ReferenceID: req.ReferenceID,
		Customer: customerPayload{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Contact: req.Customer.Contact,
		},
		Notify:         notifyPayload{SMS: req.Notify.SMS, Email: req.Notify.Email},
		CallbackURL:    req.CallbackURL,
		CallbackMethod: callbackMethodGet,
		Notes:          notes,
	}

	var resp struct {
		ID       string `json:"id"`
		ShortURL string `json:"short_url"`
	}
	if err := c.do(ctx, op, http.MethodPost, paymentLinksPath, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.ShortURL == "" {
		return nil, newError(KindNetwork, op, 0, "gateway response missing link id or url", nil)
	}

	return &Link{ID: resp.ID, URL: resp.ShortURL}, nil
}

func validateLinkRequest(req LinkRequest) error {
	if req.AmountMinor <= 0 {
		return fmt.Errorf("amount must be positive, got %d", req.AmountMinor)
	}
	if strings.TrimSpace(req.Currency) == "" {
		return errors.New("currency is required")
	}
	if strings.TrimSpace(req.CallbackURL) == "" {
		return errors.New("callback url is required")
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	if c == nil || c.breaker == nil {
		return newError(KindConfig, op, 0, "gateway client not configured", nil)
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return newError(KindValidation, op, 0, "encode request", err)
		}
		payload = encoded
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.buildURL(path)
	started := time.Now()
	c.logDebug(ctx, "gateway.request", map[string]any{"gateway_op": op, "method": method})

	raw, err := c.breaker.Execute(func() (rawResponse, error) {
		return c.roundTrip(ctx, op, method, endpoint, payload)
	})
	elapsed := time.Since(started)
	if err != nil {
		gwErr := asNetworkError(op, err)
		c.metrics.ObserveGatewayCall(op, metrics.OutcomeNetwork, elapsed)
		c.logWarn(ctx, "gateway.error", map[string]any{"gateway_op": op, "error": gwErr.Error(), "duration_ms": elapsed.Milliseconds()})
		return gwErr
	}

	if raw.status >= http.StatusBadRequest {
		gwErr := newError(KindValidation, op, raw.status, rejectionMessage(raw.body), nil)
		c.metrics.ObserveGatewayCall(op, metrics.OutcomeRejected, elapsed)
		c.logWarn(ctx, "gateway.rejected", map[string]any{"gateway_op": op, "status": raw.status, "message": gwErr.Message})
		return gwErr
	}

	if err := json.Unmarshal(raw.body, out); err != nil {
		c.metrics.ObserveGatewayCall(op, metrics.OutcomeNetwork, elapsed)
		return newError(KindNetwork, op, raw.status, "decode response", err)
	}

	c.metrics.ObserveGatewayCall(op, metrics.OutcomeSuccess, elapsed)
	c.logDebug(ctx, "gateway.response", map[string]any{"gateway_op": op, "status": raw.status, "duration_ms": elapsed.Milliseconds()})
	return nil
}

// roundTrip returns an error for anything the breaker should count as a
// gateway outage: transport failures, rate limiting and 5xx responses.
func (c *Client) roundTrip(ctx context.Context, op, method, endpoint string, payload []byte) (rawResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return rawResponse{}, newError(KindNetwork, op, 0, "build request", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return rawResponse{}, newError(KindNetwork, op, 0, "execute request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return rawResponse{}, newError(KindNetwork, op, resp.StatusCode, strings.TrimSpace(string(msg)), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawResponse{}, newError(KindNetwork, op, resp.StatusCode, "read response", err)
	}
	return rawResponse{status: resp.StatusCode, body: body}, nil
}

func asNetworkError(op string, err error) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newError(KindNetwork, op, 0, "gateway temporarily unavailable", err)
	}
	return newError(KindNetwork, op, 0, "", err)
}

// rejectionMessage surfaces the gateway's own description of a 4xx.
func rejectionMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Description != "" {
		return envelope.Error.Description
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > responseBodyReadLimit {
		trimmed = trimmed[:responseBodyReadLimit]
	}
	if trimmed == "" {
		return "request rejected by gateway"
	}
	return trimmed
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func (c *Client) logDebug(ctx context.Context, msg string, fields map[string]any) {
	if c.logg == nil {
		return
	}
	c.logg.Debug(c.logg.WithFields(ctx, fields), msg)
}

func (c *Client) logWarn(ctx context.Context, msg string, fields map[string]any) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithFields(ctx, fields), msg)
}
