package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/metrics"
	"github.com/nkiryanov/vtumart/internal/models"
)

const (
	// Provider answered with a structured rejection; nothing was fulfilled
	CodeRejected = "rejected"
	// Call timed out or response was indeterminate; the purchase may or
	// may not have been applied upstream
	CodeAmbiguous = "ambiguous"
	// Network failure or unparseable response before a usable answer
	CodeTransport = "transport"
)

const defaultCallTimeout = 10 * time.Second

type Error struct {
	Code   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, reason: %s, error: %v", e.Code, e.Reason, e.Err)
}

func NewError(code string, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

const (
	StatusSuccess = "success"
	StatusPending = "pending"
)

// Result is a normalized provider answer for purchase and lookup calls
type Result struct {
	Ref         string
	Status      string
	ProviderRef string
}

type Client struct {
	BaseURL string
	APIKey  string

	callTimeout time.Duration
	client      *http.Client
	logger      logger.Logger
}

func NewClient(baseURL string, apiKey string, logger logger.Logger) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		callTimeout: defaultCallTimeout,
		client:      &http.Client{},
		logger:      logger,
	}
}

func (c *Client) PurchaseAirtime(ctx context.Context, ref string, phone string, serviceID string, amount decimal.Decimal) (Result, error) {
	body := map[string]any{
		"request_id": ref,
		"phone":      phone,
		"service_id": serviceID,
		"amount":     amount,
	}

	r, err := c.purchase(ctx, ref, c.BaseURL+"/airtime", body)
	metrics.ProviderRequestsTotal.WithLabelValues("airtime", outcomeCode(err)).Inc()
	return r, err
}

func (c *Client) PurchaseData(ctx context.Context, ref string, phone string, networkID string, planID string) (Result, error) {
	body := map[string]any{
		"request_id": ref,
		"phone":      phone,
		"network_id": networkID,
		"data_plan":  planID,
	}

	r, err := c.purchase(ctx, ref, c.BaseURL+"/budget-data", body)
	metrics.ProviderRequestsTotal.WithLabelValues("data", outcomeCode(err)).Inc()
	return r, err
}

// LookupPurchase re-queries a purchase by its original reference.
// The provider deduplicates on request_id, so a repeated query returns the
// original outcome or a duplicate signal confirming it was applied.
// Assumed contract: confirm the /requery path with the provider before
// pointing this client at a new provider account.
func (c *Client) LookupPurchase(ctx context.Context, ref string) (Result, error) {
	r, err := c.lookup(ctx, ref)
	metrics.ProviderRequestsTotal.WithLabelValues("requery", outcomeCode(err)).Inc()
	return r, err
}

func (c *Client) lookup(ctx context.Context, ref string) (Result, error) {
	var r Result

	if c.APIKey == "" {
		return r, apperrors.ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	u := c.BaseURL + "/requery?request_id=" + url.QueryEscape(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return r, NewError(CodeTransport, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return r, c.transportError(err, ref)
	}
	defer resp.Body.Close() // nolint:errcheck

	return c.processPurchaseResponse(resp, ref)
}

func (c *Client) ListDataPlans(ctx context.Context, networkID string) ([]models.DataPlan, error) {
	plans, err := c.listDataPlans(ctx, networkID)
	metrics.ProviderRequestsTotal.WithLabelValues("plans", outcomeCode(err)).Inc()
	return plans, err
}

func (c *Client) listDataPlans(ctx context.Context, networkID string) ([]models.DataPlan, error) {
	if c.APIKey == "" {
		return nil, apperrors.ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	u := c.BaseURL + "/budget-data/plans?network_id=" + url.QueryEscape(networkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Failed to list plans", "status_code", resp.StatusCode, "network_id", networkID)
		return nil, fmt.Errorf("unexpected status code %d listing plans for network %s", resp.StatusCode, networkID)
	}

	return decodePlans(resp, networkID)
}

// FetchWallet reads the authoritative wallet state.
// Missing fields default to zero
func (c *Client) FetchWallet(ctx context.Context) (models.WalletSnapshot, error) {
	snap, err := c.fetchWallet(ctx)
	metrics.ProviderRequestsTotal.WithLabelValues("wallet", outcomeCode(err)).Inc()
	return snap, err
}

func (c *Client) fetchWallet(ctx context.Context) (models.WalletSnapshot, error) {
	var snap models.WalletSnapshot

	if c.APIKey == "" {
		return snap, apperrors.ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/wallet", nil)
	if err != nil {
		return snap, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("unexpected status code %d fetching wallet", resp.StatusCode)
	}

	var body struct {
		Main     *decimal.Decimal `json:"mainBalance"`
		Cashback *decimal.Decimal `json:"cashbackBalance"`
		Referral *decimal.Decimal `json:"referralBalance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return snap, fmt.Errorf("failed to decode wallet response: %w", err)
	}

	snap.Main = orZero(body.Main)
	snap.Cashback = orZero(body.Cashback)
	snap.Referral = orZero(body.Referral)
	return snap, nil
}

func (c *Client) purchase(ctx context.Context, ref string, url string, body map[string]any) (Result, error) {
	var r Result

	if c.APIKey == "" {
		return r, apperrors.ErrMissingCredential
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return r, NewError(CodeTransport, "", fmt.Errorf("failed to encode request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return r, NewError(CodeTransport, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return r, c.transportError(err, ref)
	}
	defer resp.Body.Close() // nolint:errcheck

	return c.processPurchaseResponse(resp, ref)
}

// transportError maps a failed round trip: a timeout means the purchase may
// have been applied upstream, so it is ambiguous and must never be treated
// as a plain failure
func (c *Client) transportError(err error, ref string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("Provider call timed out", "ref", ref)
		return NewError(CodeAmbiguous, "provider timeout", err)
	}

	return NewError(CodeTransport, "", fmt.Errorf("failed to send request: %w", err))
}

// outcomeCode flattens a call result to a metric label
func outcomeCode(err error) string {
	var provErr *Error

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrMissingCredential):
		return "no_credential"
	case errors.As(err, &provErr):
		return provErr.Code
	default:
		return "error"
	}
}

type purchaseBody struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

func (c *Client) processPurchaseResponse(resp *http.Response, ref string) (Result, error) {
	var r Result
	var body purchaseBody

	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			c.logger.Warn("Failed to decode provider response", "ref", ref, "error", decodeErr)
			return r, NewError(CodeAmbiguous, "unreadable success response", decodeErr)
		}

		r = Result{Ref: ref, ProviderRef: body.Reference}
		switch {
		case isDuplicateSignal(body):
			// Dedup hit upstream: the original request was applied
			r.Status = StatusSuccess
		case strings.EqualFold(body.Status, "success"), strings.EqualFold(body.Status, "delivered"):
			r.Status = StatusSuccess
		case strings.EqualFold(body.Status, "pending"), strings.EqualFold(body.Status, "processing"):
			r.Status = StatusPending
		case strings.EqualFold(body.Status, "failed"):
			return r, NewError(CodeRejected, reasonOf(body), nil)
		default:
			c.logger.Warn("Unknown provider status", "ref", ref, "status", body.Status)
			return r, NewError(CodeAmbiguous, "unknown provider status "+body.Status, nil)
		}

		c.logger.Debug("Provider response", "ref", ref, "status", r.Status, "provider_ref", r.ProviderRef)
		return r, nil
	}

	// HTTP-level error: a parseable body is an explicit rejection, anything
	// else is a transport fault
	if decodeErr != nil || (body.Message == "" && body.Error == "") {
		c.logger.Warn("Provider error without parseable body", "ref", ref, "status_code", resp.StatusCode)
		return r, NewError(CodeTransport, "", fmt.Errorf("status code %d with unparseable body", resp.StatusCode))
	}

	if isDuplicateSignal(body) {
		c.logger.Info("Provider reported duplicate request", "ref", ref)
		return Result{Ref: ref, Status: StatusSuccess, ProviderRef: body.Reference}, nil
	}

	return r, NewError(CodeRejected, reasonOf(body), fmt.Errorf("status code %d", resp.StatusCode))
}

func isDuplicateSignal(body purchaseBody) bool {
	for _, s := range []string{body.Status, body.Message, body.Error} {
		if strings.Contains(strings.ToLower(s), "duplicate") {
			return true
		}
	}
	return false
}

func reasonOf(body purchaseBody) string {
	switch {
	case body.Message != "":
		return body.Message
	case body.Error != "":
		return body.Error
	default:
		return "rejected by provider"
	}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
