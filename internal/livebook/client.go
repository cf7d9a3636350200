package livebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"scv_dedup_backend/platform/apperr"
	"scv_dedup_backend/platform/config"
	"scv_dedup_backend/platform/logger"
)

// Client calls the live book over HTTP. Calls are rate limited and retried
// with exponential backoff; after the retry budget is spent the caller gets
// an external-service error and decides what to do with the offer.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	maxRetries  int
	backoffBase time.Duration
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewClient builds a live-book client from configuration.
func NewClient(cfg config.LiveBookConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.GetLiveBookTimeout()},
		baseURL:     cfg.GetLiveBookURL(),
		apiKey:      cfg.GetLiveBookAPIKey(),
		maxRetries:  cfg.GetLiveBookMaxRetries(),
		backoffBase: cfg.GetLiveBookBackoffBase(),
		limiter:     rate.NewLimiter(rate.Limit(cfg.GetLiveBookRatePerSecond()), 1),
		log:         log,
	}
}

type checkPayload struct {
	CustomerID string `json:"customer_id"`
	PAN        string `json:"pan,omitempty"`
	Aadhaar    string `json:"aadhaar,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
	OfferType  string `json:"offer_type"`
}

type checkResult struct {
	Conflict   bool    `json:"conflict"`
	LiveBookID *string `json:"live_book_id"`
	Reason     string  `json:"reason"`
}

// Check asks the book whether the customer has a conflicting live loan.
// Network errors and 5xx responses are retried up to the configured budget;
// a 4xx response is treated as permanent.
func (c *Client) Check(ctx context.Context, req CheckRequest) (Verdict, error) {
	body, err := json.Marshal(checkPayload{
		CustomerID: req.CustomerID.String(),
		PAN:        req.PAN,
		Aadhaar:    req.Aadhaar,
		Mobile:     req.Mobile,
		OfferType:  req.OfferType,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal check request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Verdict{}, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return Verdict{}, err
		}

		verdict, retryable, err := c.doCheck(ctx, body)
		if err == nil {
			return verdict, nil
		}
		if !retryable {
			return Verdict{}, err
		}
		lastErr = err
		c.log.ExternalCallFailed("livebook", attempt+1, err)
	}

	return Verdict{}, apperr.Wrap(apperr.KindExternalService, "live book unreachable", lastErr).
		WithOp("livebook.Check")
}

func (c *Client) doCheck(ctx context.Context, body []byte) (Verdict, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/live-loans/check", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, false, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Verdict{}, true, fmt.Errorf("call live book: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return Verdict{}, true, fmt.Errorf("live book returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Verdict{}, false, apperr.ExternalService(
			fmt.Sprintf("live book rejected check with status %d", resp.StatusCode)).
			WithOp("livebook.Check")
	}

	var result checkResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Verdict{}, true, fmt.Errorf("decode live book response: %w", err)
	}

	return Verdict{
		Conflict:   result.Conflict,
		LiveBookID: result.LiveBookID,
		Reason:     result.Reason,
	}, false, nil
}
