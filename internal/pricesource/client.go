// Package pricesource provides the client for the external blockchain-data
// provider that serves token creation dates and historical spot prices.
package pricesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/price-oracle/internal/config"
	apperrors "github.com/price-oracle/internal/errors"
	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/retry"
)

// ErrNoData is returned when the provider has no transfer history for a token.
var ErrNoData = errors.New("no data available for token")

// ErrRateLimited is returned when the provider responds with HTTP 429.
// Callers treat it as retryable with an extra fixed wait.
var ErrRateLimited = errors.New("rate limited by provider")

// Client fetches creation dates and spot prices from the external provider.
type Client interface {
	// CreationDate returns the timestamp of the token's first transfer.
	CreationDate(ctx context.Context, token string, network models.Network) (time.Time, error)

	// SpotPrice returns the token's price for the given calendar date.
	// A nil result with a nil error means the provider has no data for
	// that date, which is distinct from a request failure.
	SpotPrice(ctx context.Context, token string, network models.Network, date time.Time) (*float64, error)
}

// HTTPClient implements Client against the provider's REST API.
// Requests are paced by a shared rate limiter and retried with backoff.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	retryCfg *retry.Config
}

// NewHTTPClient creates a provider client from configuration.
func NewHTTPClient(cfg *config.PriceSourceConfig) *HTTPClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retryCfg: &retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			BaseDelay:     cfg.RetryBaseDelay,
			MaxDelay:      30 * time.Second,
			RateLimitWait: cfg.RateLimitWait,
			IsRateLimited: func(err error) bool { return errors.Is(err, ErrRateLimited) },
			IsPermanent:   func(err error) bool { return errors.Is(err, ErrNoData) },
		},
	}
}

type transfersResponse struct {
	Transfers []struct {
		BlockTimestamp int64 `json:"blockTimestamp"`
	} `json:"transfers"`
}

type priceResponse struct {
	Price *float64 `json:"price"`
}

// CreationDate fetches the token's first transfer and returns its block
// timestamp. Fails with ErrNoData when the token has no transfer history.
func (c *HTTPClient) CreationDate(ctx context.Context, token string, network models.Network) (time.Time, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/transfers/first", c.baseURL, c.apiKey)
	params := url.Values{
		"contract": {token},
		"network":  {string(network)},
	}

	var createdAt time.Time
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context, attempt int) error {
		var resp transfersResponse
		if err := c.doGet(ctx, endpoint, params, &resp); err != nil {
			return err
		}
		if len(resp.Transfers) == 0 {
			return fmt.Errorf("%w: no transfers found", ErrNoData)
		}
		createdAt = time.Unix(resp.Transfers[0].BlockTimestamp, 0).UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, apperrors.NewProviderError("creation date lookup", err)
	}
	return createdAt, nil
}

// SpotPrice fetches the token's price for the UTC day containing date.
func (c *HTTPClient) SpotPrice(ctx context.Context, token string, network models.Network, date time.Time) (*float64, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/prices/historical", c.baseURL, c.apiKey)
	params := url.Values{
		"contract": {token},
		"network":  {string(network)},
		"date":     {models.StartOfDayUTC(date).Format("2006-01-02")},
	}

	var price *float64
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context, attempt int) error {
		var resp priceResponse
		if err := c.doGet(ctx, endpoint, params, &resp); err != nil {
			return err
		}
		price = resp.Price
		return nil
	})
	if err != nil {
		return nil, apperrors.NewProviderError("historical price lookup", err)
	}
	return price, nil
}

// doGet performs a single rate-limited GET and decodes the JSON response.
func (c *HTTPClient) doGet(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
