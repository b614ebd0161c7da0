package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public rate endpoint; the base currency is appended
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// maxBodyBytes caps how much of a response is read
const maxBodyBytes = 1 << 20

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches rate tables from an exchangerate-api compatible endpoint
type Client struct {
	baseURL    string
	httpClient HTTPClient
	logger     *zap.Logger
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// NewClient creates a rate source client. Request deadlines come from the
// caller's context.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc HTTPClient) *Client {
	c.httpClient = hc
	return c
}

// FetchRates implements currency.RateSource
func (c *Client) FetchRates(ctx context.Context, base string) (*currency.RateTable, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, currency.NormalizeCode(base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Rate endpoint returned non-200 status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url))
		return nil, fmt.Errorf("rate request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read rate response: %w", err)
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("rate response for %s has no rates", base)
	}

	want := currency.NormalizeCode(base)
	switch got := currency.NormalizeCode(payload.Base); got {
	case "":
		payload.Base = want
	case want:
		payload.Base = got
	default:
		c.logger.Warn("Rate response base does not match request",
			zap.String("requested", want),
			zap.String("returned", got))
		return nil, fmt.Errorf("rate response base %s does not match requested %s", got, want)
	}

	return &currency.RateTable{
		Base:  payload.Base,
		Date:  payload.Date,
		Rates: payload.Rates,
	}, nil
}

var _ currency.RateSource = (*Client)(nil)
