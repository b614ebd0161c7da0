package restcountries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/garyjia/expense-approval/internal/currency"
	"go.uber.org/zap"
)

// DefaultURL lists every country with only the fields the catalog needs
const DefaultURL = "https://restcountries.com/v3.1/all?fields=name,currencies"

const maxBodyBytes = 4 << 20

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads the currencies in use from a restcountries compatible endpoint
type Client struct {
	url        string
	httpClient HTTPClient
	logger     *zap.Logger
}

type country struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Currencies map[string]struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"currencies"`
}

// NewClient creates a country directory client
func NewClient(url string, logger *zap.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc HTTPClient) *Client {
	c.httpClient = hc
	return c
}

// FetchCurrencies implements currency.CurrencySource. Codes shared by
// several countries are returned once.
func (c *Client) FetchCurrencies(ctx context.Context) ([]currency.Currency, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("country request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Country endpoint returned non-200 status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("country request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read country response: %w", err)
	}

	var countries []country
	if err := json.Unmarshal(body, &countries); err != nil {
		return nil, fmt.Errorf("failed to decode country response: %w", err)
	}

	seen := make(map[string]bool)
	var out []currency.Currency
	for _, ct := range countries {
		for code, info := range ct.Currencies {
			code = currency.NormalizeCode(code)
			if seen[code] {
				continue
			}
			seen[code] = true
			out = append(out, currency.Currency{Code: code, Name: info.Name, Symbol: info.Symbol})
		}
	}

	c.logger.Debug("Fetched currency list",
		zap.Int("countries", len(countries)),
		zap.Int("currencies", len(out)))
	return out, nil
}

var _ currency.CurrencySource = (*Client)(nil)
