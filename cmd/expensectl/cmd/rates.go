package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/garyjia/expense-approval/internal/container"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	clearSource string
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Inspect exchange rates",
}

var ratesGetCmd = &cobra.Command{
	Use:   "get SOURCE TARGET",
	Short: "Look up the rate converting SOURCE into TARGET",
	Long: `Fetch the conversion rate from the configured rate source.
An unavailable rate is reported, not treated as a failure.

Example:
  expensectl rates get EUR USD`,
	Args: cobra.ExactArgs(2),
	RunE: runRatesGet,
}

var ratesCurrenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List the currencies expenses may be submitted in",
	Args:  cobra.NoArgs,
	RunE:  runRatesCurrencies,
}

var ratesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the rate cache of a running server",
	Long: `Drop cached rate tables in a running server so the next lookup
fetches fresh rates. With --source only that currency is dropped.

Example:
  expensectl rates clear --server http://localhost:8080 --source EUR`,
	Args: cobra.NoArgs,
	RunE: runRatesClear,
}

func init() {
	ratesClearCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the expense server")
	ratesClearCmd.Flags().StringVar(&clearSource, "source", "", "only invalidate this source currency")

	ratesCmd.AddCommand(ratesGetCmd)
	ratesCmd.AddCommand(ratesClearCmd)
	ratesCmd.AddCommand(ratesCurrenciesCmd)
}

func runRatesCurrencies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rates := container.ProvideCurrency(&cfg.Currency, nil, nil, logger)
	if rates.Catalog == nil {
		return fmt.Errorf("currency.currencies_api_url is not configured")
	}
	list, ok := rates.Catalog.List(cmd.Context())
	if !ok {
		return fmt.Errorf("currency list is unavailable")
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Code, c.Symbol, c.Name)
	}
	return tw.Flush()
}

func runRatesGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, target := currency.NormalizeCode(args[0]), currency.NormalizeCode(args[1])
	if !currency.ValidCode(source) || !currency.ValidCode(target) {
		return fmt.Errorf("currency codes must be three letters, got %q and %q", args[0], args[1])
	}

	rates := container.ProvideCurrency(&cfg.Currency, nil, nil, logger)
	rate, ok := rates.Provider.GetRate(cmd.Context(), source, target)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: unavailable\n", source, target)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %s\n", source, target, rate.String())
	return nil
}

func runRatesClear(cmd *cobra.Command, args []string) error {
	endpoint, err := url.JoinPath(strings.TrimRight(serverURL, "/"), "api", "rates", "cache")
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if clearSource != "" {
		endpoint += "?source=" + url.QueryEscape(currency.NormalizeCode(clearSource))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Data    struct {
			Cleared string `json:"cleared"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}
	if !body.Success {
		return fmt.Errorf("server refused: %s", body.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rate cache cleared: %s\n", body.Data.Cleared)
	return nil
}
