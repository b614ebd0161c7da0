package exchangerate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_FetchRates(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"EUR","date":"2024-05-01","rates":{"USD":1.0712,"GBP":0.8551,"EUR":1}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/v4/latest/", zap.NewNop())
	table, err := client.FetchRates(context.Background(), "eur")

	require.NoError(t, err)
	assert.Equal(t, "/v4/latest/EUR", gotPath)
	assert.Equal(t, "EUR", table.Base)
	assert.Equal(t, "2024-05-01", table.Date)
	require.Contains(t, table.Rates, "USD")
	assert.Equal(t, "1.0712", table.Rates["USD"].String())
}

func TestClient_FetchRates_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `oops`, "status 500"},
		{"malformed body", http.StatusOK, `{"rates":`, "decode"},
		{"empty rates", http.StatusOK, `{"base":"EUR","rates":{}}`, "no rates"},
		{"mismatched base", http.StatusOK, `{"base":"USD","rates":{"EUR":0.93}}`, "does not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, zap.NewNop()).FetchRates(context.Background(), "EUR")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_FetchRates_HonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, zap.NewNop()).FetchRates(ctx, "EUR")
	assert.Error(t, err)
}
