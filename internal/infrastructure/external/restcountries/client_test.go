package restcountries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const countriesBody = `[
	{"name":{"common":"Germany"},"currencies":{"EUR":{"name":"Euro","symbol":"€"}}},
	{"name":{"common":"France"},"currencies":{"EUR":{"name":"Euro","symbol":"€"}}},
	{"name":{"common":"Panama"},"currencies":{"PAB":{"name":"Panamanian balboa","symbol":"B/."},"USD":{"name":"United States dollar","symbol":"$"}}},
	{"name":{"common":"Antarctica"},"currencies":{}}
]`

func TestClient_FetchCurrencies(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(countriesBody))
	}))
	defer srv.Close()

	list, err := NewClient(srv.URL+"/v3.1/all?fields=name,currencies", zap.NewNop()).
		FetchCurrencies(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "fields=name,currencies", gotQuery)

	codes := make([]string, len(list))
	for i, c := range list {
		codes[i] = c.Code
	}
	sort.Strings(codes)
	assert.Equal(t, []string{"EUR", "PAB", "USD"}, codes)
}

func TestClient_FetchCurrencies_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusBadGateway, `bad gateway`, "status 502"},
		{"malformed body", http.StatusOK, `[{"currencies":`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, zap.NewNop()).FetchCurrencies(context.Background())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
