package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-consolidator/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRateLimit(1000),
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		}),
	)
}

func TestSearchCompanies_Found(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/search", r.URL.Path)
		assert.Equal(t, "Acme Inc", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": {
				"companies": [
					{"company": {"name": "ACME INC", "company_number": "123456", "jurisdiction_code": "us_de"}},
					{"company": {"name": "ACME INCORPORATED", "company_number": "654321", "jurisdiction_code": "us_ca", "inactive": true}}
				]
			}
		}`))
	})

	companies, err := c.SearchCompanies(context.Background(), "Acme Inc")
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "ACME INC", companies[0].Name)
	assert.Equal(t, "123456", companies[0].CompanyNumber)
	assert.False(t, companies[0].Inactive)
	assert.True(t, companies[1].Inactive)
}

func TestSearchCompanies_NoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": {"companies": []}}`))
	})

	companies, err := c.SearchCompanies(context.Background(), "Ghost Corp")
	require.NoError(t, err)
	assert.Empty(t, companies)
}

func TestSearchCompanies_EmptyName(t *testing.T) {
	c := NewClient()
	_, err := c.SearchCompanies(context.Background(), "")
	require.Error(t, err)
}

func TestSearchCompanies_RetriesOn503(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results": {"companies": [{"company": {"name": "ACME INC", "company_number": "1"}}]}}`))
	})

	companies, err := c.SearchCompanies(context.Background(), "Acme")
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearchCompanies_DoesNotRetryOn404(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.SearchCompanies(context.Background(), "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchCompanies_SendsAPIToken(t *testing.T) {
	c := newTestClientWithToken(t, "secret-token")

	_, err := c.SearchCompanies(context.Background(), "Acme")
	require.NoError(t, err)
}

func newTestClientWithToken(t *testing.T, token string) Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, token, r.URL.Query().Get("api_token"))
		w.Write([]byte(`{"results": {"companies": []}}`))
	}))
	t.Cleanup(srv.Close)
	return NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithAPIToken(token),
		WithRateLimit(1000),
	)
}
