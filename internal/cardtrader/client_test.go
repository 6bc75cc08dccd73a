package cardtrader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/guarzo/ctgap/internal/testutil"
)

const productsPayload = `{
  "1001": [
    {"id": 11, "blueprint_id": 1001, "price_cents": 1000,
     "properties_hash": {"condition": "Near Mint", "onepiece_language": "EN"},
     "user": {"can_sell_via_hub": true}},
    {"id": 12, "blueprint_id": 1001, "price_cents": 700,
     "properties_hash": {"condition": "Near Mint", "onepiece_language": "jp"},
     "user": {"can_sell_via_hub": false}},
    {"id": 13, "blueprint_id": 1001,
     "properties_hash": {"condition": "Near Mint", "onepiece_language": "en"}},
    {"id": 14, "price_cents": 900,
     "properties_hash": {"condition": "Played", "pokemon_language": "fr"}}
  ]
}`

func newTestClient(t *testing.T, url string, token TokenProvider) *Client {
	t.Helper()
	return NewClient(ClientOpts{
		BaseURL:          url,
		Tokens:           token,
		Timeout:          2 * time.Second,
		LanguageProperty: "onepiece_language",
		RateLimit:        rate.Inf,
	})
}

func TestFetchListings_RequestShape(t *testing.T) {
	var gotQuery, gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(productsPayload))
	}))
	defer server.Close()

	token := testutil.GetTestCardTraderToken()
	c := newTestClient(t, server.URL, StaticToken(token))
	got, err := c.FetchListings(context.Background(), 1001)
	require.NoError(t, err)

	assert.Equal(t, "/marketplace/products", gotPath)
	assert.Equal(t, "Bearer "+token, gotAuth)
	assert.Contains(t, gotQuery, "blueprint_id=1001")
	assert.Contains(t, gotQuery, "per_page=100")
	assert.Contains(t, gotQuery, "sort_by=price_asc")
	assert.Contains(t, gotQuery, "properties%5Bcondition%5D=Near+Mint")

	listings, ok := got.For(1001)
	require.True(t, ok)
	require.Len(t, listings, 3, "product without price_cents is dropped")

	assert.Equal(t, int64(11), listings[0].ID)
	assert.Equal(t, "en", listings[0].Language)
	assert.True(t, listings[0].HubEligible)

	assert.Equal(t, "jp", listings[1].Language)
	assert.False(t, listings[1].HubEligible)
	assert.Equal(t, 700, listings[1].PriceCents)

	// missing user object and blueprint id
	assert.Equal(t, "fr", listings[2].Language, "falls back to another *_language key")
	assert.Equal(t, "Played", listings[2].Condition)
	assert.Equal(t, 1001, listings[2].BlueprintID)
	assert.False(t, listings[2].HubEligible)
}

func TestFetchListings_Brotli(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte(productsPayload))
		_ = bw.Close()
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, StaticToken("secret"))
	got, err := c.FetchListings(context.Background(), 1001)
	require.NoError(t, err)

	listings, ok := got.For(1001)
	require.True(t, ok)
	assert.Len(t, listings, 3)
}

func TestFetchListings_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantIs  error
		wantAPI bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad token"}`, wantIs: ErrUnauthorized, wantAPI: true},
		{name: "forbidden", status: http.StatusForbidden, wantIs: ErrUnauthorized, wantAPI: true},
		{name: "rate limited", status: http.StatusTooManyRequests, wantIs: ErrRateLimited, wantAPI: true},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantAPI: true},
		{name: "malformed body", status: http.StatusOK, body: `{"1001": "nope"`, wantIs: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, StaticToken("secret"))
			_, err := c.FetchListings(context.Background(), 1001)
			require.Error(t, err)

			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			var apiErr *APIError
			assert.Equal(t, tt.wantAPI, errors.As(err, &apiErr))
			if tt.wantAPI {
				assert.Equal(t, tt.status, apiErr.StatusCode)
			}
		})
	}
}

func TestFetchListings_MissingTokenSkipsRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := c.FetchListings(context.Background(), 1001)
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestFetchListings_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := NewClient(ClientOpts{
		BaseURL:   server.URL,
		Tokens:    StaticToken("secret"),
		Timeout:   100 * time.Millisecond,
		RateLimit: rate.Inf,
	})
	start := time.Now()
	_, err := c.FetchListings(context.Background(), 1001)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, IsAuth(err))
}

func TestFetchListings_InvalidID(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", StaticToken("secret"))
	_, err := c.FetchListings(context.Background(), 0)
	assert.Error(t, err)
}

func TestExpansions_FiltersByGame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/expansions", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": 1, "game_id": 15, "code": "op01", "name": "Romance Dawn"},
			{"id": 2, "game_id": 5, "code": "sv1", "name": "Scarlet & Violet"},
			{"id": 3, "game_id": 15, "code": "op02", "name": "Paramount War"}
		]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, StaticToken("secret"))
	exps, err := c.Expansions(context.Background(), 15)
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "op01", exps[0].Code)
	assert.Equal(t, "op02", exps[1].Code)
}

func TestExportBlueprints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blueprints/export", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("expansion_id"))
		_, _ = w.Write([]byte(`[
			{"id": 70, "name": "Luffy", "category_id": 192,
			 "fixed_properties": {"onepiece_rarity": "Leader", "collector_number": "OP01-001"},
			 "image": {"url": "/uploads/luffy.jpg"}}
		]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, StaticToken("secret"))
	bps, err := c.ExportBlueprints(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, bps, 1)
	assert.Equal(t, "Luffy", bps[0].Name)
	assert.Equal(t, 192, bps[0].CategoryID)
	require.NotNil(t, bps[0].Image)
	assert.Equal(t, "/uploads/luffy.jpg", bps[0].Image.URL)
}

func TestCardURL(t *testing.T) {
	assert.Equal(t, "https://www.cardtrader.com/cards/250098", CardURL(250098))
}
