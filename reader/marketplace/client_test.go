package marketplace

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salesflow/config"
	"salesflow/internal/units"
	"salesflow/logger"
	"salesflow/models"
)

const testContract = "0xcd84a49328b41549306833c8dfb7d800708b4f3c"

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Marketplace: config.MarketplaceConfig{
			BaseURL:      baseURL,
			AssetBaseURL: "https://opensea.io/assets",
			APIKey:       "test-key",
			Chain:        "base",
			Timeout:      2 * time.Second,
			RateLimit:    config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10},
		},
		Collection: config.CollectionConfig{
			Name:            "DoggoZ",
			Slug:            "doggoz-official",
			ContractAddress: testContract,
		},
		Fallbacks: config.FallbacksConfig{PlaceholderImage: "https://example.com/placeholder.png"},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(testConfig(srv.URL))
	quiet := logger.Logger()
	quiet.SetOutput(&bytes.Buffer{})
	c.log = quiet
	return c, srv
}

func TestFetchStatsNormalizes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/doggoz-official/stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "test-key" || r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing marketplace headers: %v", r.Header)
		}
		w.Write([]byte(`{
			"total": {"volume": "12.5", "sales": 40, "num_owners": 21, "supply": 100, "floor_price": null},
			"intervals": [
				{"interval": "one_day", "volume": 1.2, "sales": 3, "volume_change": -0.25},
				{"interval": "seven_day", "volume": 9, "sales": 30}
			]
		}`))
	})

	stats, err := c.FetchStats(context.Background())
	if err != nil {
		t.Fatalf("FetchStats returned error: %v", err)
	}
	want := models.Stats{
		TotalVolumeEth:        12.5,
		FloorPriceEth:         0,
		TotalSalesCount:       40,
		OwnerCount:            21,
		TotalSupply:           100,
		OneDayVolumeEth:       1.2,
		OneDaySalesCount:      3,
		OneDayVolumeChangePct: -0.25,
	}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestFetchStatsMissingIntervals(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total": {"volume": 3}, "intervals": "nope"}`))
	})

	stats, err := c.FetchStats(context.Background())
	if err != nil {
		t.Fatalf("FetchStats returned error: %v", err)
	}
	if stats.TotalVolumeEth != 3 || stats.OneDayVolumeEth != 0 || stats.OneDaySalesCount != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFetchStatsRateLimited(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	stats, err := c.FetchStats(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
	if ne.Status != http.StatusTooManyRequests || !ne.IsRateLimited() || !IsRateLimited(err) {
		t.Fatalf("expected rate-limited error, got %+v", ne)
	}
	if stats != models.ZeroStats() {
		t.Fatalf("expected zero stats on failure, got %+v", stats)
	}
}

func TestFetchStatsUndecodable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.FetchStats(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusOK || ne.Err == nil {
		t.Fatalf("expected decode NetworkError, got %v", err)
	}
}

func TestFetchStatsTransportFailure(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.FetchStats(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Status != 0 {
		t.Fatalf("expected status-0 NetworkError, got %v", err)
	}
}

func TestFetchStatsTimeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	})
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.FetchStats(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Status != 0 {
		t.Fatalf("expected timeout NetworkError, got %v", err)
	}
}

func TestFetchRecentSalesNormalizesEveryField(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/collection/doggoz-official" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("event_type") != "sale" || r.URL.Query().Get("limit") != "50" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"asset_events": [
			{
				"event_type": "sale",
				"event_timestamp": 1714560000,
				"transaction": "0xtx",
				"buyer": "0xbuyer",
				"seller": "0xseller",
				"nft": {"identifier": "42", "name": "Good Boy", "image_url": "https://img/42.png"},
				"payment": {"quantity": "2500000000000000000", "quantity_in_usd": "7500.5"}
			},
			{},
			{"nft": {"identifier": 7}, "payment": {"quantity": 1000000000000000000, "quantity_in_usd": -3}, "event_timestamp": "abc"}
		]}`))
	})
	c.now = func() time.Time { return now }

	sales, err := c.FetchRecentSales(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchRecentSales returned error: %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(sales))
	}

	first := sales[0]
	if first.TokenID != "42" || first.TokenName != "Good Boy" || first.PriceEth != 2.5 || first.PriceUsd != 7500.5 {
		t.Fatalf("unexpected first sale: %+v", first)
	}
	if first.Timestamp.Unix() != 1714560000 || first.Buyer != "0xbuyer" || first.Seller != "0xseller" {
		t.Fatalf("unexpected first sale parties/time: %+v", first)
	}
	if first.DetailURL != "https://opensea.io/assets/base/"+testContract+"/42" || first.TransactionHash != "0xtx" {
		t.Fatalf("unexpected first sale links: %+v", first)
	}

	empty := sales[1]
	want := models.Sale{
		TokenID:         units.Unknown,
		TokenName:       "DoggoZ #?",
		Timestamp:       now,
		Buyer:           units.Unknown,
		Seller:          units.Unknown,
		ImageURL:        "https://example.com/placeholder.png",
		DetailURL:       "https://opensea.io/assets/base/" + testContract + "/Unknown",
		TransactionHash: units.Unknown,
	}
	if empty != want {
		t.Fatalf("defaults = %+v, want %+v", empty, want)
	}

	third := sales[2]
	if third.TokenID != "7" || third.TokenName != "DoggoZ #7" || third.PriceEth != 1 || third.PriceUsd != 0 || !third.Timestamp.Equal(now) {
		t.Fatalf("unexpected third sale: %+v", third)
	}
}

func TestFetchRecentSalesErrorStatusIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	sales, err := c.FetchRecentSales(context.Background(), 10)
	if err != nil || sales == nil || len(sales) != 0 {
		t.Fatalf("expected empty non-nil sales and nil error, got %v, %v", sales, err)
	}
}

func TestFetchRecentSalesMissingEvents(t *testing.T) {
	for _, body := range []string{`{}`, `{"asset_events": []}`, `{"asset_events": null}`} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		sales, err := c.FetchRecentSales(context.Background(), 10)
		if err != nil || len(sales) != 0 {
			t.Fatalf("body %s: expected empty sales, got %v, %v", body, sales, err)
		}
	}
}

func TestFetchRecentSalesSkipsNonObjectEvents(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asset_events": [1, "x", {"nft": {"identifier": "9"}}]}`))
	})

	sales, err := c.FetchRecentSales(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchRecentSales returned error: %v", err)
	}
	if len(sales) != 1 || sales[0].TokenID != "9" {
		t.Fatalf("unexpected sales: %+v", sales)
	}
}

func TestFetchRecentSalesUndecodable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	if _, err := c.FetchRecentSales(context.Background(), 10); err == nil {
		t.Fatal("expected error for undecodable body")
	}
}

func TestFetchCollectionNFTs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain/base/contract/"+testContract+"/nfts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"nfts": [
			{"identifier": "1", "name": "One", "image_url": "https://img/1.png"},
			{"identifier": "2", "display_image_url": "https://img/2-display.png"},
			{"name": "Nameless"}
		]}`))
	})

	nfts, err := c.FetchCollectionNFTs(context.Background(), 50)
	if err != nil {
		t.Fatalf("FetchCollectionNFTs returned error: %v", err)
	}
	if len(nfts) != 3 {
		t.Fatalf("expected 3 nfts, got %d", len(nfts))
	}
	if nfts[0].ImageURL != "https://img/1.png" || nfts[1].ImageURL != "https://img/2-display.png" {
		t.Fatalf("image fallback chain broken: %+v", nfts)
	}
	if nfts[1].Title != "DoggoZ #2" {
		t.Fatalf("unexpected default title %q", nfts[1].Title)
	}
	if nfts[2].ImageURL != "https://example.com/placeholder.png" || nfts[2].ID != "2" {
		t.Fatalf("unexpected placeholder nft: %+v", nfts[2])
	}
}

func TestFetchCollectionNFTsInvalidResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"next": null}`))
	})

	if _, err := c.FetchCollectionNFTs(context.Background(), 50); !errors.Is(err, ErrNoNFTs) {
		t.Fatalf("expected ErrNoNFTs, got %v", err)
	}
}
