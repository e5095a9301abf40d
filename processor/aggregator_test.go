package processor

import (
	"math/rand"
	"testing"
	"time"

	"salesflow/internal/units"
	"salesflow/models"
)

var (
	testNow    = time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	todayStart = StartOfDay(testNow, time.UTC)
)

func sale(id string, price float64, at time.Time, buyer string) models.Sale {
	return models.Sale{TokenID: id, PriceEth: price, Timestamp: at, Buyer: buyer}
}

func TestAggregateTodaysFigures(t *testing.T) {
	sales := []models.Sale{
		sale("1", 1.0, testNow.Add(-time.Hour), "0xa"),
		sale("2", 1.5, testNow.Add(-2*time.Hour), "0xb"),
		sale("3", 0.5, testNow.Add(-3*time.Hour), "0xa"),
		sale("4", 9.0, todayStart.Add(-time.Minute), "0xc"),
		sale("5", 0.2, testNow.Add(-4*time.Hour), units.Unknown),
	}
	stats := models.Stats{OneDayVolumeEth: 1.2, OneDaySalesCount: 7, OwnerCount: 300}

	summary := Aggregate(sales, stats, todayStart)

	if summary.TodaysSalesCount != 4 {
		t.Fatalf("todays sales = %d, want 4", summary.TodaysSalesCount)
	}
	if got := summary.TodaysVolumeEth; got < 3.1999 || got > 3.2001 {
		t.Fatalf("todays volume = %v, want 3.2", got)
	}
	if summary.UniqueBuyers != 2 {
		t.Fatalf("unique buyers = %d, want 2", summary.UniqueBuyers)
	}
	if summary.BiggestSale == nil || summary.BiggestSale.TokenID != "4" {
		t.Fatalf("biggest sale should consider all sales, got %+v", summary.BiggestSale)
	}
	if !summary.FromToday || summary.DisplaySalesCount != 4 || summary.DisplayBuyers != 2 || summary.DisplayVolumeEth != summary.TodaysVolumeEth {
		t.Fatalf("display should use today's figures: %+v", summary)
	}
}

func TestAggregateFallsBackToStats(t *testing.T) {
	sales := []models.Sale{
		sale("1", 2.5, todayStart.Add(-time.Hour), "0xa"),
	}
	stats := models.Stats{OneDayVolumeEth: 1.2, OneDaySalesCount: 3, OwnerCount: 42}

	summary := Aggregate(sales, stats, todayStart)

	if summary.FromToday {
		t.Fatal("expected fallback display")
	}
	if summary.DisplayVolumeEth != 1.2 || summary.DisplaySalesCount != 3 || summary.DisplayBuyers != 42 {
		t.Fatalf("display should use stats: %+v", summary)
	}
	if summary.TodaysVolumeEth != 0 || summary.TodaysSalesCount != 0 || summary.UniqueBuyers != 0 {
		t.Fatalf("today's figures should be zero: %+v", summary)
	}
}

func TestAggregateSwitchesOnTodaySale(t *testing.T) {
	stats := models.Stats{OneDayVolumeEth: 1.2, OneDaySalesCount: 3, OwnerCount: 42}
	yesterday := []models.Sale{sale("1", 2.5, todayStart.Add(-time.Second), "0xa")}
	today := []models.Sale{sale("1", 2.5, todayStart, "0xa")}

	if got := Aggregate(yesterday, stats, todayStart).DisplayVolumeEth; got != 1.2 {
		t.Fatalf("display volume before midnight = %v, want 1.2", got)
	}
	if got := Aggregate(today, stats, todayStart).DisplayVolumeEth; got != 2.5 {
		t.Fatalf("display volume at midnight = %v, want 2.5", got)
	}
}

func TestAggregateEmpty(t *testing.T) {
	summary := Aggregate(nil, models.ZeroStats(), todayStart)
	if summary.BiggestSale != nil {
		t.Fatalf("expected no biggest sale, got %+v", summary.BiggestSale)
	}
	if summary.DisplayVolumeEth != 0 || summary.DisplaySalesCount != 0 || summary.DisplayBuyers != 0 {
		t.Fatalf("zero stats should yield zero display: %+v", summary)
	}
}

func TestBiggestSaleFirstWinsTie(t *testing.T) {
	sales := []models.Sale{
		sale("a", 1, testNow, "0x1"),
		sale("b", 5, testNow, "0x2"),
		sale("c", 5, testNow, "0x3"),
	}
	got := BiggestSale(sales)
	if got == nil || got.TokenID != "b" {
		t.Fatalf("expected index 1 to win the tie, got %+v", got)
	}
	got.TokenID = "mutated"
	if sales[1].TokenID != "b" {
		t.Fatal("BiggestSale must not alias the input slice")
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC) // 01:30 on May 2 in UTC+3
	got := StartOfDay(now, loc)
	want := time.Date(2024, 5, 2, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("StartOfDay = %v, want %v", got, want)
	}
}

func TestRecentSalesAndLimit(t *testing.T) {
	sales := make([]models.Sale, 20)
	if len(RecentSales(sales, 15)) != 15 {
		t.Fatal("expected 15 recent sales")
	}
	if len(RecentSales(sales[:3], 15)) != 3 {
		t.Fatal("short lists are returned whole")
	}
	if len(Limit(sales, 0)) != 20 {
		t.Fatal("non-positive limit keeps everything")
	}
}

func TestShuffleKeepsElements(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := Shuffle(in, rand.New(rand.NewSource(7)))
	if len(out) != len(in) {
		t.Fatalf("length changed: %v", out)
	}
	seen := make(map[int]bool)
	for _, v := range out {
		seen[v] = true
	}
	for _, v := range in {
		if !seen[v] {
			t.Fatalf("element %d lost in %v", v, out)
		}
	}
	for i, v := range []int{1, 2, 3, 4, 5, 6, 7, 8} {
		if in[i] != v {
			t.Fatal("input slice was modified")
		}
	}
}
