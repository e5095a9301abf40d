package processor

import (
	"time"

	"salesflow/internal/units"
	"salesflow/models"
)

// Aggregate derives the summary shown next to the sales list. Today's figures
// come from sales at or after todayStart; when there are none the display
// figures fall back to the marketplace's one-day stats and owner count.
func Aggregate(sales []models.Sale, stats models.Stats, todayStart time.Time) models.Summary {
	var summary models.Summary

	buyers := make(map[string]struct{})
	for _, sale := range sales {
		if sale.Timestamp.Before(todayStart) {
			continue
		}
		summary.TodaysVolumeEth += sale.PriceEth
		summary.TodaysSalesCount++
		if sale.Buyer != units.Unknown && sale.Buyer != "" {
			buyers[sale.Buyer] = struct{}{}
		}
	}
	summary.UniqueBuyers = len(buyers)
	summary.BiggestSale = BiggestSale(sales)

	if summary.TodaysSalesCount > 0 {
		summary.FromToday = true
		summary.DisplayVolumeEth = summary.TodaysVolumeEth
		summary.DisplaySalesCount = int64(summary.TodaysSalesCount)
		summary.DisplayBuyers = int64(summary.UniqueBuyers)
	} else {
		summary.DisplayVolumeEth = stats.OneDayVolumeEth
		summary.DisplaySalesCount = stats.OneDaySalesCount
		summary.DisplayBuyers = stats.OwnerCount
	}
	return summary
}

// BiggestSale returns the highest priced sale; the first one wins a tie.
// It returns nil for an empty list.
func BiggestSale(sales []models.Sale) *models.Sale {
	if len(sales) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(sales); i++ {
		if sales[i].PriceEth > sales[best].PriceEth {
			best = i
		}
	}
	biggest := sales[best]
	return &biggest
}

// StartOfDay is local midnight of now in loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// RecentSales returns at most n leading sales for the activity list.
func RecentSales(sales []models.Sale, n int) []models.Sale {
	return Limit(sales, n)
}
