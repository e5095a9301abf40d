package dashboard

import (
	"time"

	"salesflow/internal/units"
	"salesflow/models"
	"salesflow/processor"
)

// saleView is a sale with the display strings the page needs.
type saleView struct {
	models.Sale
	TimeAgo     string `json:"time_ago"`
	BuyerShort  string `json:"buyer_short"`
	SellerShort string `json:"seller_short"`
}

type snapshotView struct {
	CycleID     string         `json:"cycle_id"`
	State       string         `json:"state"`
	View        string         `json:"view"`
	Error       string         `json:"error,omitempty"`
	Refreshing  bool           `json:"refreshing"`
	Stats       models.Stats   `json:"stats"`
	Summary     models.Summary `json:"summary"`
	Featured    *saleView      `json:"featured"`
	Recent      []saleView     `json:"recent"`
	SalesCount  int            `json:"sales_count"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

func newSaleView(sale models.Sale, now time.Time) saleView {
	return saleView{
		Sale:        sale,
		TimeAgo:     units.RelativeTime(sale.Timestamp, now),
		BuyerShort:  units.FormatAddress(sale.Buyer),
		SellerShort: units.FormatAddress(sale.Seller),
	}
}

// buildView renders a snapshot for presentation. A missing snapshot is shown
// as loading.
func buildView(snap models.Snapshot, ok bool, now time.Time, recentLimit int) snapshotView {
	if !ok {
		return snapshotView{
			State:  string(models.StateLoading),
			View:   string(models.ViewLoading),
			Recent: []saleView{},
		}
	}

	recent := processor.RecentSales(snap.Sales, recentLimit)
	v := snapshotView{
		CycleID:     snap.CycleID,
		State:       string(snap.State),
		View:        string(snap.View()),
		Error:       snap.Error,
		Stats:       snap.Stats,
		Summary:     snap.Summary,
		Recent:      make([]saleView, 0, len(recent)),
		SalesCount:  len(snap.Sales),
		StartedAt:   snap.StartedAt,
		CompletedAt: snap.CompletedAt,
	}
	for _, sale := range recent {
		v.Recent = append(v.Recent, newSaleView(sale, now))
	}
	if snap.Summary.BiggestSale != nil {
		featured := newSaleView(*snap.Summary.BiggestSale, now)
		v.Featured = &featured
	}
	return v
}
