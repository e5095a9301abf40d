package models

import "time"

// Sale is one normalized marketplace sale event. After normalization every
// field holds either upstream data or its documented default, never an
// unset value.
type Sale struct {
	TokenID         string    `json:"token_id"`
	TokenName       string    `json:"token_name"`
	PriceEth        float64   `json:"price_eth"`
	PriceUsd        float64   `json:"price_usd"`
	Timestamp       time.Time `json:"timestamp"`
	Buyer           string    `json:"buyer"`
	Seller          string    `json:"seller"`
	ImageURL        string    `json:"image_url"`
	DetailURL       string    `json:"detail_url"`
	TransactionHash string    `json:"transaction_hash"`
}

// Stats is the collection-level snapshot exactly as the marketplace reports
// it. The one-day fields are never recomputed from sales.
type Stats struct {
	TotalVolumeEth        float64 `json:"total_volume_eth"`
	FloorPriceEth         float64 `json:"floor_price_eth"`
	TotalSalesCount       int64   `json:"total_sales_count"`
	OwnerCount            int64   `json:"owner_count"`
	TotalSupply           int64   `json:"total_supply"`
	OneDayVolumeEth       float64 `json:"one_day_volume_eth"`
	OneDaySalesCount      int64   `json:"one_day_sales_count"`
	OneDayVolumeChangePct float64 `json:"one_day_volume_change_pct"`
}

// ZeroStats is the stats value handed to presentation when a cycle fails.
func ZeroStats() Stats {
	return Stats{}
}

// NFT is one collection item used by the hero slideshow.
type NFT struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	TokenID  string `json:"token_id"`
}
