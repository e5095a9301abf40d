package models

import (
	"bytes"
	"encoding/json"
)

// Lenient decodes T when it can and otherwise leaves the zero value in place
// without reporting an error.
type Lenient[T any] struct {
	Value T
	Valid bool
}

func (l *Lenient[T]) UnmarshalJSON(data []byte) error {
	var zero T
	l.Value, l.Valid = zero, false
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	l.Value, l.Valid = v, true
	return nil
}

func (l Lenient[T]) MarshalJSON() ([]byte, error) {
	if !l.Valid {
		return jsonNull, nil
	}
	return json.Marshal(l.Value)
}

// MarketplaceStatsResp is the body of GET /collections/{slug}/stats.
type MarketplaceStatsResp struct {
	Total     Lenient[MarketplaceStatsTotal]               `json:"total"`
	Intervals Lenient[[]Lenient[MarketplaceStatsInterval]] `json:"intervals"`
}

type MarketplaceStatsTotal struct {
	Volume     FlexFloat `json:"volume"`
	Sales      FlexFloat `json:"sales"`
	NumOwners  FlexFloat `json:"num_owners"`
	FloorPrice FlexFloat `json:"floor_price"`
	Supply     FlexFloat `json:"supply"`
	MarketCap  FlexFloat `json:"market_cap"`
	AvgPrice   FlexFloat `json:"average_price"`
}

type MarketplaceStatsInterval struct {
	Interval     FlexString `json:"interval"`
	Volume       FlexFloat  `json:"volume"`
	VolumeDiff   FlexFloat  `json:"volume_diff"`
	VolumeChange FlexFloat  `json:"volume_change"`
	Sales        FlexFloat  `json:"sales"`
	SalesDiff    FlexFloat  `json:"sales_diff"`
	AvgPrice     FlexFloat  `json:"average_price"`
}

// LatestInterval returns intervals[0], the most recent reporting period.
func (r MarketplaceStatsResp) LatestInterval() (MarketplaceStatsInterval, bool) {
	if !r.Intervals.Valid || len(r.Intervals.Value) == 0 {
		return MarketplaceStatsInterval{}, false
	}
	first := r.Intervals.Value[0]
	return first.Value, first.Valid
}

// MarketplaceEventsResp is the body of GET /events/collection/{slug}. Events
// stay raw so a malformed entry can be dropped on its own.
type MarketplaceEventsResp struct {
	AssetEvents Lenient[[]json.RawMessage] `json:"asset_events"`
	Next        FlexString                 `json:"next"`
}

// MarketplaceEvent is a single sale event. Every field decodes leniently.
type MarketplaceEvent struct {
	EventType      FlexString                  `json:"event_type"`
	EventTimestamp FlexInt                     `json:"event_timestamp"`
	Transaction    FlexString                  `json:"transaction"`
	Buyer          FlexString                  `json:"buyer"`
	Seller         FlexString                  `json:"seller"`
	Chain          FlexString                  `json:"chain"`
	Quantity       FlexInt                     `json:"quantity"`
	NFT            Lenient[MarketplaceNFT]     `json:"nft"`
	Payment        Lenient[MarketplacePayment] `json:"payment"`
}

type MarketplacePayment struct {
	Quantity      FlexString `json:"quantity"`
	QuantityInUSD FlexFloat  `json:"quantity_in_usd"`
	TokenAddress  FlexString `json:"token_address"`
	Decimals      FlexInt    `json:"decimals"`
	Symbol        FlexString `json:"symbol"`
}

type MarketplaceNFT struct {
	Identifier      FlexString `json:"identifier"`
	Collection      FlexString `json:"collection"`
	Contract        FlexString `json:"contract"`
	Name            FlexString `json:"name"`
	ImageURL        FlexString `json:"image_url"`
	DisplayImageURL FlexString `json:"display_image_url"`
	OpenseaURL      FlexString `json:"opensea_url"`
}

// MarketplaceNFTsResp is the body of GET /chain/{chain}/contract/{addr}/nfts.
type MarketplaceNFTsResp struct {
	NFTs Lenient[[]Lenient[MarketplaceNFT]] `json:"nfts"`
	Next FlexString                         `json:"next"`
}
