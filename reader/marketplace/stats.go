package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"salesflow/internal/units"
	"salesflow/logger"
	"salesflow/models"
)

// FetchStats retrieves the collection-level totals and the most recent
// interval. Any non-2xx status or undecodable body is a *NetworkError;
// individual missing fields default to zero.
func (c *Client) FetchStats(ctx context.Context) (models.Stats, error) {
	log := c.log.WithComponent(component).WithFields(logger.Fields{"operation": "FetchStats"})

	path := "/collections/" + url.PathEscape(c.collection.Slug) + "/stats"
	body, status, err := c.get(ctx, endpointStats, path, nil)
	if err != nil {
		return models.ZeroStats(), err
	}
	if !isSuccess(status) {
		log.WithField("status", status).Warn("stats endpoint returned error status")
		return models.ZeroStats(), &NetworkError{Status: status, Endpoint: endpointStats}
	}

	var resp models.MarketplaceStatsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		log.WithError(err).Warn("failed to decode stats")
		return models.ZeroStats(), &NetworkError{Status: status, Endpoint: endpointStats, Err: fmt.Errorf("decode stats: %w", err)}
	}

	stats := normalizeStats(resp)
	logger.LogDataFlowEntry(log, "marketplace_api", "poller", 1, "collection_stats")
	return stats, nil
}

func normalizeStats(resp models.MarketplaceStatsResp) models.Stats {
	total := resp.Total.Value
	stats := models.Stats{
		TotalVolumeEth:  units.NonNegative(total.Volume.Value),
		FloorPriceEth:   units.NonNegative(total.FloorPrice.Value),
		TotalSalesCount: count(total.Sales),
		OwnerCount:      count(total.NumOwners),
		TotalSupply:     count(total.Supply),
	}
	if day, ok := resp.LatestInterval(); ok {
		stats.OneDayVolumeEth = units.NonNegative(day.Volume.Value)
		stats.OneDaySalesCount = count(day.Sales)
		stats.OneDayVolumeChangePct = units.ParseFloatOrZero(day.VolumeChange.Value)
	}
	return stats
}

func count(f models.FlexFloat) int64 {
	return int64(units.NonNegative(f.Value))
}
