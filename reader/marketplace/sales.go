package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"salesflow/internal/units"
	"salesflow/logger"
	"salesflow/models"
)

// FetchRecentSales retrieves up to limit sale events, newest first as the
// marketplace orders them. A non-2xx status or an empty event list yields an
// empty slice and no error; transport and decode failures are *NetworkError.
func (c *Client) FetchRecentSales(ctx context.Context, limit int) ([]models.Sale, error) {
	log := c.log.WithComponent(component).WithFields(logger.Fields{"operation": "FetchRecentSales"})

	query := limitQuery(limit, defaultSalesLimit)
	query.Set("event_type", "sale")
	path := "/events/collection/" + url.PathEscape(c.collection.Slug)

	body, status, err := c.get(ctx, endpointEvents, path, query)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		log.WithField("status", status).Warn("sales endpoint returned error status, treating as no sales")
		return []models.Sale{}, nil
	}

	var resp models.MarketplaceEventsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		log.WithError(err).Warn("failed to decode sale events")
		return nil, &NetworkError{Status: status, Endpoint: endpointEvents, Err: fmt.Errorf("decode events: %w", err)}
	}

	events := resp.AssetEvents.Value
	if len(events) == 0 {
		log.Info("no recent sales found")
		return []models.Sale{}, nil
	}

	now := c.now()
	sales := make([]models.Sale, 0, len(events))
	for i, raw := range events {
		var event models.MarketplaceEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.WithFields(logger.Fields{"index": i}).WithError(err).Warn("skipping malformed sale event")
			continue
		}
		sales = append(sales, c.normalizeSale(event, now))
	}

	logger.IncrementSalesRead(len(sales))
	logger.LogDataFlowEntry(log, "marketplace_api", "poller", len(sales), "sales")
	return sales, nil
}

// normalizeSale maps one raw event to a fully populated Sale.
func (c *Client) normalizeSale(event models.MarketplaceEvent, now time.Time) models.Sale {
	nft := event.NFT.Value
	payment := event.Payment.Value

	identifier := strings.TrimSpace(nft.Identifier.Value)
	tokenID := units.OrUnknown(identifier)

	return models.Sale{
		TokenID:         tokenID,
		TokenName:       units.OrDefault(nft.Name.Value, c.tokenName(identifier)),
		PriceEth:        units.WeiToEth(payment.Quantity.Value),
		PriceUsd:        units.NonNegative(payment.QuantityInUSD.Value),
		Timestamp:       units.UnixSecondsToTime(event.EventTimestamp.Value, now),
		Buyer:           units.OrUnknown(event.Buyer.Value),
		Seller:          units.OrUnknown(event.Seller.Value),
		ImageURL:        units.OrDefault(nft.ImageURL.Value, c.fallbacks.PlaceholderImage),
		DetailURL:       c.detailURL(tokenID),
		TransactionHash: units.OrUnknown(event.Transaction.Value),
	}
}

// tokenName is the display name used when the marketplace omits one.
func (c *Client) tokenName(identifier string) string {
	if identifier == "" {
		identifier = "?"
	}
	return fmt.Sprintf("%s #%s", c.collection.Name, identifier)
}

func (c *Client) detailURL(tokenID string) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		strings.TrimRight(c.cfg.AssetBaseURL, "/"),
		c.cfg.Chain,
		c.collection.ContractAddress,
		url.PathEscape(tokenID),
	)
}
