package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"salesflow/internal/units"
	"salesflow/logger"
	"salesflow/models"
)

// FetchCollectionNFTs lists up to limit items of the collection contract for
// the slideshow. Unlike sales, any non-2xx status or missing list is an error
// so the caller can switch to its static images.
func (c *Client) FetchCollectionNFTs(ctx context.Context, limit int) ([]models.NFT, error) {
	log := c.log.WithComponent(component).WithFields(logger.Fields{"operation": "FetchCollectionNFTs"})

	path := fmt.Sprintf("/chain/%s/contract/%s/nfts", url.PathEscape(c.cfg.Chain), url.PathEscape(c.collection.ContractAddress))
	body, status, err := c.get(ctx, endpointNFTs, path, limitQuery(limit, defaultNFTLimit))
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &NetworkError{Status: status, Endpoint: endpointNFTs}
	}

	var resp models.MarketplaceNFTsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &NetworkError{Status: status, Endpoint: endpointNFTs, Err: fmt.Errorf("decode nfts: %w", err)}
	}
	if !resp.NFTs.Valid {
		return nil, ErrNoNFTs
	}

	nfts := make([]models.NFT, 0, len(resp.NFTs.Value))
	for i, item := range resp.NFTs.Value {
		if !item.Valid {
			continue
		}
		nfts = append(nfts, c.normalizeNFT(item.Value, i))
	}

	logger.LogDataFlowEntry(log, "marketplace_api", "slideshow", len(nfts), "nfts")
	return nfts, nil
}

func (c *Client) normalizeNFT(nft models.MarketplaceNFT, index int) models.NFT {
	identifier := strings.TrimSpace(nft.Identifier.Value)

	image := nft.ImageURL.Value
	if image == "" {
		image = nft.DisplayImageURL.Value
	}

	return models.NFT{
		ID:       units.OrDefault(identifier, strconv.Itoa(index)),
		Title:    units.OrDefault(nft.Name.Value, c.tokenName(identifier)),
		ImageURL: units.OrDefault(image, c.fallbacks.PlaceholderImage),
		TokenID:  units.OrUnknown(identifier),
	}
}
