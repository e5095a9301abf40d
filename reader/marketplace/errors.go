package marketplace

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoNFTs is returned when the NFT listing carries no nfts array.
var ErrNoNFTs = errors.New("marketplace: invalid nft listing response")

// NetworkError is a failed marketplace call. Status is the HTTP status, or 0
// when no response was received (transport failure, timeout, cancellation).
type NetworkError struct {
	Status   int
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("marketplace %s: HTTP %d: %v", e.Endpoint, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("marketplace %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("marketplace %s: HTTP %d", e.Endpoint, e.Status)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether the marketplace answered 429.
func (e *NetworkError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// IsRateLimited reports whether err wraps a 429 NetworkError.
func IsRateLimited(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.IsRateLimited()
}
