// Package market defines the fixed set of assets the dashboard can show.
package market

import (
	"errors"
	"fmt"
	"strings"
)

// Asset is one of the supported cryptocurrency symbols.
type Asset string

const (
	BTC  Asset = "BTC"
	ETH  Asset = "ETH"
	SOL  Asset = "SOL"
	BNB  Asset = "BNB"
	DOGE Asset = "DOGE"
)

// ErrUnknownAsset is returned for symbols outside the supported set.
var ErrUnknownAsset = errors.New("unknown asset")

// Assets returns the supported assets in tab order.
func Assets() []Asset {
	return []Asset{BTC, ETH, SOL, BNB, DOGE}
}

// ParseAsset resolves a symbol case-insensitively. The backend's SOLANA
// spelling is accepted as SOL.
func ParseAsset(s string) (Asset, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if sym == "SOLANA" {
		return SOL, nil
	}
	for _, a := range Assets() {
		if string(a) == sym {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAsset, s)
}

// BackendSymbol is the symbol the prediction backend expects in its paths.
func (a Asset) BackendSymbol() string {
	if a == SOL {
		return "SOLANA"
	}
	return string(a)
}

func (a Asset) String() string {
	return string(a)
}
