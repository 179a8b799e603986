package registry

import (
	"fmt"
	"strconv"
	"strings"

	"econia/domain/errs"
)

// AssetKind tags the variant an Asset holds.
type AssetKind uint8

const (
	// CoinAsset is a fungible coin with a symbol and decimals.
	CoinAsset AssetKind = iota + 1
	// GenericAsset is anything else; its custody is vouched for by an
	// underwriter.
	GenericAsset
)

func (k AssetKind) String() string {
	switch k {
	case CoinAsset:
		return "coin"
	case GenericAsset:
		return "generic"
	default:
		return "unknown"
	}
}

// Asset describes one leg of a market. Symbol and Decimals apply to coins,
// Name to generic assets.
type Asset struct {
	Kind     AssetKind `json:"kind" yaml:"kind"`
	Symbol   string    `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Decimals uint8     `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
}

// Coin returns a coin asset.
func Coin(symbol string, decimals uint8) Asset {
	return Asset{Kind: CoinAsset, Symbol: symbol, Decimals: decimals}
}

// Generic returns a generic asset.
func Generic(name string) Asset {
	return Asset{Kind: GenericAsset, Name: name}
}

// Validate checks the variant is populated consistently.
func (a Asset) Validate() error {
	switch a.Kind {
	case CoinAsset:
		if a.Symbol == "" || a.Name != "" {
			return errs.New(errs.ErrInvalidAsset, "coin needs a symbol and no name: %s", a)
		}
	case GenericAsset:
		if a.Name == "" || a.Symbol != "" || a.Decimals != 0 {
			return errs.New(errs.ErrInvalidAsset, "generic asset needs only a name: %s", a)
		}
	default:
		return errs.New(errs.ErrInvalidAsset, "unknown asset kind %d", a.Kind)
	}
	return nil
}

// String renders the asset as coin:SYMBOL:DECIMALS or generic:NAME.
func (a Asset) String() string {
	if a.Kind == GenericAsset {
		return "generic:" + a.Name
	}
	return fmt.Sprintf("%s:%s:%d", a.Kind, a.Symbol, a.Decimals)
}

// ParseAsset parses the String form of an asset.
func ParseAsset(s string) (Asset, error) {
	parts := strings.Split(s, ":")
	switch {
	case len(parts) == 2 && parts[0] == "generic":
		a := Generic(parts[1])
		return a, a.Validate()
	case len(parts) == 3 && parts[0] == "coin":
		d, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return Asset{}, errs.New(errs.ErrInvalidAsset, "decimals in %q", s)
		}
		a := Coin(parts[1], uint8(d))
		return a, a.Validate()
	}
	return Asset{}, errs.New(errs.ErrInvalidAsset, "malformed asset %q", s)
}
