package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"econia/domain/errs"
	"econia/domain/identity"
	"econia/domain/orderbook"
	"econia/domain/registry"
)

/*
markets.yaml example:
markets:
  - base: coin:APT:8
    quote: coin:USDC:6
    lot_size: 1000
    tick_size: 1
    min_size: 1
  - base: generic:ticket
    quote: coin:USDC:6
    lot_size: 1
    tick_size: 10
    min_size: 1
    max_orders_per_side: 500
*/

type MarketSpec struct {
	Base             string `yaml:"base"`
	Quote            string `yaml:"quote"`
	LotSize          uint64 `yaml:"lot_size"`
	TickSize         uint64 `yaml:"tick_size"`
	MinSize          uint64 `yaml:"min_size"`
	MaxOrdersPerSide int    `yaml:"max_orders_per_side"`
}

type marketsFile struct {
	Markets []MarketSpec `yaml:"markets"`
}

// LoadMarkets reads and checks a markets file. Unknown keys are errors.
func LoadMarkets(path string) ([]MarketSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var mf marketsFile
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, m := range mf.Markets {
		if _, _, _, err := m.Parse(); err != nil {
			return nil, fmt.Errorf("%s: market %d: %w", path, i, err)
		}
	}
	return mf.Markets, nil
}

// Parse converts the entry into registry arguments.
func (m MarketSpec) Parse() (base, quote registry.Asset, params orderbook.Params, err error) {
	if base, err = registry.ParseAsset(m.Base); err != nil {
		return
	}
	if quote, err = registry.ParseAsset(m.Quote); err != nil {
		return
	}
	params = orderbook.Params{
		LotSize:          m.LotSize,
		TickSize:         m.TickSize,
		MinSize:          m.MinSize,
		MaxOrdersPerSide: m.MaxOrdersPerSide,
	}
	err = params.Validate()
	return
}

// MarketRegistrar is the part of the exchange service bootstrapping needs.
type MarketRegistrar interface {
	ResolveMarket(base, quote registry.Asset) (uint64, error)
	RegisterUnderwriter(ctx context.Context) (identity.UnderwriterCapability, error)
	RegisterMarket(ctx context.Context, base, quote registry.Asset, params orderbook.Params, underwriter identity.UnderwriterCapability) (registry.Market, error)
}

// Bootstrap registers every listed market that does not exist yet and
// returns how many it registered. A generic base asset gets a fresh
// underwriter.
func Bootstrap(ctx context.Context, r MarketRegistrar, specs []MarketSpec, logger zerolog.Logger) (int, error) {
	n := 0
	for _, m := range specs {
		base, quote, params, err := m.Parse()
		if err != nil {
			return n, err
		}
		if id, err := r.ResolveMarket(base, quote); err == nil {
			logger.Debug().Uint64("market", id).Str("base", m.Base).Str("quote", m.Quote).Msg("market exists")
			continue
		} else if !errors.Is(err, errs.ErrMarketNotFound) {
			return n, err
		}

		var uw identity.UnderwriterCapability
		if base.Kind == registry.GenericAsset {
			if uw, err = r.RegisterUnderwriter(ctx); err != nil {
				return n, err
			}
		}
		mk, err := r.RegisterMarket(ctx, base, quote, params, uw)
		if err != nil {
			return n, fmt.Errorf("register %s/%s: %w", m.Base, m.Quote, err)
		}
		logger.Info().Uint64("market", mk.ID).Str("base", m.Base).Str("quote", m.Quote).Msg("market registered")
		n++
	}
	return n, nil
}
