package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"econia/domain/custody"
	"econia/domain/identity"
	"econia/domain/orderbook"
	"econia/domain/registry"
	"econia/infra/sequence"
	entrywal "econia/infra/wal/entry"
	exitwal "econia/infra/wal/exit"
)

func BenchmarkPlaceOrder_Core(b *testing.B) {
	ctx := context.Background()
	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:         b.TempDir(),
		SegmentSize: 64 << 20,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer entryWAL.Close()
	exitWAL, err := exitwal.Open(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer exitWAL.Close()

	svc := New(entryWAL, exitWAL, sequence.New(0), zerolog.Nop(), nil)
	mk, err := svc.RegisterMarket(ctx, registry.Coin("APT", 8), registry.Coin("USDC", 6),
		orderbook.Params{LotSize: 1, TickSize: 1, MinSize: 1}, identity.UnderwriterCapability{})
	if err != nil {
		b.Fatal(err)
	}
	maker, taker := Self(1), Self(2)
	for _, c := range []Caller{maker, taker} {
		for _, a := range []custody.Asset{custody.Base, custody.Quote} {
			if _, err := svc.Deposit(ctx, c, mk.ID, a, 1<<50); err != nil {
				b.Fatal(err)
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := svc.PlaceLimitOrder(ctx, maker, LimitOrder{MarketID: mk.ID, Side: orderbook.Ask, Size: 1, Price: 100})
		if err != nil {
			b.Fatal(err)
		}
		_, err = svc.PlaceLimitOrder(ctx, taker, LimitOrder{MarketID: mk.ID, Side: orderbook.Bid, Size: 1, Price: 100})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPlaceOrder_NoWAL(b *testing.B) {
	ctx := context.Background()
	svc := New(nil, nil, sequence.New(0), zerolog.Nop(), nil)
	mk, err := svc.RegisterMarket(ctx, registry.Coin("APT", 8), registry.Coin("USDC", 6),
		orderbook.Params{LotSize: 1, TickSize: 1, MinSize: 1}, identity.UnderwriterCapability{})
	if err != nil {
		b.Fatal(err)
	}
	maker := Self(1)
	if _, err := svc.Deposit(ctx, maker, mk.ID, custody.Base, 1<<50); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := svc.PlaceLimitOrder(ctx, maker, LimitOrder{MarketID: mk.ID, Side: orderbook.Ask, Size: 1, Price: 100 + uint64(i%64)})
		if err != nil {
			b.Fatal(err)
		}
		if _, err := svc.CancelOrder(ctx, maker, mk.ID, res.OrderID); err != nil {
			b.Fatal(err)
		}
	}
}
