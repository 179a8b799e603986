package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"econia/domain/custody"
	"econia/domain/orderbook"
	"econia/domain/registry"
)

func sample() *Snapshot {
	ask := orderbook.NewOrderID(orderbook.Ask, 105, 2)
	bid := orderbook.NewOrderID(orderbook.Bid, 99, 1)
	return &Snapshot{
		Seq:          42,
		Created:      time.Unix(1700000000, 0).UTC(),
		Custodians:   1,
		Underwriters: 2,
		Markets: []MarketEntry{{
			ID:      1,
			Base:    registry.Generic("ticket"),
			Quote:   registry.Coin("USDC", 6),
			Params:  orderbook.Params{LotSize: 10, TickSize: 5, MinSize: 1, UnderwriterID: 2},
			Counter: 2,
			Orders: []OrderEntry{
				{ID: ask, Size: 3, OriginalSize: 4, Owner: 7},
				{ID: bid, Size: 1, OriginalSize: 1, Owner: 8, CustodianID: 1},
			},
		}},
		Positions: []PositionEntry{{
			MarketID:   1,
			Account:    7,
			Base:       custody.Balance{Available: 10, Locked: 30},
			OpenOrders: []orderbook.OrderID{ask},
		}},
	}
}

func TestWriteThenLoad(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}
	s := sample()
	require.NoError(t, w.Write(s))

	got, err := Load(Path(dir))
	require.NoError(t, err)
	require.Equal(t, s.Seq, got.Seq)
	require.True(t, s.Created.Equal(got.Created))
	require.Equal(t, s.Markets, got.Markets)
	require.Equal(t, s.Positions, got.Positions)

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: filepath.Join(dir, "nested")}
	require.NoError(t, w.Write(sample()))
	next := sample()
	next.Seq = 50
	require.NoError(t, w.Write(next))

	got, err := Load(Path(w.Dir))
	require.NoError(t, err)
	require.Equal(t, uint64(50), got.Seq)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(Path(t.TempDir()))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("not gob"), 0o644))
	_, err := Load(Path(dir))
	require.Error(t, err)
}

func TestSummary(t *testing.T) {
	sum := sample().Summary()
	require.Equal(t, uint64(42), sum.Seq)
	require.Equal(t, 1, sum.Positions)
	require.Equal(t, []MarketSummary{{ID: 1, Base: "generic:ticket", Quote: "coin:USDC:6", Asks: 1, Bids: 1}}, sum.Markets)
}
