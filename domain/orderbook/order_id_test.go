package orderbook

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderIDRoundTripFields(t *testing.T) {
	for _, side := range []Side{Ask, Bid} {
		id := NewOrderID(side, 12345, 678)
		require.Equal(t, side, id.Side())
		require.Equal(t, uint64(12345), id.Price())
		require.Equal(t, uint64(678), id.Counter())
		require.False(t, id.IsZero())

		parsed, err := ParseOrderID(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
}

func TestAskIDsAscendInPriceTimePriority(t *testing.T) {
	ids := []OrderID{
		NewOrderID(Ask, 101, 1),
		NewOrderID(Ask, 100, 3),
		NewOrderID(Ask, 100, 2),
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a].Less(ids[b]) })
	require.Equal(t, []uint64{2, 3, 1}, counters(ids))
}

func TestBidIDsDescendInPriceTimePriority(t *testing.T) {
	ids := []OrderID{
		NewOrderID(Bid, 99, 1),
		NewOrderID(Bid, 100, 3),
		NewOrderID(Bid, 100, 2),
	}
	// Best bid first is descending numeric order.
	sort.Slice(ids, func(a, b int) bool { return ids[b].Less(ids[a]) })
	require.Equal(t, []uint64{2, 3, 1}, counters(ids))
}

func TestParseOrderIDRejectsBadInput(t *testing.T) {
	_, err := ParseOrderID("zz")
	require.Error(t, err)
	_, err = ParseOrderID("abcd")
	require.Error(t, err)
}

func counters(ids []OrderID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = id.Counter()
	}
	return out
}
