package matching

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"econia/domain/custody"
	"econia/domain/identity"
	"econia/domain/orderbook"
)

func drawSide(t *rapid.T, label string) orderbook.Side {
	return rapid.SampledFrom([]orderbook.Side{orderbook.Ask, orderbook.Bid}).Draw(t, label).(orderbook.Side)
}

// Placing an order that does not cross and then cancelling it leaves every
// position and every level as it was.
func TestPlaceThenCancelIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ledger := custody.NewLedger()
		book := orderbook.New(marketID, unitParams())
		eng := New(book, ledger)

		tx := ledger.Begin()
		for _, a := range []identity.Actor{alice, bob} {
			k := custody.KeyFor(marketID, a)
			require.NoError(t, tx.Deposit(k, custody.Base, 1_000))
			require.NoError(t, tx.Deposit(k, custody.Quote, 1_000_000))
		}
		tx.Commit()

		// Asks rest at 100 and above, bids at 90 and below.
		seed := rapid.IntRange(0, 8).Draw(t, "seed").(int)
		for i := 0; i < seed; i++ {
			side := drawSide(t, "seed side")
			price := rapid.Uint64Range(100, 110).Draw(t, "ask price").(uint64)
			if side == orderbook.Bid {
				price = rapid.Uint64Range(80, 90).Draw(t, "bid price").(uint64)
			}
			_, err := eng.PlaceLimit(Request{
				Actor:       bob,
				Side:        side,
				Size:        rapid.Uint64Range(1, 10).Draw(t, "seed size").(uint64),
				Price:       price,
				Restriction: PostOrAbort,
			})
			require.NoError(t, err)
		}

		position := func(a identity.Actor) custody.PositionView {
			p, _ := ledger.Position(custody.KeyFor(marketID, a))
			return p
		}
		aliceBefore, bobBefore := position(alice), position(bob)
		asksBefore, bidsBefore := book.Depth(orderbook.Ask, 0), book.Depth(orderbook.Bid, 0)

		size := rapid.Uint64Range(1, 50).Draw(t, "size").(uint64)
		res, err := eng.PlaceLimit(Request{
			Actor:       alice,
			Side:        drawSide(t, "side"),
			Size:        size,
			Price:       rapid.Uint64Range(91, 99).Draw(t, "price").(uint64),
			Restriction: PostOrAbort,
		})
		require.NoError(t, err)
		require.Equal(t, size, res.PostedAsMaker)
		require.Zero(t, res.FilledAsTaker)

		_, err = eng.Cancel(alice, res.OrderID)
		require.NoError(t, err)

		require.Equal(t, aliceBefore, position(alice))
		require.Equal(t, bobBefore, position(bob))
		require.Equal(t, asksBefore, book.Depth(orderbook.Ask, 0))
		require.Equal(t, bidsBefore, book.Depth(orderbook.Bid, 0))
	})
}
