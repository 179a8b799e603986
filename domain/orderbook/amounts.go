package orderbook

import (
	"math/bits"

	"econia/domain/errs"
)

// BaseAmount converts a size in lots to base asset units.
func (p Params) BaseAmount(size uint64) (uint64, error) {
	return mul(size, p.LotSize)
}

// QuoteAmount converts a size in lots at price ticks to quote asset units.
func (p Params) QuoteAmount(size, price uint64) (uint64, error) {
	v, err := mul(size, price)
	if err != nil {
		return 0, err
	}
	return mul(v, p.TickSize)
}

// Collateral returns the amount an order of size at price on side holds:
// base units for asks, quote units for bids.
func (p Params) Collateral(side Side, size, price uint64) (uint64, error) {
	if side == Ask {
		return p.BaseAmount(size)
	}
	return p.QuoteAmount(size, price)
}

// Add returns a+b, failing on overflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errs.New(errs.ErrOverflow, "%d + %d", a, b)
	}
	return sum, nil
}

// Sub returns a-b, failing on underflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, errs.New(errs.ErrOverflow, "%d - %d", a, b)
	}
	return diff, nil
}

func mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errs.New(errs.ErrOverflow, "%d * %d", a, b)
	}
	return lo, nil
}
