package orderbook

import "econia/domain/identity"

// Side is the side of the book an order rests on.
type Side uint8

const (
	Bid Side = iota
	Ask
)

// Valid reports whether s is Bid or Ask.
func (s Side) Valid() bool {
	return s == Bid || s == Ask
}

// Opposite returns the side a taker on s matches against.
func (s Side) Opposite() Side {
	if s == Ask {
		return Bid
	}
	return Ask
}

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Order is a resting position on one side of one market. Size is the
// remaining size in lots and is never zero while the order rests.
type Order struct {
	ID           OrderID
	Side         Side
	Price        uint64
	Size         uint64
	OriginalSize uint64
	Owner        identity.AccountID
	CustodianID  uint64
	AccessKey    AccessKey

	live bool
	prev AccessKey
	next AccessKey
}

// Actor returns the (owner, custodian) pair the order belongs to.
func (o *Order) Actor() identity.Actor {
	return identity.Actor{Account: o.Owner, CustodianID: o.CustodianID}
}
