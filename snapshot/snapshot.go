package snapshot

import (
	"time"

	"econia/domain/custody"
	"econia/domain/identity"
	"econia/domain/orderbook"
	"econia/domain/registry"
)

type Snapshot struct {
	Seq          uint64
	Created      time.Time
	Custodians   uint64
	Underwriters uint64
	Markets      []MarketEntry
	Positions    []PositionEntry
}

type MarketEntry struct {
	ID      uint64
	Base    registry.Asset
	Quote   registry.Asset
	Params  orderbook.Params
	Counter uint64
	// Orders holds asks then bids, each side best first.
	Orders []OrderEntry
}

type OrderEntry struct {
	ID           orderbook.OrderID
	Size         uint64
	OriginalSize uint64
	Owner        identity.AccountID
	CustodianID  uint64
}

type PositionEntry struct {
	MarketID    uint64
	Account     identity.AccountID
	CustodianID uint64
	Base        custody.Balance
	Quote       custody.Balance
	OpenOrders  []orderbook.OrderID
}

// Key returns the ledger key of the position.
func (p PositionEntry) Key() custody.Key {
	return custody.Key{MarketID: p.MarketID, Account: p.Account, CustodianID: p.CustodianID}
}

// Summary is a compact description of a snapshot for inspection.
type Summary struct {
	Seq          uint64          `json:"seq"`
	Created      time.Time       `json:"created"`
	Custodians   uint64          `json:"custodians"`
	Underwriters uint64          `json:"underwriters"`
	Positions    int             `json:"positions"`
	Markets      []MarketSummary `json:"markets"`
}

type MarketSummary struct {
	ID    uint64 `json:"id"`
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Asks  int    `json:"asks"`
	Bids  int    `json:"bids"`
}

func (s *Snapshot) Summary() Summary {
	out := Summary{
		Seq:          s.Seq,
		Created:      s.Created,
		Custodians:   s.Custodians,
		Underwriters: s.Underwriters,
		Positions:    len(s.Positions),
		Markets:      make([]MarketSummary, 0, len(s.Markets)),
	}
	for _, m := range s.Markets {
		ms := MarketSummary{ID: m.ID, Base: m.Base.String(), Quote: m.Quote.String()}
		for _, o := range m.Orders {
			if o.ID.Side() == orderbook.Ask {
				ms.Asks++
			} else {
				ms.Bids++
			}
		}
		out.Markets = append(out.Markets, ms)
	}
	return out
}
