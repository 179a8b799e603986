package grpcserver

import (
	"econia/domain/custody"
	"econia/domain/matching"
	"econia/domain/orderbook"
	"econia/domain/registry"
)

// -------------------- Requests --------------------

type PlaceLimitOrderRequest struct {
	MarketID    uint64 `json:"market_id"`
	Side        string `json:"side"`
	Size        uint64 `json:"size"`
	Price       uint64 `json:"price"`
	Restriction string `json:"restriction,omitempty"`
	SelfMatch   string `json:"self_match,omitempty"`
}

type PlaceMarketOrderRequest struct {
	MarketID    uint64 `json:"market_id"`
	Side        string `json:"side"`
	Size        uint64 `json:"size"`
	Restriction string `json:"restriction,omitempty"`
	SelfMatch   string `json:"self_match,omitempty"`
}

type CancelOrderRequest struct {
	MarketID uint64            `json:"market_id"`
	OrderID  orderbook.OrderID `json:"order_id"`
}

type CancelAllOrdersRequest struct {
	MarketID uint64 `json:"market_id"`
	Side     string `json:"side"`
}

type ChangeOrderSizeRequest struct {
	MarketID uint64            `json:"market_id"`
	OrderID  orderbook.OrderID `json:"order_id"`
	Size     uint64            `json:"size"`
}

type TransferRequest struct {
	MarketID uint64 `json:"market_id"`
	Asset    string `json:"asset"`
	Amount   uint64 `json:"amount"`
}

type MarketRequest struct {
	MarketID uint64 `json:"market_id"`
}

type PriceLevelsRequest struct {
	MarketID uint64 `json:"market_id"`
	Depth    int    `json:"depth,omitempty"`
}

type GetOrderRequest struct {
	MarketID uint64            `json:"market_id"`
	OrderID  orderbook.OrderID `json:"order_id"`
}

type ListMarketsRequest struct{}

// -------------------- Responses --------------------

type Fill struct {
	MakerOrderID orderbook.OrderID `json:"maker_order_id"`
	Price        uint64            `json:"price"`
	Size         uint64            `json:"size"`
	BaseAmount   uint64            `json:"base_amount"`
	QuoteAmount  uint64            `json:"quote_amount"`
}

type PlaceOrderResponse struct {
	OrderID       *orderbook.OrderID `json:"order_id,omitempty"`
	State         string             `json:"state"`
	FilledAsTaker uint64             `json:"filled_as_taker"`
	PostedAsMaker uint64             `json:"posted_as_maker"`
	CancelledSize uint64             `json:"cancelled_size"`
	Fills         []Fill             `json:"fills,omitempty"`
}

type OrderOutcomeResponse struct {
	OrderID   *orderbook.OrderID  `json:"order_id,omitempty"`
	Cancelled []orderbook.OrderID `json:"cancelled,omitempty"`
}

type PositionResponse struct {
	Base       custody.Balance     `json:"base"`
	Quote      custody.Balance     `json:"quote"`
	OpenOrders []orderbook.OrderID `json:"open_orders,omitempty"`
}

type PriceLevelsResponse struct {
	Asks []orderbook.LevelView `json:"asks"`
	Bids []orderbook.LevelView `json:"bids"`
}

type OrderResponse struct {
	OrderID      orderbook.OrderID `json:"order_id"`
	Side         string            `json:"side"`
	Price        uint64            `json:"price"`
	Size         uint64            `json:"size"`
	OriginalSize uint64            `json:"original_size"`
	Owner        uint64            `json:"owner"`
	CustodianID  uint64            `json:"custodian_id,omitempty"`
}

type OpenOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type BestBidAskResponse struct {
	Bid *uint64 `json:"bid,omitempty"`
	Ask *uint64 `json:"ask,omitempty"`
}

type Market struct {
	ID               uint64 `json:"id"`
	Base             string `json:"base"`
	Quote            string `json:"quote"`
	LotSize          uint64 `json:"lot_size"`
	TickSize         uint64 `json:"tick_size"`
	MinSize          uint64 `json:"min_size"`
	UnderwriterID    uint64 `json:"underwriter_id,omitempty"`
	MaxOrdersPerSide int    `json:"max_orders_per_side,omitempty"`
}

type ListMarketsResponse struct {
	Markets []Market `json:"markets"`
}

// -------------------- Converters --------------------

func parseSide(s string) (orderbook.Side, error) {
	switch s {
	case "bid":
		return orderbook.Bid, nil
	case "ask":
		return orderbook.Ask, nil
	}
	return 0, invalidArgument("side %q", s)
}

func parseRestriction(s string) (matching.Restriction, error) {
	if s == "" {
		return matching.NoRestriction, nil
	}
	for r := matching.NoRestriction; r.Valid(); r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, invalidArgument("restriction %q", s)
}

func parseSelfMatch(s string) (matching.SelfMatch, error) {
	if s == "" {
		return matching.SelfMatchAbort, nil
	}
	for m := matching.SelfMatchAbort; m.Valid(); m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, invalidArgument("self match %q", s)
}

func parseAsset(s string) (custody.Asset, error) {
	switch s {
	case "base":
		return custody.Base, nil
	case "quote":
		return custody.Quote, nil
	}
	return 0, invalidArgument("asset %q", s)
}

func fromResult(res matching.Result) *PlaceOrderResponse {
	out := &PlaceOrderResponse{
		State:         res.State.String(),
		FilledAsTaker: res.FilledAsTaker,
		PostedAsMaker: res.PostedAsMaker,
		CancelledSize: res.CancelledSize,
	}
	if !res.OrderID.IsZero() {
		id := res.OrderID
		out.OrderID = &id
	}
	for _, f := range res.Fills {
		out.Fills = append(out.Fills, Fill{
			MakerOrderID: f.MakerOrderID,
			Price:        f.Price,
			Size:         f.Size,
			BaseAmount:   f.BaseAmount,
			QuoteAmount:  f.QuoteAmount,
		})
	}
	return out
}

func fromOutcome(o matching.Outcome) *OrderOutcomeResponse {
	out := &OrderOutcomeResponse{}
	if !o.OrderID.IsZero() {
		id := o.OrderID
		out.OrderID = &id
	}
	for _, r := range o.Removed {
		out.Cancelled = append(out.Cancelled, r.ID)
	}
	return out
}

func fromPosition(p custody.PositionView) *PositionResponse {
	return &PositionResponse{Base: p.Base, Quote: p.Quote, OpenOrders: p.OpenOrders}
}

func fromOrder(o orderbook.Order) OrderResponse {
	return OrderResponse{
		OrderID:      o.ID,
		Side:         o.Side.String(),
		Price:        o.Price,
		Size:         o.Size,
		OriginalSize: o.OriginalSize,
		Owner:        uint64(o.Owner),
		CustodianID:  o.CustodianID,
	}
}

func fromMarket(m registry.Market) Market {
	return Market{
		ID:               m.ID,
		Base:             m.Base.String(),
		Quote:            m.Quote.String(),
		LotSize:          m.Params.LotSize,
		TickSize:         m.Params.TickSize,
		MinSize:          m.Params.MinSize,
		UnderwriterID:    m.Params.UnderwriterID,
		MaxOrdersPerSide: m.Params.MaxOrdersPerSide,
	}
}
