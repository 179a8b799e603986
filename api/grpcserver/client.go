package grpcserver

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"econia/domain/identity"
	"econia/domain/orderbook"
)

// Client calls the Exchange service as one account.
type Client struct {
	conn      grpc.ClientConnInterface
	account   identity.AccountID
	custodian uint64
}

func NewClient(conn grpc.ClientConnInterface, account identity.AccountID) *Client {
	return &Client{conn: conn, account: account}
}

// WithCustodian returns a client acting for the same account through
// custodian id.
func (c *Client) WithCustodian(id uint64) *Client {
	cp := *c
	cp.custodian = id
	return &cp
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	md := metadata.Pairs(HeaderAccount, strconv.FormatUint(uint64(c.account), 10))
	if c.custodian != 0 {
		md.Append(HeaderCustodian, strconv.FormatUint(c.custodian, 10))
	}
	ctx = metadata.NewOutgoingContext(ctx, md)
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp, grpc.CallContentSubtype(codecName))
}

func call[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.invoke(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) PlaceLimitOrder(ctx context.Context, req *PlaceLimitOrderRequest) (*PlaceOrderResponse, error) {
	return call[PlaceOrderResponse](ctx, c, "PlaceLimitOrder", req)
}

func (c *Client) PlaceMarketOrder(ctx context.Context, req *PlaceMarketOrderRequest) (*PlaceOrderResponse, error) {
	return call[PlaceOrderResponse](ctx, c, "PlaceMarketOrder", req)
}

func (c *Client) CancelOrder(ctx context.Context, marketID uint64, id orderbook.OrderID) (*OrderOutcomeResponse, error) {
	return call[OrderOutcomeResponse](ctx, c, "CancelOrder", &CancelOrderRequest{MarketID: marketID, OrderID: id})
}

func (c *Client) CancelAllOrders(ctx context.Context, marketID uint64, side string) (*OrderOutcomeResponse, error) {
	return call[OrderOutcomeResponse](ctx, c, "CancelAllOrders", &CancelAllOrdersRequest{MarketID: marketID, Side: side})
}

func (c *Client) ChangeOrderSize(ctx context.Context, marketID uint64, id orderbook.OrderID, size uint64) (*OrderOutcomeResponse, error) {
	return call[OrderOutcomeResponse](ctx, c, "ChangeOrderSize", &ChangeOrderSizeRequest{MarketID: marketID, OrderID: id, Size: size})
}

func (c *Client) Deposit(ctx context.Context, marketID uint64, asset string, amount uint64) (*PositionResponse, error) {
	return call[PositionResponse](ctx, c, "Deposit", &TransferRequest{MarketID: marketID, Asset: asset, Amount: amount})
}

func (c *Client) Withdraw(ctx context.Context, marketID uint64, asset string, amount uint64) (*PositionResponse, error) {
	return call[PositionResponse](ctx, c, "Withdraw", &TransferRequest{MarketID: marketID, Asset: asset, Amount: amount})
}

func (c *Client) GetPriceLevels(ctx context.Context, marketID uint64, depth int) (*PriceLevelsResponse, error) {
	return call[PriceLevelsResponse](ctx, c, "GetPriceLevels", &PriceLevelsRequest{MarketID: marketID, Depth: depth})
}

func (c *Client) GetOrder(ctx context.Context, marketID uint64, id orderbook.OrderID) (*OrderResponse, error) {
	return call[OrderResponse](ctx, c, "GetOrder", &GetOrderRequest{MarketID: marketID, OrderID: id})
}

func (c *Client) GetBestBidAsk(ctx context.Context, marketID uint64) (*BestBidAskResponse, error) {
	return call[BestBidAskResponse](ctx, c, "GetBestBidAsk", &MarketRequest{MarketID: marketID})
}

func (c *Client) GetPosition(ctx context.Context, marketID uint64) (*PositionResponse, error) {
	return call[PositionResponse](ctx, c, "GetPosition", &MarketRequest{MarketID: marketID})
}

func (c *Client) GetOpenOrders(ctx context.Context, marketID uint64) (*OpenOrdersResponse, error) {
	return call[OpenOrdersResponse](ctx, c, "GetOpenOrders", &MarketRequest{MarketID: marketID})
}

func (c *Client) ListMarkets(ctx context.Context) (*ListMarketsResponse, error) {
	return call[ListMarketsResponse](ctx, c, "ListMarkets", &ListMarketsRequest{})
}
