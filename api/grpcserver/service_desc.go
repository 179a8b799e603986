package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "econia.v1.Exchange"

// exchangeServer is the handler set ServiceDesc dispatches to.
type exchangeServer interface {
	PlaceLimitOrder(context.Context, *PlaceLimitOrderRequest) (*PlaceOrderResponse, error)
	PlaceMarketOrder(context.Context, *PlaceMarketOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*OrderOutcomeResponse, error)
	CancelAllOrders(context.Context, *CancelAllOrdersRequest) (*OrderOutcomeResponse, error)
	ChangeOrderSize(context.Context, *ChangeOrderSizeRequest) (*OrderOutcomeResponse, error)
	Deposit(context.Context, *TransferRequest) (*PositionResponse, error)
	Withdraw(context.Context, *TransferRequest) (*PositionResponse, error)
	GetPriceLevels(context.Context, *PriceLevelsRequest) (*PriceLevelsResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	GetBestBidAsk(context.Context, *MarketRequest) (*BestBidAskResponse, error)
	GetPosition(context.Context, *MarketRequest) (*PositionResponse, error)
	GetOpenOrders(context.Context, *MarketRequest) (*OpenOrdersResponse, error)
	ListMarkets(context.Context, *ListMarketsRequest) (*ListMarketsResponse, error)
}

func unary[Req, Resp any](name string, call func(exchangeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(srv.(exchangeServer), ctx, req.(*Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + name,
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Exchange service. Messages are JSON encoded;
// clients must call with the "json" content subtype.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*exchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PlaceLimitOrder", exchangeServer.PlaceLimitOrder),
		unary("PlaceMarketOrder", exchangeServer.PlaceMarketOrder),
		unary("CancelOrder", exchangeServer.CancelOrder),
		unary("CancelAllOrders", exchangeServer.CancelAllOrders),
		unary("ChangeOrderSize", exchangeServer.ChangeOrderSize),
		unary("Deposit", exchangeServer.Deposit),
		unary("Withdraw", exchangeServer.Withdraw),
		unary("GetPriceLevels", exchangeServer.GetPriceLevels),
		unary("GetOrder", exchangeServer.GetOrder),
		unary("GetBestBidAsk", exchangeServer.GetBestBidAsk),
		unary("GetPosition", exchangeServer.GetPosition),
		unary("GetOpenOrders", exchangeServer.GetOpenOrders),
		unary("ListMarkets", exchangeServer.ListMarkets),
	},
	Streams: []grpc.StreamDesc{},
}
