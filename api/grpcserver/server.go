// Package grpcserver exposes the exchange service over gRPC.
package grpcserver

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"econia/domain/identity"
	"econia/service"
)

// Metadata keys. Authentication is terminated in front of this server; the
// proxy forwards the authenticated account, and the custodian id when a
// custodian acts for the account.
const (
	HeaderAccount   = "x-account"
	HeaderCustodian = "x-custodian-id"
	HeaderRequestID = "x-request-id"
)

// Server adapts ExchangeService to gRPC.
type Server struct {
	svc    *service.ExchangeService
	logger zerolog.Logger
}

func NewServer(svc *service.ExchangeService, logger zerolog.Logger) *Server {
	return &Server{
		svc:    svc,
		logger: logger.With().Str("module", "grpc").Logger(),
	}
}

// NewGRPCServer builds a gRPC server with s registered, request logging,
// panic recovery and Prometheus server metrics registered on reg.
func NewGRPCServer(s *Server, reg prometheus.Registerer, opts ...grpc.ServerOption) (*grpc.Server, error) {
	m := grpc_prometheus.NewServerMetrics()
	m.EnableHandlingTimeHistogram()
	if err := reg.Register(m); err != nil {
		return nil, err
	}

	opts = append(opts, grpc.ChainUnaryInterceptor(
		m.UnaryServerInterceptor(),
		s.UnaryInterceptor(),
		grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(s.recoverPanic)),
	))
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ServiceDesc, s)
	m.InitializeMetrics(gs)
	return gs, nil
}

// UnaryInterceptor tags each call with a request id and logs its outcome.
func (s *Server) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(HeaderRequestID); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(HeaderRequestID, reqID))

		resp, err := handler(ctx, req)
		code := status.Code(err)
		ev := s.logger.Debug()
		if code == codes.Internal || code == codes.Unknown {
			ev = s.logger.Error()
		}
		ev.Str("method", info.FullMethod).
			Str("request_id", reqID).
			Stringer("code", code).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("rpc")
		return resp, err
	}
}

func (s *Server) recoverPanic(p any) error {
	s.logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("handler panicked")
	return status.Errorf(codes.Internal, "internal error: %v", p)
}

// caller authenticates the call from its metadata.
func (s *Server) caller(ctx context.Context) (service.Caller, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return service.Caller{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	v := md.Get(HeaderAccount)
	if len(v) == 0 {
		return service.Caller{}, status.Errorf(codes.Unauthenticated, "missing %s", HeaderAccount)
	}
	account, err := strconv.ParseUint(v[0], 10, 64)
	if err != nil {
		return service.Caller{}, status.Errorf(codes.Unauthenticated, "bad %s %q", HeaderAccount, v[0])
	}
	c := service.Self(identity.AccountID(account))

	if v := md.Get(HeaderCustodian); len(v) > 0 {
		id, err := strconv.ParseUint(v[0], 10, 64)
		if err != nil {
			return service.Caller{}, status.Errorf(codes.Unauthenticated, "bad %s %q", HeaderCustodian, v[0])
		}
		cc, err := s.svc.Custodian(id)
		if err != nil {
			return service.Caller{}, toStatus(err)
		}
		c = service.Delegated(identity.AccountID(account), cc)
	}
	return c, nil
}

// -------------------- Commands --------------------

func (s *Server) PlaceLimitOrder(ctx context.Context, req *PlaceLimitOrderRequest) (*PlaceOrderResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	restriction, err := parseRestriction(req.Restriction)
	if err != nil {
		return nil, err
	}
	selfMatch, err := parseSelfMatch(req.SelfMatch)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.PlaceLimitOrder(ctx, c, service.LimitOrder{
		MarketID:    req.MarketID,
		Side:        side,
		Size:        req.Size,
		Price:       req.Price,
		Restriction: restriction,
		SelfMatch:   selfMatch,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return fromResult(res), nil
}

func (s *Server) PlaceMarketOrder(ctx context.Context, req *PlaceMarketOrderRequest) (*PlaceOrderResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	restriction, err := parseRestriction(req.Restriction)
	if err != nil {
		return nil, err
	}
	selfMatch, err := parseSelfMatch(req.SelfMatch)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.PlaceMarketOrder(ctx, c, service.MarketOrder{
		MarketID:    req.MarketID,
		Side:        side,
		Size:        req.Size,
		Restriction: restriction,
		SelfMatch:   selfMatch,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return fromResult(res), nil
}

func (s *Server) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*OrderOutcomeResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.CancelOrder(ctx, c, req.MarketID, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromOutcome(out), nil
}

func (s *Server) CancelAllOrders(ctx context.Context, req *CancelAllOrdersRequest) (*OrderOutcomeResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.CancelAllOrders(ctx, c, req.MarketID, side)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromOutcome(out), nil
}

func (s *Server) ChangeOrderSize(ctx context.Context, req *ChangeOrderSizeRequest) (*OrderOutcomeResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.ChangeOrderSize(ctx, c, req.MarketID, req.OrderID, req.Size)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromOutcome(out), nil
}

func (s *Server) Deposit(ctx context.Context, req *TransferRequest) (*PositionResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		return nil, err
	}
	pos, err := s.svc.Deposit(ctx, c, req.MarketID, asset, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromPosition(pos), nil
}

func (s *Server) Withdraw(ctx context.Context, req *TransferRequest) (*PositionResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		return nil, err
	}
	pos, err := s.svc.Withdraw(ctx, c, req.MarketID, asset, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromPosition(pos), nil
}

// -------------------- Queries --------------------

func (s *Server) GetPriceLevels(ctx context.Context, req *PriceLevelsRequest) (*PriceLevelsResponse, error) {
	if req.Depth < 0 {
		return nil, invalidArgument("depth %d", req.Depth)
	}
	asks, bids, err := s.svc.PriceLevels(req.MarketID, req.Depth)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PriceLevelsResponse{Asks: asks, Bids: bids}, nil
}

func (s *Server) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	o, err := s.svc.Order(req.MarketID, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := fromOrder(o)
	return &resp, nil
}

func (s *Server) GetBestBidAsk(ctx context.Context, req *MarketRequest) (*BestBidAskResponse, error) {
	top, err := s.svc.BestBidAsk(req.MarketID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &BestBidAskResponse{}
	if top.HasBid {
		resp.Bid = &top.Bid
	}
	if top.HasAsk {
		resp.Ask = &top.Ask
	}
	return resp, nil
}

func (s *Server) GetPosition(ctx context.Context, req *MarketRequest) (*PositionResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	pos, err := s.svc.Position(c, req.MarketID)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromPosition(pos), nil
}

func (s *Server) GetOpenOrders(ctx context.Context, req *MarketRequest) (*OpenOrdersResponse, error) {
	c, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.svc.OpenOrders(c, req.MarketID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &OpenOrdersResponse{Orders: make([]OrderResponse, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, fromOrder(o))
	}
	return resp, nil
}

func (s *Server) ListMarkets(ctx context.Context, _ *ListMarketsRequest) (*ListMarketsResponse, error) {
	markets := s.svc.Markets()
	resp := &ListMarketsResponse{Markets: make([]Market, 0, len(markets))}
	for _, m := range markets {
		resp.Markets = append(resp.Markets, fromMarket(m))
	}
	return resp, nil
}
