package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"econia/domain/errs"
	"econia/domain/identity"
	"econia/domain/orderbook"
	"econia/domain/registry"
	"econia/infra/sequence"
	"econia/service"
)

type harness struct {
	svc  *service.ExchangeService
	conn *grpc.ClientConn
	reg  *prometheus.Registry
	mkt  uint64
}

func start(t *testing.T) *harness {
	t.Helper()
	svc := service.New(nil, nil, sequence.New(0), zerolog.Nop(), nil)
	mk, err := svc.RegisterMarket(context.Background(), registry.Coin("APT", 8), registry.Coin("USDC", 6),
		orderbook.Params{LotSize: 1, TickSize: 1, MinSize: 1}, identity.UnderwriterCapability{})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	gs, err := NewGRPCServer(NewServer(svc, zerolog.Nop()), reg)
	require.NoError(t, err)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{svc: svc, conn: conn, reg: reg, mkt: mk.ID}
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, status.Code(err), err.Error())
}

func TestTradeOverGRPC(t *testing.T) {
	h := start(t)
	ctx := context.Background()
	alice := NewClient(h.conn, 1)
	bob := NewClient(h.conn, 2)

	markets, err := alice.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets.Markets, 1)
	require.Equal(t, "coin:APT:8", markets.Markets[0].Base)
	require.Equal(t, "coin:USDC:6", markets.Markets[0].Quote)

	_, err = alice.Deposit(ctx, h.mkt, "base", 100)
	require.NoError(t, err)
	placed, err := alice.PlaceLimitOrder(ctx, &PlaceLimitOrderRequest{MarketID: h.mkt, Side: "ask", Size: 10, Price: 5})
	require.NoError(t, err)
	require.NotNil(t, placed.OrderID)
	require.Equal(t, uint64(10), placed.PostedAsMaker)
	askID := *placed.OrderID

	pos, err := bob.Deposit(ctx, h.mkt, "quote", 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), pos.Quote.Available)

	filled, err := bob.PlaceMarketOrder(ctx, &PlaceMarketOrderRequest{MarketID: h.mkt, Side: "bid", Size: 4})
	require.NoError(t, err)
	require.Nil(t, filled.OrderID)
	require.Equal(t, "fully_filled", filled.State)
	require.Equal(t, uint64(4), filled.FilledAsTaker)
	require.Equal(t, []Fill{{MakerOrderID: askID, Price: 5, Size: 4, BaseAmount: 4, QuoteAmount: 20}}, filled.Fills)

	top, err := bob.GetBestBidAsk(ctx, h.mkt)
	require.NoError(t, err)
	require.Nil(t, top.Bid)
	require.NotNil(t, top.Ask)
	require.Equal(t, uint64(5), *top.Ask)

	levels, err := bob.GetPriceLevels(ctx, h.mkt, 1)
	require.NoError(t, err)
	require.Equal(t, []orderbook.LevelView{{Price: 5, Size: 6, Orders: 1}}, levels.Asks)
	require.Empty(t, levels.Bids)

	o, err := bob.GetOrder(ctx, h.mkt, askID)
	require.NoError(t, err)
	require.Equal(t, "ask", o.Side)
	require.Equal(t, uint64(6), o.Size)
	require.Equal(t, uint64(1), o.Owner)

	open, err := alice.GetOpenOrders(ctx, h.mkt)
	require.NoError(t, err)
	require.Len(t, open.Orders, 1)

	pos, err = bob.GetPosition(ctx, h.mkt)
	require.NoError(t, err)
	require.Equal(t, uint64(4), pos.Base.Available)
	require.Equal(t, uint64(980), pos.Quote.Available)

	changed, err := alice.ChangeOrderSize(ctx, h.mkt, askID, 3)
	require.NoError(t, err)
	require.Equal(t, askID, *changed.OrderID)

	cancelled, err := alice.CancelAllOrders(ctx, h.mkt, "ask")
	require.NoError(t, err)
	require.Equal(t, []orderbook.OrderID{askID}, cancelled.Cancelled)

	pos, err = alice.Withdraw(ctx, h.mkt, "base", 96)
	require.NoError(t, err)
	require.Zero(t, pos.Base.Available)

	n, err := testutil.GatherAndCount(h.reg, "grpc_server_handled_total")
	require.NoError(t, err)
	require.NotZero(t, n)
}

func TestErrorCodes(t *testing.T) {
	h := start(t)
	ctx := context.Background()
	alice := NewClient(h.conn, 1)
	bob := NewClient(h.conn, 2)

	_, err := alice.Deposit(ctx, h.mkt, "base", 10)
	require.NoError(t, err)
	placed, err := alice.PlaceLimitOrder(ctx, &PlaceLimitOrderRequest{MarketID: h.mkt, Side: "ask", Size: 1, Price: 5})
	require.NoError(t, err)

	_, err = bob.CancelOrder(ctx, h.mkt, *placed.OrderID)
	requireCode(t, err, codes.PermissionDenied)

	_, err = bob.GetPriceLevels(ctx, 42, 0)
	requireCode(t, err, codes.NotFound)

	_, err = alice.PlaceLimitOrder(ctx, &PlaceLimitOrderRequest{MarketID: h.mkt, Side: "sideways", Size: 1, Price: 5})
	requireCode(t, err, codes.InvalidArgument)

	_, err = alice.PlaceLimitOrder(ctx, &PlaceLimitOrderRequest{MarketID: h.mkt, Side: "ask", Size: 0, Price: 5})
	requireCode(t, err, codes.InvalidArgument)

	_, err = bob.Deposit(ctx, h.mkt, "quote", 100)
	require.NoError(t, err)
	_, err = bob.PlaceLimitOrder(ctx, &PlaceLimitOrderRequest{MarketID: h.mkt, Side: "bid", Size: 1, Price: 5, Restriction: "post_or_abort"})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = bob.PlaceLimitOrder(ctx, &PlaceLimitOrderRequest{MarketID: h.mkt, Side: "bid", Size: 1, Price: 5, Restriction: "all_or_none"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = bob.WithCustodian(99).GetPosition(ctx, h.mkt)
	requireCode(t, err, codes.PermissionDenied)

	var resp ListMarketsResponse
	err = h.conn.Invoke(ctx, "/"+serviceName+"/GetPosition", &MarketRequest{MarketID: h.mkt}, &resp, grpc.CallContentSubtype(codecName))
	requireCode(t, err, codes.Unauthenticated)
}

func TestCustodianHeader(t *testing.T) {
	h := start(t)
	ctx := context.Background()
	cc, err := h.svc.RegisterCustodian(ctx)
	require.NoError(t, err)

	delegated := NewClient(h.conn, 7).WithCustodian(cc.ID())
	_, err = delegated.Deposit(ctx, h.mkt, "base", 5)
	require.NoError(t, err)

	pos, err := NewClient(h.conn, 7).GetPosition(ctx, h.mkt)
	require.NoError(t, err)
	require.Zero(t, pos.Base.Available)

	pos, err = delegated.GetPosition(ctx, h.mkt)
	require.NoError(t, err)
	require.Equal(t, uint64(5), pos.Base.Available)
}

func TestRequestIDHeader(t *testing.T) {
	h := start(t)
	var header metadata.MD
	var resp ListMarketsResponse
	ctx := metadata.AppendToOutgoingContext(context.Background(), HeaderRequestID, "req-1")
	err := h.conn.Invoke(ctx, "/"+serviceName+"/ListMarkets", &ListMarketsRequest{}, &resp,
		grpc.CallContentSubtype(codecName), grpc.Header(&header))
	require.NoError(t, err)
	require.Equal(t, []string{"req-1"}, header.Get(HeaderRequestID))

	err = h.conn.Invoke(context.Background(), "/"+serviceName+"/ListMarkets", &ListMarketsRequest{}, &resp,
		grpc.CallContentSubtype(codecName), grpc.Header(&header))
	require.NoError(t, err)
	require.Len(t, header.Get(HeaderRequestID), 1)
	require.NotEqual(t, "req-1", header.Get(HeaderRequestID)[0])
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{errs.New(errs.ErrInvalidPrice, "price 0"), codes.InvalidArgument},
		{errs.New(errs.ErrOrderNotFound, "x"), codes.NotFound},
		{errs.New(errs.ErrInvalidCapability, "x"), codes.PermissionDenied},
		{errs.New(errs.ErrFillOrAbortUnderfilled, "x"), codes.FailedPrecondition},
		{errs.New(errs.ErrPriorityTooLow, "x"), codes.FailedPrecondition},
		{errs.New(errs.ErrInsufficientLocked, "x"), codes.Internal},
		{context.Canceled, codes.Canceled},
		{errors.New("disk full"), codes.Internal},
		{status.Error(codes.Unauthenticated, "x"), codes.Unauthenticated},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, status.Code(toStatus(tc.err)), tc.err.Error())
	}
	require.NoError(t, toStatus(nil))
}

func TestRecoverPanic(t *testing.T) {
	s := NewServer(nil, zerolog.Nop())
	err := s.recoverPanic("boom")
	require.Equal(t, codes.Internal, status.Code(err))
	require.Contains(t, err.Error(), "boom")
}
