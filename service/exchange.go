package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"econia/domain/custody"
	"econia/domain/errs"
	"econia/domain/events"
	"econia/domain/identity"
	"econia/domain/matching"
	"econia/domain/orderbook"
	"econia/domain/registry"
	"econia/infra/metrics"
	"econia/infra/sequence"
	entrywal "econia/infra/wal/entry"
	exitwal "econia/infra/wal/exit"
)

// Caller is the authenticated principal of a call. A custodian acting for
// the signer's account passes its capability; otherwise the call operates on
// the signer's self-custodied position.
type Caller struct {
	Signer    identity.Signer
	Custodian *identity.CustodianCapability
}

// Self returns a Caller trading its own position.
func Self(account identity.AccountID) Caller {
	return Caller{Signer: identity.NewSigner(account)}
}

// Delegated returns a Caller acting through custodian c.
func Delegated(account identity.AccountID, c identity.CustodianCapability) Caller {
	return Caller{Signer: identity.NewSigner(account), Custodian: &c}
}

type LimitOrder struct {
	MarketID    uint64
	Side        orderbook.Side
	Size        uint64
	Price       uint64
	Restriction matching.Restriction
	SelfMatch   matching.SelfMatch
}

type MarketOrder struct {
	MarketID    uint64
	Side        orderbook.Side
	Size        uint64
	Restriction matching.Restriction
	SelfMatch   matching.SelfMatch
}

type market struct {
	mtx    sync.Mutex
	info   registry.Market
	engine *matching.Engine
}

/*
ExchangeService is the ONLY write entry point into the system.

Lock order: gate, then regMu or a market's mtx, then logMu. The gate is
held shared by every command and exclusively by Snapshot and Replay, so a
snapshot always sits exactly on a command boundary.
*/
type ExchangeService struct {
	gate  sync.RWMutex
	regMu sync.Mutex
	logMu sync.Mutex

	auth     *identity.Authority
	registry *registry.Registry
	ledger   *custody.Ledger

	mtx     sync.RWMutex
	markets map[uint64]*market

	seq         *sequence.Sequencer
	entryWAL    *entrywal.WAL
	exitWAL     *exitwal.ExitWAL
	restoredSeq uint64

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New wires the service. entryWAL and exitWAL may be nil, which disables
// command logging or the event outbox respectively.
func New(
	entryWAL *entrywal.WAL,
	exitWAL *exitwal.ExitWAL,
	seq *sequence.Sequencer,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *ExchangeService {
	auth := identity.NewAuthority()
	return &ExchangeService{
		auth:     auth,
		registry: registry.New(auth),
		ledger:   custody.NewLedger(),
		markets:  make(map[uint64]*market),
		seq:      seq,
		entryWAL: entryWAL,
		exitWAL:  exitWAL,
		logger:   logger.With().Str("module", "service").Logger(),
		metrics:  m,
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// PlaceLimitOrder matches a limit order and rests the remainder its
// restriction allows.
func (s *ExchangeService) PlaceLimitOrder(ctx context.Context, c Caller, o LimitOrder) (matching.Result, error) {
	out, err := s.submit(ctx, c, Command{
		Type:        entrywal.RecordPlaceLimit,
		MarketID:    o.MarketID,
		Side:        o.Side,
		Size:        o.Size,
		Price:       o.Price,
		Restriction: o.Restriction,
		SelfMatch:   o.SelfMatch,
	})
	if err != nil {
		return matching.Result{State: matching.Aborted}, err
	}
	return out.result, nil
}

// PlaceMarketOrder matches an order with no limit price.
func (s *ExchangeService) PlaceMarketOrder(ctx context.Context, c Caller, o MarketOrder) (matching.Result, error) {
	out, err := s.submit(ctx, c, Command{
		Type:        entrywal.RecordPlaceMarket,
		MarketID:    o.MarketID,
		Side:        o.Side,
		Size:        o.Size,
		Restriction: o.Restriction,
		SelfMatch:   o.SelfMatch,
	})
	if err != nil {
		return matching.Result{State: matching.Aborted}, err
	}
	return out.result, nil
}

func (s *ExchangeService) CancelOrder(ctx context.Context, c Caller, marketID uint64, id orderbook.OrderID) (matching.Outcome, error) {
	out, err := s.submit(ctx, c, Command{Type: entrywal.RecordCancel, MarketID: marketID, OrderID: id})
	return out.outcome, err
}

func (s *ExchangeService) CancelAllOrders(ctx context.Context, c Caller, marketID uint64, side orderbook.Side) (matching.Outcome, error) {
	out, err := s.submit(ctx, c, Command{Type: entrywal.RecordCancelAll, MarketID: marketID, Side: side})
	return out.outcome, err
}

// ChangeOrderSize resizes a resting order. The returned outcome carries the
// order's id afterwards, which is new when the order grew.
func (s *ExchangeService) ChangeOrderSize(ctx context.Context, c Caller, marketID uint64, id orderbook.OrderID, size uint64) (matching.Outcome, error) {
	out, err := s.submit(ctx, c, Command{Type: entrywal.RecordChangeSize, MarketID: marketID, OrderID: id, Size: size})
	return out.outcome, err
}

// Deposit credits amount of asset to the caller's available balance and
// returns the position afterwards.
func (s *ExchangeService) Deposit(ctx context.Context, c Caller, marketID uint64, asset custody.Asset, amount uint64) (custody.PositionView, error) {
	out, err := s.submit(ctx, c, Command{Type: entrywal.RecordDeposit, MarketID: marketID, Asset: asset, Amount: amount})
	return out.position, err
}

// Withdraw debits amount of asset from the caller's available balance.
func (s *ExchangeService) Withdraw(ctx context.Context, c Caller, marketID uint64, asset custody.Asset, amount uint64) (custody.PositionView, error) {
	out, err := s.submit(ctx, c, Command{Type: entrywal.RecordWithdraw, MarketID: marketID, Asset: asset, Amount: amount})
	return out.position, err
}

// RegisterMarket opens a market for base/quote. underwriter is required
// when base is a generic asset and ignored otherwise.
func (s *ExchangeService) RegisterMarket(
	ctx context.Context,
	base, quote registry.Asset,
	params orderbook.Params,
	underwriter identity.UnderwriterCapability,
) (registry.Market, error) {
	out, err := s.register(ctx, Command{
		Type:          entrywal.RecordRegisterMarket,
		Base:          base,
		Quote:         quote,
		Params:        params,
		UnderwriterID: underwriter.ID(),
	})
	return out.market, err
}

func (s *ExchangeService) RegisterCustodian(ctx context.Context) (identity.CustodianCapability, error) {
	out, err := s.register(ctx, Command{Type: entrywal.RecordRegisterCustodian})
	if err != nil {
		return identity.CustodianCapability{}, err
	}
	return s.auth.Custodian(out.capID)
}

func (s *ExchangeService) RegisterUnderwriter(ctx context.Context) (identity.UnderwriterCapability, error) {
	out, err := s.register(ctx, Command{Type: entrywal.RecordRegisterUnderwriter})
	if err != nil {
		return identity.UnderwriterCapability{}, err
	}
	return s.auth.Underwriter(out.capID)
}

//
// ──────────────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────────────
//

type applied struct {
	result   matching.Result
	outcome  matching.Outcome
	position custody.PositionView
	market   registry.Market
	capID    uint64
	events   []events.Event
}

// submit runs a market-scoped command under the market's lock.
func (s *ExchangeService) submit(ctx context.Context, c Caller, cmd Command) (applied, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return applied{}, err
	}
	actor, err := s.actor(c)
	if err != nil {
		s.observe(cmd, applied{}, err, start)
		return applied{}, err
	}
	cmd.Account, cmd.CustodianID = actor.Account, actor.CustodianID

	m, err := s.market(cmd.MarketID)
	if err != nil {
		s.observe(cmd, applied{}, err, start)
		return applied{}, err
	}

	s.gate.RLock()
	defer s.gate.RUnlock()
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return s.run(cmd, start)
}

// register runs a registration. Registrations are serialized among
// themselves so ids are issued in log order.
func (s *ExchangeService) register(ctx context.Context, cmd Command) (applied, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return applied{}, err
	}
	s.gate.RLock()
	defer s.gate.RUnlock()
	s.regMu.Lock()
	defer s.regMu.Unlock()
	return s.run(cmd, start)
}

func (s *ExchangeService) run(cmd Command, start time.Time) (applied, error) {
	seq, err := s.record(cmd)
	if err != nil {
		s.logger.Error().Err(err).Object("cmd", cmd).Msg("entry wal append failed")
		s.metrics.ObserveCommand(cmd.Type.String(), "wal_error", time.Since(start).Seconds())
		return applied{}, err
	}
	out, err := s.apply(cmd)
	s.observe(cmd, out, err, start)
	if err != nil {
		return applied{}, err
	}
	s.publish(seq, out.events)
	return out, nil
}

// record assigns the command its sequence and appends it to the entry WAL.
func (s *ExchangeService) record(cmd Command) (uint64, error) {
	data, err := cmd.MarshalBinary()
	if err != nil {
		return 0, errs.New(errs.ErrInvalidMarketParams, "%v", err)
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()
	seq := s.seq.Next()
	if s.entryWAL == nil {
		return seq, nil
	}
	if err := s.entryWAL.Append(entrywal.NewRecord(cmd.Type, seq, data)); err != nil {
		return 0, fmt.Errorf("entry wal seq %d: %w", seq, err)
	}
	return seq, nil
}

// apply executes a logged command. It is shared by the live path and
// replay, so it must depend only on the command and current state.
func (s *ExchangeService) apply(cmd Command) (applied, error) {
	switch cmd.Type {
	case entrywal.RecordRegisterMarket:
		return s.applyRegisterMarket(cmd)
	case entrywal.RecordRegisterCustodian:
		return applied{capID: s.auth.RegisterCustodian().ID()}, nil
	case entrywal.RecordRegisterUnderwriter:
		return applied{capID: s.auth.RegisterUnderwriter().ID()}, nil
	}

	m, err := s.market(cmd.MarketID)
	if err != nil {
		return applied{}, err
	}
	actor, err := s.resolve(cmd)
	if err != nil {
		return applied{}, err
	}

	var out applied
	switch cmd.Type {
	case entrywal.RecordPlaceLimit, entrywal.RecordPlaceMarket:
		req := matching.Request{
			Actor:       actor,
			Side:        cmd.Side,
			Size:        cmd.Size,
			Price:       cmd.Price,
			Restriction: cmd.Restriction,
			SelfMatch:   cmd.SelfMatch,
		}
		if cmd.Type == entrywal.RecordPlaceLimit {
			out.result, err = m.engine.PlaceLimit(req)
		} else {
			out.result, err = m.engine.PlaceMarket(req)
		}
		out.events = out.result.Events
	case entrywal.RecordCancel:
		out.outcome, err = m.engine.Cancel(actor, cmd.OrderID)
		out.events = out.outcome.Events
	case entrywal.RecordCancelAll:
		out.outcome, err = m.engine.CancelAll(actor, cmd.Side)
		out.events = out.outcome.Events
	case entrywal.RecordChangeSize:
		out.outcome, err = m.engine.ChangeSize(actor, cmd.OrderID, cmd.Size)
		out.events = out.outcome.Events
	case entrywal.RecordDeposit, entrywal.RecordWithdraw:
		out.position, err = s.applyTransfer(cmd, actor)
	default:
		return applied{}, errs.New(errs.ErrInvariant, "unknown command %s", cmd.Type)
	}
	if err != nil {
		return applied{}, err
	}
	return out, nil
}

func (s *ExchangeService) applyRegisterMarket(cmd Command) (applied, error) {
	var uw identity.UnderwriterCapability
	if cmd.Base.Kind == registry.GenericAsset {
		var err error
		if uw, err = s.auth.Underwriter(cmd.UnderwriterID); err != nil {
			return applied{}, err
		}
	}
	mk, err := s.registry.RegisterMarket(cmd.Base, cmd.Quote, cmd.Params, uw)
	if err != nil {
		return applied{}, err
	}
	s.addMarket(mk)
	return applied{market: mk}, nil
}

func (s *ExchangeService) applyTransfer(cmd Command, actor identity.Actor) (custody.PositionView, error) {
	if cmd.Asset != custody.Base && cmd.Asset != custody.Quote {
		return custody.PositionView{}, errs.New(errs.ErrInvalidAsset, "asset %d", cmd.Asset)
	}
	k := custody.KeyFor(cmd.MarketID, actor)
	tx := s.ledger.Begin()
	var err error
	if cmd.Type == entrywal.RecordDeposit {
		err = tx.Deposit(k, cmd.Asset, cmd.Amount)
	} else {
		err = tx.Withdraw(k, cmd.Asset, cmd.Amount)
	}
	if err != nil {
		return custody.PositionView{}, err
	}
	tx.Commit()
	pos, _ := s.ledger.Position(k)
	return pos, nil
}

func (s *ExchangeService) addMarket(mk registry.Market) *market {
	m := &market{
		info:   mk,
		engine: matching.New(orderbook.New(mk.ID, mk.Params), s.ledger),
	}
	s.mtx.Lock()
	s.markets[mk.ID] = m
	s.mtx.Unlock()
	return m
}

func (s *ExchangeService) market(id uint64) (*market, error) {
	s.mtx.RLock()
	m, ok := s.markets[id]
	s.mtx.RUnlock()
	if !ok {
		return nil, errs.New(errs.ErrMarketNotFound, "market %d", id)
	}
	return m, nil
}

// Custodian returns the capability of a registered custodian, for
// transports that authenticate custodians themselves.
func (s *ExchangeService) Custodian(id uint64) (identity.CustodianCapability, error) {
	return s.auth.Custodian(id)
}

// actor resolves a live caller.
func (s *ExchangeService) actor(c Caller) (identity.Actor, error) {
	if c.Custodian == nil {
		return identity.SelfCustody(c.Signer), nil
	}
	return s.auth.Delegated(c.Signer.AccountID(), *c.Custodian)
}

// resolve rebuilds the actor of a logged command, checking its custodian
// capability again.
func (s *ExchangeService) resolve(cmd Command) (identity.Actor, error) {
	if cmd.CustodianID == identity.NoCustodian {
		return cmd.actor(), nil
	}
	cc, err := s.auth.Custodian(cmd.CustodianID)
	if err != nil {
		return identity.Actor{}, err
	}
	return s.auth.Delegated(cmd.Account, cc)
}

// publish stores a committed command's events in the outbox. The command
// has already taken effect, so a failure here is logged rather than
// returned.
func (s *ExchangeService) publish(seq uint64, evs []events.Event) {
	if s.exitWAL == nil || len(evs) == 0 {
		return
	}
	payloads := make([][]byte, 0, len(evs))
	for _, ev := range evs {
		b, err := events.Encode(ev)
		if err != nil {
			s.logger.Error().Err(err).Uint64("seq", seq).Msg("encode event")
			return
		}
		payloads = append(payloads, b)
	}
	n, err := s.exitWAL.Append(seq, payloads)
	if err != nil {
		s.logger.Error().Err(err).Uint64("seq", seq).Int("events", len(payloads)).Msg("outbox append failed")
		return
	}
	s.metrics.ObserveOutbox(n)
}

func (s *ExchangeService) observe(cmd Command, out applied, err error, start time.Time) {
	typ := cmd.Type.String()
	elapsed := time.Since(start).Seconds()
	if err != nil {
		class := errs.ClassOf(err)
		s.metrics.ObserveCommand(typ, class.String(), elapsed)
		s.metrics.ObserveError(class.String())
		ev := s.logger.Debug()
		if class == errs.ClassInvariant || class == errs.ClassUnknown {
			ev = s.logger.Error()
		}
		ev.Err(err).Stringer("class", class).Object("cmd", cmd).Msg("command failed")
		return
	}

	s.metrics.ObserveCommand(typ, "ok", elapsed)
	for _, f := range out.result.Fills {
		s.metrics.ObserveFill(cmd.MarketID, f.Size)
	}
	if m, err := s.market(cmd.MarketID); err == nil {
		book := m.engine.Book()
		s.metrics.SetResting(cmd.MarketID, orderbook.Ask.String(), book.Len(orderbook.Ask))
		s.metrics.SetResting(cmd.MarketID, orderbook.Bid.String(), book.Len(orderbook.Bid))
	}
	s.logger.Debug().Object("cmd", cmd).Int("events", len(out.events)).Msg("command applied")
}
