// Package custody tracks the collateral each account holds in each market:
// available (withdrawable) and locked (backing resting orders) balances of
// the base and quote assets, plus the account's open orders.
//
// All writes go through a Tx that stages copies of the touched positions and
// publishes them together on Commit, so a call that fails part way leaves
// the ledger untouched.
package custody

import (
	"sort"
	"sync"

	"github.com/google/btree"

	"econia/domain/errs"
	"econia/domain/identity"
	"econia/domain/orderbook"
)

// Asset selects the base or quote leg of a market.
type Asset uint8

const (
	Base Asset = iota
	Quote
)

func (a Asset) String() string {
	if a == Quote {
		return "quote"
	}
	return "base"
}

// CollateralAsset returns the asset an order on side locks.
func CollateralAsset(side orderbook.Side) Asset {
	if side == orderbook.Ask {
		return Base
	}
	return Quote
}

// Key identifies a position.
type Key struct {
	MarketID    uint64
	Account     identity.AccountID
	CustodianID uint64
}

// KeyFor returns the position key of actor in market.
func KeyFor(marketID uint64, actor identity.Actor) Key {
	return Key{MarketID: marketID, Account: actor.Account, CustodianID: actor.CustodianID}
}

// Actor returns the (account, custodian) pair of the key.
func (k Key) Actor() identity.Actor {
	return identity.Actor{Account: k.Account, CustodianID: k.CustodianID}
}

// Balance is one asset leg of a position.
type Balance struct {
	Available uint64 `json:"available"`
	Locked    uint64 `json:"locked"`
}

// Total returns Available+Locked.
func (b Balance) Total() (uint64, error) {
	return orderbook.Add(b.Available, b.Locked)
}

const openOrdersDegree = 16

// Position is an account's collateral in one market.
type Position struct {
	Base  Balance
	Quote Balance

	orders *btree.BTreeG[orderbook.OrderID]
}

func newPosition() *Position {
	return &Position{
		orders: btree.NewG(openOrdersDegree, func(a, b orderbook.OrderID) bool { return a.Less(b) }),
	}
}

func (p *Position) clone() *Position {
	return &Position{Base: p.Base, Quote: p.Quote, orders: p.orders.Clone()}
}

func (p *Position) balance(a Asset) *Balance {
	if a == Quote {
		return &p.Quote
	}
	return &p.Base
}

// PositionView is a read-only copy of a Position.
type PositionView struct {
	Base       Balance             `json:"base"`
	Quote      Balance             `json:"quote"`
	OpenOrders []orderbook.OrderID `json:"open_orders"`
}

func (p *Position) view() PositionView {
	v := PositionView{Base: p.Base, Quote: p.Quote}
	p.orders.Ascend(func(id orderbook.OrderID) bool {
		v.OpenOrders = append(v.OpenOrders, id)
		return true
	})
	return v
}

// Ledger holds every position. Concurrent transactions are safe as long as
// they touch disjoint keys, which per-market serialization guarantees.
type Ledger struct {
	mtx       sync.RWMutex
	positions map[Key]*Position
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[Key]*Position)}
}

// Position returns a copy of the position at k.
func (l *Ledger) Position(k Key) (PositionView, bool) {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	p, ok := l.positions[k]
	if !ok {
		return PositionView{}, false
	}
	return p.view(), true
}

// Keys returns every position key in market, sorted by account then
// custodian.
func (l *Ledger) Keys(marketID uint64) []Key {
	l.mtx.RLock()
	var keys []Key
	for k := range l.positions {
		if k.MarketID == marketID {
			keys = append(keys, k)
		}
	}
	l.mtx.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account < keys[j].Account
		}
		return keys[i].CustodianID < keys[j].CustodianID
	})
	return keys
}

// Begin starts a transaction.
func (l *Ledger) Begin() *Tx {
	return &Tx{ledger: l, staged: make(map[Key]*Position)}
}

// Tx stages position changes until Commit. A Tx that is dropped without
// Commit has no effect.
type Tx struct {
	ledger *Ledger
	staged map[Key]*Position
	// order keeps commit deterministic.
	order []Key
}

func (tx *Tx) position(k Key) *Position {
	if p, ok := tx.staged[k]; ok {
		return p
	}
	tx.ledger.mtx.RLock()
	p, ok := tx.ledger.positions[k]
	tx.ledger.mtx.RUnlock()
	if ok {
		p = p.clone()
	} else {
		p = newPosition()
	}
	tx.staged[k] = p
	tx.order = append(tx.order, k)
	return p
}

// Position returns the staged view of the position at k.
func (tx *Tx) Position(k Key) PositionView {
	return tx.position(k).view()
}

// Deposit credits amount to the available balance.
func (tx *Tx) Deposit(k Key, a Asset, amount uint64) error {
	if amount == 0 {
		return errs.New(errs.ErrInvalidSize, "zero deposit")
	}
	b := tx.position(k).balance(a)
	avail, err := orderbook.Add(b.Available, amount)
	if err != nil {
		return err
	}
	if _, err := orderbook.Add(avail, b.Locked); err != nil {
		return err
	}
	b.Available = avail
	return nil
}

// Withdraw debits amount from the available balance.
func (tx *Tx) Withdraw(k Key, a Asset, amount uint64) error {
	if amount == 0 {
		return errs.New(errs.ErrInvalidSize, "zero withdrawal")
	}
	b := tx.position(k).balance(a)
	if b.Available < amount {
		return errs.New(errs.ErrInsufficientCollateral, "%s available %d, withdraw %d", a, b.Available, amount)
	}
	b.Available -= amount
	return nil
}

// Lock moves amount from available to locked.
func (tx *Tx) Lock(k Key, a Asset, amount uint64) error {
	b := tx.position(k).balance(a)
	if b.Available < amount {
		return errs.New(errs.ErrInsufficientCollateral, "%s available %d, need %d", a, b.Available, amount)
	}
	b.Available -= amount
	b.Locked += amount
	return nil
}

// Unlock moves amount from locked back to available.
func (tx *Tx) Unlock(k Key, a Asset, amount uint64) error {
	b := tx.position(k).balance(a)
	if b.Locked < amount {
		return errs.New(errs.ErrInsufficientLocked, "%s locked %d, unlock %d", a, b.Locked, amount)
	}
	b.Locked -= amount
	b.Available += amount
	return nil
}

// SettleFill moves custody for one fill between maker and taker in market.
// The seller's locked base goes to the buyer's available base and the
// buyer's locked quote goes to the seller's available quote.
func (tx *Tx) SettleFill(marketID uint64, maker, taker identity.Actor, makerSide orderbook.Side, base, quote uint64) error {
	seller, buyer := KeyFor(marketID, maker), KeyFor(marketID, taker)
	if makerSide == orderbook.Bid {
		seller, buyer = buyer, seller
	}
	if err := tx.transfer(seller, buyer, Base, base); err != nil {
		return err
	}
	return tx.transfer(buyer, seller, Quote, quote)
}

func (tx *Tx) transfer(from, to Key, a Asset, amount uint64) error {
	src := tx.position(from).balance(a)
	if src.Locked < amount {
		return errs.New(errs.ErrInsufficientLocked, "%s locked %d, settle %d", a, src.Locked, amount)
	}
	dst := tx.position(to).balance(a)
	if from != to {
		total, err := dst.Total()
		if err != nil {
			return err
		}
		if _, err := orderbook.Add(total, amount); err != nil {
			return err
		}
	}
	src.Locked -= amount
	dst.Available += amount
	return nil
}

// AddOpenOrder records id as an open order of the position.
func (tx *Tx) AddOpenOrder(k Key, id orderbook.OrderID) error {
	if _, dup := tx.position(k).orders.ReplaceOrInsert(id); dup {
		return errs.New(errs.ErrInvariant, "order %s already open for %+v", id, k)
	}
	return nil
}

// RemoveOpenOrder forgets id.
func (tx *Tx) RemoveOpenOrder(k Key, id orderbook.OrderID) error {
	if _, ok := tx.position(k).orders.Delete(id); !ok {
		return errs.New(errs.ErrInvariant, "order %s not open for %+v", id, k)
	}
	return nil
}

// Commit publishes every staged position.
func (tx *Tx) Commit() {
	tx.ledger.mtx.Lock()
	defer tx.ledger.mtx.Unlock()
	for _, k := range tx.order {
		tx.ledger.positions[k] = tx.staged[k]
	}
	tx.staged = nil
	tx.order = nil
}

// Restore installs a position read from a snapshot, replacing any existing
// position at k.
func (l *Ledger) Restore(k Key, v PositionView) error {
	p := newPosition()
	p.Base, p.Quote = v.Base, v.Quote
	for _, id := range v.OpenOrders {
		if _, dup := p.orders.ReplaceOrInsert(id); dup {
			return errs.New(errs.ErrInvariant, "duplicate open order %s for %+v", id, k)
		}
	}
	if _, err := p.Base.Total(); err != nil {
		return err
	}
	if _, err := p.Quote.Total(); err != nil {
		return err
	}
	l.mtx.Lock()
	l.positions[k] = p
	l.mtx.Unlock()
	return nil
}
