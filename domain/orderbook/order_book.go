package orderbook

import (
	"econia/domain/errs"
	"econia/domain/identity"
)

// Params are the fixed parameters of a market's book. Sizes are counted in
// lots and prices in ticks, so a base amount is size*LotSize and a quote
// amount is size*price*TickSize.
type Params struct {
	LotSize       uint64
	TickSize      uint64
	MinSize       uint64
	UnderwriterID uint64

	// MaxOrdersPerSide bounds the resting orders on each side. Zero means
	// unbounded.
	MaxOrdersPerSide int
}

// Validate checks the parameters describe a usable market.
func (p Params) Validate() error {
	if p.LotSize == 0 || p.TickSize == 0 || p.MinSize == 0 {
		return errs.New(errs.ErrInvalidMarketParams, "lot %d tick %d min %d", p.LotSize, p.TickSize, p.MinSize)
	}
	if p.MaxOrdersPerSide < 0 {
		return errs.New(errs.ErrInvalidMarketParams, "max orders per side %d", p.MaxOrdersPerSide)
	}
	return nil
}

// LevelView is the aggregate of one price level.
type LevelView struct {
	Price  uint64 `json:"price"`
	Size   uint64 `json:"size"`
	Orders int    `json:"orders"`
}

// Book is a single market's order book: one price-level index per side over
// a shared record table. It is single-writer; callers serialize access.
type Book struct {
	marketID uint64
	params   Params
	asks     *RBTree
	bids     *RBTree
	records  *Records
	index    map[OrderID]AccessKey
	counts   [2]int
	counter  uint64
}

// New creates an empty book.
func New(marketID uint64, params Params) *Book {
	return &Book{
		marketID: marketID,
		params:   params,
		asks:     NewRBTree(),
		bids:     NewRBTree(),
		records:  NewRecords(1024),
		index:    make(map[OrderID]AccessKey),
	}
}

// MarketID returns the id of the market the book belongs to.
func (b *Book) MarketID() uint64 { return b.marketID }

// Params returns the book's parameters.
func (b *Book) Params() Params { return b.params }

// Counter returns the number of order ids issued so far.
func (b *Book) Counter() uint64 { return b.counter }

// Len returns the number of resting orders on side.
func (b *Book) Len(side Side) int { return b.counts[side] }

// Levels returns the number of price levels on side.
func (b *Book) Levels(side Side) int { return b.tree(side).Size() }

func (b *Book) tree(side Side) *RBTree {
	if side == Ask {
		return b.asks
	}
	return b.bids
}

// NextOrderID issues the id for a new order. Ids are never reused.
func (b *Book) NextOrderID(side Side, price uint64) (OrderID, error) {
	if b.counter == MaxCounter {
		return OrderID{}, errs.New(errs.ErrOverflow, "order counter exhausted in market %d", b.marketID)
	}
	b.counter++
	return NewOrderID(side, price, b.counter), nil
}

// Insert appends an order to the tail of its price level, creating the
// level if needed. The side and price come from id.
func (b *Book) Insert(id OrderID, size uint64, owner identity.AccountID, custodianID uint64) (AccessKey, error) {
	side := id.Side()
	if size == 0 {
		return 0, errs.New(errs.ErrInvalidSize, "cannot rest order %s with zero size", id)
	}
	if id.Price() == 0 {
		return 0, errs.New(errs.ErrInvalidPrice, "cannot rest order %s with zero price", id)
	}
	if _, dup := b.index[id]; dup {
		return 0, errs.New(errs.ErrInvariant, "order %s already resting", id)
	}
	key, err := b.records.Allocate()
	if err != nil {
		return 0, err
	}
	o, err := b.records.GetMut(key)
	if err != nil {
		return 0, err
	}
	o.ID = id
	o.Side = side
	o.Price = id.Price()
	o.Size = size
	o.OriginalSize = size
	o.Owner = owner
	o.CustodianID = custodianID

	lvl := b.tree(side).UpsertLevel(o.Price)
	if err := lvl.enqueue(b.records, o); err != nil {
		return 0, err
	}
	b.index[id] = key
	b.counts[side]++
	return key, nil
}

// Lookup returns a copy of the resting order with the given id.
func (b *Book) Lookup(id OrderID) (Order, bool) {
	key, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	return b.records.Get(key)
}

// Remove unlinks the order from its level, drops the level if it empties,
// and frees the record. Removing an order that is not resting is an
// invariant error; callers check existence with Lookup.
func (b *Book) Remove(id OrderID) (Order, error) {
	key, ok := b.index[id]
	if !ok {
		return Order{}, errs.New(errs.ErrInvariant, "remove of unknown order %s", id)
	}
	o, err := b.records.GetMut(key)
	if err != nil {
		return Order{}, err
	}
	tree := b.tree(o.Side)
	lvl := tree.FindLevel(o.Price)
	if lvl == nil {
		return Order{}, errs.New(errs.ErrInvariant, "order %s has no level at %d", id, o.Price)
	}
	if err := lvl.unlink(b.records, o); err != nil {
		return Order{}, err
	}
	if lvl.Empty() {
		tree.DeleteLevel(lvl.Price)
	}
	removed := *o
	removed.prev, removed.next = 0, 0
	if err := b.records.Free(key); err != nil {
		return Order{}, err
	}
	delete(b.index, id)
	b.counts[removed.Side]--
	return removed, nil
}

// Reduce decrements the order's size by amount, removing the order when it
// reaches zero. It returns the order as it stands after the reduction.
func (b *Book) Reduce(id OrderID, amount uint64) (Order, error) {
	key, ok := b.index[id]
	if !ok {
		return Order{}, errs.New(errs.ErrInvariant, "reduce of unknown order %s", id)
	}
	o, err := b.records.GetMut(key)
	if err != nil {
		return Order{}, err
	}
	if amount == 0 || amount > o.Size {
		return Order{}, errs.New(errs.ErrInvariant, "reduce order %s of size %d by %d", id, o.Size, amount)
	}
	if amount == o.Size {
		removed, err := b.Remove(id)
		if err != nil {
			return Order{}, err
		}
		removed.Size = 0
		return removed, nil
	}
	lvl := b.tree(o.Side).FindLevel(o.Price)
	if lvl == nil || lvl.TotalSize < amount {
		return Order{}, errs.New(errs.ErrInvariant, "order %s level aggregate inconsistent", id)
	}
	o.Size -= amount
	lvl.TotalSize -= amount
	return *o, nil
}

// Best returns the best level on side: lowest ask or highest bid.
func (b *Book) Best(side Side) *PriceLevel {
	if side == Ask {
		return b.asks.MinLevel()
	}
	return b.bids.MaxLevel()
}

// BestPrice returns the best price on side, if any.
func (b *Book) BestPrice(side Side) (uint64, bool) {
	lvl := b.Best(side)
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// Worst returns the lowest-priority resting order on side: the newest order
// at the worst price.
func (b *Book) Worst(side Side) (Order, bool) {
	var lvl *PriceLevel
	if side == Ask {
		lvl = b.asks.MaxLevel()
	} else {
		lvl = b.bids.MinLevel()
	}
	if lvl == nil {
		return Order{}, false
	}
	return b.records.Get(lvl.tail)
}

// nextLevel returns the level after price in priority order for side.
func (b *Book) nextLevel(side Side, price uint64) *PriceLevel {
	if side == Ask {
		return b.asks.Successor(price)
	}
	return b.bids.Predecessor(price)
}

// Walk visits resting orders on side in price-time priority until fn
// returns false.
func (b *Book) Walk(side Side, fn func(Order) bool) {
	c := b.Cursor(side)
	for {
		o, ok := c.Next()
		if !ok || !fn(o) {
			return
		}
	}
}

// Depth aggregates up to depth levels on side, best first. A depth of zero
// or less returns every level.
func (b *Book) Depth(side Side, depth int) []LevelView {
	var out []LevelView
	visit := func(lvl *PriceLevel) bool {
		out = append(out, LevelView{Price: lvl.Price, Size: lvl.TotalSize, Orders: lvl.OrderCount})
		return depth <= 0 || len(out) < depth
	}
	if side == Ask {
		b.asks.ForEachAscending(visit)
	} else {
		b.bids.ForEachDescending(visit)
	}
	return out
}

// Cursor walks one side of a book in price-time priority. It remembers the
// last order it returned by id and price rather than by node, so it stays
// valid when that order or its level is removed between calls.
type Cursor struct {
	book    *Book
	side    Side
	last    OrderID
	lastKey AccessKey
	started bool
	done    bool
}

// Cursor returns a cursor positioned before the best order on side.
func (b *Book) Cursor(side Side) *Cursor {
	return &Cursor{book: b, side: side}
}

// Next returns the next order in priority order.
func (c *Cursor) Next() (Order, bool) {
	if c.done {
		return Order{}, false
	}
	key := c.advance()
	if key == 0 {
		c.done = true
		return Order{}, false
	}
	o, ok := c.book.records.Get(key)
	if !ok {
		c.done = true
		return Order{}, false
	}
	c.started = true
	c.last = o.ID
	c.lastKey = key
	return o, true
}

func (c *Cursor) advance() AccessKey {
	b := c.book
	if !c.started {
		if lvl := b.Best(c.side); lvl != nil {
			return lvl.head
		}
		return 0
	}
	if o := b.records.lookup(c.lastKey); o != nil && o.ID == c.last {
		if o.next != 0 {
			return o.next
		}
	} else if lvl := b.tree(c.side).FindLevel(c.last.Price()); lvl != nil {
		// The last order left the book. Orders within a level are queued in
		// counter order, so resume at the first one issued after it.
		for key := lvl.head; key != 0; {
			o := b.records.lookup(key)
			if o == nil {
				return 0
			}
			if o.ID.Counter() > c.last.Counter() {
				return key
			}
			key = o.next
		}
	}
	if lvl := b.nextLevel(c.side, c.last.Price()); lvl != nil {
		return lvl.head
	}
	return 0
}

// Restore rebuilds an empty book from orders listed in priority order per
// side, as Walk produces them, and resumes the id counter at counter.
func (b *Book) Restore(orders []Order, counter uint64) error {
	if len(b.index) != 0 || b.counter != 0 {
		return errs.New(errs.ErrInvariant, "restore into non-empty book %d", b.marketID)
	}
	for _, o := range orders {
		if o.ID.Counter() > counter {
			return errs.New(errs.ErrInvariant, "order %s issued after counter %d", o.ID, counter)
		}
		if o.Size > o.OriginalSize {
			return errs.New(errs.ErrInvariant, "order %s size %d above original %d", o.ID, o.Size, o.OriginalSize)
		}
		key, err := b.Insert(o.ID, o.Size, o.Owner, o.CustodianID)
		if err != nil {
			return err
		}
		b.records.lookup(key).OriginalSize = o.OriginalSize
	}
	b.counter = counter
	return nil
}
