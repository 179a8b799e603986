package service

import (
	"context"
	"time"

	"econia/domain/custody"
	"econia/domain/errs"
	"econia/domain/identity"
	"econia/domain/orderbook"
	"econia/domain/registry"
	"econia/snapshot"
)

// Snapshot captures the full engine state at the last applied sequence.
func (s *ExchangeService) Snapshot() *snapshot.Snapshot {
	s.gate.Lock()
	defer s.gate.Unlock()

	snap := &snapshot.Snapshot{
		Seq:     s.seq.Current(),
		Created: time.Now().UTC(),
	}
	snap.Custodians, snap.Underwriters = s.auth.Counts()

	for _, mk := range s.registry.Markets() {
		m, err := s.market(mk.ID)
		if err != nil {
			continue
		}
		book := m.engine.Book()
		entry := snapshot.MarketEntry{
			ID:      mk.ID,
			Base:    mk.Base,
			Quote:   mk.Quote,
			Params:  mk.Params,
			Counter: book.Counter(),
			Orders:  make([]snapshot.OrderEntry, 0, book.Len(orderbook.Ask)+book.Len(orderbook.Bid)),
		}
		for _, side := range []orderbook.Side{orderbook.Ask, orderbook.Bid} {
			book.Walk(side, func(o orderbook.Order) bool {
				entry.Orders = append(entry.Orders, snapshot.OrderEntry{
					ID:           o.ID,
					Size:         o.Size,
					OriginalSize: o.OriginalSize,
					Owner:        o.Owner,
					CustodianID:  o.CustodianID,
				})
				return true
			})
		}
		snap.Markets = append(snap.Markets, entry)

		for _, k := range s.ledger.Keys(mk.ID) {
			pos, _ := s.ledger.Position(k)
			snap.Positions = append(snap.Positions, snapshot.PositionEntry{
				MarketID:    k.MarketID,
				Account:     k.Account,
				CustodianID: k.CustodianID,
				Base:        pos.Base,
				Quote:       pos.Quote,
				OpenOrders:  pos.OpenOrders,
			})
		}
	}
	return snap
}

// Restore loads snap into a service that has not executed anything yet.
// Replay then continues from the snapshot's sequence.
func (s *ExchangeService) Restore(snap *snapshot.Snapshot) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.mtx.RLock()
	fresh := len(s.markets) == 0
	s.mtx.RUnlock()
	if !fresh || s.seq.Current() != 0 {
		return errs.New(errs.ErrInvariant, "restore into a running service")
	}

	if err := s.auth.Restore(snap.Custodians, snap.Underwriters); err != nil {
		return err
	}
	for _, e := range snap.Markets {
		var uw identity.UnderwriterCapability
		if e.Base.Kind == registry.GenericAsset {
			var err error
			if uw, err = s.auth.Underwriter(e.Params.UnderwriterID); err != nil {
				return err
			}
		}
		mk, err := s.registry.RegisterMarket(e.Base, e.Quote, e.Params, uw)
		if err != nil {
			return err
		}
		if mk.ID != e.ID {
			return errs.New(errs.ErrInvariant, "snapshot market %d restored as %d", e.ID, mk.ID)
		}
		m := s.addMarket(mk)

		orders := make([]orderbook.Order, 0, len(e.Orders))
		for _, o := range e.Orders {
			orders = append(orders, orderbook.Order{
				ID:           o.ID,
				Size:         o.Size,
				OriginalSize: o.OriginalSize,
				Owner:        o.Owner,
				CustodianID:  o.CustodianID,
			})
		}
		if err := m.engine.Book().Restore(orders, e.Counter); err != nil {
			return err
		}
	}
	for _, p := range snap.Positions {
		view := custody.PositionView{Base: p.Base, Quote: p.Quote, OpenOrders: p.OpenOrders}
		if err := s.ledger.Restore(p.Key(), view); err != nil {
			return err
		}
	}

	s.restoredSeq = snap.Seq
	s.seq.Advance(snap.Seq)
	if s.entryWAL != nil {
		s.entryWAL.Resume(snap.Seq)
	}
	s.logger.Info().
		Uint64("seq", snap.Seq).
		Int("markets", len(snap.Markets)).
		Int("positions", len(snap.Positions)).
		Msg("snapshot restored")
	return nil
}

// WriteSnapshot writes a snapshot to dir and then drops the entry WAL
// segments and delivered outbox entries it makes redundant.
func (s *ExchangeService) WriteSnapshot(dir string) (*snapshot.Snapshot, error) {
	w := &snapshot.Writer{Dir: dir}
	snap := s.Snapshot()
	if err := w.Write(snap); err != nil {
		return nil, err
	}

	// Truncate ENTRY WAL after snapshot
	if s.entryWAL != nil {
		n, err := s.entryWAL.TruncateBefore(snap.Seq)
		if err != nil {
			s.logger.Warn().Err(err).Msg("entry wal truncation failed")
		} else if n > 0 {
			s.logger.Debug().Int("segments", n).Uint64("seq", snap.Seq).Msg("entry wal truncated")
		}
	}

	// GC EXIT WAL (acked only)
	if s.exitWAL != nil {
		if _, err := s.exitWAL.TruncateAckedUpTo(snap.Seq); err != nil {
			s.logger.Warn().Err(err).Msg("outbox truncation failed")
		}
	}
	return snap, nil
}

// StartSnapshotJob writes a snapshot every interval until ctx is done.
func (s *ExchangeService) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				snap, err := s.WriteSnapshot(dir)
				if err != nil {
					s.logger.Error().Err(err).Msg("snapshot failed")
					continue
				}
				s.logger.Info().Uint64("seq", snap.Seq).Msg("snapshot written")
			}
		}
	}()
}
