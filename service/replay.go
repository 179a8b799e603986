package service

import (
	"fmt"

	"econia/domain/errs"
	entrywal "econia/infra/wal/entry"
)

/*
Replay rebuilds in-memory state from the entry WAL.

IMPORTANT:
- This MUST run before accepting traffic, after any snapshot Restore
- Records at or below the restored snapshot's sequence are skipped
- Commands that failed live fail again here and are skipped the same way
- Events are re-appended to the outbox; entries already there keep their
  delivery state
*/
func (s *ExchangeService) Replay() (uint64, error) {
	if s.entryWAL == nil {
		return s.seq.Current(), nil
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	var replayed, skipped, failed int
	lastSeq, err := entrywal.Replay(s.entryWAL.Dir(), func(rec *entrywal.Record) error {
		if rec.Seq <= s.restoredSeq {
			skipped++
			return nil
		}
		cmd, err := decodeCommand(rec)
		if err != nil {
			return err
		}
		out, err := s.apply(cmd)
		if err != nil {
			switch errs.ClassOf(err) {
			case errs.ClassInvariant, errs.ClassUnknown:
				return fmt.Errorf("replay seq %d %s: %w", rec.Seq, cmd.Type, err)
			}
			failed++
			return nil
		}
		s.publish(rec.Seq, out.events)
		s.metrics.ObserveReplay()
		replayed++
		return nil
	})
	if err != nil {
		return lastSeq, err
	}

	// Resume sequencing AFTER replay
	s.seq.Advance(lastSeq)
	s.entryWAL.Resume(s.seq.Current())

	s.logger.Info().
		Uint64("last_seq", s.seq.Current()).
		Int("replayed", replayed).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("entry wal replay completed")
	return s.seq.Current(), nil
}
