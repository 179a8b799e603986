// Package broadcaster drains the event outbox to the message bus.
package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"econia/domain/events"
	"econia/infra/metrics"
	exitwal "econia/infra/wal/exit"
)

// Publisher delivers one message and returns once the bus acknowledged it.
type Publisher interface {
	Send(ctx context.Context, key, value []byte, headers map[string]string) error
	Close() error
}

const (
	HeaderEventID   = "event-id"
	HeaderEventKind = "event-kind"
)

// Event ids are derived from the outbox key, so a redelivered event keeps
// its id and consumers can deduplicate.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("econia/events"))

// EventID returns the message id for the outbox entry at k.
func EventID(k exitwal.Key) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(k.String()))
}

type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries uint32
}

type Broadcaster struct {
	outbox  *exitwal.ExitWAL
	pub     Publisher
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	done    chan struct{}
}

func New(
	outbox *exitwal.ExitWAL,
	pub Publisher,
	cfg Config,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	return &Broadcaster{
		outbox:  outbox,
		pub:     pub,
		cfg:     cfg,
		logger:  logger.With().Str("module", "broadcaster").Logger(),
		metrics: m,
		done:    make(chan struct{}),
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start runs the delivery loop until ctx is cancelled. Done is closed when
// the loop has exited.
func (b *Broadcaster) Start(ctx context.Context) {
	b.logger.Info().Dur("interval", b.cfg.Interval).Msg("started")

	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				b.logger.Info().Msg("stopped")
				return

			case <-ticker.C:
				if _, err := b.ReplayOnce(ctx); err != nil && ctx.Err() == nil {
					b.logger.Warn().Err(err).Msg("delivery pass stopped")
				}
			}
		}
	}()
}

func (b *Broadcaster) Done() <-chan struct{} {
	return b.done
}

// ------------------------------------------------
// DELIVERY
// ------------------------------------------------

// ReplayOnce delivers one batch of pending events in outbox order and
// returns how many were acknowledged. A failed send marks the entry FAILED
// and ends the pass so later events never overtake it.
func (b *Broadcaster) ReplayOnce(ctx context.Context) (int, error) {
	pending, err := b.outbox.Pending(b.cfg.BatchSize, b.cfg.MaxRetries)
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return acked, err
		}

		ev, err := events.Decode(rec.Payload)
		if err != nil {
			retries, merr := b.outbox.MarkFailed(rec.Key)
			if merr != nil {
				return acked, merr
			}
			b.metrics.ObserveBroadcast("undecodable")
			b.logger.Error().Err(err).Stringer("key", rec.Key).Uint32("retries", retries).Msg("undecodable event")
			continue
		}

		if err := b.outbox.MarkSent(rec.Key); err != nil {
			return acked, err
		}

		key := []byte(strconv.FormatUint(ev.MarketID(), 10))
		headers := map[string]string{
			HeaderEventID:   EventID(rec.Key).String(),
			HeaderEventKind: string(ev.Kind),
		}
		if err := b.pub.Send(ctx, key, rec.Payload, headers); err != nil {
			retries, merr := b.outbox.MarkFailed(rec.Key)
			if merr != nil {
				return acked, merr
			}
			b.metrics.ObserveBroadcast("failed")
			b.logger.Debug().Err(err).Stringer("key", rec.Key).Uint32("retries", retries).Msg("send failed")
			return acked, err
		}

		if err := b.outbox.MarkAcked(rec.Key); err != nil {
			return acked, err
		}
		b.metrics.ObserveBroadcast("acked")
		acked++
	}
	return acked, nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
