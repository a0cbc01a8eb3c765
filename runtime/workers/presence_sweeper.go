package workers

import (
	"batepapo/domain"
	"batepapo/repositories"
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// PresenceSweeper periodically evicts participants whose heartbeat
// went stale and records a departure notice for each of them.
type PresenceSweeper struct {
	participants   repositories.IParticipantRepository
	messages       repositories.IMessageRepository
	interval       time.Duration
	absenceTimeout time.Duration
	now            func() time.Time
	log            *slog.Logger
}

func NewPresenceSweeper(
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	interval time.Duration,
	absenceTimeout time.Duration,
	now func() time.Time,
	log *slog.Logger,
) *PresenceSweeper {
	return &PresenceSweeper{
		participants:   participants,
		messages:       messages,
		interval:       interval,
		absenceTimeout: absenceTimeout,
		now:            now,
		log:            log,
	}
}

// Run sweeps on a fixed interval until the context is canceled. A
// failed sweep is logged and abandoned for that cycle; the ticker
// keeps going.
func (w *PresenceSweeper) Run(ctx context.Context) error {
	w.log.Info("Starting presence sweeper",
		"interval", w.interval, "absence_timeout", w.absenceTimeout)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(w.now()); err != nil {
				w.log.Error("Sweep abandoned for this cycle", "err", err)
			}
		}
	}
}

// Sweep runs one eviction cycle: participants whose LastStatus fell
// behind now - absenceTimeout are deleted (the repository re-checks
// staleness at delete time, so a heartbeat racing the sweep wins), and
// one departure notice per evicted participant is batch-written.
// Public so tests and callers can trigger a cycle synchronously.
func (w *PresenceSweeper) Sweep(now time.Time) error {
	cutoff := now.UnixMilli() - w.absenceTimeout.Milliseconds()

	evicted, err := w.participants.DeleteStale(cutoff)
	if err != nil {
		return err
	}
	if len(evicted) == 0 {
		return nil
	}

	departures := lo.Map(evicted, func(p domain.Participant, _ int) domain.Message {
		return domain.NewStatusMessage(p.Name, domain.LeaveNotice, now)
	})
	if err = w.messages.StoreBatch(departures); err != nil {
		return err
	}

	w.log.Info("Evicted stale participants",
		"count", len(evicted),
		"names", lo.Map(evicted, func(p domain.Participant, _ int) string { return p.Name }))
	return nil
}
