package queue

import (
	"context"
	"log/slog"
	"time"
)

// Submitter performs the remote create-appointment operation. It must
// re-validate conflicts and upsert the customer itself; the queue only
// sequences attempts.
type Submitter func(ctx context.Context, p Payload) (appointmentID string, err error)

// OnTerminal is invoked exactly once per submission when it reaches a
// terminal state (confirmed or failed).
type OnTerminal func(b Booking, st Status)

type WorkerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Worker drains the queue head on a fixed interval. A single goroutine owns
// the loop and the next tick is only consumed after the previous drain
// returns, so drains can never overlap regardless of how long a submit takes.
type Worker struct {
	queue       *Queue
	submit      Submitter
	onTerminal  OnTerminal
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
}

func NewWorker(q *Queue, submit Submitter, onTerminal OnTerminal, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		queue:       q,
		submit:      submit,
		onTerminal:  onTerminal,
		logger:      logger,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce attempts the head submission once. The head is retried in place
// until it succeeds or exhausts its attempt budget; later items are never
// attempted ahead of it. Retries use the fixed tick interval, no backoff.
func (w *Worker) DrainOnce(ctx context.Context) {
	b := w.queue.head()
	if b == nil {
		return
	}

	attempts := w.queue.bumpAttempts(b)
	appointmentID, err := w.submit(ctx, b.Payload)
	if err == nil {
		st := Status{State: StateConfirmed, Attempts: attempts, AppointmentID: appointmentID}
		w.queue.popHead(b, st)
		w.logger.Info("queued booking confirmed",
			"queued_id", b.ID,
			"appointment_id", appointmentID,
			"attempts", attempts,
		)
		if w.onTerminal != nil {
			w.onTerminal(*b, st)
		}
		return
	}

	if attempts >= w.maxAttempts {
		st := Status{State: StateFailed, Attempts: attempts, Reason: err.Error()}
		w.queue.popHead(b, st)
		w.logger.Error("queued booking dropped after max attempts",
			"queued_id", b.ID,
			"attempts", attempts,
			"err", err,
		)
		if w.onTerminal != nil {
			w.onTerminal(*b, st)
		}
		return
	}

	w.logger.Warn("queued booking attempt failed; will retry",
		"queued_id", b.ID,
		"attempts", attempts,
		"err", err,
	)
}
