package appointment

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigmarket/gigmarket-api/internal/pkg/lock"
	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
)

const catchUpLockKey = "recurrence:catch-up"

// WorkerConfig configures the recurrence catch-up worker
type WorkerConfig struct {
	Interval    time.Duration
	HorizonDays int
	// LeaseTTL bounds how long one instance holds the run lease.
	LeaseTTL time.Duration
	Timeout  time.Duration
}

// Worker extends active recurring bookings up to a rolling horizon
type Worker struct {
	repo   Repository
	locker lock.Locker
	cfg    WorkerConfig
	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWorker creates a new recurrence worker. A nil locker runs without a
// cross-instance lease.
func NewWorker(repo Repository, locker lock.Locker, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 28
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.Timeout
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &Worker{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background worker
func (w *Worker) Start() {
	log.Info().
		Dur("interval", w.cfg.Interval).
		Int("horizon_days", w.cfg.HorizonDays).
		Msg("Starting recurrence worker...")
	go w.loop()
}

// Stop stops the worker and waits for a running pass to finish
func (w *Worker) Stop() {
	log.Info().Msg("Stopping recurrence worker...")
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) loop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.runOnce()

	for {
		select {
		case <-ticker.C:
			w.runOnce()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()

	release, ok, err := w.locker.Acquire(ctx, catchUpLockKey, w.cfg.LeaseTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Recurrence catch-up lease unavailable, skipping run")
		return
	}
	if !ok {
		log.Debug().Msg("Recurrence catch-up running on another instance")
		return
	}
	defer release()

	if _, err := w.CatchUp(ctx, w.now()); err != nil {
		log.Error().Err(err).Msg("Recurrence catch-up failed")
	}
}

// CatchUp materializes, for every active booking, the occurrences after its
// latest appointment up to now plus the horizon. Dates before today are
// never created. It returns how many appointments were added.
func (w *Worker) CatchUp(ctx context.Context, now time.Time) (int, error) {
	series, err := w.repo.ListSeries(ctx)
	if err != nil {
		return 0, err
	}

	today := recurrence.Day(now)
	horizon := today.AddDate(0, 0, w.cfg.HorizonDays)
	yesterday := today.AddDate(0, 0, -1)

	total := 0
	for _, st := range series {
		rec := st.Recurring
		after := recurrence.Day(rec.StartDate).AddDate(0, 0, -1)
		if st.LastDate != nil {
			after = recurrence.Day(*st.LastDate)
		}
		if after.Before(yesterday) {
			after = yesterday
		}

		dates := recurrence.Continue(rec.Rule(), st.Existing, after, horizon)
		if len(dates) == 0 {
			continue
		}

		occurrences := make([]*Appointment, len(dates))
		for i, d := range dates {
			occurrences[i] = newOccurrence(rec, d, now)
		}
		n, err := w.repo.InsertOccurrences(ctx, occurrences)
		if err != nil {
			log.Error().Err(err).Str("recurring_id", rec.ID.String()).Msg("Failed to extend recurring appointment")
			continue
		}
		total += n
	}

	if total > 0 {
		log.Info().Int("count", total).Int("series", len(series)).Msg("Recurring appointments extended")
	} else {
		log.Debug().Int("series", len(series)).Msg("Recurrence catch-up found nothing to add")
	}
	return total, nil
}
