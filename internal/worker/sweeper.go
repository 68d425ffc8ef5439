package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/poro/notify-engine/internal/database"
	"github.com/poro/notify-engine/internal/entity"
	"github.com/poro/notify-engine/internal/pkg/metrics"
	"github.com/poro/notify-engine/internal/pkg/queue"
	"github.com/poro/notify-engine/internal/service"
)

// Sweeper drives the engine's two timer-based passes: draining due entries
// from the scheduling queue and re-admitting failed records that finished
// their retry cooldown. Both passes are idempotent; overlapping runs of the
// same pass are skipped by the cron chain.
type Sweeper struct {
	svc         service.NotificationUseCase
	templates   service.TemplateUseCase
	queue       service.ScheduleQueue
	repo        database.NotificationRepository
	policy      *RetryPolicy
	metrics     *metrics.Metrics
	batchSize   int
	concurrency int
	now         func() time.Time

	runner *cron.Cron
}

func NewSweeper(
	svc service.NotificationUseCase,
	templates service.TemplateUseCase,
	q service.ScheduleQueue,
	repo database.NotificationRepository,
	policy *RetryPolicy,
	m *metrics.Metrics,
	batchSize, concurrency int,
) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Sweeper{
		svc:         svc,
		templates:   templates,
		queue:       q,
		repo:        repo,
		policy:      policy,
		metrics:     m,
		batchSize:   batchSize,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Start registers both sweeps with the given cron specs (e.g. "@every 1m")
// and runs them until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, dueSpec, retrySpec string) error {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	s.runner = cron.New(cron.WithChain(cron.SkipIfStillRunning(logger)))

	if _, err := s.runner.AddFunc(dueSpec, func() { s.RunDueSweep(ctx) }); err != nil {
		return err
	}
	if _, err := s.runner.AddFunc(retrySpec, func() { s.RunRetrySweep(ctx) }); err != nil {
		return err
	}

	s.runner.Start()
	logrus.Infof("Sweeper started (due=%s retry=%s)", dueSpec, retrySpec)

	go func() {
		<-ctx.Done()
		stopCtx := s.runner.Stop()
		<-stopCtx.Done()
		logrus.Info("Sweeper stopped")
	}()

	return nil
}

// RunDueSweep pops due entries from the scheduling queue and delivers the
// ones whose records are still pending. Entries popped ahead of their due
// time are put back with their original score.
func (s *Sweeper) RunDueSweep(ctx context.Context) {
	entries, err := s.queue.PopDue(ctx, s.batchSize)
	if err != nil {
		logrus.Errorf("due sweep: failed to pop queue: %v", err)
		return
	}

	now := s.now()
	var due []queue.Entry
	for _, e := range entries {
		if e.DueAt().After(now) {
			if err := s.queue.Requeue(ctx, e); err != nil {
				logrus.Errorf("due sweep: failed to requeue %s: %v", e.NotificationID, err)
			}
			continue
		}
		due = append(due, e)
	}

	s.forEach(ctx, len(due), func(ctx context.Context, i int) {
		s.deliverDue(ctx, due[i])
	})

	if length, err := s.queue.Len(ctx); err == nil {
		s.metrics.QueueDepth.Set(float64(length))
	}
}

// deliverDue re-verifies that the record is still pending before dispatch.
// This is the step that realizes logical cancellation and keeps a record
// from being processed by two paths at once.
func (s *Sweeper) deliverDue(ctx context.Context, e queue.Entry) {
	n, err := s.repo.GetByID(ctx, e.NotificationID)
	if err != nil {
		if errors.Is(err, entity.ErrNotificationNotFound) {
			logrus.Errorf("due sweep: notification %s no longer exists, dropping entry", e.NotificationID)
			return
		}

		// The entry is already out of the set; a transient load failure
		// must not lose it. Put it back with its original score.
		logrus.Errorf("due sweep: failed to load notification %s, requeueing: %v", e.NotificationID, err)
		if rqErr := s.queue.Requeue(ctx, e); rqErr != nil {
			logrus.Errorf("due sweep: failed to requeue %s: %v", e.NotificationID, rqErr)
		}
		return
	}

	if n.Status != entity.StatusPending {
		logrus.Infof("due sweep: notification %s is %s, skipping", e.NotificationID, n.Status)
		return
	}

	s.svc.Deliver(ctx, n)
}

// RunRetrySweep re-admits failed records whose cooldown has elapsed and
// whose attempt ceiling has not been reached.
func (s *Sweeper) RunRetrySweep(ctx context.Context) {
	now := s.now()
	cutoff := now.Add(-s.policy.MinCooldown())

	records, err := s.repo.FindRetryable(ctx, cutoff, s.batchSize)
	if err != nil {
		logrus.Errorf("retry sweep: query failed: %v", err)
		return
	}

	var eligible []string
	for _, n := range records {
		if s.isRetryable(ctx, n, now) {
			eligible = append(eligible, n.ID)
		}
	}

	s.forEach(ctx, len(eligible), func(ctx context.Context, i int) {
		s.retryOne(ctx, eligible[i])
	})
}

func (s *Sweeper) isRetryable(ctx context.Context, n *entity.Notification, now time.Time) bool {
	tmpl, err := s.templates.GetTemplate(ctx, n.Type)
	if err != nil {
		logrus.Errorf("retry sweep: failed to load template %s: %v", n.Type, err)
		return false
	}

	retry := tmpl.Settings.Retry
	if !retry.Enabled || n.DeliveryAttempts >= retry.MaxAttempts {
		return false
	}

	// A record whose every channel failed permanently has nothing left to send.
	if len(n.FailedChannels) >= len(n.Channels) {
		return false
	}

	cooldown := s.policy.Cooldown(retry.BackoffMultiplier, n.DeliveryAttempts)
	return n.LastAttemptAt != nil && n.LastAttemptAt.Add(cooldown).Before(now)
}

// retryOne transitions the record back to pending before dispatching. The
// persisted transition doubles as an optimistic lock: a record already moved
// out of failed by another path is skipped.
func (s *Sweeper) retryOne(ctx context.Context, id string) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logrus.Errorf("retry sweep: failed to load notification %s: %v", id, err)
		return
	}

	if n.Status != entity.StatusFailed {
		return
	}

	n.Status = entity.StatusPending
	if err := s.repo.Update(ctx, n); err != nil {
		logrus.Errorf("retry sweep: failed to re-admit %s: %v", id, err)
		return
	}

	s.metrics.Retried.Inc()
	logrus.Infof("retry sweep: re-attempting notification %s (attempt %d)", id, n.DeliveryAttempts+1)
	s.svc.Deliver(ctx, n)
}

// forEach fans n calls of fn out over a bounded worker pool.
func (s *Sweeper) forEach(ctx context.Context, n int, fn func(context.Context, int)) {
	if n == 0 {
		return
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, i)
		}(i)
	}

	wg.Wait()
}
