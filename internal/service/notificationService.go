package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/poro/notify-engine/internal/database"
	"github.com/poro/notify-engine/internal/entity"
	"github.com/poro/notify-engine/internal/pkg/channel"
	"github.com/poro/notify-engine/internal/pkg/kafka"
	"github.com/poro/notify-engine/internal/pkg/metrics"
	"github.com/poro/notify-engine/internal/pkg/render"
)

type notificationUseCase struct {
	repo        database.NotificationRepository
	prefs       database.PreferenceRepository
	templates   TemplateUseCase
	renderer    *render.Renderer
	throttle    ThrottleGuard
	queue       ScheduleQueue
	adapters    channel.Registry
	producer    kafka.Producer
	metrics     *metrics.Metrics
	sendTimeout time.Duration
	now         func() time.Time
}

func NewNotificationUseCase(
	repo database.NotificationRepository,
	prefs database.PreferenceRepository,
	templates TemplateUseCase,
	renderer *render.Renderer,
	throttle ThrottleGuard,
	q ScheduleQueue,
	adapters channel.Registry,
	producer kafka.Producer,
	m *metrics.Metrics,
	sendTimeout time.Duration,
) NotificationUseCase {
	return &notificationUseCase{
		repo:        repo,
		prefs:       prefs,
		templates:   templates,
		renderer:    renderer,
		throttle:    throttle,
		queue:       q,
		adapters:    adapters,
		producer:    producer,
		metrics:     m,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// Create runs the full dispatch pipeline: template lookup, variable
// validation, channel resolution, throttle admission, one-time rendering,
// persistence, and either synchronous delivery or enqueueing.
//
// A throttle rejection returns (nil, nil): no record is written and the
// caller gets no signal beyond the absence of a notification.
func (uc *notificationUseCase) Create(ctx context.Context, req *entity.NotificationRequest) (*entity.Notification, error) {
	tmpl, err := uc.templates.GetTemplate(ctx, req.Type)
	if err != nil {
		return nil, err
	}

	if violations := render.ValidateVariables(tmpl, req.Data); len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", entity.ErrValidationFailed, strings.Join(violations, "; "))
	}

	pref := uc.loadPreferences(ctx, req.UserID)
	channels := uc.resolveChannels(tmpl, req.Channels, pref)
	if len(channels) == 0 {
		return nil, entity.ErrNoChannels
	}

	if tmpl.Settings.Throttle.Enabled {
		allowed, _ := uc.throttle.Allow(ctx, req.UserID, req.Type,
			tmpl.Settings.Throttle.MaxPerHour, tmpl.Settings.Throttle.MaxPerDay)
		if !allowed {
			uc.metrics.Throttled.Inc()
			logrus.Infof("Notification %s for user %s throttled", req.Type, req.UserID)
			return nil, nil
		}
	}

	payload := make(map[entity.Channel]entity.RenderedBody, len(channels))
	for _, ch := range channels {
		body, warnings, err := uc.renderer.Render(tmpl, ch, req.Data)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			logrus.Warnf("render warning: %s", w)
		}
		payload[ch] = body
	}

	priority := req.Priority
	if priority == "" {
		priority = tmpl.Priority
	}

	now := uc.now()
	n := &entity.Notification{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Type:            req.Type,
		Channels:        channels,
		Status:          entity.StatusPending,
		Priority:        priority,
		ScheduledAt:     req.ScheduledAt,
		RenderedPayload: payload,
		Metadata:        uc.contactMetadata(channels, pref),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	uc.metrics.Created.Inc()

	if n.ScheduledAt != nil && n.ScheduledAt.After(now) {
		if err := uc.queue.Enqueue(ctx, n.ID, *n.ScheduledAt, n.Priority); err != nil {
			return nil, fmt.Errorf("enqueue notification %s: %w", n.ID, err)
		}
		logrus.Infof("Notification %s scheduled for %s", n.ID, n.ScheduledAt.Format(time.RFC3339))
		return n, nil
	}

	uc.Deliver(ctx, n)
	return n, nil
}

// loadPreferences tolerates a missing preference row: such users can still
// receive in-app notifications, which are addressed by user ID.
func (uc *notificationUseCase) loadPreferences(ctx context.Context, userID string) *entity.UserPreference {
	pref, err := uc.prefs.GetByUserID(ctx, userID)
	if err != nil {
		if err != entity.ErrUserNotFound {
			logrus.Errorf("failed to load preferences for user %s: %v", userID, err)
		}
		return &entity.UserPreference{UserID: userID}
	}
	return pref
}

// resolveChannels produces the frozen channel set: explicit request channels
// when given, template defaults otherwise, always filtered to channels the
// template defines a body for, the user has not opted out of, and for which
// a contact address exists.
func (uc *notificationUseCase) resolveChannels(tmpl *entity.NotificationTemplate, requested []entity.Channel, pref *entity.UserPreference) []entity.Channel {
	candidates := requested
	if len(candidates) == 0 {
		candidates = tmpl.DefaultChannels
	}

	var resolved []entity.Channel
	for _, ch := range candidates {
		if !entity.IsValidChannel(ch) || !tmpl.SupportsChannel(ch) {
			continue
		}
		if pref.IsOptedOut(ch) {
			continue
		}
		if pref.Contact(ch) == "" {
			continue
		}
		resolved = append(resolved, ch)
	}
	return resolved
}

// contactMetadata freezes delivery addresses at creation time so retries
// replay the exact same send, untouched by later preference changes.
func (uc *notificationUseCase) contactMetadata(channels []entity.Channel, pref *entity.UserPreference) map[string]string {
	m := make(map[string]string, len(channels))
	for _, ch := range channels {
		m["addr:"+string(ch)] = pref.Contact(ch)
	}
	return m
}

// Deliver fans out one attempt across every targeted channel. The fan-out is
// always completed in full: one channel's failure never aborts the others.
// The pre-rendered payload is sent as-is; nothing is re-rendered here.
func (uc *notificationUseCase) Deliver(ctx context.Context, n *entity.Notification) map[entity.Channel]channel.DeliveryResult {
	results := make(map[entity.Channel]channel.DeliveryResult)
	attempt := n.DeliveryAttempts + 1

	for _, ch := range n.Channels {
		if n.HasFailedChannel(ch) {
			continue
		}

		adapter, ok := uc.adapters.Get(ch)
		if !ok {
			results[ch] = channel.DeliveryResult{
				Success: false,
				Error:   fmt.Sprintf("no adapter registered for channel %s", ch),
			}
			continue
		}

		body := n.RenderedPayload[ch]
		msg := channel.Message{
			To:      n.Metadata["addr:"+string(ch)],
			Title:   body.Title,
			Subject: body.Subject,
			Body:    body.Message,
			HTML:    body.HTML,
			Text:    body.Text,
			Data:    map[string]string{"notification_id": n.ID, "type": n.Type},
		}

		sendCtx, cancel := context.WithTimeout(ctx, uc.sendTimeout)
		results[ch] = adapter.Send(sendCtx, msg)
		cancel()
	}

	uc.applyResults(ctx, n, results, attempt)
	return results
}

// applyResults runs the state transition for one completed attempt: at least
// one channel success moves the record to sent, a full failure moves it to
// failed and leaves it to the retry sweep while attempts remain.
func (uc *notificationUseCase) applyResults(ctx context.Context, n *entity.Notification, results map[entity.Channel]channel.DeliveryResult, attempt int) {
	now := uc.now()
	n.DeliveryAttempts = attempt
	n.LastAttemptAt = &now

	anySuccess := false
	var errs []string
	for ch, res := range results {
		if res.Success {
			anySuccess = true
			if res.ProviderID != "" {
				n.Metadata["provider_id:"+string(ch)] = res.ProviderID
			}
			uc.metrics.ChannelResults.WithLabelValues(string(ch), "success").Inc()
		} else {
			errs = append(errs, fmt.Sprintf("%s: %s", ch, res.Error))
			if res.PermanentFailure && !n.HasFailedChannel(ch) {
				n.FailedChannels = append(n.FailedChannels, ch)
			}
			uc.metrics.ChannelResults.WithLabelValues(string(ch), "failure").Inc()
		}

		uc.publishDeliveryEvent(ctx, n, ch, res, attempt)
	}

	if anySuccess {
		n.Status = entity.StatusSent
		n.SentAt = &now
		n.ErrorMessage = ""
		uc.metrics.Sent.Inc()
		logrus.Infof("Notification %s sent on attempt %d", n.ID, attempt)
	} else {
		n.Status = entity.StatusFailed
		n.ErrorMessage = strings.Join(errs, "; ")
		if n.ErrorMessage == "" {
			n.ErrorMessage = "all channels permanently failed"
		}
		uc.metrics.Failed.Inc()
		logrus.Errorf("Notification %s failed on attempt %d: %s", n.ID, attempt, n.ErrorMessage)
	}

	if err := uc.repo.Update(ctx, n); err != nil {
		logrus.Errorf("failed to persist delivery result for %s: %v", n.ID, err)
	}
}

func (uc *notificationUseCase) publishDeliveryEvent(ctx context.Context, n *entity.Notification, ch entity.Channel, res channel.DeliveryResult, attempt int) {
	event := kafka.DeliveryEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Channel:        string(ch),
		Attempt:        attempt,
		Success:        res.Success,
		ProviderID:     res.ProviderID,
		Error:          res.Error,
		At:             uc.now(),
	}
	if err := uc.producer.PublishDeliveryEvent(ctx, event); err != nil {
		logrus.Warnf("failed to publish delivery event for %s: %v", n.ID, err)
	}
}

func (uc *notificationUseCase) Get(ctx context.Context, id string) (*entity.Notification, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *notificationUseCase) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	return uc.repo.ListByUser(ctx, userID, limit)
}

// Cancel is logical: the record moves to cancelled but any queue entry stays
// in place. The due sweep's still-pending re-verification is what prevents
// delivery at pop time.
func (uc *notificationUseCase) Cancel(ctx context.Context, id string) error {
	n, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if n.Status != entity.StatusPending {
		return entity.ErrNotCancellable
	}

	n.Status = entity.StatusCancelled
	if err := uc.repo.Update(ctx, n); err != nil {
		return err
	}

	uc.metrics.Cancelled.Inc()
	logrus.Infof("Notification %s cancelled", id)
	return nil
}

// MarkDelivered records a provider-sourced delivery confirmation. Channels
// without confirmation support simply leave records in sent.
func (uc *notificationUseCase) MarkDelivered(ctx context.Context, id string) error {
	n, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if n.Status != entity.StatusSent {
		return entity.ErrInvalidStatusTransition
	}

	now := uc.now()
	n.Status = entity.StatusDelivered
	n.DeliveredAt = &now
	return uc.repo.Update(ctx, n)
}

func (uc *notificationUseCase) MarkRead(ctx context.Context, id string) error {
	n, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if n.Status == entity.StatusCancelled {
		return entity.ErrInvalidStatusTransition
	}
	if n.ReadAt != nil {
		return nil
	}

	now := uc.now()
	n.ReadAt = &now
	return uc.repo.Update(ctx, n)
}

func (uc *notificationUseCase) QueueLength(ctx context.Context) (int64, error) {
	length, err := uc.queue.Len(ctx)
	if err != nil {
		return 0, err
	}
	uc.metrics.QueueDepth.Set(float64(length))
	return length, nil
}
