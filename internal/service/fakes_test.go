package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/poro/notify-engine/internal/entity"
	"github.com/poro/notify-engine/internal/pkg/channel"
	"github.com/poro/notify-engine/internal/pkg/queue"
)

// fakeNotifRepo is an in-memory NotificationRepository that records every
// status the record passes through.
type fakeNotifRepo struct {
	mu        sync.Mutex
	records   map[string]*entity.Notification
	statusLog map[string][]string
}

func newFakeNotifRepo() *fakeNotifRepo {
	return &fakeNotifRepo{
		records:   make(map[string]*entity.Notification),
		statusLog: make(map[string][]string),
	}
}

func cloneNotification(n *entity.Notification) *entity.Notification {
	c := *n
	c.Channels = append([]entity.Channel(nil), n.Channels...)
	c.FailedChannels = append([]entity.Channel(nil), n.FailedChannels...)
	c.RenderedPayload = make(map[entity.Channel]entity.RenderedBody, len(n.RenderedPayload))
	for k, v := range n.RenderedPayload {
		c.RenderedPayload[k] = v
	}
	c.Metadata = make(map[string]string, len(n.Metadata))
	for k, v := range n.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (r *fakeNotifRepo) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[n.ID] = cloneNotification(n)
	r.statusLog[n.ID] = append(r.statusLog[n.ID], n.Status)
	return nil
}

func (r *fakeNotifRepo) GetByID(_ context.Context, id string) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.records[id]
	if !ok {
		return nil, entity.ErrNotificationNotFound
	}
	return cloneNotification(n), nil
}

func (r *fakeNotifRepo) Update(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[n.ID]; !ok {
		return entity.ErrNotificationNotFound
	}
	r.records[n.ID] = cloneNotification(n)
	r.statusLog[n.ID] = append(r.statusLog[n.ID], n.Status)
	return nil
}

func (r *fakeNotifRepo) ListByUser(_ context.Context, userID string, limit int) ([]*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Notification
	for _, n := range r.records {
		if n.UserID == userID && len(out) < limit {
			out = append(out, cloneNotification(n))
		}
	}
	return out, nil
}

func (r *fakeNotifRepo) FindRetryable(_ context.Context, before time.Time, limit int) ([]*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Notification
	for _, n := range r.records {
		if n.Status == entity.StatusFailed && n.LastAttemptAt != nil && n.LastAttemptAt.Before(before) && len(out) < limit {
			out = append(out, cloneNotification(n))
		}
	}
	return out, nil
}

// setLastAttempt backdates a record, standing in for elapsed cooldown time.
func (r *fakeNotifRepo) setLastAttempt(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.records[id]; ok {
		n.LastAttemptAt = &at
	}
}

func (r *fakeNotifRepo) statuses(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statusLog[id]...)
}

type fakePrefRepo struct {
	pref *entity.UserPreference
	err  error
}

func (r *fakePrefRepo) GetByUserID(_ context.Context, userID string) (*entity.UserPreference, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.pref, nil
}

func (r *fakePrefRepo) Upsert(_ context.Context, p *entity.UserPreference) error {
	r.pref = p
	return nil
}

type fakeTemplates struct {
	templates map[string]*entity.NotificationTemplate
}

func (f *fakeTemplates) GetTemplate(_ context.Context, notifType string) (*entity.NotificationTemplate, error) {
	t, ok := f.templates[notifType]
	if !ok {
		return nil, entity.ErrTemplateNotFound
	}
	return t, nil
}

func (f *fakeTemplates) UpsertTemplate(_ context.Context, t *entity.NotificationTemplate) error {
	f.templates[t.Type] = t
	return nil
}

func (f *fakeTemplates) SeedDefaults(context.Context) error { return nil }

type fakeThrottle struct {
	allowed bool
	calls   int
}

func (f *fakeThrottle) Allow(context.Context, string, string, int, int) (bool, error) {
	f.calls++
	return f.allowed, nil
}

// fakeQueue is a functional in-memory ScheduleQueue.
type fakeQueue struct {
	mu      sync.Mutex
	entries []queue.Entry
}

func (q *fakeQueue) Enqueue(_ context.Context, id string, dueAt time.Time, priority entity.Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, queue.Entry{NotificationID: id, Score: float64(dueAt.UnixMilli())})
	return nil
}

func (q *fakeQueue) PopDue(_ context.Context, maxCount int) ([]queue.Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sort.Slice(q.entries, func(i, j int) bool { return q.entries[i].Score < q.entries[j].Score })
	n := maxCount
	if n > len(q.entries) {
		n = len(q.entries)
	}
	popped := append([]queue.Entry(nil), q.entries[:n]...)
	q.entries = q.entries[n:]
	return popped, nil
}

func (q *fakeQueue) Requeue(_ context.Context, e queue.Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return nil
}

func (q *fakeQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

// scriptedAdapter returns its scripted results in order, repeating the last
// one once the script runs out.
type scriptedAdapter struct {
	mu     sync.Mutex
	ch     entity.Channel
	script []channel.DeliveryResult
	idx    int
	sent   []channel.Message
}

func newScriptedAdapter(ch entity.Channel, script ...channel.DeliveryResult) *scriptedAdapter {
	return &scriptedAdapter{ch: ch, script: script}
}

func (a *scriptedAdapter) Channel() entity.Channel { return a.ch }

func (a *scriptedAdapter) Send(_ context.Context, msg channel.Message) channel.DeliveryResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, msg)
	res := a.script[len(a.script)-1]
	if a.idx < len(a.script) {
		res = a.script[a.idx]
		a.idx++
	}
	return res
}

func (a *scriptedAdapter) sendCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

func success() channel.DeliveryResult {
	return channel.DeliveryResult{Success: true, ProviderID: "prov-1"}
}

func transientFailure() channel.DeliveryResult {
	return channel.DeliveryResult{Success: false, Error: "provider timeout"}
}

func permanentFailure() channel.DeliveryResult {
	return channel.DeliveryResult{Success: false, PermanentFailure: true, Error: "invalid address"}
}
