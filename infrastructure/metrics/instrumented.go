package metrics

import (
	"context"
	"time"

	"chatstore/domain/chat"
)

// InstrumentedStore decorates a chat.Store with operation counters and
// duration histograms. Semantics are untouched; errors pass through.
type InstrumentedStore struct {
	backend string
	next    chat.Store
}

// Instrument wraps a store, labeling its metrics with the backend name.
func Instrument(backend string, next chat.Store) *InstrumentedStore {
	return &InstrumentedStore{backend: backend, next: next}
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(s.backend, operation, status).Inc()
	OperationDuration.WithLabelValues(s.backend, operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) GetUser(ctx context.Context, identifier string) (*chat.User, error) {
	start := time.Now()
	user, err := s.next.GetUser(ctx, identifier)
	s.observe("get_user", start, err)
	return user, err
}

func (s *InstrumentedStore) CreateUser(ctx context.Context, user *chat.User) (*chat.User, error) {
	start := time.Now()
	created, err := s.next.CreateUser(ctx, user)
	s.observe("create_user", start, err)
	return created, err
}

func (s *InstrumentedStore) DeleteUser(ctx context.Context, identifier string) error {
	start := time.Now()
	err := s.next.DeleteUser(ctx, identifier)
	s.observe("delete_user", start, err)
	return err
}

func (s *InstrumentedStore) UpdateThread(ctx context.Context, thread *chat.Thread) (*chat.Thread, error) {
	start := time.Now()
	updated, err := s.next.UpdateThread(ctx, thread)
	s.observe("update_thread", start, err)
	return updated, err
}

func (s *InstrumentedStore) GetThread(ctx context.Context, threadID string) (*chat.Thread, error) {
	start := time.Now()
	thread, err := s.next.GetThread(ctx, threadID)
	s.observe("get_thread", start, err)
	return thread, err
}

func (s *InstrumentedStore) DeleteThread(ctx context.Context, threadID string) error {
	start := time.Now()
	err := s.next.DeleteThread(ctx, threadID)
	s.observe("delete_thread", start, err)
	return err
}

func (s *InstrumentedStore) ListThreads(ctx context.Context, filter chat.ThreadFilter, page chat.Page) (*chat.ThreadPage, error) {
	start := time.Now()
	result, err := s.next.ListThreads(ctx, filter, page)
	s.observe("list_threads", start, err)
	return result, err
}

func (s *InstrumentedStore) UpsertStep(ctx context.Context, step *chat.Step) (*chat.Step, error) {
	start := time.Now()
	upserted, err := s.next.UpsertStep(ctx, step)
	s.observe("upsert_step", start, err)
	return upserted, err
}

func (s *InstrumentedStore) DeleteStep(ctx context.Context, stepID string) error {
	start := time.Now()
	err := s.next.DeleteStep(ctx, stepID)
	s.observe("delete_step", start, err)
	return err
}

func (s *InstrumentedStore) UpsertElement(ctx context.Context, element *chat.Element, payload []byte) (*chat.Element, error) {
	start := time.Now()
	upserted, err := s.next.UpsertElement(ctx, element, payload)
	s.observe("upsert_element", start, err)
	if err == nil && payload != nil {
		UploadBytesTotal.WithLabelValues(s.backend).Add(float64(len(payload)))
	}
	return upserted, err
}

func (s *InstrumentedStore) GetElement(ctx context.Context, threadID, elementID string) (*chat.Element, error) {
	start := time.Now()
	element, err := s.next.GetElement(ctx, threadID, elementID)
	s.observe("get_element", start, err)
	return element, err
}

func (s *InstrumentedStore) DeleteElement(ctx context.Context, elementID string) error {
	start := time.Now()
	err := s.next.DeleteElement(ctx, elementID)
	s.observe("delete_element", start, err)
	return err
}

func (s *InstrumentedStore) UpsertFeedback(ctx context.Context, feedback *chat.Feedback) (*chat.Feedback, error) {
	start := time.Now()
	upserted, err := s.next.UpsertFeedback(ctx, feedback)
	s.observe("upsert_feedback", start, err)
	return upserted, err
}

func (s *InstrumentedStore) DeleteFeedback(ctx context.Context, feedbackID string) error {
	start := time.Now()
	err := s.next.DeleteFeedback(ctx, feedbackID)
	s.observe("delete_feedback", start, err)
	return err
}

func (s *InstrumentedStore) Capabilities() chat.Capability {
	return s.next.Capabilities()
}

func (s *InstrumentedStore) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := s.next.HealthCheck(ctx)
	s.observe("health_check", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
