// Package relational implements the chat persistence contract over a
// relational engine via GORM. Referential integrity is delegated to the
// engine: every child table carries an ON DELETE CASCADE foreign key,
// so cascading a thread delete is a single statement against threads.
package relational

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatstore/domain/chat"
	"chatstore/infrastructure/database/entities"
	"chatstore/infrastructure/storage"
	"chatstore/utils/chatid"
	"chatstore/utils/platformerrors"
)

// Store persists chat entities in normalized tables.
type Store struct {
	db      *gorm.DB
	objects storage.ObjectStorage
	log     zerolog.Logger
}

// NewStore builds a relational chat store.
func NewStore(db *gorm.DB, objects storage.ObjectStorage, log zerolog.Logger) *Store {
	return &Store{
		db:      db,
		objects: objects,
		log:     log.With().Str("component", "relational-store").Logger(),
	}
}

// Capabilities reports full filter support: a normalized feedback table
// makes the feedback-value filter a plain join.
func (s *Store) Capabilities() chat.Capability {
	return chat.Capability{FeedbackValueFilter: true}
}

// GetUser fetches a user by identifier.
func (s *Store) GetUser(ctx context.Context, identifier string) (*chat.User, error) {
	var entity entities.User
	if err := s.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("user not found: %s", identifier),
				nil,
			)
		}
		return nil, s.storageFailure("failed to fetch user", err)
	}
	return entity.EtoD(), nil
}

// CreateUser upserts a user by identifier. Metadata is the only mutable
// field once a user exists.
func (s *Store) CreateUser(ctx context.Context, user *chat.User) (*chat.User, error) {
	if strings.TrimSpace(user.Identifier) == "" {
		return nil, s.validation("user identifier is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	entity := entities.NewSchemaUser(user)
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identifier"}},
			DoUpdates: clause.AssignmentColumns([]string{"metadata"}),
		}).
		Create(entity).Error; err != nil {
		return nil, s.storageFailure("failed to upsert user", err)
	}

	return s.GetUser(ctx, user.Identifier)
}

// DeleteUser removes a user; the engine cascades through their threads
// to steps, elements and feedback.
func (s *Store) DeleteUser(ctx context.Context, identifier string) error {
	var elems []entities.Element
	if err := s.db.WithContext(ctx).
		Joins("JOIN threads ON threads.id = elements.thread_id").
		Where("threads.user_identifier = ? AND elements.object_key IS NOT NULL", identifier).
		Find(&elems).Error; err != nil {
		return s.storageFailure("failed to enumerate user elements", err)
	}

	res := s.db.WithContext(ctx).Delete(&entities.User{}, "identifier = ?", identifier)
	if res.Error != nil {
		return s.storageFailure("failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("user not found: %s", identifier),
			nil,
		)
	}

	for i := range elems {
		element := elems[i].EtoD()
		if err := storage.DeleteElementPayload(ctx, s.objects, element); err != nil {
			s.log.Warn().Err(err).Str("element_id", element.ID).Msg("blob cleanup failed after user delete")
		}
	}
	return nil
}

// UpdateThread upserts a thread header, merging mutable fields over any
// stored values. A non-nil owner must reference an existing user;
// ownerless threads are anonymous and always accepted.
func (s *Store) UpdateThread(ctx context.Context, thread *chat.Thread) (*chat.Thread, error) {
	if thread.UserIdentifier != nil {
		if err := s.requireUser(ctx, *thread.UserIdentifier); err != nil {
			return nil, err
		}
	}
	if thread.ID == "" {
		thread.ID = chatid.NewThread()
	}
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = time.Now().UTC()
	}

	var existing entities.Thread
	err := s.db.WithContext(ctx).Where("id = ?", thread.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(entities.NewSchemaThread(thread)).Error; err != nil {
			return nil, s.storageFailure("failed to create thread", err)
		}
	case err != nil:
		return nil, s.storageFailure("failed to fetch thread", err)
	default:
		merged := existing.EtoD()
		if thread.Name != nil {
			merged.Name = thread.Name
		}
		if thread.UserIdentifier != nil {
			merged.UserIdentifier = thread.UserIdentifier
		}
		if thread.Tags != nil {
			merged.Tags = thread.Tags
		}
		if thread.Metadata != nil {
			merged.Metadata = thread.Metadata
		}
		entity := entities.NewSchemaThread(merged)
		entity.CreatedAt = existing.CreatedAt
		if err := s.db.WithContext(ctx).Save(entity).Error; err != nil {
			return nil, s.storageFailure("failed to update thread", err)
		}
		return merged, nil
	}

	return thread, nil
}

// GetThread fetches a thread with nested steps and elements.
func (s *Store) GetThread(ctx context.Context, threadID string) (*chat.Thread, error) {
	var entity entities.Thread
	if err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Steps.Feedback").
		Preload("Elements", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", threadID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("thread not found: %s", threadID),
				nil,
			)
		}
		return nil, s.storageFailure("failed to fetch thread", err)
	}
	return entity.EtoD(), nil
}

// DeleteThread removes a thread; the engine cascades to steps, elements
// and feedback. Blob cleanup is best effort and never fails the delete.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	var elems []entities.Element
	if err := s.db.WithContext(ctx).
		Where("thread_id = ? AND object_key IS NOT NULL", threadID).
		Find(&elems).Error; err != nil {
		return s.storageFailure("failed to enumerate thread elements", err)
	}

	res := s.db.WithContext(ctx).Delete(&entities.Thread{}, "id = ?", threadID)
	if res.Error != nil {
		return s.storageFailure("failed to delete thread", res.Error)
	}
	if res.RowsAffected == 0 {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("thread not found: %s", threadID),
			nil,
		)
	}

	for i := range elems {
		element := elems[i].EtoD()
		if err := storage.DeleteElementPayload(ctx, s.objects, element); err != nil {
			s.log.Warn().Err(err).Str("element_id", element.ID).Msg("blob cleanup failed after thread delete")
		}
	}
	return nil
}

// ListThreads pages a user's threads newest first. The feedback-value
// filter resolves through the normalized feedbacks table.
func (s *Store) ListThreads(ctx context.Context, filter chat.ThreadFilter, page chat.Page) (*chat.ThreadPage, error) {
	if strings.TrimSpace(filter.UserIdentifier) == "" {
		return nil, s.validation("thread listing requires a user identifier")
	}

	limit := page.Limit
	if limit <= 0 {
		limit = chat.DefaultPageLimit
	}

	query := s.db.WithContext(ctx).
		Model(&entities.Thread{}).
		Where("user_identifier = ?", filter.UserIdentifier)

	if filter.SearchText != nil && *filter.SearchText != "" {
		pattern := "%" + strings.ToLower(*filter.SearchText) + "%"
		query = query.Where("LOWER(name) LIKE ?", pattern)
	}
	if filter.FeedbackValue != nil {
		query = query.Where(
			"EXISTS (SELECT 1 FROM feedbacks WHERE feedbacks.thread_id = threads.id AND feedbacks.value = ?)",
			int(*filter.FeedbackValue),
		)
	}

	if page.Cursor != "" {
		cur, err := decodeCursor(page.Cursor)
		if err != nil {
			return nil, s.validation("invalid pagination cursor")
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cur.CreatedAt, cur.CreatedAt, cur.ID,
		)
	}

	var rows []entities.Thread
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return nil, s.storageFailure("failed to list threads", err)
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	result := &chat.ThreadPage{}
	for i := range rows {
		result.Threads = append(result.Threads, chat.ThreadSummary{
			ID:             rows[i].ID,
			Name:           rows[i].Name,
			UserIdentifier: rows[i].UserIdentifier,
			CreatedAt:      rows[i].CreatedAt.Unix(),
		})
	}
	if hasMore {
		last := rows[len(rows)-1]
		result.NextCursor = encodeCursor(threadCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// UpsertStep creates or merges a step. The referenced thread must exist.
func (s *Store) UpsertStep(ctx context.Context, step *chat.Step) (*chat.Step, error) {
	if strings.TrimSpace(step.ThreadID) == "" {
		return nil, s.validation("step thread id is required")
	}
	if err := s.requireThread(ctx, step.ThreadID); err != nil {
		return nil, err
	}
	if step.ID == "" {
		step.ID = chatid.NewStep()
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}

	var existing entities.Step
	err := s.db.WithContext(ctx).Where("id = ?", step.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(entities.NewSchemaStep(step)).Error; err != nil {
			return nil, s.storageFailure("failed to create step", err)
		}
		return step, nil
	case err != nil:
		return nil, s.storageFailure("failed to fetch step", err)
	}

	merged := existing.EtoD()
	merged.Merge(step)
	entity := entities.NewSchemaStep(merged)
	entity.CreatedAt = existing.CreatedAt
	if err := s.db.WithContext(ctx).Save(entity).Error; err != nil {
		return nil, s.storageFailure("failed to update step", err)
	}
	return merged, nil
}

// DeleteStep removes a step; feedback on it cascades away.
func (s *Store) DeleteStep(ctx context.Context, stepID string) error {
	res := s.db.WithContext(ctx).Delete(&entities.Step{}, "id = ?", stepID)
	if res.Error != nil {
		return s.storageFailure("failed to delete step", res.Error)
	}
	if res.RowsAffected == 0 {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("step not found: %s", stepID),
			nil,
		)
	}
	return nil
}

// UpsertElement creates or replaces an element. A payload goes through
// the object-storage client first; the row stores the resulting key.
func (s *Store) UpsertElement(ctx context.Context, element *chat.Element, payload []byte) (*chat.Element, error) {
	if strings.TrimSpace(element.ThreadID) == "" {
		return nil, s.validation("element thread id is required")
	}
	if err := s.requireThread(ctx, element.ThreadID); err != nil {
		return nil, err
	}
	if element.ID == "" {
		element.ID = chatid.NewElement()
	}
	if element.CreatedAt.IsZero() {
		element.CreatedAt = time.Now().UTC()
	}

	if payload != nil {
		if err := storage.UploadElementPayload(ctx, s.objects, element, payload); err != nil {
			return nil, platformerrors.NewError(
				platformerrors.LayerStorage,
				platformerrors.ErrorTypeStorageFailure,
				"failed to upload element payload",
				err,
			)
		}
	}

	entity := entities.NewSchemaElement(element)
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type", "name", "url", "object_key", "display",
				"size", "page", "language", "mime", "for_id",
			}),
		}).
		Create(entity).Error; err != nil {
		return nil, s.storageFailure("failed to upsert element", err)
	}
	return element, nil
}

// GetElement fetches one element of a thread.
func (s *Store) GetElement(ctx context.Context, threadID, elementID string) (*chat.Element, error) {
	var entity entities.Element
	if err := s.db.WithContext(ctx).
		Where("thread_id = ? AND id = ?", threadID, elementID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("element not found: %s", elementID),
				nil,
			)
		}
		return nil, s.storageFailure("failed to fetch element", err)
	}
	return entity.EtoD(), nil
}

// DeleteElement removes an element row and best-effort deletes its blob.
func (s *Store) DeleteElement(ctx context.Context, elementID string) error {
	var entity entities.Element
	err := s.db.WithContext(ctx).Where("id = ?", elementID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("element not found: %s", elementID),
			nil,
		)
	}
	if err != nil {
		return s.storageFailure("failed to fetch element", err)
	}

	if err := s.db.WithContext(ctx).Delete(&entities.Element{}, "id = ?", elementID).Error; err != nil {
		return s.storageFailure("failed to delete element", err)
	}

	if err := storage.DeleteElementPayload(ctx, s.objects, entity.EtoD()); err != nil {
		s.log.Warn().Err(err).Str("element_id", elementID).Msg("blob cleanup failed after element delete")
	}
	return nil
}

// UpsertFeedback replaces the single feedback for a step. The thread
// reference is always taken from the step, keeping the denormalized
// pair consistent.
func (s *Store) UpsertFeedback(ctx context.Context, feedback *chat.Feedback) (*chat.Feedback, error) {
	if !feedback.Value.Valid() {
		return nil, s.validation("feedback value must be -1, 0 or 1")
	}

	var step entities.Step
	if err := s.db.WithContext(ctx).Where("id = ?", feedback.StepID).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeReferentialViolation,
				fmt.Sprintf("feedback references unknown step: %s", feedback.StepID),
				nil,
			)
		}
		return nil, s.storageFailure("failed to fetch step for feedback", err)
	}

	if feedback.ID == "" {
		feedback.ID = chatid.NewFeedback()
	}
	feedback.ThreadID = step.ThreadID

	entity := entities.NewSchemaFeedback(feedback)
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "step_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"id", "thread_id", "value", "comment"}),
		}).
		Create(entity).Error; err != nil {
		return nil, s.storageFailure("failed to upsert feedback", err)
	}
	return feedback, nil
}

// DeleteFeedback removes a feedback by id.
func (s *Store) DeleteFeedback(ctx context.Context, feedbackID string) error {
	res := s.db.WithContext(ctx).Delete(&entities.Feedback{}, "id = ?", feedbackID)
	if res.Error != nil {
		return s.storageFailure("failed to delete feedback", res.Error)
	}
	if res.RowsAffected == 0 {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("feedback not found: %s", feedbackID),
			nil,
		)
	}
	return nil
}

// HealthCheck pings the underlying database.
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.storageFailure("failed to retrieve sql db", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return s.storageFailure("database ping failed", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) requireUser(ctx context.Context, identifier string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&entities.User{}).
		Where("identifier = ?", identifier).
		Count(&count).Error; err != nil {
		return s.storageFailure("failed to check user existence", err)
	}
	if count == 0 {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeReferentialViolation,
			fmt.Sprintf("thread references unknown user: %s", identifier),
			nil,
		)
	}
	return nil
}

func (s *Store) requireThread(ctx context.Context, threadID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&entities.Thread{}).
		Where("id = ?", threadID).
		Count(&count).Error; err != nil {
		return s.storageFailure("failed to check thread existence", err)
	}
	if count == 0 {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeReferentialViolation,
			fmt.Sprintf("write references unknown thread: %s", threadID),
			nil,
		)
	}
	return nil
}

func (s *Store) storageFailure(message string, err error) *platformerrors.PlatformError {
	return platformerrors.NewError(
		platformerrors.LayerRepository,
		platformerrors.ErrorTypeStorageFailure,
		message,
		err,
	)
}

func (s *Store) validation(message string) *platformerrors.PlatformError {
	return platformerrors.NewError(
		platformerrors.LayerRepository,
		platformerrors.ErrorTypeValidation,
		message,
		nil,
	)
}
