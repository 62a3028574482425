// Package keyvalue implements the chat persistence contract over a
// single Pebble keyspace. The engine has no joins and no cascades, so
// relational behavior is emulated: child items live in their thread's
// partition, a derived index keyspace answers per-user listing, and
// cascade deletion enumerates the partition and deletes each item
// explicitly. A crash mid-cascade can leave orphaned items; that window
// is accepted and reported, not hidden.
package keyvalue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"chatstore/domain/chat"
	"chatstore/infrastructure/storage"
	"chatstore/utils/chatid"
	"chatstore/utils/platformerrors"
)

// Store persists chat entities as JSON items under composite keys.
// Operations issue independent, non-transactional reads and writes;
// concurrent upserts to different steps of one thread are safe, a
// cascade racing a concurrent write to the same thread is not.
type Store struct {
	db      *pebble.DB
	objects storage.ObjectStorage
	log     zerolog.Logger
}

// indexEntry is the projection carried by the user/time index: enough
// to build a listing row without touching the thread partition.
type indexEntry struct {
	ThreadID  string  `json:"thread_id"`
	Name      *string `json:"name,omitempty"`
	CreatedAt int64   `json:"created_at_unix"`
}

// ptrEntry locates an entity addressed only by its own id.
type ptrEntry struct {
	ThreadID string `json:"thread_id"`
	StepID   string `json:"step_id,omitempty"`
}

// Open opens (or creates) the Pebble keyspace at path and returns a
// store over it.
func Open(path string, objects storage.ObjectStorage, log zerolog.Logger) (*Store, error) {
	logger := log.With().Str("component", "keyvalue-store").Logger()
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("pebble keyspace opened")
	return &Store{db: db, objects: objects, log: logger}, nil
}

// NewStore wraps an already-open Pebble handle. The caller keeps
// ownership of the handle's lifecycle when using this constructor.
func NewStore(db *pebble.DB, objects storage.ObjectStorage, log zerolog.Logger) *Store {
	return &Store{
		db:      db,
		objects: objects,
		log:     log.With().Str("component", "keyvalue-store").Logger(),
	}
}

// Capabilities reports that the feedback-value filter is unavailable:
// feedback is embedded in step items and the user/time index projects
// only thread id and name.
func (s *Store) Capabilities() chat.Capability {
	return chat.Capability{FeedbackValueFilter: false}
}

// GetUser fetches a user item by identifier.
func (s *Store) GetUser(ctx context.Context, identifier string) (*chat.User, error) {
	var user chat.User
	found, err := s.getJSON(userKey(identifier), &user)
	if err != nil {
		return nil, s.storageFailure("failed to fetch user", err)
	}
	if !found {
		return nil, s.notFound("user not found: %s", identifier)
	}
	return &user, nil
}

// CreateUser upserts a user item; an existing user keeps its creation
// time and gets its metadata replaced.
func (s *Store) CreateUser(ctx context.Context, user *chat.User) (*chat.User, error) {
	if strings.TrimSpace(user.Identifier) == "" {
		return nil, s.validation("user identifier is required")
	}

	var existing chat.User
	found, err := s.getJSON(userKey(user.Identifier), &existing)
	if err != nil {
		return nil, s.storageFailure("failed to fetch user", err)
	}
	if found {
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if err := s.setJSON(userKey(user.Identifier), user); err != nil {
		return nil, s.storageFailure("failed to upsert user", err)
	}
	return user, nil
}

// DeleteUser removes a user item and cascades through the user/time
// index to every thread they own.
func (s *Store) DeleteUser(ctx context.Context, identifier string) error {
	var user chat.User
	found, err := s.getJSON(userKey(identifier), &user)
	if err != nil {
		return s.storageFailure("failed to fetch user", err)
	}
	if !found {
		return s.notFound("user not found: %s", identifier)
	}

	partition := indexPartition(identifier)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: partition,
		UpperBound: prefixEnd(partition),
	})
	if err != nil {
		return s.storageFailure("failed to scan thread index", err)
	}
	var threadIDs []string
	for iter.First(); iter.Valid(); iter.Next() {
		var entry indexEntry
		if json.Unmarshal(iter.Value(), &entry) == nil {
			threadIDs = append(threadIDs, entry.ThreadID)
		}
	}
	scanErr := iter.Error()
	if err := iter.Close(); err != nil && scanErr == nil {
		scanErr = err
	}
	if scanErr != nil {
		return s.storageFailure("failed to scan thread index", scanErr)
	}

	for _, threadID := range threadIDs {
		if err := s.DeleteThread(ctx, threadID); err != nil && !platformerrors.IsNotFound(err) {
			return err
		}
	}

	if err := s.db.Delete(userKey(identifier), pebble.Sync); err != nil {
		return s.storageFailure("failed to delete user", err)
	}
	return nil
}

// UpdateThread upserts a thread header and maintains the user/time
// index entry derived from it. A non-nil owner must reference an
// existing user; ownerless threads are anonymous and always accepted.
func (s *Store) UpdateThread(ctx context.Context, thread *chat.Thread) (*chat.Thread, error) {
	if thread.UserIdentifier != nil {
		if err := s.requireUser(*thread.UserIdentifier); err != nil {
			return nil, err
		}
	}
	if thread.ID == "" {
		thread.ID = chatid.NewThread()
	}

	var existing chat.Thread
	found, err := s.getJSON(threadKey(thread.ID), &existing)
	if err != nil {
		return nil, s.storageFailure("failed to fetch thread", err)
	}
	oldOwner := ownerOf(&existing)

	merged := thread
	if found {
		merged = &existing
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
	} else if merged.CreatedAt.IsZero() {
		merged.CreatedAt = time.Now().UTC()
	}
	merged.Steps = nil
	merged.Elements = nil

	if err := s.setJSON(threadKey(merged.ID), merged); err != nil {
		return nil, s.storageFailure("failed to upsert thread", err)
	}

	// Owner changes move the index entry to the new partition.
	if found && oldOwner != ownerOf(merged) {
		oldKey := indexKey(oldOwner, merged.CreatedAt, merged.ID)
		if err := s.db.Delete(oldKey, pebble.Sync); err != nil {
			return nil, s.storageFailure("failed to move thread index entry", err)
		}
	}
	if err := s.writeIndexEntry(merged); err != nil {
		return nil, s.storageFailure("failed to write thread index entry", err)
	}

	return merged, nil
}

// GetThread reads the whole conversation with one range scan over the
// thread's partition: header, steps (feedback embedded) and elements.
func (s *Store) GetThread(ctx context.Context, threadID string) (*chat.Thread, error) {
	partition := threadPartition(threadID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: partition,
		UpperBound: prefixEnd(partition),
	})
	if err != nil {
		return nil, s.storageFailure("failed to scan thread partition", err)
	}
	defer iter.Close()

	var thread *chat.Thread
	var steps []chat.Step
	var elems []chat.Element

	for iter.First(); iter.Valid(); iter.Next() {
		value := append([]byte(nil), iter.Value()...)
		sk := sortKeyOf(iter.Key(), partition)
		switch {
		case sk == skThread:
			var t chat.Thread
			if err := json.Unmarshal(value, &t); err != nil {
				return nil, s.storageFailure("corrupt thread item", err)
			}
			thread = &t
		case strings.HasPrefix(sk, skStep):
			var step chat.Step
			if err := json.Unmarshal(value, &step); err != nil {
				return nil, s.storageFailure("corrupt step item", err)
			}
			steps = append(steps, step)
		case strings.HasPrefix(sk, skElement):
			var elem chat.Element
			if err := json.Unmarshal(value, &elem); err != nil {
				return nil, s.storageFailure("corrupt element item", err)
			}
			elems = append(elems, elem)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, s.storageFailure("failed to scan thread partition", err)
	}
	if thread == nil {
		return nil, s.notFound("thread not found: %s", threadID)
	}

	sortSteps(steps)
	sortElements(elems)
	thread.Steps = steps
	thread.Elements = elems
	return thread, nil
}

// DeleteThread enumerates the thread's partition and deletes every item
// explicitly, then the index and pointer entries. Deletion is best
// effort: every reachable item is attempted, and any failure surfaces
// as a storage failure after the pass completes.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	var header chat.Thread
	found, err := s.getJSON(threadKey(threadID), &header)
	if err != nil {
		return s.storageFailure("failed to fetch thread", err)
	}
	if !found {
		return s.notFound("thread not found: %s", threadID)
	}

	partition := threadPartition(threadID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: partition,
		UpperBound: prefixEnd(partition),
	})
	if err != nil {
		return s.storageFailure("failed to scan thread partition", err)
	}

	var keys [][]byte
	var blobElems []chat.Element
	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		keys = append(keys, key)

		sk := sortKeyOf(key, partition)
		switch {
		case strings.HasPrefix(sk, skStep):
			var step chat.Step
			if json.Unmarshal(value, &step) == nil {
				keys = append(keys, stepPtrKey(step.ID))
				if step.Feedback != nil {
					keys = append(keys, feedbackPtrKey(step.Feedback.ID))
				}
			}
		case strings.HasPrefix(sk, skElement):
			var elem chat.Element
			if json.Unmarshal(value, &elem) == nil {
				keys = append(keys, elementPtrKey(elem.ID))
				if elem.ObjectKey != nil {
					blobElems = append(blobElems, elem)
				}
			}
		}
	}
	scanErr := iter.Error()
	if err := iter.Close(); err != nil && scanErr == nil {
		scanErr = err
	}
	if scanErr != nil {
		return s.storageFailure("failed to scan thread partition", scanErr)
	}

	keys = append(keys, indexKey(ownerOf(&header), header.CreatedAt, header.ID))

	var failed int
	for _, key := range keys {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			failed++
			s.log.Error().Err(err).Str("key", string(key)).Msg("cascade delete failed for item")
		}
	}
	if failed > 0 {
		return platformerrors.NewErrorWithContext(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeStorageFailure,
			fmt.Sprintf("cascade delete of thread %s left %d items behind", threadID, failed),
			nil,
			map[string]any{"thread_id": threadID, "orphaned_items": failed},
		)
	}

	for i := range blobElems {
		if err := storage.DeleteElementPayload(ctx, s.objects, &blobElems[i]); err != nil {
			s.log.Warn().Err(err).Str("element_id", blobElems[i].ID).Msg("blob cleanup failed after thread delete")
		}
	}
	return nil
}

// ListThreads walks the user/time index backwards (newest first). The
// search filter post-filters on the projected name; the feedback-value
// filter cannot be served here because the index carries no feedback
// data, and callers are told so explicitly.
func (s *Store) ListThreads(ctx context.Context, filter chat.ThreadFilter, page chat.Page) (*chat.ThreadPage, error) {
	if filter.FeedbackValue != nil {
		return nil, platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeUnsupportedOperation,
			"feedback-value filtering is not supported by the keyvalue backend",
			nil,
		)
	}
	if strings.TrimSpace(filter.UserIdentifier) == "" {
		return nil, s.validation("thread listing requires a user identifier")
	}

	limit := page.Limit
	if limit <= 0 {
		limit = chat.DefaultPageLimit
	}

	partition := indexPartition(filter.UserIdentifier)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: partition,
		UpperBound: prefixEnd(partition),
	})
	if err != nil {
		return nil, s.storageFailure("failed to scan thread index", err)
	}
	defer iter.Close()

	var positioned bool
	if page.Cursor != "" {
		lastKey, err := base64.RawURLEncoding.DecodeString(page.Cursor)
		if err != nil || !strings.HasPrefix(string(lastKey), string(partition)) {
			return nil, s.validation("invalid pagination cursor")
		}
		positioned = iter.SeekLT(lastKey)
	} else {
		positioned = iter.Last()
	}

	var search string
	if filter.SearchText != nil {
		search = strings.ToLower(*filter.SearchText)
	}

	result := &chat.ThreadPage{}
	var lastKey []byte
	for ; positioned && iter.Valid(); positioned = iter.Prev() {
		if len(result.Threads) == limit {
			result.NextCursor = base64.RawURLEncoding.EncodeToString(lastKey)
			break
		}

		var entry indexEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, s.storageFailure("corrupt thread index entry", err)
		}
		lastKey = append(lastKey[:0], iter.Key()...)

		if search != "" {
			name := ""
			if entry.Name != nil {
				name = strings.ToLower(*entry.Name)
			}
			if !strings.Contains(name, search) {
				continue
			}
		}

		owner := filter.UserIdentifier
		result.Threads = append(result.Threads, chat.ThreadSummary{
			ID:             entry.ThreadID,
			Name:           entry.Name,
			UserIdentifier: &owner,
			CreatedAt:      entry.CreatedAt,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, s.storageFailure("failed to scan thread index", err)
	}
	return result, nil
}

// UpsertStep creates or merges a step item under its thread partition.
// An embedded feedback on the stored item survives the merge. A step id
// stays pinned to the thread it was first written under; later upserts
// naming another thread merge into the original item.
func (s *Store) UpsertStep(ctx context.Context, step *chat.Step) (*chat.Step, error) {
	if strings.TrimSpace(step.ThreadID) == "" {
		return nil, s.validation("step thread id is required")
	}
	if err := s.requireThread(step.ThreadID); err != nil {
		return nil, err
	}
	if step.ID == "" {
		step.ID = chatid.NewStep()
	}

	threadID := step.ThreadID
	var ptr ptrEntry
	ptrFound, err := s.getJSON(stepPtrKey(step.ID), &ptr)
	if err != nil {
		return nil, s.storageFailure("failed to locate step", err)
	}
	if ptrFound {
		threadID = ptr.ThreadID
	}

	key := stepKey(threadID, step.ID)
	var existing chat.Step
	found, err := s.getJSON(key, &existing)
	if err != nil {
		return nil, s.storageFailure("failed to fetch step", err)
	}

	merged := step
	if found {
		merged = &existing
		merged.Merge(step)
	} else if merged.CreatedAt.IsZero() {
		merged.CreatedAt = time.Now().UTC()
	}
	merged.ThreadID = threadID

	if err := s.setJSON(key, merged); err != nil {
		return nil, s.storageFailure("failed to upsert step", err)
	}
	if err := s.setJSON(stepPtrKey(merged.ID), ptrEntry{ThreadID: threadID}); err != nil {
		return nil, s.storageFailure("failed to index step", err)
	}
	return merged, nil
}

// DeleteStep removes a step item and its embedded feedback's pointer.
func (s *Store) DeleteStep(ctx context.Context, stepID string) error {
	var ptr ptrEntry
	found, err := s.getJSON(stepPtrKey(stepID), &ptr)
	if err != nil {
		return s.storageFailure("failed to locate step", err)
	}
	if !found {
		return s.notFound("step not found: %s", stepID)
	}

	key := stepKey(ptr.ThreadID, stepID)
	var step chat.Step
	if _, err := s.getJSON(key, &step); err != nil {
		return s.storageFailure("failed to fetch step", err)
	}

	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return s.storageFailure("failed to delete step", err)
	}
	if err := s.db.Delete(stepPtrKey(stepID), pebble.Sync); err != nil {
		return s.storageFailure("failed to delete step pointer", err)
	}
	if step.Feedback != nil {
		if err := s.db.Delete(feedbackPtrKey(step.Feedback.ID), pebble.Sync); err != nil {
			return s.storageFailure("failed to delete feedback pointer", err)
		}
	}
	return nil
}

// UpsertElement creates or replaces an element item. A payload goes
// through the object-storage client first.
func (s *Store) UpsertElement(ctx context.Context, element *chat.Element, payload []byte) (*chat.Element, error) {
	if strings.TrimSpace(element.ThreadID) == "" {
		return nil, s.validation("element thread id is required")
	}
	if err := s.requireThread(element.ThreadID); err != nil {
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

	if err := s.setJSON(elementKey(element.ThreadID, element.ID), element); err != nil {
		return nil, s.storageFailure("failed to upsert element", err)
	}
	if err := s.setJSON(elementPtrKey(element.ID), ptrEntry{ThreadID: element.ThreadID}); err != nil {
		return nil, s.storageFailure("failed to index element", err)
	}
	return element, nil
}

// GetElement fetches one element item of a thread.
func (s *Store) GetElement(ctx context.Context, threadID, elementID string) (*chat.Element, error) {
	var elem chat.Element
	found, err := s.getJSON(elementKey(threadID, elementID), &elem)
	if err != nil {
		return nil, s.storageFailure("failed to fetch element", err)
	}
	if !found {
		return nil, s.notFound("element not found: %s", elementID)
	}
	return &elem, nil
}

// DeleteElement removes an element item and best-effort deletes its blob.
func (s *Store) DeleteElement(ctx context.Context, elementID string) error {
	var ptr ptrEntry
	found, err := s.getJSON(elementPtrKey(elementID), &ptr)
	if err != nil {
		return s.storageFailure("failed to locate element", err)
	}
	if !found {
		return s.notFound("element not found: %s", elementID)
	}

	key := elementKey(ptr.ThreadID, elementID)
	var elem chat.Element
	if _, err := s.getJSON(key, &elem); err != nil {
		return s.storageFailure("failed to fetch element", err)
	}

	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return s.storageFailure("failed to delete element", err)
	}
	if err := s.db.Delete(elementPtrKey(elementID), pebble.Sync); err != nil {
		return s.storageFailure("failed to delete element pointer", err)
	}

	if err := storage.DeleteElementPayload(ctx, s.objects, &elem); err != nil {
		s.log.Warn().Err(err).Str("element_id", elementID).Msg("blob cleanup failed after element delete")
	}
	return nil
}

// UpsertFeedback embeds the feedback into its step item, replacing any
// prior feedback for that step. The thread reference always comes from
// the step, keeping the denormalized pair consistent. Embedding keeps
// "get thread with feedback" a single-partition read.
func (s *Store) UpsertFeedback(ctx context.Context, feedback *chat.Feedback) (*chat.Feedback, error) {
	if !feedback.Value.Valid() {
		return nil, s.validation("feedback value must be -1, 0 or 1")
	}

	var ptr ptrEntry
	found, err := s.getJSON(stepPtrKey(feedback.StepID), &ptr)
	if err != nil {
		return nil, s.storageFailure("failed to locate step", err)
	}
	if !found {
		return nil, platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeReferentialViolation,
			fmt.Sprintf("feedback references unknown step: %s", feedback.StepID),
			nil,
		)
	}

	key := stepKey(ptr.ThreadID, feedback.StepID)
	var step chat.Step
	found, err = s.getJSON(key, &step)
	if err != nil {
		return nil, s.storageFailure("failed to fetch step", err)
	}
	if !found {
		return nil, platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeReferentialViolation,
			fmt.Sprintf("feedback references unknown step: %s", feedback.StepID),
			nil,
		)
	}

	if feedback.ID == "" {
		feedback.ID = chatid.NewFeedback()
	}
	feedback.ThreadID = step.ThreadID

	if step.Feedback != nil && step.Feedback.ID != feedback.ID {
		if err := s.db.Delete(feedbackPtrKey(step.Feedback.ID), pebble.Sync); err != nil {
			return nil, s.storageFailure("failed to drop replaced feedback pointer", err)
		}
	}

	step.Feedback = feedback
	if err := s.setJSON(key, &step); err != nil {
		return nil, s.storageFailure("failed to embed feedback", err)
	}
	if err := s.setJSON(feedbackPtrKey(feedback.ID), ptrEntry{ThreadID: step.ThreadID, StepID: step.ID}); err != nil {
		return nil, s.storageFailure("failed to index feedback", err)
	}
	return feedback, nil
}

// DeleteFeedback clears the embedded feedback from its step item.
func (s *Store) DeleteFeedback(ctx context.Context, feedbackID string) error {
	var ptr ptrEntry
	found, err := s.getJSON(feedbackPtrKey(feedbackID), &ptr)
	if err != nil {
		return s.storageFailure("failed to locate feedback", err)
	}
	if !found {
		return s.notFound("feedback not found: %s", feedbackID)
	}

	key := stepKey(ptr.ThreadID, ptr.StepID)
	var step chat.Step
	found, err = s.getJSON(key, &step)
	if err != nil {
		return s.storageFailure("failed to fetch step", err)
	}
	if found && step.Feedback != nil && step.Feedback.ID == feedbackID {
		step.Feedback = nil
		if err := s.setJSON(key, &step); err != nil {
			return s.storageFailure("failed to clear feedback", err)
		}
	}

	if err := s.db.Delete(feedbackPtrKey(feedbackID), pebble.Sync); err != nil {
		return s.storageFailure("failed to delete feedback pointer", err)
	}
	return nil
}

// HealthCheck verifies the keyspace is readable.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, closer, err := s.db.Get([]byte("HEALTH"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return s.storageFailure("pebble read failed", err)
	}
	if closer != nil {
		_ = closer.Close()
	}
	return nil
}

// Close closes the underlying keyspace.
func (s *Store) Close() error {
	return s.db.Close()
}

// ===============================================
// helpers
// ===============================================

func (s *Store) requireUser(identifier string) error {
	var user chat.User
	found, err := s.getJSON(userKey(identifier), &user)
	if err != nil {
		return s.storageFailure("failed to check user existence", err)
	}
	if !found {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeReferentialViolation,
			fmt.Sprintf("thread references unknown user: %s", identifier),
			nil,
		)
	}
	return nil
}

func (s *Store) requireThread(threadID string) error {
	var header chat.Thread
	found, err := s.getJSON(threadKey(threadID), &header)
	if err != nil {
		return s.storageFailure("failed to check thread existence", err)
	}
	if !found {
		return platformerrors.NewError(
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeReferentialViolation,
			fmt.Sprintf("write references unknown thread: %s", threadID),
			nil,
		)
	}
	return nil
}

func (s *Store) writeIndexEntry(thread *chat.Thread) error {
	entry := indexEntry{
		ThreadID:  thread.ID,
		Name:      thread.Name,
		CreatedAt: thread.CreatedAt.Unix(),
	}
	return s.setJSON(indexKey(ownerOf(thread), thread.CreatedAt, thread.ID), entry)
}

func (s *Store) getJSON(key []byte, out any) (bool, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("decode item %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", key, err)
	}
	return s.db.Set(key, raw, pebble.Sync)
}

func ownerOf(thread *chat.Thread) string {
	if thread.UserIdentifier == nil {
		return ""
	}
	return *thread.UserIdentifier
}

func (s *Store) notFound(format string, args ...any) *platformerrors.PlatformError {
	return platformerrors.NewError(
		platformerrors.LayerRepository,
		platformerrors.ErrorTypeNotFound,
		fmt.Sprintf(format, args...),
		nil,
	)
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

func sortSteps(steps []chat.Step) {
	sort.Slice(steps, func(i, j int) bool {
		if !steps[i].CreatedAt.Equal(steps[j].CreatedAt) {
			return steps[i].CreatedAt.Before(steps[j].CreatedAt)
		}
		return steps[i].ID < steps[j].ID
	})
}

func sortElements(elems []chat.Element) {
	sort.Slice(elems, func(i, j int) bool {
		if !elems[i].CreatedAt.Equal(elems[j].CreatedAt) {
			return elems[i].CreatedAt.Before(elems[j].CreatedAt)
		}
		return elems[i].ID < elems[j].ID
	})
}
