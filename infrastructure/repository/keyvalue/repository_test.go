package keyvalue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstore/domain/chat"
	"chatstore/infrastructure/repository/keyvalue"
	"chatstore/infrastructure/storage"
	"chatstore/utils/platformerrors"
)

func newTestStore(t *testing.T) *keyvalue.Store {
	t.Helper()
	store, err := keyvalue.Open(t.TempDir(), nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func seedThread(t *testing.T, store *keyvalue.Store, id, owner string, createdAt time.Time) *chat.Thread {
	t.Helper()
	_, err := store.CreateUser(context.Background(), &chat.User{Identifier: owner})
	require.NoError(t, err)
	thread, err := store.UpdateThread(context.Background(), &chat.Thread{
		ID:             id,
		Name:           strPtr("thread " + id),
		UserIdentifier: &owner,
		CreatedAt:      createdAt,
	})
	require.NoError(t, err)
	return thread
}

func TestCreateUser_UpsertSemantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, &chat.User{
		Identifier: "u1",
		Metadata:   map[string]string{"plan": "free"},
	})
	require.NoError(t, err)
	require.False(t, created.CreatedAt.IsZero())

	// Second create with the same identifier replaces metadata only.
	updated, err := store.CreateUser(ctx, &chat.User{
		Identifier: "u1",
		Metadata:   map[string]string{"plan": "pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())

	fetched, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pro", fetched.Metadata["plan"])
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, platformerrors.IsNotFound(err))
}

func TestThreadLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, &chat.User{Identifier: "u1"})
	require.NoError(t, err)

	thread := seedThread(t, store, "thr_1", "u1", time.Now().UTC())

	step, err := store.UpsertStep(ctx, &chat.Step{
		ID:       "step_1",
		ThreadID: thread.ID,
		Type:     chat.StepTypeUserMessage,
		Output:   "hello",
	})
	require.NoError(t, err)

	_, err = store.UpsertFeedback(ctx, &chat.Feedback{
		StepID: step.ID,
		Value:  chat.FeedbackPositive,
	})
	require.NoError(t, err)

	fetched, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Steps, 1)
	assert.Equal(t, "step_1", fetched.Steps[0].ID)
	assert.Equal(t, "hello", fetched.Steps[0].Output)
	require.NotNil(t, fetched.Steps[0].Feedback)
	assert.Equal(t, chat.FeedbackPositive, fetched.Steps[0].Feedback.Value)

	require.NoError(t, store.DeleteThread(ctx, thread.ID))

	_, err = store.GetThread(ctx, thread.ID)
	assert.True(t, platformerrors.IsNotFound(err))
}

func TestDeleteThread_Cascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := seedThread(t, store, "thr_1", "u1", time.Now().UTC())

	var stepIDs []string
	for i := 0; i < 3; i++ {
		step, err := store.UpsertStep(ctx, &chat.Step{
			ID:       fmt.Sprintf("step_%d", i),
			ThreadID: thread.ID,
			Type:     chat.StepTypeAssistantMessage,
		})
		require.NoError(t, err)
		stepIDs = append(stepIDs, step.ID)
	}
	for i := 0; i < 2; i++ {
		_, err := store.UpsertElement(ctx, &chat.Element{
			ID:       fmt.Sprintf("el_%d", i),
			ThreadID: thread.ID,
			Type:     "file",
			URL:      strPtr("https://example.com/file"),
		}, nil)
		require.NoError(t, err)
	}
	_, err := store.UpsertFeedback(ctx, &chat.Feedback{StepID: stepIDs[0], Value: chat.FeedbackNegative})
	require.NoError(t, err)

	require.NoError(t, store.DeleteThread(ctx, thread.ID))

	_, err = store.GetThread(ctx, thread.ID)
	assert.True(t, platformerrors.IsNotFound(err))

	// Children of the deleted thread are gone too.
	_, err = store.GetElement(ctx, thread.ID, "el_0")
	assert.True(t, platformerrors.IsNotFound(err))
	assert.True(t, platformerrors.IsNotFound(store.DeleteStep(ctx, stepIDs[1])))

	// Feedback against a step that was under the thread is rejected.
	_, err = store.UpsertFeedback(ctx, &chat.Feedback{StepID: stepIDs[0], Value: chat.FeedbackPositive})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeReferentialViolation))

	// Second delete is idempotent: typed not-found, no engine error.
	assert.True(t, platformerrors.IsNotFound(store.DeleteThread(ctx, thread.ID)))
}

func TestDeleteUser_CascadesToThreads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, &chat.User{Identifier: "u1"})
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	t1 := seedThread(t, store, "thr_1", "u1", base)
	t2 := seedThread(t, store, "thr_2", "u1", base.Add(time.Minute))
	_, err = store.UpsertStep(ctx, &chat.Step{ID: "step_1", ThreadID: t1.ID, Type: chat.StepTypeUserMessage})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, "u1"))

	_, err = store.GetUser(ctx, "u1")
	assert.True(t, platformerrors.IsNotFound(err))
	_, err = store.GetThread(ctx, t1.ID)
	assert.True(t, platformerrors.IsNotFound(err))
	_, err = store.GetThread(ctx, t2.ID)
	assert.True(t, platformerrors.IsNotFound(err))
}

func TestUpdateThread_UnknownOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner := "ghost"
	_, err := store.UpdateThread(ctx, &chat.Thread{ID: "thr_1", UserIdentifier: &owner})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeReferentialViolation))

	// Anonymous threads carry no owner and need no user.
	_, err = store.UpdateThread(ctx, &chat.Thread{ID: "thr_anon", Name: strPtr("anon")})
	require.NoError(t, err)
}

func TestUpsertStep_ThreadPinned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t1 := seedThread(t, store, "thr_1", "u1", time.Now().UTC())
	t2 := seedThread(t, store, "thr_2", "u1", time.Now().UTC())

	_, err := store.UpsertStep(ctx, &chat.Step{ID: "step_1", ThreadID: t1.ID, Type: chat.StepTypeUserMessage, Output: "first"})
	require.NoError(t, err)

	// A later upsert naming another thread merges into the original.
	moved, err := store.UpsertStep(ctx, &chat.Step{ID: "step_1", ThreadID: t2.ID, Output: "second"})
	require.NoError(t, err)
	assert.Equal(t, t1.ID, moved.ThreadID)

	first, err := store.GetThread(ctx, t1.ID)
	require.NoError(t, err)
	require.Len(t, first.Steps, 1)
	assert.Equal(t, "second", first.Steps[0].Output)

	second, err := store.GetThread(ctx, t2.ID)
	require.NoError(t, err)
	assert.Empty(t, second.Steps)
}

func TestUpsertStep_LastWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := seedThread(t, store, "thr_1", "u1", time.Now().UTC())

	first := &chat.Step{
		ID:        "step_1",
		ThreadID:  thread.ID,
		Type:      chat.StepTypeLLM,
		Output:    "partial",
		Streaming: true,
	}
	_, err := store.UpsertStep(ctx, first)
	require.NoError(t, err)

	end := time.Now().UTC()
	_, err = store.UpsertStep(ctx, &chat.Step{
		ID:       "step_1",
		ThreadID: thread.ID,
		Output:   "complete",
		EndTime:  &end,
	})
	require.NoError(t, err)

	fetched, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Steps, 1)
	assert.Equal(t, "complete", fetched.Steps[0].Output)
	assert.Equal(t, chat.StepTypeLLM, fetched.Steps[0].Type)
	require.NotNil(t, fetched.Steps[0].EndTime)
	assert.False(t, fetched.Steps[0].Streaming)
}

func TestUpsertStep_UnknownThread(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpsertStep(context.Background(), &chat.Step{
		ID:       "step_1",
		ThreadID: "thr_missing",
		Type:     chat.StepTypeUserMessage,
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeReferentialViolation))
}

func TestUpsertFeedback_ReplacesPrior(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := seedThread(t, store, "thr_1", "u1", time.Now().UTC())
	step, err := store.UpsertStep(ctx, &chat.Step{ID: "step_1", ThreadID: thread.ID, Type: chat.StepTypeUserMessage})
	require.NoError(t, err)

	f1, err := store.UpsertFeedback(ctx, &chat.Feedback{ID: "fb_1", StepID: step.ID, Value: chat.FeedbackNegative})
	require.NoError(t, err)
	assert.Equal(t, thread.ID, f1.ThreadID)

	f2, err := store.UpsertFeedback(ctx, &chat.Feedback{
		ID:      "fb_2",
		StepID:  step.ID,
		Value:   chat.FeedbackPositive,
		Comment: strPtr("better"),
	})
	require.NoError(t, err)

	fetched, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Steps[0].Feedback)
	assert.Equal(t, f2.ID, fetched.Steps[0].Feedback.ID)
	assert.Equal(t, chat.FeedbackPositive, fetched.Steps[0].Feedback.Value)

	// The replaced feedback id is no longer addressable.
	assert.True(t, platformerrors.IsNotFound(store.DeleteFeedback(ctx, "fb_1")))
	require.NoError(t, store.DeleteFeedback(ctx, "fb_2"))

	fetched, err = store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.Steps[0].Feedback)
}

func TestFeedbackSurvivesStepMerge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := seedThread(t, store, "thr_1", "u1", time.Now().UTC())
	step, err := store.UpsertStep(ctx, &chat.Step{ID: "step_1", ThreadID: thread.ID, Type: chat.StepTypeLLM})
	require.NoError(t, err)
	_, err = store.UpsertFeedback(ctx, &chat.Feedback{StepID: step.ID, Value: chat.FeedbackPositive})
	require.NoError(t, err)

	// Streaming update after feedback was attached.
	_, err = store.UpsertStep(ctx, &chat.Step{ID: "step_1", ThreadID: thread.ID, Output: "more"})
	require.NoError(t, err)

	fetched, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Steps[0].Feedback)
	assert.Equal(t, chat.FeedbackPositive, fetched.Steps[0].Feedback.Value)
	assert.Equal(t, "more", fetched.Steps[0].Output)
}

func TestListThreads_PaginationNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedThread(t, store, fmt.Sprintf("thr_%d", i), "u1", base.Add(time.Duration(i)*time.Minute))
	}
	// Another user's thread must not leak into u1's listing.
	seedThread(t, store, "thr_other", "u2", base)

	var seen []string
	cursor := ""
	for {
		page, err := store.ListThreads(ctx, chat.ThreadFilter{UserIdentifier: "u1"}, chat.Page{Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		for _, summary := range page.Threads {
			seen = append(seen, summary.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []string{"thr_4", "thr_3", "thr_2", "thr_1", "thr_0"}, seen)
}

func TestListThreads_SearchText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	owner := "u1"
	_, err := store.CreateUser(ctx, &chat.User{Identifier: owner})
	require.NoError(t, err)
	_, err = store.UpdateThread(ctx, &chat.Thread{ID: "thr_a", Name: strPtr("Budget planning"), UserIdentifier: &owner, CreatedAt: base})
	require.NoError(t, err)
	_, err = store.UpdateThread(ctx, &chat.Thread{ID: "thr_b", Name: strPtr("Travel ideas"), UserIdentifier: &owner, CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	page, err := store.ListThreads(ctx, chat.ThreadFilter{
		UserIdentifier: owner,
		SearchText:     strPtr("budget"),
	}, chat.Page{})
	require.NoError(t, err)
	require.Len(t, page.Threads, 1)
	assert.Equal(t, "thr_a", page.Threads[0].ID)
}

func TestListThreads_FeedbackFilterUnsupported(t *testing.T) {
	store := newTestStore(t)

	value := chat.FeedbackPositive
	_, err := store.ListThreads(context.Background(), chat.ThreadFilter{
		UserIdentifier: "u1",
		FeedbackValue:  &value,
	}, chat.Page{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnsupportedOperation))
	assert.False(t, store.Capabilities().FeedbackValueFilter)
}

func TestUpdateThread_RenameUpdatesListing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := seedThread(t, store, "thr_1", "u1", time.Now().UTC())

	_, err := store.UpdateThread(ctx, &chat.Thread{ID: thread.ID, Name: strPtr("renamed")})
	require.NoError(t, err)

	page, err := store.ListThreads(ctx, chat.ThreadFilter{UserIdentifier: "u1"}, chat.Page{})
	require.NoError(t, err)
	require.Len(t, page.Threads, 1)
	require.NotNil(t, page.Threads[0].Name)
	assert.Equal(t, "renamed", *page.Threads[0].Name)
}

func TestGetThread_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner := "u1"
	_, err := store.CreateUser(ctx, &chat.User{Identifier: owner})
	require.NoError(t, err)
	created := time.Now().UTC().Truncate(time.Second)
	thread, err := store.UpdateThread(ctx, &chat.Thread{
		ID:             "thr_1",
		Name:           strPtr("round trip"),
		UserIdentifier: &owner,
		Tags:           []string{"a", "b"},
		Metadata:       map[string]string{"k": "v"},
		CreatedAt:      created,
	})
	require.NoError(t, err)

	start := created.Add(time.Second)
	parent := "step_parent"
	_, err = store.UpsertStep(ctx, &chat.Step{
		ID:        parent,
		ThreadID:  thread.ID,
		Name:      "run",
		Type:      chat.StepTypeRun,
		Input:     "in",
		Output:    "out",
		StartTime: &start,
		Indent:    0,
		CreatedAt: created.Add(time.Second),
	})
	require.NoError(t, err)
	_, err = store.UpsertStep(ctx, &chat.Step{
		ID:        "step_child",
		ThreadID:  thread.ID,
		Type:      chat.StepTypeTool,
		ParentID:  &parent,
		Indent:    1,
		CreatedAt: created.Add(2 * time.Second),
	})
	require.NoError(t, err)
	_, err = store.UpsertElement(ctx, &chat.Element{
		ID:       "el_1",
		ThreadID: thread.ID,
		Type:     "image",
		Name:     "chart.png",
		URL:      strPtr("https://example.com/chart.png"),
		Display:  chat.DisplayInline,
		Mime:     strPtr("image/png"),
		ForID:    &parent,
	}, nil)
	require.NoError(t, err)

	fetched, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)

	assert.Equal(t, thread.ID, fetched.ID)
	assert.Equal(t, []string{"a", "b"}, fetched.Tags)
	assert.Equal(t, map[string]string{"k": "v"}, fetched.Metadata)
	require.Len(t, fetched.Steps, 2)
	assert.Equal(t, parent, fetched.Steps[0].ID)
	assert.Equal(t, "step_child", fetched.Steps[1].ID)
	require.NotNil(t, fetched.Steps[1].ParentID)
	assert.Equal(t, parent, *fetched.Steps[1].ParentID)
	require.Len(t, fetched.Elements, 1)
	assert.Equal(t, "chart.png", fetched.Elements[0].Name)
	require.NotNil(t, fetched.Elements[0].ForID)
	assert.Equal(t, parent, *fetched.Elements[0].ForID)
}

type mockObjectStorage struct {
	putFunc     func(ctx context.Context, key string, data []byte, contentType string) (storage.Descriptor, error)
	deletedKeys []string
}

func (m *mockObjectStorage) Put(ctx context.Context, key string, data []byte, contentType string) (storage.Descriptor, error) {
	return m.putFunc(ctx, key, data, contentType)
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	m.deletedKeys = append(m.deletedKeys, key)
	return nil
}

func TestUpsertElement_PayloadGoesThroughStorage(t *testing.T) {
	var gotKey string
	objects := &mockObjectStorage{
		putFunc: func(ctx context.Context, key string, data []byte, contentType string) (storage.Descriptor, error) {
			gotKey = key
			return storage.Descriptor{Key: key, URL: "https://cdn.example.com/" + key}, nil
		},
	}

	store, err := keyvalue.Open(t.TempDir(), objects, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	thread := seedThread(t, store, "thr_1", "u1", time.Now().UTC())

	element, err := store.UpsertElement(ctx, &chat.Element{
		ID:       "el_1",
		ThreadID: thread.ID,
		Type:     "file",
		Name:     "notes.txt",
	}, []byte("hello world"))
	require.NoError(t, err)

	require.NotNil(t, element.ObjectKey)
	assert.Equal(t, gotKey, *element.ObjectKey)
	require.NotNil(t, element.URL)
	assert.Contains(t, *element.URL, gotKey)
	require.NotNil(t, element.Mime)
	assert.Contains(t, *element.Mime, "text/plain")

	// Deleting the element cleans the blob up best effort.
	require.NoError(t, store.DeleteElement(ctx, element.ID))
	assert.Equal(t, []string{gotKey}, objects.deletedKeys)
}

func TestHealthCheck(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.HealthCheck(context.Background()))
}
