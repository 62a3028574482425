package chat

import "context"

// ThreadFilter narrows ListThreads. UserIdentifier is required; the
// optional filters are capability-dependent (see Capability).
type ThreadFilter struct {
	UserIdentifier string
	SearchText     *string
	FeedbackValue  *FeedbackValue
}

// Page requests one page of results. Cursor is an opaque token owned by
// the backend that produced it; an empty cursor starts from the top.
type Page struct {
	Cursor string
	Limit  int
}

// DefaultPageLimit applies when Page.Limit is zero or negative.
const DefaultPageLimit = 20

// ThreadSummary is the listing projection of a thread.
type ThreadSummary struct {
	ID             string  `json:"id"`
	Name           *string `json:"name,omitempty"`
	UserIdentifier *string `json:"user_identifier,omitempty"`
	CreatedAt      int64   `json:"created_at_unix"`
}

// ThreadPage is one page of thread summaries ordered by creation time
// descending. NextCursor is empty when no further page exists.
type ThreadPage struct {
	Threads    []ThreadSummary
	NextCursor string
}

// Capability describes which optional contract features the active
// backend supports, so callers can detect divergence instead of
// discovering it through errors.
type Capability struct {
	// FeedbackValueFilter reports whether ListThreads honors
	// ThreadFilter.FeedbackValue.
	FeedbackValueFilter bool
}

// Store is the persistence contract every backend implements. Semantics
// are identical regardless of the storage engine behind it.
//
// All upserts are idempotent by id. Deletes are idempotent by design:
// a second delete of the same entity reports a typed NOT_FOUND rather
// than an engine error. Backends translate engine failures into the
// platformerrors taxonomy and never leak engine error types.
type Store interface {
	// GetUser fetches a user by identifier. Typed NOT_FOUND when absent.
	GetUser(ctx context.Context, identifier string) (*User, error)
	// CreateUser upserts a user; identifier is the natural key. When the
	// user exists only metadata is replaced.
	CreateUser(ctx context.Context, user *User) (*User, error)
	// DeleteUser removes a user and cascades to every thread they own.
	DeleteUser(ctx context.Context, identifier string) error

	// UpdateThread upserts a thread header, merging name/user/tags/
	// metadata over any stored values.
	UpdateThread(ctx context.Context, thread *Thread) (*Thread, error)
	// GetThread returns a thread with nested steps (feedback attached)
	// and elements, ordered by creation time then id.
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	// DeleteThread removes the thread and everything it owns: steps,
	// elements and feedback on its steps.
	DeleteThread(ctx context.Context, threadID string) error
	// ListThreads pages a user's threads, newest first.
	ListThreads(ctx context.Context, filter ThreadFilter, page Page) (*ThreadPage, error)

	// UpsertStep creates or merges a step. The referenced thread must
	// exist (REFERENTIAL_VIOLATION otherwise).
	UpsertStep(ctx context.Context, step *Step) (*Step, error)
	DeleteStep(ctx context.Context, stepID string) error

	// UpsertElement creates or replaces an element. When payload is
	// non-nil it is written through the object-storage client first and
	// the element stores the resulting key and URL.
	UpsertElement(ctx context.Context, element *Element, payload []byte) (*Element, error)
	GetElement(ctx context.Context, threadID, elementID string) (*Element, error)
	DeleteElement(ctx context.Context, elementID string) error

	// UpsertFeedback creates or replaces the single feedback for a step.
	// ThreadID is forced to the step's thread regardless of input.
	UpsertFeedback(ctx context.Context, feedback *Feedback) (*Feedback, error)
	DeleteFeedback(ctx context.Context, feedbackID string) error

	// Capabilities reports optional feature support for this backend.
	Capabilities() Capability
	// HealthCheck verifies the underlying engine is reachable.
	HealthCheck(ctx context.Context) error
	// Close releases engine handles owned by the store.
	Close() error
}
