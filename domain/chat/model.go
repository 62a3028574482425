package chat

import (
	"time"
)

// ===============================================
// Step Types
// ===============================================

// StepType classifies a message/action unit within a thread.
type StepType string

const (
	StepTypeRun              StepType = "run"
	StepTypeTool             StepType = "tool"
	StepTypeLLM              StepType = "llm"
	StepTypeUserMessage      StepType = "user_message"
	StepTypeAssistantMessage StepType = "assistant_message"
	StepTypeSystemMessage    StepType = "system_message"
	StepTypeUndefined        StepType = "undefined"
)

// FeedbackValue is the rating attached to a step: -1, 0 or 1.
type FeedbackValue int

const (
	FeedbackNegative FeedbackValue = -1
	FeedbackNeutral  FeedbackValue = 0
	FeedbackPositive FeedbackValue = 1
)

// Valid reports whether the value is within the rating domain.
func (v FeedbackValue) Valid() bool {
	return v >= FeedbackNegative && v <= FeedbackPositive
}

// ElementDisplay controls how the host renders an element.
type ElementDisplay string

const (
	DisplayInline ElementDisplay = "inline"
	DisplaySide   ElementDisplay = "side"
	DisplayPage   ElementDisplay = "page"
)

// ===============================================
// Entities
// ===============================================

// User is a chat participant. Identifier is the stable, human-assigned
// identity key; everything else is mutable metadata.
type User struct {
	Identifier string            `json:"identifier"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Thread is one conversation session. It owns its steps and elements;
// deleting a thread removes all of them plus any feedback on its steps.
type Thread struct {
	ID             string            `json:"id"`
	Name           *string           `json:"name,omitempty"`
	UserIdentifier *string           `json:"user_identifier,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`

	// Populated by GetThread; never required on write.
	Steps    []Step    `json:"steps,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// Step is one message or action unit within a thread. Steps form a tree
// through ParentID and are updated in place while streaming.
type Step struct {
	ID            string            `json:"id"`
	ThreadID      string            `json:"thread_id"`
	Name          string            `json:"name,omitempty"`
	Type          StepType          `json:"type"`
	ParentID      *string           `json:"parent_id,omitempty"`
	Streaming     bool              `json:"streaming"`
	WaitForAnswer bool              `json:"wait_for_answer"`
	IsError       bool              `json:"is_error"`
	Input         string            `json:"input,omitempty"`
	Output        string            `json:"output,omitempty"`
	StartTime     *time.Time        `json:"start_time,omitempty"`
	EndTime       *time.Time        `json:"end_time,omitempty"`
	Generation    map[string]any    `json:"generation,omitempty"`
	Indent        int               `json:"indent,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`

	// At most one feedback per step; populated on read.
	Feedback *Feedback `json:"feedback,omitempty"`
}

// Merge applies the non-empty fields of incoming on top of the
// receiver. Scalars present in incoming always win (last write wins);
// absent optional fields keep their stored value. Streaming partial
// updates call this repeatedly as content accrues.
func (s *Step) Merge(incoming *Step) {
	if incoming.Name != "" {
		s.Name = incoming.Name
	}
	if incoming.Type != "" {
		s.Type = incoming.Type
	}
	if incoming.ParentID != nil {
		s.ParentID = incoming.ParentID
	}
	if incoming.Input != "" {
		s.Input = incoming.Input
	}
	if incoming.Output != "" {
		s.Output = incoming.Output
	}
	if incoming.StartTime != nil {
		s.StartTime = incoming.StartTime
	}
	if incoming.EndTime != nil {
		s.EndTime = incoming.EndTime
	}
	if incoming.Generation != nil {
		s.Generation = incoming.Generation
	}
	if incoming.Indent != 0 {
		s.Indent = incoming.Indent
	}
	if incoming.Tags != nil {
		s.Tags = incoming.Tags
	}
	if incoming.Metadata != nil {
		s.Metadata = incoming.Metadata
	}
	s.Streaming = incoming.Streaming
	s.WaitForAnswer = incoming.WaitForAnswer
	s.IsError = incoming.IsError
}

// Element is a binary or linked attachment owned by a thread. The
// payload itself lives in object storage; the entity holds either an
// external URL or the object key it was uploaded under.
type Element struct {
	ID        string         `json:"id"`
	ThreadID  string         `json:"thread_id"`
	Type      string         `json:"type"`
	Name      string         `json:"name,omitempty"`
	URL       *string        `json:"url,omitempty"`
	ObjectKey *string        `json:"object_key,omitempty"`
	Display   ElementDisplay `json:"display,omitempty"`
	Size      *string        `json:"size,omitempty"`
	Page      *int           `json:"page,omitempty"`
	Language  *string        `json:"language,omitempty"`
	Mime      *string        `json:"mime,omitempty"`
	ForID     *string        `json:"for_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Feedback rates exactly one step. ThreadID is denormalized from the
// step for lookup; backends keep the two in sync on write.
type Feedback struct {
	ID       string        `json:"id"`
	StepID   string        `json:"step_id"`
	ThreadID string        `json:"thread_id"`
	Value    FeedbackValue `json:"value"`
	Comment  *string       `json:"comment,omitempty"`
}
