package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"chatstore/domain/chat"
)

// User represents the database schema for users.
type User struct {
	Identifier string    `gorm:"type:varchar(128);primaryKey"`
	Metadata   JSONMap   `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`

	Threads []Thread `gorm:"foreignKey:UserIdentifier;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for User.
func (User) TableName() string {
	return "users"
}

// Thread represents the database schema for threads.
type Thread struct {
	ID             string         `gorm:"type:varchar(64);primaryKey"`
	Name           *string        `gorm:"type:varchar(256)"`
	UserIdentifier *string        `gorm:"type:varchar(128);index:idx_threads_user_created,priority:1"`
	Tags           datatypes.JSON `gorm:"type:jsonb"`
	Metadata       JSONMap        `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index:idx_threads_user_created,priority:2"`

	Steps    []Step     `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
	Elements []Element  `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
	Feedback []Feedback `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Thread.
func (Thread) TableName() string {
	return "threads"
}

// Step represents the database schema for steps.
type Step struct {
	ID            string         `gorm:"type:varchar(64);primaryKey"`
	ThreadID      string         `gorm:"type:varchar(64);index;not null"`
	Name          string         `gorm:"type:varchar(256)"`
	Type          string         `gorm:"type:varchar(32);not null;default:'undefined'"`
	ParentID      *string        `gorm:"type:varchar(64)"`
	Streaming     bool           `gorm:"not null;default:false"`
	WaitForAnswer bool           `gorm:"not null;default:false"`
	IsError       bool           `gorm:"not null;default:false"`
	Input         string         `gorm:"type:text"`
	Output        string         `gorm:"type:text"`
	StartTime     *time.Time     `gorm:"type:timestamp"`
	EndTime       *time.Time     `gorm:"type:timestamp"`
	Generation    datatypes.JSON `gorm:"type:jsonb"`
	Indent        int            `gorm:"not null;default:0"`
	Tags          datatypes.JSON `gorm:"type:jsonb"`
	Metadata      JSONMap        `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index"`

	Feedback *Feedback `gorm:"foreignKey:StepID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Step.
func (Step) TableName() string {
	return "steps"
}

// Element represents the database schema for elements.
type Element struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	ThreadID  string    `gorm:"type:varchar(64);index;not null"`
	Type      string    `gorm:"type:varchar(32)"`
	Name      string    `gorm:"type:varchar(256)"`
	URL       *string   `gorm:"type:text"`
	ObjectKey *string   `gorm:"type:text"`
	Display   string    `gorm:"type:varchar(16)"`
	Size      *string   `gorm:"type:varchar(16)"`
	Page      *int      `gorm:""`
	Language  *string   `gorm:"type:varchar(32)"`
	Mime      *string   `gorm:"type:varchar(128)"`
	ForID     *string   `gorm:"type:varchar(64)"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for Element.
func (Element) TableName() string {
	return "elements"
}

// Feedback represents the database schema for feedback. StepID carries a
// unique index so at most one feedback exists per step.
type Feedback struct {
	ID       string  `gorm:"type:varchar(64);primaryKey"`
	StepID   string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	ThreadID string  `gorm:"type:varchar(64);index;not null"`
	Value    int     `gorm:"not null;default:0"`
	Comment  *string `gorm:"type:text"`
}

// TableName specifies the table name for Feedback.
func (Feedback) TableName() string {
	return "feedbacks"
}

// ===============================================
// JSON Types for GORM
// ===============================================

// JSONMap is a custom type for map[string]string stored as JSON
type JSONMap map[string]string

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ===============================================
// Conversion Functions
// ===============================================

// EtoD converts database entity to domain model
func (u *User) EtoD() *chat.User {
	metadata := map[string]string{}
	if u.Metadata != nil {
		metadata = u.Metadata
	}
	return &chat.User{
		Identifier: u.Identifier,
		Metadata:   metadata,
		CreatedAt:  u.CreatedAt,
	}
}

// NewSchemaUser creates a database entity from domain model
func NewSchemaUser(u *chat.User) *User {
	return &User{
		Identifier: u.Identifier,
		Metadata:   u.Metadata,
		CreatedAt:  u.CreatedAt,
	}
}

// EtoD converts database entity to domain model
func (t *Thread) EtoD() *chat.Thread {
	thread := &chat.Thread{
		ID:             t.ID,
		Name:           t.Name,
		UserIdentifier: t.UserIdentifier,
		Tags:           decodeStrings(t.Tags),
		Metadata:       t.Metadata,
		CreatedAt:      t.CreatedAt,
	}
	for i := range t.Steps {
		thread.Steps = append(thread.Steps, *t.Steps[i].EtoD())
	}
	for i := range t.Elements {
		thread.Elements = append(thread.Elements, *t.Elements[i].EtoD())
	}
	return thread
}

// NewSchemaThread creates a database entity from domain model
func NewSchemaThread(t *chat.Thread) *Thread {
	return &Thread{
		ID:             t.ID,
		Name:           t.Name,
		UserIdentifier: t.UserIdentifier,
		Tags:           encodeStrings(t.Tags),
		Metadata:       t.Metadata,
		CreatedAt:      t.CreatedAt,
	}
}

// EtoD converts database entity to domain model
func (s *Step) EtoD() *chat.Step {
	step := &chat.Step{
		ID:            s.ID,
		ThreadID:      s.ThreadID,
		Name:          s.Name,
		Type:          chat.StepType(s.Type),
		ParentID:      s.ParentID,
		Streaming:     s.Streaming,
		WaitForAnswer: s.WaitForAnswer,
		IsError:       s.IsError,
		Input:         s.Input,
		Output:        s.Output,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Generation:    decodeMap(s.Generation),
		Indent:        s.Indent,
		Tags:          decodeStrings(s.Tags),
		Metadata:      s.Metadata,
		CreatedAt:     s.CreatedAt,
	}
	if s.Feedback != nil {
		step.Feedback = s.Feedback.EtoD()
	}
	return step
}

// NewSchemaStep creates a database entity from domain model
func NewSchemaStep(s *chat.Step) *Step {
	return &Step{
		ID:            s.ID,
		ThreadID:      s.ThreadID,
		Name:          s.Name,
		Type:          string(s.Type),
		ParentID:      s.ParentID,
		Streaming:     s.Streaming,
		WaitForAnswer: s.WaitForAnswer,
		IsError:       s.IsError,
		Input:         s.Input,
		Output:        s.Output,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Generation:    encodeMap(s.Generation),
		Indent:        s.Indent,
		Tags:          encodeStrings(s.Tags),
		Metadata:      s.Metadata,
		CreatedAt:     s.CreatedAt,
	}
}

// EtoD converts database entity to domain model
func (e *Element) EtoD() *chat.Element {
	return &chat.Element{
		ID:        e.ID,
		ThreadID:  e.ThreadID,
		Type:      e.Type,
		Name:      e.Name,
		URL:       e.URL,
		ObjectKey: e.ObjectKey,
		Display:   chat.ElementDisplay(e.Display),
		Size:      e.Size,
		Page:      e.Page,
		Language:  e.Language,
		Mime:      e.Mime,
		ForID:     e.ForID,
		CreatedAt: e.CreatedAt,
	}
}

// NewSchemaElement creates a database entity from domain model
func NewSchemaElement(e *chat.Element) *Element {
	return &Element{
		ID:        e.ID,
		ThreadID:  e.ThreadID,
		Type:      e.Type,
		Name:      e.Name,
		URL:       e.URL,
		ObjectKey: e.ObjectKey,
		Display:   string(e.Display),
		Size:      e.Size,
		Page:      e.Page,
		Language:  e.Language,
		Mime:      e.Mime,
		ForID:     e.ForID,
		CreatedAt: e.CreatedAt,
	}
}

// EtoD converts database entity to domain model
func (f *Feedback) EtoD() *chat.Feedback {
	return &chat.Feedback{
		ID:       f.ID,
		StepID:   f.StepID,
		ThreadID: f.ThreadID,
		Value:    chat.FeedbackValue(f.Value),
		Comment:  f.Comment,
	}
}

// NewSchemaFeedback creates a database entity from domain model
func NewSchemaFeedback(f *chat.Feedback) *Feedback {
	return &Feedback{
		ID:       f.ID,
		StepID:   f.StepID,
		ThreadID: f.ThreadID,
		Value:    int(f.Value),
		Comment:  f.Comment,
	}
}

func encodeStrings(values []string) datatypes.JSON {
	if values == nil {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func encodeMap(values map[string]any) datatypes.JSON {
	if values == nil {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}

func decodeMap(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	values := map[string]any{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
