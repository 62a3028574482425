package chat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatstore/domain/chat"
)

func TestStep_Merge(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Second)
	parent := "step_parent"

	tests := []struct {
		name     string
		stored   chat.Step
		incoming chat.Step
		check    func(t *testing.T, merged chat.Step)
	}{
		{
			name: "streaming completion fills output and end time",
			stored: chat.Step{
				Type:      chat.StepTypeLLM,
				Output:    "partial",
				StartTime: &start,
				Streaming: true,
			},
			incoming: chat.Step{
				Output:  "complete",
				EndTime: &end,
			},
			check: func(t *testing.T, merged chat.Step) {
				assert.Equal(t, "complete", merged.Output)
				assert.Equal(t, chat.StepTypeLLM, merged.Type)
				assert.Equal(t, &start, merged.StartTime)
				assert.Equal(t, &end, merged.EndTime)
				assert.False(t, merged.Streaming)
			},
		},
		{
			name: "absent optional fields keep stored values",
			stored: chat.Step{
				Name:     "call",
				Type:     chat.StepTypeTool,
				ParentID: &parent,
				Input:    "{}",
				Indent:   2,
				Tags:     []string{"a"},
			},
			incoming: chat.Step{IsError: true},
			check: func(t *testing.T, merged chat.Step) {
				assert.Equal(t, "call", merged.Name)
				assert.Equal(t, &parent, merged.ParentID)
				assert.Equal(t, "{}", merged.Input)
				assert.Equal(t, 2, merged.Indent)
				assert.Equal(t, []string{"a"}, merged.Tags)
				assert.True(t, merged.IsError)
			},
		},
		{
			name:     "incoming maps replace stored maps wholesale",
			stored:   chat.Step{Metadata: map[string]string{"a": "1", "b": "2"}},
			incoming: chat.Step{Metadata: map[string]string{"c": "3"}},
			check: func(t *testing.T, merged chat.Step) {
				assert.Equal(t, map[string]string{"c": "3"}, merged.Metadata)
			},
		},
		{
			name:     "last write wins on identical fields",
			stored:   chat.Step{Output: "first"},
			incoming: chat.Step{Output: "second"},
			check: func(t *testing.T, merged chat.Step) {
				assert.Equal(t, "second", merged.Output)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := tt.stored
			merged.Merge(&tt.incoming)
			tt.check(t, merged)
		})
	}
}

func TestFeedbackValue_Valid(t *testing.T) {
	assert.True(t, chat.FeedbackNegative.Valid())
	assert.True(t, chat.FeedbackNeutral.Valid())
	assert.True(t, chat.FeedbackPositive.Valid())
	assert.False(t, chat.FeedbackValue(2).Valid())
	assert.False(t, chat.FeedbackValue(-2).Valid())
}
