package chatid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_PrefixedAndValid(t *testing.T) {
	tests := []struct {
		name   string
		newID  func() string
		prefix string
	}{
		{"thread", NewThread, PrefixThread},
		{"step", NewStep, PrefixStep},
		{"element", NewElement, PrefixElement},
		{"feedback", NewFeedback, PrefixFeedback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.newID()
			assert.True(t, strings.HasPrefix(id, tt.prefix))
			assert.True(t, IsValid(id, tt.prefix))
			assert.Equal(t, id, strings.ToLower(id))
		})
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewStep()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewID_Sortable(t *testing.T) {
	first := NewThread()
	second := NewThread()
	assert.True(t, first < second)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewThread(), PrefixThread))
	assert.False(t, IsValid(NewThread(), PrefixStep))
	assert.False(t, IsValid("thr_", PrefixThread))
	assert.False(t, IsValid("thr_not-a-ulid", PrefixThread))
	assert.False(t, IsValid("", PrefixThread))
}
