package chatid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	PrefixThread   = "thr_"
	PrefixStep     = "step_"
	PrefixElement  = "el_"
	PrefixFeedback = "fb_"
)

var (
	entropyOnce sync.Once
	entropyMu   sync.Mutex
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

func newID(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), newEntropy())
	return prefix + strings.ToLower(id.String())
}

// NewThread returns a thr_* ULID string.
func NewThread() string { return newID(PrefixThread) }

// NewStep returns a step_* ULID string.
func NewStep() string { return newID(PrefixStep) }

// NewElement returns an el_* ULID string.
func NewElement() string { return newID(PrefixElement) }

// NewFeedback returns an fb_* ULID string.
func NewFeedback() string { return newID(PrefixFeedback) }

// IsValid reports whether the string is a prefixed ULID.
func IsValid(value, prefix string) bool {
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(strings.TrimPrefix(value, prefix)))
	return err == nil
}
