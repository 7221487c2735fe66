package task

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// previewLimit caps the preview string derived from an item.
const previewLimit = 48

// Target is the per-item execution context. It carries the submitted item,
// its position in submission order, the proxy resolved for it, and a logger
// bound with the task name and the index. Targets are created at submission
// time and never mutated afterwards.
type Target struct {
	// Index is the 0-based submission position of the item. Shuffling a
	// batch changes the order items reach the workers, never this value.
	Index int

	// Data is the submitted item, opaque to the engine.
	Data any

	preview string
	proxy   string
	logger  *zap.Logger
}

// Preview returns a short single-line rendering of Data, used for logging
// and for proxy placeholder substitution.
func (t *Target) Preview() string {
	return t.preview
}

// Proxy returns the proxy string resolved for this item, or empty when
// proxying is disabled or unconfigured.
func (t *Target) Proxy() string {
	return t.proxy
}

// Logger returns a logger bound with the task name and the item index.
func (t *Target) Logger() *zap.Logger {
	if t.logger == nil {
		return zap.NewNop()
	}
	return t.logger
}

func (t *Target) String() string {
	return fmt.Sprintf("target %d (%s)", t.Index, t.preview)
}

// makePreview renders data as a short single-line string. Whitespace runs
// collapse to single spaces and long values are truncated.
func makePreview(data any) string {
	var s string
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		s = v
	case []byte:
		s = string(v)
	case fmt.Stringer:
		s = v.String()
	case error:
		s = v.Error()
	default:
		s = fmt.Sprintf("%v", v)
	}

	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > previewLimit {
		runes := []rune(s)
		s = string(runes[:previewLimit-1]) + "…"
	}
	return s
}
