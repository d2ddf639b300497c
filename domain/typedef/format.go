package typedef

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// FormatFunc converts a raw parsed primitive (string or float64) into
// its richer Go representation, returning an error the parser wraps
// into a ValidationError if the formatter rejects it.
type FormatFunc func(raw interface{}) (interface{}, error)

var (
	formatMu  sync.RWMutex
	formats   = map[string]FormatFunc{}
	validate  = validator.New()
)

func init() {
	RegisterFormat("date", dateFormat)
	RegisterFormat("date-time", dateTimeFormat)
	RegisterFormat("integer", integerFormat)
}

// RegisterFormat installs a named formatter, letting callers extend the
// built-in set with custom validators rather than a hand-rolled
// dispatcher, the same extension point go-playground/validator exposes
// for custom tags.
func RegisterFormat(name string, fn FormatFunc) {
	formatMu.Lock()
	defer formatMu.Unlock()
	formats[name] = fn
}

// LookupFormat retrieves a previously registered formatter.
func LookupFormat(name string) (FormatFunc, bool) {
	formatMu.RLock()
	defer formatMu.RUnlock()
	fn, ok := formats[name]
	return fn, ok
}

func dateFormat(raw interface{}) (interface{}, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("format %q expects a string, got %T", "date", raw)
	}
	if err := validate.Var(s, "datetime=2006-01-02"); err != nil {
		return nil, fmt.Errorf("format %q: %w", "date", err)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("format %q: %w", "date", err)
	}
	return t, nil
}

func dateTimeFormat(raw interface{}) (interface{}, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("format %q expects a string, got %T", "date-time", raw)
	}
	if err := validate.Var(s, "datetime=2006-01-02T15:04:05Z07:00"); err != nil {
		return nil, fmt.Errorf("format %q: %w", "date-time", err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("format %q: %w", "date-time", err)
	}
	return t, nil
}

func integerFormat(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("format %q: %v is not an integral value", "integer", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("format %q: %w", "integer", err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("format %q expects a number or numeric string, got %T", "integer", raw)
	}
}
