package regionfx

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
)

// Params holds effect parameters. Values are numbers or lists of numbers,
// as they arrive from JSON or query strings.
type Params map[string]any

// reader pulls typed values out of Params, keeping the first failure.
type reader struct {
	kind string
	p    Params
	used map[string]bool
	err  error
}

func newReader(kind string, p Params) *reader {
	return &reader{kind: kind, p: p, used: map[string]bool{}}
}

func (r *reader) fail(name string, format string, args ...any) {
	if r.err == nil {
		r.err = apperrors.NewOpError("process_region", r.kind,
			fmt.Errorf("param %q: %s: %w", name, fmt.Sprintf(format, args...), apperrors.ErrInvalidParameter))
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// num returns the named number, def when absent. Values outside [lo, hi]
// are rejected rather than clamped.
func (r *reader) num(name string, def, lo, hi float64) float64 {
	r.used[name] = true
	v, ok := r.p[name]
	if !ok || v == nil {
		return def
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		r.fail(name, "not a number: %v", v)
		return def
	}
	if f < lo || f > hi {
		r.fail(name, "%v outside [%v, %v]", f, lo, hi)
		return def
	}
	return f
}

func (r *reader) int(name string, def, lo, hi int) int {
	f := r.num(name, float64(def), float64(lo), float64(hi))
	if f != math.Trunc(f) {
		r.fail(name, "%v is not an integer", f)
		return def
	}
	return int(f)
}

func (r *reader) has(name string) bool {
	_, ok := r.p[name]
	return ok
}

// list returns the named list of numbers; nil when absent.
func (r *reader) list(name string, n int) []float64 {
	r.used[name] = true
	v, ok := r.p[name]
	if !ok || v == nil {
		return nil
	}
	var out []float64
	switch x := v.(type) {
	case []float64:
		out = append(out, x...)
	case []any:
		for _, e := range x {
			f, ok := toFloat(e)
			if !ok {
				r.fail(name, "element %v is not a number", e)
				return nil
			}
			out = append(out, f)
		}
	default:
		r.fail(name, "not a list: %v", v)
		return nil
	}
	if n > 0 && len(out) != n {
		r.fail(name, "want %d values, got %d", n, len(out))
		return nil
	}
	return out
}

// unknown rejects parameters the kind never asked for.
func (r *reader) unknown() {
	var names []string
	for name := range r.p {
		if !r.used[name] {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		r.fail(names[0], "unknown parameter (have %s)", strings.Join(names, ", "))
	}
}
