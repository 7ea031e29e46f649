package generic

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// FILTER - Predicates combined with AND
// =============================================================================

// Filter selects records. A nil Filter matches everything.
type Filter[T any] func(T) bool

// Match reports whether rec satisfies every filter.
func Match[T any](rec T, filters ...Filter[T]) bool {
	for _, f := range filters {
		if f != nil && !f(rec) {
			return false
		}
	}
	return true
}

// Equal matches records whose field equals want.
func Equal[T any, V comparable](get func(T) V, want V) Filter[T] {
	return func(rec T) bool { return get(rec) == want }
}

// In matches records whose field is one of values.
func In[T any, V comparable](get func(T) V, values ...V) Filter[T] {
	set := make(map[V]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return func(rec T) bool {
		_, ok := set[get(rec)]
		return ok
	}
}

// Search matches records where term is a case-insensitive substring of at
// least one of fields. An empty term matches everything.
func Search[T any](term string, fields ...func(T) string) Filter[T] {
	needle := Fold(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}
	return func(rec T) bool {
		for _, field := range fields {
			if strings.Contains(Fold(field(rec)), needle) {
				return true
			}
		}
		return false
	}
}

// Within matches records whose date lies in p (inclusive).
func Within[T any](get func(T) TimePoint, p Period) Filter[T] {
	if p.IsOpen() {
		return nil
	}
	return func(rec T) bool { return p.Contains(get(rec)) }
}

// Between matches records whose value lies in [lo, hi]. A nil bound is open.
func Between[T any](get func(T) decimal.Decimal, lo, hi *decimal.Decimal) Filter[T] {
	if lo == nil && hi == nil {
		return nil
	}
	return func(rec T) bool {
		v := get(rec)
		if lo != nil && v.LessThan(*lo) {
			return false
		}
		if hi != nil && v.GreaterThan(*hi) {
			return false
		}
		return true
	}
}

// Not inverts f.
func Not[T any](f Filter[T]) Filter[T] {
	if f == nil {
		return func(T) bool { return false }
	}
	return func(rec T) bool { return !f(rec) }
}

// Any matches when at least one of filters matches.
func Any[T any](filters ...Filter[T]) Filter[T] {
	return func(rec T) bool {
		for _, f := range filters {
			if f == nil || f(rec) {
				return true
			}
		}
		return false
	}
}

// Fold normalizes s for case-insensitive comparison: NFC composition, then
// Unicode case folding. Both sides of a comparison must go through it.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(s))
}
