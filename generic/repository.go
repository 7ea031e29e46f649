/*
repository.go - CRUD and query over one collection

PURPOSE:
  A Repository binds one named collection of the artifact to a Go type and
  gives it create/get/list/update/delete. Every entity in the hr package is
  one instantiation of this engine; the only per-entity code is validation,
  uniqueness rules, canonical order, and typed filters.

OPERATIONS:
  Create:  allocate id (NextID), stamp created_at/updated_at, append, persist
  CreateAll: same for a batch, one save for all of them
  Get:     linear scan; absent is (zero, false, nil)
  List:    AND of filters, then canonical order
  Update:  mutate a copy, keep id/created_at, refresh updated_at, persist;
           absent id returns (zero, false, nil) and writes nothing
  Delete:  remove and persist; absent id returns false and writes nothing
  DeleteWhere: bulk remove in one save (used for pruning)
  Replace: remove matches and create a batch in the same save

COPIES:
  Records go in and come out as copies. A type with pointer fields
  implements Cloner so those copies do not share memory with the snapshot.

CANONICAL ORDER:
  created_at descending (most recent first), ties broken by id descending.
  Collections can replace it with WithOrder; the id tiebreak always applies.

ROLLBACK:
  Each mutation hands the Store an undo closure restoring the previous
  slice or element. If the full-state save fails the Store runs it, so a
  failed Create leaves no appended record behind.

EXAMPLE:
  repo := generic.NewRepository[Employee, EmployeeID](store, "employees",
      generic.WithUnique("employee_code", func(e Employee) string { return e.Code }),
  )
  emp, err := repo.Create(ctx, Employee{Code: "EMP001"})
  hr, err := repo.List(ctx, generic.Equal(func(e Employee) string { return e.Department }, "HR"))

SEE ALSO:
  - store.go: mutate/view and persistence
  - filter.go: Filter helpers
*/
package generic

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// =============================================================================
// OPTIONS
// =============================================================================

// RepoOption configures a Repository.
type RepoOption[T any] func(*repoConfig[T])

type repoConfig[T any] struct {
	order      func(a, b T) int
	validators []func(T) error
	uniques    []uniqueRule[T]
}

type uniqueRule[T any] struct {
	label string
	key   func(T) string
}

// WithOrder replaces the canonical created_at-descending order.
func WithOrder[T any](order func(a, b T) int) RepoOption[T] {
	return func(c *repoConfig[T]) { c.order = order }
}

// WithValidator adds a check run before every create and update.
// Return an error wrapping ErrInvalidRecord (see Invalid).
func WithValidator[T any](validate func(T) error) RepoOption[T] {
	return func(c *repoConfig[T]) { c.validators = append(c.validators, validate) }
}

// WithUnique rejects a record whose key equals another record's key.
// Empty keys are not checked. Normalize case inside key if needed.
func WithUnique[T any](label string, key func(T) string) RepoOption[T] {
	return func(c *repoConfig[T]) { c.uniques = append(c.uniques, uniqueRule[T]{label: label, key: key}) }
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Cloner is implemented by records holding pointers, maps or slices.
// Clone returns a copy that shares no memory with the receiver.
type Cloner[T any] interface {
	Clone() T
}

func clone[T any](rec T) T {
	if c, ok := any(rec).(Cloner[T]); ok {
		return c.Clone()
	}
	return rec
}

// Repository is the CRUD + query interface bound to one collection.
type Repository[T any, K Key, PT interface {
	*T
	Record[K]
}] struct {
	store *Store
	name  string
	items []T
	cfg   repoConfig[T]
}

// NewRepository registers collection name with store.
// Registering the same name twice on one store panics.
func NewRepository[T any, K Key, PT interface {
	*T
	Record[K]
}](store *Store, name string, opts ...RepoOption[T]) *Repository[T, K, PT] {
	r := &Repository[T, K, PT]{store: store, name: name}
	for _, opt := range opts {
		opt(&r.cfg)
	}
	if r.cfg.order == nil {
		r.cfg.order = func(a, b T) int {
			return PT(&b).Stamp().CreatedAt.Compare(PT(&a).Stamp().CreatedAt)
		}
	}
	store.register(r)
	return r
}

// Name returns the collection name.
func (r *Repository[T, K, PT]) Name() string { return r.name }

func (r *Repository[T, K, PT]) compare(a, b T) int {
	if c := r.cfg.order(a, b); c != 0 {
		return c
	}
	return cmp.Compare(PT(&b).Key(), PT(&a).Key())
}

func (r *Repository[T, K, PT]) indexOf(id K) int {
	for i := range r.items {
		if PT(&r.items[i]).Key() == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// WRITES
// =============================================================================

// Create assigns the next id, stamps the record, appends it and persists.
// Any id already set on rec is ignored.
func (r *Repository[T, K, PT]) Create(ctx context.Context, rec T) (T, error) {
	var id K
	rec = clone(rec)
	err := r.store.mutate(ctx, func() (func(), error) {
		id = NextID[T, K, PT](r.items)
		p := PT(&rec)
		p.SetKey(id)
		now := r.store.clock()
		p.Stamp().CreatedAt = now
		p.Stamp().UpdatedAt = now

		if err := r.check(rec); err != nil {
			return nil, &RecordError{Collection: r.name, Op: "create", Err: err}
		}

		prev := r.items
		r.items = append(slices.Clip(r.items), rec)
		return func() { r.items = prev }, nil
	})
	if err != nil {
		var zero T
		return zero, r.wrap(err, "create", id)
	}
	return clone(rec), nil
}

// CreateAll creates recs with consecutive ids in a single save. Either all
// of them are stored or none are.
func (r *Repository[T, K, PT]) CreateAll(ctx context.Context, recs []T) ([]T, error) {
	if len(recs) == 0 {
		return []T{}, nil
	}
	var out []T
	err := r.store.mutate(ctx, func() (func(), error) {
		prev := r.items
		items, created, err := r.appendAll(slices.Clip(r.items), recs)
		if err != nil {
			return nil, err
		}
		r.items, out = items, created
		return func() { r.items = prev }, nil
	})
	if err != nil {
		return nil, r.wrap(err, "create", 0)
	}
	return out, nil
}

// Replace removes every record matching filters and creates recs in their
// place, all in one save. If validation or the save fails, neither the
// removal nor the creation happens. Returns the number removed and the
// created records.
func (r *Repository[T, K, PT]) Replace(ctx context.Context, recs []T, filters ...Filter[T]) (int, []T, error) {
	if len(filters) == 0 {
		return 0, nil, fmt.Errorf("%s replace: %w", r.name, Invalid("at least one filter is required"))
	}
	removed := 0
	out := []T{}
	err := r.store.mutate(ctx, func() (func(), error) {
		prev := r.items
		kept := make([]T, 0, len(r.items)+len(recs))
		for _, rec := range r.items {
			if !Match(rec, filters...) {
				kept = append(kept, rec)
			}
		}
		if len(kept) == len(r.items) && len(recs) == 0 {
			return nil, nil
		}
		items, created, err := r.appendAll(kept, recs)
		if err != nil {
			return nil, err
		}
		removed = len(prev) - len(kept)
		r.items, out = items, created
		return func() { r.items = prev }, nil
	})
	if err != nil {
		return 0, nil, r.wrap(err, "replace", 0)
	}
	return removed, out, nil
}

// appendAll stamps recs and appends them to items, checking each against
// the records before it. The caller installs the returned slice; on error
// r.items is back to what it was on entry.
func (r *Repository[T, K, PT]) appendAll(items []T, recs []T) ([]T, []T, error) {
	prev := r.items
	out := make([]T, len(recs))
	now := r.store.clock()
	for i, rec := range recs {
		rec = clone(rec)
		p := PT(&rec)
		p.SetKey(NextID[T, K, PT](items))
		p.Stamp().CreatedAt = now
		p.Stamp().UpdatedAt = now
		r.items = items
		if err := r.check(rec); err != nil {
			r.items = prev
			return nil, nil, &RecordError{Collection: r.name, Op: "create", Err: err}
		}
		items = append(items, rec)
		out[i] = clone(rec)
	}
	return items, out, nil
}

// Update applies mutate to a copy of the record and persists the result.
// The id and created_at cannot be changed; updated_at is always refreshed,
// even when mutate changes nothing. Returns (zero, false, nil) when id is
// absent, without persisting.
func (r *Repository[T, K, PT]) Update(ctx context.Context, id K, mutate func(*T) error) (T, bool, error) {
	var out T
	found := false
	err := r.store.mutate(ctx, func() (func(), error) {
		i := r.indexOf(id)
		if i < 0 {
			return nil, nil
		}
		found = true
		old := r.items[i]
		work := clone(old)
		if mutate != nil {
			if err := mutate(&work); err != nil {
				return nil, &RecordError{Collection: r.name, Op: "update", ID: int64(id), Err: err}
			}
		}

		p := PT(&work)
		p.SetKey(id)
		p.Stamp().CreatedAt = PT(&old).Stamp().CreatedAt
		p.Stamp().UpdatedAt = laterThan(r.store.clock(), PT(&old).Stamp().UpdatedAt)

		if err := r.check(work); err != nil {
			return nil, &RecordError{Collection: r.name, Op: "update", ID: int64(id), Err: err}
		}

		r.items[i] = work
		out = clone(work)
		return func() { r.items[i] = old }, nil
	})
	if err != nil {
		var zero T
		return zero, false, r.wrap(err, "update", id)
	}
	return out, found, nil
}

// Delete removes the record with id. Returns false, and does not persist,
// when there is no such record.
func (r *Repository[T, K, PT]) Delete(ctx context.Context, id K) (bool, error) {
	removed := false
	err := r.store.mutate(ctx, func() (func(), error) {
		i := r.indexOf(id)
		if i < 0 {
			return nil, nil
		}
		prev := r.items
		r.items = slices.Delete(slices.Clone(r.items), i, i+1)
		removed = true
		return func() { r.items = prev }, nil
	})
	if err != nil {
		return false, r.wrap(err, "delete", id)
	}
	return removed, nil
}

// DeleteWhere removes every record matching filters in a single save and
// returns how many went. No filters is refused rather than emptying the
// collection. Nothing is written when nothing matches.
func (r *Repository[T, K, PT]) DeleteWhere(ctx context.Context, filters ...Filter[T]) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("%s delete: %w", r.name, Invalid("at least one filter is required"))
	}
	removed := 0
	err := r.store.mutate(ctx, func() (func(), error) {
		kept := make([]T, 0, len(r.items))
		for _, rec := range r.items {
			if Match(rec, filters...) {
				continue
			}
			kept = append(kept, rec)
		}
		removed = len(r.items) - len(kept)
		if removed == 0 {
			return nil, nil
		}
		prev := r.items
		r.items = kept
		return func() { r.items = prev }, nil
	})
	if err != nil {
		return 0, r.wrap(err, "delete", 0)
	}
	return removed, nil
}

func (r *Repository[T, K, PT]) check(rec T) error {
	for _, validate := range r.cfg.validators {
		if err := validate(rec); err != nil {
			return err
		}
	}
	self := PT(&rec).Key()
	for _, u := range r.cfg.uniques {
		key := u.key(rec)
		if key == "" {
			continue
		}
		for i := range r.items {
			other := PT(&r.items[i])
			if other.Key() == self {
				continue
			}
			if u.key(r.items[i]) == key {
				return fmt.Errorf("%w: %s %q already used by id %d", ErrDuplicate, u.label, key, int64(other.Key()))
			}
		}
	}
	return nil
}

func (r *Repository[T, K, PT]) wrap(err error, op string, id K) error {
	var pe *PersistError
	if errors.As(err, &pe) {
		pe.Collection, pe.Op, pe.ID = r.name, op, int64(id)
		return pe
	}
	var re *RecordError
	if errors.As(err, &re) {
		return re
	}
	if id != 0 {
		return fmt.Errorf("%s %s id=%d: %w", r.name, op, int64(id), err)
	}
	return fmt.Errorf("%s %s: %w", r.name, op, err)
}

// laterThan returns now, nudged past prev if the clock has not moved.
func laterThan(now, prev time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// =============================================================================
// READS
// =============================================================================

// Get returns the record with id. Absent is (zero, false, nil), not an error.
func (r *Repository[T, K, PT]) Get(ctx context.Context, id K) (T, bool, error) {
	var out T
	found := false
	err := r.store.view(ctx, func() error {
		if i := r.indexOf(id); i >= 0 {
			out, found = clone(r.items[i]), true
		}
		return nil
	})
	if err != nil {
		return out, false, r.wrap(err, "get", id)
	}
	return out, found, nil
}

// List returns records matching every filter, in canonical order.
// No filters returns the whole collection.
func (r *Repository[T, K, PT]) List(ctx context.Context, filters ...Filter[T]) ([]T, error) {
	out := make([]T, 0)
	err := r.store.view(ctx, func() error {
		for _, rec := range r.items {
			if Match(rec, filters...) {
				out = append(out, clone(rec))
			}
		}
		return nil
	})
	if err != nil {
		return nil, r.wrap(err, "list", 0)
	}
	slices.SortStableFunc(out, r.compare)
	return out, nil
}

// Find returns the first match in canonical order.
func (r *Repository[T, K, PT]) Find(ctx context.Context, filters ...Filter[T]) (T, bool, error) {
	var zero T
	all, err := r.List(ctx, filters...)
	if err != nil || len(all) == 0 {
		return zero, false, err
	}
	return all[0], true, nil
}

// Count returns how many records match every filter.
func (r *Repository[T, K, PT]) Count(ctx context.Context, filters ...Filter[T]) (int, error) {
	n := 0
	err := r.store.view(ctx, func() error {
		for _, rec := range r.items {
			if Match(rec, filters...) {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, r.wrap(err, "count", 0)
	}
	return n, nil
}

// =============================================================================
// COLLECTION (store side)
// =============================================================================

func (r *Repository[T, K, PT]) collectionName() string { return r.name }

func (r *Repository[T, K, PT]) size() int { return len(r.items) }

func (r *Repository[T, K, PT]) decode(raw json.RawMessage) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		r.items = nil
		return nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	seen := make(map[K]struct{}, len(items))
	for i := range items {
		k := PT(&items[i]).Key()
		if k <= 0 {
			return fmt.Errorf("record %d has invalid id %d", i, int64(k))
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("id %d appears more than once", int64(k))
		}
		seen[k] = struct{}{}
	}
	r.items = items
	return nil
}

func (r *Repository[T, K, PT]) encode() (json.RawMessage, error) {
	if len(r.items) == 0 {
		return json.RawMessage("[]"), nil
	}
	return json.Marshal(r.items)
}
