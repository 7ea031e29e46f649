/*
Package generic provides the core document store engine.

PURPOSE:
  This package contains the domain-agnostic half of hrstore: one persistent
  document holding named collections of records, a repository per collection,
  identifier allocation, and predicate filters. The hr package binds concrete
  entity types to it; nothing in here knows what an employee is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: What every stored entity implements (typed integer key + stamps)
  - Stamps: created_at / updated_at, embedded in every entity
  - NextID: The identifier allocator

DESIGN PRINCIPLES:
  1. One artifact: the whole state is read once and rewritten on every mutation
  2. Precision: day counts and money use decimal.Decimal
  3. Type Safety: every collection has its own key type, so an EmployeeID
     cannot be passed where a UserID is expected
  4. Derivable ids: the next id comes from the collection contents alone

USAGE:
  type Employee struct {
      ID EmployeeID `json:"id"`
      generic.Stamps
  }
  func (e Employee) Key() EmployeeID     { return e.ID }
  func (e *Employee) SetKey(k EmployeeID) { e.ID = k }

  repo := generic.NewRepository[Employee, EmployeeID](store, "employees")

SEE ALSO:
  - store.go: Backend interface and the Store owning the snapshot
  - repository.go: CRUD + query over one collection
  - filter.go: Predicate helpers
*/
package generic

import "time"

// =============================================================================
// RECORD - What a collection stores
// =============================================================================

// Key is the constraint for collection identifiers. Each collection declares
// its own named type so ids from different collections don't mix.
type Key interface {
	~int64
}

// Record is implemented by pointers to entity structs.
type Record[K Key] interface {
	Key() K
	SetKey(K)
	Stamp() *Stamps
}

// Stamps carries the lifecycle timestamps every record has.
// Embed it in entity structs; its JSON fields are promoted.
type Stamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stamp gives the repository access to the embedded timestamps.
func (s *Stamps) Stamp() *Stamps { return s }

// NextID returns one greater than the largest key in records, or 1 when
// records is empty. Ids of deleted records are never handed out again as
// long as a larger id is still present.
func NextID[T any, K Key, PT interface {
	*T
	Record[K]
}](records []T) K {
	var highest K
	for i := range records {
		if k := PT(&records[i]).Key(); k > highest {
			highest = k
		}
	}
	return highest + 1
}
