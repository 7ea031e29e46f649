package hr

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/hrstore/generic"
)

// =============================================================================
// ROOT STATE - the artifact as a Go value
// =============================================================================

// RootState mirrors the artifact's top level. Seeding tools build one and
// write Encode's output; Export reads one back.
type RootState struct {
	Metadata         generic.Metadata   `json:"metadata"`
	Users            []User             `json:"users"`
	Employees        []Employee         `json:"employees"`
	TrainingCourses  []TrainingCourse   `json:"training_courses"`
	Enrollments      []EmployeeTraining `json:"employee_trainings"`
	LeaveRequests    []LeaveRequest     `json:"leave_requests"`
	Payslips         []Payslip          `json:"payslips"`
	TwoFactorMethods []TwoFactorMethod  `json:"two_factor_methods"`
	BackupCodes      []BackupCode       `json:"backup_codes"`
	TrustedDevices   []TrustedDevice    `json:"trusted_devices"`
}

// NewRootState returns an empty state stamped with now.
func NewRootState(now time.Time) RootState {
	now = now.UTC()
	return RootState{
		Metadata: generic.Metadata{CreatedAt: now, Version: SchemaVersion, LastUpdated: now},
	}
}

// Encode serializes the state. Nil collections are written as empty arrays.
func (s RootState) Encode() ([]byte, error) {
	s.Users = orEmpty(s.Users)
	s.Employees = orEmpty(s.Employees)
	s.TrainingCourses = orEmpty(s.TrainingCourses)
	s.Enrollments = orEmpty(s.Enrollments)
	s.LeaveRequests = orEmpty(s.LeaveRequests)
	s.Payslips = orEmpty(s.Payslips)
	s.TwoFactorMethods = orEmpty(s.TwoFactorMethods)
	s.BackupCodes = orEmpty(s.BackupCodes)
	s.TrustedDevices = orEmpty(s.TrustedDevices)
	return json.MarshalIndent(s, "", "  ")
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// =============================================================================
// STORE - one generic.Store and its nine collections
// =============================================================================

// Store is the HR document store. Build it with Open; all access goes
// through its collections.
type Store struct {
	engine *generic.Store

	Users            *Users
	Employees        *Employees
	Courses          *Courses
	Enrollments      *Enrollments
	LeaveRequests    *LeaveRequests
	Payslips         *Payslips
	TwoFactorMethods *TwoFactorMethods
	BackupCodes      *BackupCodes
	TrustedDevices   *TrustedDevices
}

// Open wires the collections over backend. Nothing is read until first use;
// call Load to fail fast on a missing or corrupt artifact.
func Open(backend generic.Backend, opts ...generic.Option) *Store {
	engine := generic.NewStore(backend, opts...)
	return &Store{
		engine:           engine,
		Users:            newUsers(engine),
		Employees:        newEmployees(engine),
		Courses:          newCourses(engine),
		Enrollments:      newEnrollments(engine),
		LeaveRequests:    newLeaveRequests(engine),
		Payslips:         newPayslips(engine),
		TwoFactorMethods: newTwoFactorMethods(engine),
		BackupCodes:      newBackupCodes(engine),
		TrustedDevices:   newTrustedDevices(engine),
	}
}

// Load reads and validates the artifact.
func (s *Store) Load(ctx context.Context) error { return s.engine.Load(ctx) }

// Reload rereads the artifact, for example after ErrConcurrentModification.
func (s *Store) Reload(ctx context.Context) error { return s.engine.Reload(ctx) }

// Now returns the store's clock reading.
func (s *Store) Now() time.Time { return s.engine.Now() }

// Metadata returns the artifact's metadata block.
func (s *Store) Metadata(ctx context.Context) (generic.Metadata, error) {
	return s.engine.Metadata(ctx)
}

// Counts returns the number of records per collection.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	return s.engine.Counts(ctx)
}

// Collections returns the collection names in artifact order.
func (s *Store) Collections() []string { return s.engine.Collections() }

// Snapshot returns the last successfully persisted document.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	return s.engine.Snapshot(ctx)
}

// Export decodes Snapshot into a RootState.
func (s *Store) Export(ctx context.Context) (RootState, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return RootState{}, err
	}
	var state RootState
	if err := json.Unmarshal(data, &state); err != nil {
		return RootState{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return state, nil
}
