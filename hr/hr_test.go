package hr_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hrstore/generic"
	"github.com/warp/hrstore/generic/store"
	"github.com/warp/hrstore/hr"
	"github.com/warp/hrstore/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var epoch = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// ticker is a clock that moves one second per reading.
type ticker struct{ t time.Time }

func (c *ticker) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func seeded(t *testing.T, state hr.RootState) (*hr.Store, *store.Memory) {
	t.Helper()
	data, err := state.Encode()
	require.NoError(t, err)
	backend := store.NewMemory(data)
	clock := &ticker{t: epoch}
	return hr.Open(backend, generic.WithClock(clock.now)), backend
}

func emptyStore(t *testing.T) (*hr.Store, *store.Memory) {
	t.Helper()
	return seeded(t, hr.NewRootState(epoch.Add(-24*time.Hour)))
}

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func employee(code, first, last, dept string) hr.Employee {
	return hr.Employee{
		EmployeeCode: code,
		FirstName:    first,
		LastName:     last,
		Email:        first + "@example.com",
		Department:   dept,
		Position:     "Analyst",
		HireDate:     date(2024, time.January, 15),
		Salary:       dec("55000"),
	}
}

// =============================================================================
// STORE
// =============================================================================

func TestOpen_RegistersEveryCollection(t *testing.T) {
	s, _ := emptyStore(t)
	assert.Equal(t, []string{
		"users", "employees", "training_courses", "employee_trainings", "leave_requests",
		"payslips", "two_factor_methods", "backup_codes", "trusted_devices",
	}, s.Collections())
}

func TestOpen_MissingArtifact(t *testing.T) {
	s := hr.Open(store.NewMemory(nil))

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, generic.ErrNotInitialized)

	_, err = s.Employees.All(context.Background(), hr.EmployeeFilter{})
	assert.ErrorIs(t, err, generic.ErrNotInitialized)
}

func TestOpen_CorruptCollectionNamed(t *testing.T) {
	doc := `{"metadata": {"version": "1.0"}, "employees": [{"id": 1, "salary": "lots"}]}`
	s := hr.Open(store.NewMemory([]byte(doc)))

	err := s.Load(context.Background())
	require.ErrorIs(t, err, generic.ErrCorruptState)

	var ce *generic.CorruptStateError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "employees", ce.Collection)
}

func TestOpen_UnknownLeaveStatusIsCorrupt(t *testing.T) {
	// GIVEN: A seeded leave request whose status is not Pending/Approved/Rejected
	// WHEN: Loading
	// THEN: CorruptState naming leave_requests; status counts never see it

	for _, status := range []string{`"Cancelled"`, `"pending"`, `""`, `7`} {
		t.Run(status, func(t *testing.T) {
			doc := `{"metadata": {"version": "1.0"}, "leave_requests": [{"id": 1, "employee_id": 1, "status": ` + status + `}]}`
			s := hr.Open(store.NewMemory([]byte(doc)))

			err := s.Load(context.Background())
			require.ErrorIs(t, err, generic.ErrCorruptState)
			var ce *generic.CorruptStateError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, hr.CollectionLeaveRequests, ce.Collection)
		})
	}
}

func TestEncode_WritesEmptyArraysAndNumbers(t *testing.T) {
	state := hr.NewRootState(epoch)
	state.Employees = []hr.Employee{{ID: 1, EmployeeCode: "E1", Salary: dec("1234.50")}}

	data, err := state.Encode()
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `[]`, string(doc["users"]))

	var emps []map[string]any
	require.NoError(t, json.Unmarshal(doc["employees"], &emps))
	assert.Equal(t, 1234.5, emps[0]["salary"], "money is a JSON number")
	assert.Nil(t, emps[0]["manager_id"])
}

func TestExport_RoundTripsThroughSQLite(t *testing.T) {
	// GIVEN: A SQLite-backed store with records in several collections
	// WHEN: A second store opens the same database
	// THEN: It sees field-for-field identical records, timestamps included

	ctx := context.Background()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seed, err := hr.NewRootState(epoch).Encode()
	require.NoError(t, err)
	require.NoError(t, db.Seed(ctx, seed))

	clock := &ticker{t: epoch}
	first := hr.Open(db, generic.WithClock(clock.now))
	boss, err := first.Employees.Create(ctx, employee("E1", "Ada", "King", "Engineering"))
	require.NoError(t, err)
	emp := employee("E2", "Tim", "Berners", "Engineering")
	emp.ManagerID = hr.Ref(boss.ID)
	emp, err = first.Employees.Create(ctx, emp)
	require.NoError(t, err)
	leave, err := first.LeaveRequests.Create(ctx, hr.LeaveRequest{
		EmployeeID: emp.ID, LeaveType: hr.LeaveSick,
		StartDate: date(2025, 3, 3), EndDate: date(2025, 3, 4),
	})
	require.NoError(t, err)

	before, err := first.Export(ctx)
	require.NoError(t, err)

	second := hr.Open(db)
	after, err := second.Export(ctx)
	require.NoError(t, err)

	b1, _ := json.Marshal(before)
	b2, _ := json.Marshal(after)
	assert.JSONEq(t, string(b1), string(b2))

	got, ok, err := second.LeaveRequests.Get(ctx, leave.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.CreatedAt.Equal(leave.CreatedAt))
	assert.True(t, got.Days.Equal(dec("2")))

	reports, err := second.Employees.DirectReports(ctx, boss.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, emp.ID, reports[0].ID)
}

func TestExport_ExcludesFailedSave(t *testing.T) {
	ctx := context.Background()
	s, backend := emptyStore(t)

	_, err := s.Employees.Create(ctx, employee("E1", "Ada", "King", "HR"))
	require.NoError(t, err)

	backend.FailWrites(errors.New("disk full"))
	_, err = s.Employees.Create(ctx, employee("E2", "Bob", "Stone", "HR"))
	require.ErrorIs(t, err, generic.ErrPersistFailure)

	state, err := s.Export(ctx)
	require.NoError(t, err)
	require.Len(t, state.Employees, 1)
	assert.Equal(t, "E1", state.Employees[0].EmployeeCode)

	count, err := s.Employees.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "memory was rolled back to match the artifact")
}

func TestMetadata_LastUpdatedMovesOnAnyCollection(t *testing.T) {
	ctx := context.Background()
	s, _ := emptyStore(t)

	m0, err := s.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, hr.SchemaVersion, m0.Version)

	_, err = s.Courses.Create(ctx, hr.TrainingCourse{Title: "Go"})
	require.NoError(t, err)
	m1, err := s.Metadata(ctx)
	require.NoError(t, err)

	_, err = s.Payslips.Create(ctx, hr.Payslip{EmployeeID: 1, Month: "May", Year: 2025})
	require.NoError(t, err)
	m2, err := s.Metadata(ctx)
	require.NoError(t, err)

	assert.True(t, m1.LastUpdated.After(m0.LastUpdated))
	assert.True(t, m2.LastUpdated.After(m1.LastUpdated))
	assert.True(t, m2.CreatedAt.Equal(m0.CreatedAt))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["training_courses"])
	assert.Equal(t, 1, counts["payslips"])
	assert.Equal(t, 0, counts["users"])
}
