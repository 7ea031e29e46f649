package hr_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hrstore/generic"
	"github.com/warp/hrstore/hr"
)

func codes(emps []hr.Employee) []string {
	out := make([]string, len(emps))
	for i, e := range emps {
		out[i] = e.EmployeeCode
	}
	return out
}

func seedEmployees(t *testing.T, s *hr.Store, emps ...hr.Employee) []hr.Employee {
	t.Helper()
	out := make([]hr.Employee, len(emps))
	for i, e := range emps {
		created, err := s.Employees.Create(context.Background(), e)
		require.NoError(t, err)
		out[i] = created
	}
	return out
}

func TestEmployees_CreateDefaultsAndUniqueCode(t *testing.T) {
	ctx := context.Background()
	s, backend := emptyStore(t)

	e, err := s.Employees.Create(ctx, employee("EMP001", "Ada", "King", "HR"))
	require.NoError(t, err)
	assert.Equal(t, hr.EmployeeID(1), e.ID)
	assert.Equal(t, hr.EmployeeActive, e.Status)

	_, err = s.Employees.Create(ctx, employee("emp001", "Bob", "Stone", "HR"))
	assert.ErrorIs(t, err, generic.ErrDuplicate)
	assert.True(t, generic.IsClientError(err))
	assert.Equal(t, 1, backend.Writes())
}

func TestEmployees_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*hr.Employee)
	}{
		{"missing code", func(e *hr.Employee) { e.EmployeeCode = " " }},
		{"missing last name", func(e *hr.Employee) { e.LastName = "" }},
		{"bad status", func(e *hr.Employee) { e.Status = "retired" }},
		{"negative salary", func(e *hr.Employee) { e.Salary = dec("-1") }},
		{"bad email", func(e *hr.Employee) { e.Email = "nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := emptyStore(t)
			e := employee("E1", "Ada", "King", "HR")
			tt.mutate(&e)

			_, err := s.Employees.Create(context.Background(), e)
			assert.ErrorIs(t, err, generic.ErrInvalidRecord)
		})
	}
}

func TestEmployees_CannotManageThemselves(t *testing.T) {
	ctx := context.Background()
	s, _ := emptyStore(t)
	e := seedEmployees(t, s, employee("E1", "Ada", "King", "HR"))[0]

	_, _, err := s.Employees.Patch(ctx, e.ID, hr.EmployeePatch{ManagerID: hr.Ref(e.ID)})
	assert.ErrorIs(t, err, generic.ErrInvalidRecord)
}

func TestEmployees_FilterByDepartment(t *testing.T) {
	// GIVEN: Employees in three departments
	// WHEN: Filtering on department "HR"
	// THEN: Exactly the HR employees come back, newest first

	ctx := context.Background()
	s, _ := emptyStore(t)
	seedEmployees(t, s,
		employee("E1", "Ada", "King", "HR"),
		employee("E2", "Bob", "Stone", "Finance"),
		employee("E3", "Cy", "Young", "HR"),
		employee("E4", "Di", "Prince", "Engineering"),
		employee("E5", "Ed", "Hr", "Sales"),
	)

	got, err := s.Employees.All(ctx, hr.EmployeeFilter{Department: "HR"})
	require.NoError(t, err)
	assert.Equal(t, []string{"E3", "E1"}, codes(got))

	none, err := s.Employees.All(ctx, hr.EmployeeFilter{Department: "hr"})
	require.NoError(t, err)
	assert.Empty(t, none, "department match is exact")
}

func TestEmployees_CombinedFilters(t *testing.T) {
	ctx := context.Background()
	s, _ := emptyStore(t)

	a := employee("E1", "Ada", "King", "Engineering")
	a.HireDate = date(2025, time.February, 20)
	a.Salary = dec("90000")
	b := employee("E2", "Bob", "Kingsley", "Engineering")
	b.HireDate = date(2023, time.May, 1)
	b.Status = hr.EmployeeInactive
	c := employee("E3", "Cy", "Young", "Engineering")
	c.HireDate = date(2025, time.February, 25)
	c.Salary = dec("60000")
	seedEmployees(t, s, a, b, c)

	lo := dec("60000")
	hi := dec("75000")
	tests := []struct {
		name   string
		filter hr.EmployeeFilter
		want   []string
	}{
		{"search name", hr.EmployeeFilter{Search: "KING"}, []string{"E2", "E1"}},
		{"search full name", hr.EmployeeFilter{Search: "ada king"}, []string{"E1"}},
		{"search code", hr.EmployeeFilter{Search: "e3"}, []string{"E3"}},
		{"status", hr.EmployeeFilter{Status: hr.EmployeeInactive}, []string{"E2"}},
		{"hired within", hr.EmployeeFilter{HiredWithin: generic.Period{
			Start: date(2025, time.February, 1), End: date(2025, time.February, 25),
		}}, []string{"E3", "E1"}},
		{"salary range inclusive", hr.EmployeeFilter{SalaryMin: &lo, SalaryMax: &hi}, []string{"E3"}},
		{"and", hr.EmployeeFilter{Search: "king", Status: hr.EmployeeActive}, []string{"E1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Employees.All(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestEmployees_PatchMergesFields(t *testing.T) {
	ctx := context.Background()
	s, _ := emptyStore(t)
	seeded := seedEmployees(t, s,
		employee("E1", "Ada", "King", "HR"),
		employee("E2", "Bob", "Stone", "HR"),
	)
	boss, e := seeded[0], seeded[1]

	dept := "Finance"
	got, ok, err := s.Employees.Patch(ctx, e.ID, hr.EmployeePatch{Department: &dept, ManagerID: hr.Ref(boss.ID)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Finance", got.Department)
	assert.Equal(t, "Bob", got.FirstName, "untouched fields survive")
	require.NotNil(t, got.ManagerID)
	assert.Equal(t, boss.ID, *got.ManagerID)
	assert.True(t, got.UpdatedAt.After(e.UpdatedAt))

	got, _, err = s.Employees.Patch(ctx, e.ID, hr.EmployeePatch{ClearManager: true})
	require.NoError(t, err)
	assert.Nil(t, got.ManagerID)
}

func TestEmployees_PatchMissingIDWritesNothing(t *testing.T) {
	// GIVEN: A store with no employee 404
	// WHEN: Moving employee 404 to Finance
	// THEN: Absent, no write, metadata.last_updated unchanged

	ctx := context.Background()
	s, backend := emptyStore(t)
	before, err := s.Metadata(ctx)
	require.NoError(t, err)

	dept := "Finance"
	_, ok, err := s.Employees.Patch(ctx, 404, hr.EmployeePatch{Department: &dept})
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := s.Metadata(ctx)
	require.NoError(t, err)
	assert.True(t, after.LastUpdated.Equal(before.LastUpdated))
	assert.Equal(t, 0, backend.Writes())
}

func TestEmployees_ByCode(t *testing.T) {
	ctx := context.Background()
	s, _ := emptyStore(t)
	seedEmployees(t, s, employee("EMP042", "Ada", "King", "HR"))

	e, ok, err := s.Employees.ByCode(ctx, " emp042 ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ada", e.FirstName)

	_, ok, err = s.Employees.ByCode(ctx, "EMP999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmployees_DeleteDoesNotTouchReferences(t *testing.T) {
	ctx := context.Background()
	s, _ := emptyStore(t)
	seeded := seedEmployees(t, s, employee("E1", "Ada", "King", "HR"))
	report := employee("E2", "Bob", "Stone", "HR")
	report.ManagerID = hr.Ref(seeded[0].ID)
	report = seedEmployees(t, s, report)[0]

	ok, err := s.Employees.Delete(ctx, seeded[0].ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, _, err := s.Employees.Get(ctx, report.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ManagerID, "dangling references are kept as-is")
	assert.Equal(t, seeded[0].ID, *got.ManagerID)
}
