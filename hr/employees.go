package hr

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/hrstore/generic"
)

// Employee is a person on the payroll. ManagerID points at another
// employee and UserID at the login, if any; neither is enforced.
type Employee struct {
	ID           EmployeeID        `json:"id"`
	EmployeeCode string            `json:"employee_code"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Address      string            `json:"address"`
	Department   string            `json:"department"`
	Position     string            `json:"position"`
	HireDate     generic.TimePoint `json:"hire_date"`
	Salary       decimal.Decimal   `json:"salary"`
	ManagerID    *EmployeeID       `json:"manager_id"`
	Status       EmployeeStatus    `json:"status"`
	UserID       *UserID           `json:"user_id"`
	generic.Stamps
}

func (e Employee) Key() EmployeeID     { return e.ID }
func (e *Employee) SetKey(k EmployeeID) { e.ID = k }

func (e Employee) Clone() Employee {
	e.ManagerID = clonePtr(e.ManagerID)
	e.UserID = clonePtr(e.UserID)
	return e
}

// FullName returns "First Last".
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

var _ generic.Record[EmployeeID] = (*Employee)(nil)

func validateEmployee(e Employee) error {
	switch {
	case strings.TrimSpace(e.EmployeeCode) == "":
		return generic.Invalid("employee_code is required")
	case strings.TrimSpace(e.FirstName) == "" || strings.TrimSpace(e.LastName) == "":
		return generic.Invalid("first_name and last_name are required")
	case !e.Status.Valid():
		return generic.Invalid("unknown employee status %q", e.Status)
	case e.Salary.IsNegative():
		return generic.Invalid("salary cannot be negative")
	case e.ManagerID != nil && *e.ManagerID == e.ID:
		return generic.Invalid("employee %d cannot manage themselves", e.ID)
	case e.Email != "" && !strings.Contains(e.Email, "@"):
		return generic.Invalid("email %q is not an address", e.Email)
	}
	return nil
}

// EmployeeFilter selects employees. Zero fields do not filter.
type EmployeeFilter struct {
	Department  string
	Status      EmployeeStatus
	ManagerID   *EmployeeID
	Search      string // name, code, email or position
	HiredWithin generic.Period
	SalaryMin   *decimal.Decimal
	SalaryMax   *decimal.Decimal
}

func (f EmployeeFilter) filters() []generic.Filter[Employee] {
	var out []generic.Filter[Employee]
	if f.Department != "" {
		out = append(out, generic.Equal(func(e Employee) string { return e.Department }, f.Department))
	}
	if f.Status != "" {
		out = append(out, generic.Equal(func(e Employee) EmployeeStatus { return e.Status }, f.Status))
	}
	if f.ManagerID != nil {
		want := *f.ManagerID
		out = append(out, func(e Employee) bool { return e.ManagerID != nil && *e.ManagerID == want })
	}
	return append(out,
		generic.Search(f.Search,
			Employee.FullName,
			func(e Employee) string { return e.EmployeeCode },
			func(e Employee) string { return e.Email },
			func(e Employee) string { return e.Position },
		),
		generic.Within(func(e Employee) generic.TimePoint { return e.HireDate }, f.HiredWithin),
		generic.Between(func(e Employee) decimal.Decimal { return e.Salary }, f.SalaryMin, f.SalaryMax),
	)
}

// EmployeePatch holds the fields to change; nil fields are left alone.
type EmployeePatch struct {
	FirstName    *string
	LastName     *string
	Email        *string
	Phone        *string
	Address      *string
	Department   *string
	Position     *string
	HireDate     *generic.TimePoint
	Salary       *decimal.Decimal
	Status       *EmployeeStatus
	ManagerID    *EmployeeID
	ClearManager bool
	UserID       *UserID
}

func (p EmployeePatch) apply(e *Employee) {
	set(&e.FirstName, p.FirstName)
	set(&e.LastName, p.LastName)
	set(&e.Email, p.Email)
	set(&e.Phone, p.Phone)
	set(&e.Address, p.Address)
	set(&e.Department, p.Department)
	set(&e.Position, p.Position)
	set(&e.HireDate, p.HireDate)
	set(&e.Salary, p.Salary)
	set(&e.Status, p.Status)
	if p.ManagerID != nil {
		e.ManagerID = Ref(*p.ManagerID)
	}
	if p.ClearManager {
		e.ManagerID = nil
	}
	if p.UserID != nil {
		e.UserID = Ref(*p.UserID)
	}
}

// Employees is the employees collection. employee_code is unique.
type Employees struct {
	*generic.Repository[Employee, EmployeeID, *Employee]
}

func newEmployees(s *generic.Store) *Employees {
	return &Employees{generic.NewRepository[Employee, EmployeeID](s, CollectionEmployees,
		generic.WithValidator(validateEmployee),
		generic.WithUnique("employee_code", func(e Employee) string { return generic.Fold(e.EmployeeCode) }),
	)}
}

// Create stores e. An empty status means active.
func (r *Employees) Create(ctx context.Context, e Employee) (Employee, error) {
	if e.Status == "" {
		e.Status = EmployeeActive
	}
	return r.Repository.Create(ctx, e)
}

// All returns employees matching f, most recently created first.
func (r *Employees) All(ctx context.Context, f EmployeeFilter) ([]Employee, error) {
	return r.List(ctx, f.filters()...)
}

// Patch merges p onto employee id.
func (r *Employees) Patch(ctx context.Context, id EmployeeID, p EmployeePatch) (Employee, bool, error) {
	return r.Update(ctx, id, func(e *Employee) error {
		p.apply(e)
		return nil
	})
}

// ByCode looks an employee up by employee_code, ignoring case.
func (r *Employees) ByCode(ctx context.Context, code string) (Employee, bool, error) {
	want := generic.Fold(strings.TrimSpace(code))
	return r.Find(ctx, func(e Employee) bool { return generic.Fold(e.EmployeeCode) == want })
}

// DirectReports returns the employees whose manager is managerID.
func (r *Employees) DirectReports(ctx context.Context, managerID EmployeeID) ([]Employee, error) {
	return r.All(ctx, EmployeeFilter{ManagerID: &managerID})
}
