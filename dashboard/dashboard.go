/*
dashboard.go - Read-only summaries across HR collections

PURPOSE:
  Folds several collections into the two views the UI shows on login:
  one employee's own page and the organization-wide HR page. Nothing is
  cached; every call recomputes from the store's current state.

LEAVE BALANCES:
  Each leave type has a fixed yearly allotment (20 Annual, 10 Sick,
  5 Personal unless overridden).

    Used      = sum of Days over the employee's Approved requests of the type
    Remaining = Total - Used, floored at zero

  When Used exceeds Total, Remaining is zero, Exceeded is set and
  Overdrawn carries the excess. A negative balance is never reported
  without the flag.

HR DASHBOARD:
  LeaveByStatus counts every request exactly once, so its values always
  sum to TotalLeaveRequests. A status outside Pending/Approved/Rejected
  cannot reach it: such an artifact fails to load as corrupt.

SEE ALSO:
  - hr/leave.go: LeaveRequests.UsedDays, the same "used" rule for one type
  - hr/payroll.go: payslip canonical order used for RecentPayslips
*/
package dashboard

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hrstore/generic"
	"github.com/warp/hrstore/hr"
)

const (
	recentLeaveLimit   = 5
	recentPayslipLimit = 3
	recentHireLimit    = 5
	recentHireWindow   = 30 // days
)

// Allotments is the yearly entitlement per leave type, in days.
type Allotments map[hr.LeaveType]decimal.Decimal

// DefaultAllotments returns 20 Annual, 10 Sick and 5 Personal days.
func DefaultAllotments() Allotments {
	return Allotments{
		hr.LeaveAnnual:   decimal.NewFromInt(20),
		hr.LeaveSick:     decimal.NewFromInt(10),
		hr.LeavePersonal: decimal.NewFromInt(5),
	}
}

// =============================================================================
// VIEWS
// =============================================================================

// LeaveBalance is one leave type's standing for an employee.
type LeaveBalance struct {
	LeaveType hr.LeaveType    `json:"leave_type"`
	Total     decimal.Decimal `json:"total"`
	Used      decimal.Decimal `json:"used"`
	Remaining decimal.Decimal `json:"remaining"`
	Overdrawn decimal.Decimal `json:"overdrawn"`
	Exceeded  bool            `json:"exceeded"`
}

func newLeaveBalance(t hr.LeaveType, total, used decimal.Decimal) LeaveBalance {
	b := LeaveBalance{LeaveType: t, Total: total, Used: used, Remaining: total.Sub(used)}
	if b.Remaining.IsNegative() {
		b.Overdrawn = b.Remaining.Neg()
		b.Remaining = decimal.Zero
		b.Exceeded = true
	}
	return b
}

// EmployeeDashboard is the page an employee sees about themselves.
type EmployeeDashboard struct {
	Employee       hr.Employee           `json:"employee"`
	LeaveBalances  []LeaveBalance        `json:"leave_balances"`
	RecentLeave    []hr.LeaveRequest     `json:"recent_leave_requests"`
	RecentPayslips []hr.Payslip          `json:"recent_payslips"`
	Trainings      []hr.EmployeeTraining `json:"trainings"`
}

// Balance returns the balance for t, if t has an allotment.
func (d EmployeeDashboard) Balance(t hr.LeaveType) (LeaveBalance, bool) {
	for _, b := range d.LeaveBalances {
		if b.LeaveType == t {
			return b, true
		}
	}
	return LeaveBalance{}, false
}

// HRDashboard is the organization-wide summary.
type HRDashboard struct {
	GeneratedAt        time.Time              `json:"generated_at"`
	TotalEmployees     int                    `json:"total_employees"`
	ActiveEmployees    int                    `json:"active_employees"`
	PendingLeave       int                    `json:"pending_leave_requests"`
	ActiveCourses      int                    `json:"active_courses"`
	RecentHires        []hr.Employee          `json:"recent_hires"`
	TotalLeaveRequests int                    `json:"total_leave_requests"`
	LeaveByStatus      map[hr.LeaveStatus]int `json:"leave_by_status"`
}

// =============================================================================
// COMPOSER
// =============================================================================

// Option configures a Composer.
type Option func(*Composer)

// WithClock sets the time source for the recent-hire window. Defaults to
// the store's clock.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// WithAllotments replaces the default allotments. Leave types missing
// from a are not reported.
func WithAllotments(a Allotments) Option {
	return func(c *Composer) { c.allotments = a }
}

// Composer builds dashboards from an hr.Store.
type Composer struct {
	store      *hr.Store
	now        func() time.Time
	allotments Allotments
}

// New returns a Composer over s.
func New(s *hr.Store, opts ...Option) *Composer {
	c := &Composer{store: s, now: s.Now, allotments: DefaultAllotments()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Employee builds the dashboard for employee id. It returns false when
// there is no such employee.
func (c *Composer) Employee(ctx context.Context, id hr.EmployeeID) (EmployeeDashboard, bool, error) {
	emp, ok, err := c.store.Employees.Get(ctx, id)
	if err != nil || !ok {
		return EmployeeDashboard{}, false, err
	}

	leave, err := c.store.LeaveRequests.All(ctx, hr.LeaveFilter{EmployeeID: id})
	if err != nil {
		return EmployeeDashboard{}, false, err
	}
	payslips, err := c.store.Payslips.All(ctx, hr.PayslipFilter{EmployeeID: id})
	if err != nil {
		return EmployeeDashboard{}, false, err
	}
	trainings, err := c.store.Enrollments.All(ctx, hr.EnrollmentFilter{EmployeeID: id})
	if err != nil {
		return EmployeeDashboard{}, false, err
	}

	return EmployeeDashboard{
		Employee:       emp,
		LeaveBalances:  c.balances(leave),
		RecentLeave:    head(leave, recentLeaveLimit),
		RecentPayslips: head(payslips, recentPayslipLimit),
		Trainings:      trainings,
	}, true, nil
}

// balances folds approved days per type. Types follow hr.LeaveTypes order.
func (c *Composer) balances(leave []hr.LeaveRequest) []LeaveBalance {
	used := make(map[hr.LeaveType]decimal.Decimal, len(hr.LeaveTypes))
	for _, l := range leave {
		if l.Status == hr.LeaveApproved {
			used[l.LeaveType] = used[l.LeaveType].Add(l.Days)
		}
	}

	out := make([]LeaveBalance, 0, len(c.allotments))
	for _, t := range hr.LeaveTypes {
		total, ok := c.allotments[t]
		if !ok {
			continue
		}
		out = append(out, newLeaveBalance(t, total, used[t]))
	}
	return out
}

// HR builds the organization-wide dashboard.
func (c *Composer) HR(ctx context.Context) (HRDashboard, error) {
	now := c.now().UTC()
	d := HRDashboard{
		GeneratedAt:   now,
		LeaveByStatus: make(map[hr.LeaveStatus]int, len(hr.LeaveStatuses)),
	}
	for _, st := range hr.LeaveStatuses {
		d.LeaveByStatus[st] = 0
	}

	emps, err := c.store.Employees.All(ctx, hr.EmployeeFilter{})
	if err != nil {
		return HRDashboard{}, err
	}
	d.TotalEmployees = len(emps)

	cutoff := generic.DateOf(now).AddDays(-recentHireWindow)
	var hires []hr.Employee
	for _, e := range emps {
		if e.Status == hr.EmployeeActive {
			d.ActiveEmployees++
		}
		if e.HireDate.After(cutoff) {
			hires = append(hires, e)
		}
	}
	slices.SortStableFunc(hires, func(a, b hr.Employee) int { return b.HireDate.Compare(a.HireDate) })
	d.RecentHires = head(hires, recentHireLimit)

	leave, err := c.store.LeaveRequests.All(ctx, hr.LeaveFilter{})
	if err != nil {
		return HRDashboard{}, err
	}
	d.TotalLeaveRequests = len(leave)
	for _, l := range leave {
		d.LeaveByStatus[l.Status]++
	}
	d.PendingLeave = d.LeaveByStatus[hr.LeavePending]

	d.ActiveCourses, err = c.store.Courses.Count(ctx,
		generic.Equal(func(t hr.TrainingCourse) hr.CourseStatus { return t.Status }, hr.CourseActive))
	if err != nil {
		return HRDashboard{}, err
	}
	return d, nil
}

// head returns at most n leading elements, never nil.
func head[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	if s == nil {
		return []T{}
	}
	return slices.Clip(s)
}
