package hr

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hrstore/generic"
)

// LeaveRequest asks for time off between StartDate and EndDate (inclusive).
type LeaveRequest struct {
	ID         LeaveRequestID    `json:"id"`
	EmployeeID EmployeeID        `json:"employee_id"`
	LeaveType  LeaveType         `json:"leave_type"`
	StartDate  generic.TimePoint `json:"start_date"`
	EndDate    generic.TimePoint `json:"end_date"`
	Days       decimal.Decimal   `json:"days"`
	Reason     string            `json:"reason"`
	Status     LeaveStatus       `json:"status"`
	ApproverID *EmployeeID       `json:"approver_id"`
	DecidedAt  *time.Time        `json:"decided_at"`
	generic.Stamps
}

func (l LeaveRequest) Key() LeaveRequestID     { return l.ID }
func (l *LeaveRequest) SetKey(k LeaveRequestID) { l.ID = k }

func (l LeaveRequest) Clone() LeaveRequest {
	l.ApproverID = clonePtr(l.ApproverID)
	l.DecidedAt = clonePtr(l.DecidedAt)
	return l
}

// Period returns the requested date range.
func (l LeaveRequest) Period() generic.Period {
	return generic.Period{Start: l.StartDate, End: l.EndDate}
}

var _ generic.Record[LeaveRequestID] = (*LeaveRequest)(nil)

// computeDays fills Days with the inclusive calendar-day count when unset.
func (l *LeaveRequest) computeDays() {
	if l.Days.IsZero() && !l.StartDate.IsZero() && !l.EndDate.IsZero() {
		l.Days = decimal.NewFromInt(int64(generic.DaysInclusive(l.StartDate, l.EndDate)))
	}
}

func validateLeave(l LeaveRequest) error {
	switch {
	case l.EmployeeID <= 0:
		return generic.Invalid("employee_id is required")
	case !l.LeaveType.Valid():
		return generic.Invalid("unknown leave type %q", l.LeaveType)
	case !l.Status.Valid():
		return generic.Invalid("unknown leave status %q", l.Status)
	case l.StartDate.IsZero() || l.EndDate.IsZero():
		return generic.Invalid("start_date and end_date are required")
	case l.EndDate.Before(l.StartDate):
		return generic.Invalid("end_date %s is before start_date %s", l.EndDate, l.StartDate)
	case !l.Days.IsPositive():
		return generic.Invalid("days must be positive")
	}
	return nil
}

// LeaveFilter selects leave requests. Zero fields do not filter.
type LeaveFilter struct {
	EmployeeID EmployeeID
	LeaveType  LeaveType
	Status     LeaveStatus
	Within     generic.Period // requests overlapping this range
}

func (f LeaveFilter) filters() []generic.Filter[LeaveRequest] {
	var out []generic.Filter[LeaveRequest]
	if f.EmployeeID != 0 {
		out = append(out, generic.Equal(func(l LeaveRequest) EmployeeID { return l.EmployeeID }, f.EmployeeID))
	}
	if f.LeaveType != "" {
		out = append(out, generic.Equal(func(l LeaveRequest) LeaveType { return l.LeaveType }, f.LeaveType))
	}
	if f.Status != "" {
		out = append(out, generic.Equal(func(l LeaveRequest) LeaveStatus { return l.Status }, f.Status))
	}
	if !f.Within.IsOpen() {
		p := f.Within
		out = append(out, func(l LeaveRequest) bool { return overlaps(l.Period(), p) })
	}
	return out
}

func overlaps(a, b generic.Period) bool {
	if !b.End.IsZero() && a.Start.After(b.End) {
		return false
	}
	if !b.Start.IsZero() && a.End.Before(b.Start) {
		return false
	}
	return true
}

// LeaveRequestPatch holds the fields to change; nil fields are left alone.
// Changing the dates without giving Days recomputes Days. Status moves
// through Approve and Reject.
type LeaveRequestPatch struct {
	LeaveType *LeaveType
	StartDate *generic.TimePoint
	EndDate   *generic.TimePoint
	Days      *decimal.Decimal
	Reason    *string
}

func (p LeaveRequestPatch) apply(l *LeaveRequest) {
	set(&l.LeaveType, p.LeaveType)
	set(&l.StartDate, p.StartDate)
	set(&l.EndDate, p.EndDate)
	set(&l.Reason, p.Reason)
	switch {
	case p.Days != nil:
		l.Days = *p.Days
	case p.StartDate != nil || p.EndDate != nil:
		l.Days = decimal.Zero
		l.computeDays()
	}
}

// LeaveRequests is the leave_requests collection.
type LeaveRequests struct {
	*generic.Repository[LeaveRequest, LeaveRequestID, *LeaveRequest]
	now func() time.Time
}

func newLeaveRequests(s *generic.Store) *LeaveRequests {
	return &LeaveRequests{
		Repository: generic.NewRepository[LeaveRequest, LeaveRequestID](s, CollectionLeaveRequests,
			generic.WithValidator(validateLeave),
		),
		now: s.Now,
	}
}

// Create stores l. Status defaults to Pending and a zero Days is computed
// from the dates.
func (r *LeaveRequests) Create(ctx context.Context, l LeaveRequest) (LeaveRequest, error) {
	if l.Status == "" {
		l.Status = LeavePending
	}
	l.computeDays()
	return r.Repository.Create(ctx, l)
}

// All returns leave requests matching f, most recently created first.
func (r *LeaveRequests) All(ctx context.Context, f LeaveFilter) ([]LeaveRequest, error) {
	return r.List(ctx, f.filters()...)
}

// Patch merges p onto leave request id.
func (r *LeaveRequests) Patch(ctx context.Context, id LeaveRequestID, p LeaveRequestPatch) (LeaveRequest, bool, error) {
	return r.Update(ctx, id, func(l *LeaveRequest) error {
		p.apply(l)
		return nil
	})
}

// Approve marks a Pending request Approved by approver.
func (r *LeaveRequests) Approve(ctx context.Context, id LeaveRequestID, approver EmployeeID) (LeaveRequest, bool, error) {
	return r.decide(ctx, id, approver, LeaveApproved)
}

// Reject marks a Pending request Rejected by approver.
func (r *LeaveRequests) Reject(ctx context.Context, id LeaveRequestID, approver EmployeeID) (LeaveRequest, bool, error) {
	return r.decide(ctx, id, approver, LeaveRejected)
}

func (r *LeaveRequests) decide(ctx context.Context, id LeaveRequestID, approver EmployeeID, to LeaveStatus) (LeaveRequest, bool, error) {
	at := r.now().UTC()
	return r.Update(ctx, id, func(l *LeaveRequest) error {
		if l.Status != LeavePending {
			return generic.Invalid("leave request %d is already %s", l.ID, l.Status)
		}
		if approver <= 0 {
			return generic.Invalid("approver is required")
		}
		if approver == l.EmployeeID {
			return generic.Invalid("employee %d cannot decide their own leave", approver)
		}
		l.Status = to
		l.ApproverID = Ref(approver)
		l.DecidedAt = &at
		return nil
	})
}

// UsedDays sums Days over employee's Approved requests of type t.
func (r *LeaveRequests) UsedDays(ctx context.Context, employee EmployeeID, t LeaveType) (decimal.Decimal, error) {
	approved, err := r.All(ctx, LeaveFilter{EmployeeID: employee, LeaveType: t, Status: LeaveApproved})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range approved {
		total = total.Add(l.Days)
	}
	return total, nil
}
