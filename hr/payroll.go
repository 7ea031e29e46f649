package hr

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hrstore/generic"
)

// Payslip is one month's pay for an employee. Month is the English month
// name ("January".."December").
type Payslip struct {
	ID          PayslipID         `json:"id"`
	EmployeeID  EmployeeID        `json:"employee_id"`
	Month       string            `json:"month"`
	Year        int               `json:"year"`
	GrossPay    decimal.Decimal   `json:"gross_pay"`
	NetPay      decimal.Decimal   `json:"net_pay"`
	Deductions  decimal.Decimal   `json:"deductions"`
	Status      PayslipStatus     `json:"status"`
	PaymentDate generic.TimePoint `json:"payment_date"`
	generic.Stamps
}

func (p Payslip) Key() PayslipID     { return p.ID }
func (p *Payslip) SetKey(k PayslipID) { p.ID = k }

var _ generic.Record[PayslipID] = (*Payslip)(nil)

// ParseMonth maps an English month name, in any case, to its number.
func ParseMonth(name string) (time.Month, bool) {
	want := strings.TrimSpace(name)
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), want) {
			return m, true
		}
	}
	return 0, false
}

func monthOf(p Payslip) time.Month {
	m, _ := ParseMonth(p.Month)
	return m
}

// payslipOrder is year descending, then calendar month descending.
func payslipOrder(a, b Payslip) int {
	if c := cmp.Compare(b.Year, a.Year); c != 0 {
		return c
	}
	return cmp.Compare(monthOf(b), monthOf(a))
}

func validatePayslip(p Payslip) error {
	switch {
	case p.EmployeeID <= 0:
		return generic.Invalid("employee_id is required")
	case p.Year < 1900 || p.Year > 9999:
		return generic.Invalid("year %d is out of range", p.Year)
	case !p.Status.Valid():
		return generic.Invalid("unknown payslip status %q", p.Status)
	case p.GrossPay.IsNegative() || p.NetPay.IsNegative() || p.Deductions.IsNegative():
		return generic.Invalid("amounts cannot be negative")
	case p.NetPay.GreaterThan(p.GrossPay):
		return generic.Invalid("net_pay %s exceeds gross_pay %s", p.NetPay, p.GrossPay)
	}
	if _, ok := ParseMonth(p.Month); !ok {
		return generic.Invalid("unknown month %q", p.Month)
	}
	return nil
}

// PayslipFilter selects payslips. Zero fields do not filter.
type PayslipFilter struct {
	EmployeeID EmployeeID
	Year       int
	Month      string
	Status     PayslipStatus
}

func (f PayslipFilter) filters() []generic.Filter[Payslip] {
	var out []generic.Filter[Payslip]
	if f.EmployeeID != 0 {
		out = append(out, generic.Equal(func(p Payslip) EmployeeID { return p.EmployeeID }, f.EmployeeID))
	}
	if f.Year != 0 {
		out = append(out, generic.Equal(func(p Payslip) int { return p.Year }, f.Year))
	}
	if f.Month != "" {
		want := f.Month
		out = append(out, func(p Payslip) bool { return strings.EqualFold(p.Month, want) })
	}
	if f.Status != "" {
		out = append(out, generic.Equal(func(p Payslip) PayslipStatus { return p.Status }, f.Status))
	}
	return out
}

// PayslipPatch holds the fields to change; nil fields are left alone.
type PayslipPatch struct {
	GrossPay    *decimal.Decimal
	NetPay      *decimal.Decimal
	Deductions  *decimal.Decimal
	Status      *PayslipStatus
	PaymentDate *generic.TimePoint
}

func (p PayslipPatch) apply(s *Payslip) {
	set(&s.GrossPay, p.GrossPay)
	set(&s.NetPay, p.NetPay)
	set(&s.Deductions, p.Deductions)
	set(&s.Status, p.Status)
	set(&s.PaymentDate, p.PaymentDate)
}

// Payslips is the payslips collection, newest pay period first.
type Payslips struct {
	*generic.Repository[Payslip, PayslipID, *Payslip]
}

func newPayslips(s *generic.Store) *Payslips {
	return &Payslips{generic.NewRepository[Payslip, PayslipID](s, CollectionPayslips,
		generic.WithValidator(validatePayslip),
		generic.WithOrder(payslipOrder),
	)}
}

// Create stores p. Status defaults to draft; the month name is normalized.
func (r *Payslips) Create(ctx context.Context, p Payslip) (Payslip, error) {
	if p.Status == "" {
		p.Status = PayslipDraft
	}
	if m, ok := ParseMonth(p.Month); ok {
		p.Month = m.String()
	}
	return r.Repository.Create(ctx, p)
}

// All returns payslips matching f, newest pay period first.
func (r *Payslips) All(ctx context.Context, f PayslipFilter) ([]Payslip, error) {
	return r.List(ctx, f.filters()...)
}

// Patch merges p onto payslip id.
func (r *Payslips) Patch(ctx context.Context, id PayslipID, p PayslipPatch) (Payslip, bool, error) {
	return r.Update(ctx, id, func(s *Payslip) error {
		p.apply(s)
		return nil
	})
}
