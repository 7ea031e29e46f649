// Package hr binds the HR entities to the generic document store.
// Each collection is a generic.Repository plus its validation rules,
// canonical order, typed filter and patch, and a few domain operations.
package hr

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// Seeding and reporting tools read money and day counts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// SchemaVersion is written to metadata.version of new artifacts.
const SchemaVersion = "1.0"

// Collection names, as they appear at the top level of the artifact.
const (
	CollectionUsers            = "users"
	CollectionEmployees        = "employees"
	CollectionCourses          = "training_courses"
	CollectionEnrollments      = "employee_trainings"
	CollectionLeaveRequests    = "leave_requests"
	CollectionPayslips         = "payslips"
	CollectionTwoFactorMethods = "two_factor_methods"
	CollectionBackupCodes      = "backup_codes"
	CollectionTrustedDevices   = "trusted_devices"
)

// =============================================================================
// IDENTIFIERS - one type per collection
// =============================================================================

type (
	UserID            int64
	EmployeeID        int64
	CourseID          int64
	EnrollmentID      int64
	LeaveRequestID    int64
	PayslipID         int64
	TwoFactorMethodID int64
	BackupCodeID      int64
	TrustedDeviceID   int64
)

// Ref returns a pointer to v, for nullable fields such as manager_id.
func Ref[T any](v T) *T { return &v }

// =============================================================================
// ENUMS
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleManager, RoleEmployee:
		return true
	}
	return false
}

type EmployeeStatus string

const (
	EmployeeActive     EmployeeStatus = "active"
	EmployeeInactive   EmployeeStatus = "inactive"
	EmployeeTerminated EmployeeStatus = "terminated"
)

func (s EmployeeStatus) Valid() bool {
	switch s {
	case EmployeeActive, EmployeeInactive, EmployeeTerminated:
		return true
	}
	return false
}

type CourseStatus string

const (
	CourseActive   CourseStatus = "active"
	CourseDraft    CourseStatus = "draft"
	CourseArchived CourseStatus = "archived"
)

func (s CourseStatus) Valid() bool {
	switch s {
	case CourseActive, CourseDraft, CourseArchived:
		return true
	}
	return false
}

type EnrollmentStatus string

const (
	EnrollmentEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentEnrolled, EnrollmentInProgress, EnrollmentCompleted:
		return true
	}
	return false
}

type LeaveType string

const (
	LeaveAnnual   LeaveType = "Annual"
	LeaveSick     LeaveType = "Sick"
	LeavePersonal LeaveType = "Personal"
)

// LeaveTypes lists the leave categories in display order.
var LeaveTypes = []LeaveType{LeaveAnnual, LeaveSick, LeavePersonal}

func (t LeaveType) Valid() bool {
	switch t {
	case LeaveAnnual, LeaveSick, LeavePersonal:
		return true
	}
	return false
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "Pending"
	LeaveApproved LeaveStatus = "Approved"
	LeaveRejected LeaveStatus = "Rejected"
)

// LeaveStatuses lists every status a leave request can have.
var LeaveStatuses = []LeaveStatus{LeavePending, LeaveApproved, LeaveRejected}

func (s LeaveStatus) Valid() bool {
	switch s {
	case LeavePending, LeaveApproved, LeaveRejected:
		return true
	}
	return false
}

// UnmarshalJSON refuses any status outside LeaveStatuses, so an artifact
// carrying one fails to load as corrupt instead of skewing status counts.
func (s *LeaveStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if !LeaveStatus(v).Valid() {
		return fmt.Errorf("unknown leave status %q", v)
	}
	*s = LeaveStatus(v)
	return nil
}

type PayslipStatus string

const (
	PayslipDraft PayslipStatus = "draft"
	PayslipPaid  PayslipStatus = "paid"
)

func (s PayslipStatus) Valid() bool {
	return s == PayslipDraft || s == PayslipPaid
}

type MethodType string

const (
	MethodTOTP  MethodType = "totp"
	MethodSMS   MethodType = "sms"
	MethodEmail MethodType = "email"
)

func (m MethodType) Valid() bool {
	switch m {
	case MethodTOTP, MethodSMS, MethodEmail:
		return true
	}
	return false
}
