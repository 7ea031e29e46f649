package hr

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/hrstore/generic"
)

// =============================================================================
// COURSES
// =============================================================================

// TrainingCourse is a course employees can enroll in.
type TrainingCourse struct {
	ID                CourseID          `json:"id"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Category          string            `json:"category"`
	Level             string            `json:"level"`
	Instructor        string            `json:"instructor"`
	DurationHours     int               `json:"duration_hours"`
	MaxEnrollment     int               `json:"max_enrollment"`
	CurrentEnrollment int               `json:"current_enrollment"`
	Status            CourseStatus      `json:"status"`
	Rating            decimal.Decimal   `json:"rating"`
	RatingCount       int               `json:"rating_count"`
	StartDate         generic.TimePoint `json:"start_date"`
	EndDate           generic.TimePoint `json:"end_date"`
	generic.Stamps
}

func (c TrainingCourse) Key() CourseID     { return c.ID }
func (c *TrainingCourse) SetKey(k CourseID) { c.ID = k }

var _ generic.Record[CourseID] = (*TrainingCourse)(nil)

var maxRating = decimal.NewFromInt(5)

func validateCourse(c TrainingCourse) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return generic.Invalid("title is required")
	case !c.Status.Valid():
		return generic.Invalid("unknown course status %q", c.Status)
	case c.DurationHours < 0 || c.MaxEnrollment < 0 || c.CurrentEnrollment < 0 || c.RatingCount < 0:
		return generic.Invalid("counters cannot be negative")
	case c.MaxEnrollment > 0 && c.CurrentEnrollment > c.MaxEnrollment:
		return generic.Invalid("current_enrollment %d exceeds max_enrollment %d", c.CurrentEnrollment, c.MaxEnrollment)
	case c.Rating.IsNegative() || c.Rating.GreaterThan(maxRating):
		return generic.Invalid("rating %s is outside 0-5", c.Rating)
	case !(generic.Period{Start: c.StartDate, End: c.EndDate}).Valid():
		return generic.Invalid("end_date is before start_date")
	}
	return nil
}

// CourseFilter selects courses. Zero fields do not filter.
type CourseFilter struct {
	Category string
	Level    string
	Status   CourseStatus
	Search   string // title, description or instructor
}

func (f CourseFilter) filters() []generic.Filter[TrainingCourse] {
	var out []generic.Filter[TrainingCourse]
	if f.Category != "" {
		out = append(out, generic.Equal(func(c TrainingCourse) string { return c.Category }, f.Category))
	}
	if f.Level != "" {
		out = append(out, generic.Equal(func(c TrainingCourse) string { return c.Level }, f.Level))
	}
	if f.Status != "" {
		out = append(out, generic.Equal(func(c TrainingCourse) CourseStatus { return c.Status }, f.Status))
	}
	return append(out, generic.Search(f.Search,
		func(c TrainingCourse) string { return c.Title },
		func(c TrainingCourse) string { return c.Description },
		func(c TrainingCourse) string { return c.Instructor },
	))
}

// CoursePatch holds the fields to change; nil fields are left alone.
type CoursePatch struct {
	Title             *string
	Description       *string
	Category          *string
	Level             *string
	Instructor        *string
	DurationHours     *int
	MaxEnrollment     *int
	CurrentEnrollment *int
	Status            *CourseStatus
	StartDate         *generic.TimePoint
	EndDate           *generic.TimePoint
}

func (p CoursePatch) apply(c *TrainingCourse) {
	set(&c.Title, p.Title)
	set(&c.Description, p.Description)
	set(&c.Category, p.Category)
	set(&c.Level, p.Level)
	set(&c.Instructor, p.Instructor)
	set(&c.DurationHours, p.DurationHours)
	set(&c.MaxEnrollment, p.MaxEnrollment)
	set(&c.CurrentEnrollment, p.CurrentEnrollment)
	set(&c.Status, p.Status)
	set(&c.StartDate, p.StartDate)
	set(&c.EndDate, p.EndDate)
}

// Courses is the training_courses collection.
type Courses struct {
	*generic.Repository[TrainingCourse, CourseID, *TrainingCourse]
}

func newCourses(s *generic.Store) *Courses {
	return &Courses{generic.NewRepository[TrainingCourse, CourseID](s, CollectionCourses,
		generic.WithValidator(validateCourse),
	)}
}

// Create stores c. An empty status means draft.
func (r *Courses) Create(ctx context.Context, c TrainingCourse) (TrainingCourse, error) {
	if c.Status == "" {
		c.Status = CourseDraft
	}
	return r.Repository.Create(ctx, c)
}

// All returns courses matching f, most recently created first.
func (r *Courses) All(ctx context.Context, f CourseFilter) ([]TrainingCourse, error) {
	return r.List(ctx, f.filters()...)
}

// Patch merges p onto course id.
func (r *Courses) Patch(ctx context.Context, id CourseID, p CoursePatch) (TrainingCourse, bool, error) {
	return r.Update(ctx, id, func(c *TrainingCourse) error {
		p.apply(c)
		return nil
	})
}

// Rate folds a 0-5 score into the course's running average.
func (r *Courses) Rate(ctx context.Context, id CourseID, score decimal.Decimal) (TrainingCourse, bool, error) {
	if score.IsNegative() || score.GreaterThan(maxRating) {
		return TrainingCourse{}, false, generic.Invalid("score %s is outside 0-5", score)
	}
	return r.Update(ctx, id, func(c *TrainingCourse) error {
		n := decimal.NewFromInt(int64(c.RatingCount))
		c.Rating = c.Rating.Mul(n).Add(score).Div(n.Add(decimal.NewFromInt(1))).Round(2)
		c.RatingCount++
		return nil
	})
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

// EmployeeTraining links an employee to a course.
type EmployeeTraining struct {
	ID             EnrollmentID      `json:"id"`
	EmployeeID     EmployeeID        `json:"employee_id"`
	CourseID       CourseID          `json:"course_id"`
	Status         EnrollmentStatus  `json:"status"`
	Progress       int               `json:"progress"`
	EnrolledAt     generic.TimePoint `json:"enrolled_at"`
	CompletedAt    generic.TimePoint `json:"completed_at"`
	Score          *int              `json:"score"`
	CertificateURL string            `json:"certificate_url"`
	generic.Stamps
}

func (t EmployeeTraining) Key() EnrollmentID     { return t.ID }
func (t *EmployeeTraining) SetKey(k EnrollmentID) { t.ID = k }

func (t EmployeeTraining) Clone() EmployeeTraining {
	t.Score = clonePtr(t.Score)
	return t
}

var _ generic.Record[EnrollmentID] = (*EmployeeTraining)(nil)

func validateEnrollment(t EmployeeTraining) error {
	switch {
	case t.EmployeeID <= 0:
		return generic.Invalid("employee_id is required")
	case t.CourseID <= 0:
		return generic.Invalid("course_id is required")
	case !t.Status.Valid():
		return generic.Invalid("unknown enrollment status %q", t.Status)
	case t.Progress < 0 || t.Progress > 100:
		return generic.Invalid("progress %d is outside 0-100", t.Progress)
	case t.Score != nil && (*t.Score < 0 || *t.Score > 100):
		return generic.Invalid("score %d is outside 0-100", *t.Score)
	}
	return nil
}

// EnrollmentFilter selects enrollments. Zero fields do not filter.
type EnrollmentFilter struct {
	EmployeeID EmployeeID
	CourseID   CourseID
	Status     EnrollmentStatus
}

func (f EnrollmentFilter) filters() []generic.Filter[EmployeeTraining] {
	var out []generic.Filter[EmployeeTraining]
	if f.EmployeeID != 0 {
		out = append(out, generic.Equal(func(t EmployeeTraining) EmployeeID { return t.EmployeeID }, f.EmployeeID))
	}
	if f.CourseID != 0 {
		out = append(out, generic.Equal(func(t EmployeeTraining) CourseID { return t.CourseID }, f.CourseID))
	}
	if f.Status != "" {
		out = append(out, generic.Equal(func(t EmployeeTraining) EnrollmentStatus { return t.Status }, f.Status))
	}
	return out
}

// EnrollmentPatch holds the fields to change; nil fields are left alone.
// Progress goes through RecordProgress so status follows it.
type EnrollmentPatch struct {
	Status         *EnrollmentStatus
	Score          *int
	CertificateURL *string
}

func (p EnrollmentPatch) apply(t *EmployeeTraining) {
	set(&t.Status, p.Status)
	if p.Score != nil {
		t.Score = Ref(*p.Score)
	}
	set(&t.CertificateURL, p.CertificateURL)
}

// Enrollments is the employee_trainings collection.
type Enrollments struct {
	*generic.Repository[EmployeeTraining, EnrollmentID, *EmployeeTraining]
	today func() generic.TimePoint
}

func newEnrollments(s *generic.Store) *Enrollments {
	return &Enrollments{
		Repository: generic.NewRepository[EmployeeTraining, EnrollmentID](s, CollectionEnrollments,
			generic.WithValidator(validateEnrollment),
		),
		today: func() generic.TimePoint { return generic.DateOf(s.Now()) },
	}
}

// Create stores t. An empty status means enrolled and enrolled_at
// defaults to today.
func (r *Enrollments) Create(ctx context.Context, t EmployeeTraining) (EmployeeTraining, error) {
	if t.Status == "" {
		t.Status = EnrollmentEnrolled
	}
	if t.EnrolledAt.IsZero() {
		t.EnrolledAt = r.today()
	}
	return r.Repository.Create(ctx, t)
}

// All returns enrollments matching f, most recently created first.
func (r *Enrollments) All(ctx context.Context, f EnrollmentFilter) ([]EmployeeTraining, error) {
	return r.List(ctx, f.filters()...)
}

// Patch merges p onto enrollment id.
func (r *Enrollments) Patch(ctx context.Context, id EnrollmentID, p EnrollmentPatch) (EmployeeTraining, bool, error) {
	return r.Update(ctx, id, func(t *EmployeeTraining) error {
		p.apply(t)
		return nil
	})
}

// RecordProgress sets progress (clamped to 0-100) and moves the status
// along: 0 is enrolled, 1-99 in progress, 100 completed with completed_at
// set to today. Dropping below 100 reopens a completed enrollment.
func (r *Enrollments) RecordProgress(ctx context.Context, id EnrollmentID, pct int) (EmployeeTraining, bool, error) {
	pct = max(0, min(100, pct))
	today := r.today()
	return r.Update(ctx, id, func(t *EmployeeTraining) error {
		t.Progress = pct
		switch {
		case pct == 100:
			t.Status = EnrollmentCompleted
			if t.CompletedAt.IsZero() {
				t.CompletedAt = today
			}
		case pct > 0:
			t.Status = EnrollmentInProgress
			t.CompletedAt = generic.TimePoint{}
		default:
			t.Status = EnrollmentEnrolled
			t.CompletedAt = generic.TimePoint{}
		}
		return nil
	})
}
