package model

import (
	"strings"
	"time"
)

// Record is the identity every view-model needs from an entity. Everything
// else about an entity is opaque to the synchronization layer.
type Record interface {
	RecordID() string
	Created() time.Time
	SearchFields() []string
}

// Collection names understood by the remote API.
const (
	CollectionLeads      = "leads"
	CollectionStudents   = "students"
	CollectionPayments   = "payments"
	CollectionAttendance = "attendance"
)

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Payment statuses shown on the ledger.
const (
	PaymentCompleted = "completed"
	PaymentPending   = "pending"
)

// Lead is a prospective student captured by the front desk.
type Lead struct {
	ID              string     `json:"id,omitempty"`
	Name            string     `json:"name" validate:"notblank"`
	Phone           string     `json:"phone" validate:"notblank"`
	Email           string     `json:"email,omitempty" validate:"omitempty,email"`
	Source          string     `json:"source,omitempty"`
	ExperienceLevel string     `json:"experienceLevel,omitempty"`
	Status          string     `json:"status,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

func (l Lead) RecordID() string       { return l.ID }
func (l Lead) Created() time.Time     { return deref(l.CreatedAt) }
func (l Lead) SearchFields() []string { return []string{l.Name, l.Email, l.Source, l.Phone} }

// Student is an enrolled student.
type Student struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name" validate:"notblank"`
	Phone     string     `json:"phone" validate:"notblank"`
	Email     string     `json:"email,omitempty" validate:"omitempty,email"`
	Address   string     `json:"address,omitempty"`
	Age       *int       `json:"age,omitempty" validate:"omitempty,gte=0,lte=120"`
	Level     string     `json:"level,omitempty"`
	Batch     string     `json:"batch,omitempty"`
	Status    string     `json:"status,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func (s Student) RecordID() string   { return s.ID }
func (s Student) Created() time.Time { return deref(s.CreatedAt) }
func (s Student) SearchFields() []string {
	return []string{s.Name, s.Email, s.Level, s.Batch, s.Phone, s.Status}
}

// Payment is one row of the payment ledger.
type Payment struct {
	ID            string     `json:"id,omitempty"`
	StudentID     string     `json:"studentId" validate:"notblank"`
	StudentName   string     `json:"studentName,omitempty"`
	Amount        float64    `json:"amount" validate:"gte=0"`
	Status        string     `json:"status,omitempty"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	PaymentDate   *time.Time `json:"paymentDate,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

func (p Payment) RecordID() string   { return p.ID }
func (p Payment) Created() time.Time { return deref(p.CreatedAt) }
func (p Payment) SearchFields() []string {
	return []string{p.StudentName, p.StudentID, p.PaymentMethod, p.Notes}
}

// PaidOn returns the payment date, falling back to the creation time.
func (p Payment) PaidOn() time.Time {
	if p.PaymentDate != nil {
		return *p.PaymentDate
	}
	return p.Created()
}

// AttendanceEntry records one student's attendance on one day.
type AttendanceEntry struct {
	ID        string     `json:"id,omitempty"`
	StudentID string     `json:"studentId" validate:"notblank"`
	Date      string     `json:"date" validate:"notblank"`
	Status    string     `json:"status" validate:"oneof=present absent"`
	Notes     string     `json:"notes"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func (a AttendanceEntry) RecordID() string       { return a.ID }
func (a AttendanceEntry) Created() time.Time     { return deref(a.CreatedAt) }
func (a AttendanceEntry) SearchFields() []string { return []string{a.StudentID, a.Status, a.Notes} }

// Day returns the calendar day of the entry as YYYY-MM-DD. The API sends
// either a bare date or a full RFC 3339 timestamp.
func (a AttendanceEntry) Day() string {
	return DayKey(a.Date)
}

// DateLayout is the calendar-day format used on the wire.
const DateLayout = "2006-01-02"

// DayKey normalizes a wire date to YYYY-MM-DD in UTC.
func DayKey(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Format(DateLayout)
	}
	if len(s) >= len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}

// DeleteMonthResult is returned by the delete-month attendance endpoint.
type DeleteMonthResult struct {
	DeletedCount int `json:"deletedCount"`
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
