package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
	"studiodesk/internal/viewmodel"
)

var (
	ErrMarkInFlight  = errors.New("attendance marking already in progress")
	ErrUnknownStatus = errors.New("status must be present or absent")
	ErrFutureDate    = errors.New("date cannot be in the future")
)

// attendanceCreator posts attendance records.
type attendanceCreator interface {
	Create(ctx context.Context, draft any) (model.AttendanceEntry, error)
}

// RosterEntry is one student's row on the marking screen.
type RosterEntry struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Batch     string `json:"batch,omitempty"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

type mark struct{ status, notes string }

// MarkResult counts the outcome of one marking run.
type MarkResult struct {
	Date      string   `json:"date"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Roster marks a day's attendance for every loaded student. Students
// default to present with empty notes.
type Roster struct {
	students *viewmodel.Collection[model.Student]
	api      attendanceCreator
	session  viewmodel.Epocher
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	date    string
	marks   map[string]mark
	marking bool
}

func NewRoster(students *viewmodel.Collection[model.Student], api attendanceCreator, session viewmodel.Epocher, n notify.Notifier, logger *zap.Logger) *Roster {
	return &Roster{
		students: students,
		api:      api,
		session:  session,
		notifier: n,
		logger:   logger,
		now:      time.Now,
		marks:    make(map[string]mark),
	}
}

// Date returns the selected day, today in IST by default.
func (r *Roster) Date() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dateLocked()
}

func (r *Roster) dateLocked() string {
	if r.date == "" {
		return Today(r.now())
	}
	return r.date
}

// SetDate selects the day to mark. Future days are refused.
func (r *Roster) SetDate(date string) error {
	d, err := time.ParseInLocation(model.DateLayout, date, IST)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", date, err)
	}
	if d.Format(model.DateLayout) > Today(r.now()) {
		return ErrFutureDate
	}
	r.mu.Lock()
	r.date = d.Format(model.DateLayout)
	r.mu.Unlock()
	return nil
}

// Entries lists every loaded student with the status and notes chosen so
// far.
func (r *Roster) Entries() []RosterEntry {
	students := r.students.Snapshot().Items
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RosterEntry, 0, len(students))
	for _, s := range students {
		m, ok := r.marks[s.ID]
		if !ok {
			m = mark{status: model.StatusPresent}
		}
		out = append(out, RosterEntry{StudentID: s.ID, Name: s.Name, Batch: s.Batch, Status: m.status, Notes: m.notes})
	}
	return out
}

// Set chooses the status and notes for one student.
func (r *Roster) Set(studentID, status, notes string) error {
	if status != model.StatusPresent && status != model.StatusAbsent {
		return ErrUnknownStatus
	}
	if _, ok := r.students.Cached(studentID); !ok {
		return viewmodel.ErrNoRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks[studentID] = mark{status: status, notes: notes}
	return nil
}

// Mark posts one attendance record per student, one at a time. It stops
// at the first auth expiry. Full success resets the roster.
func (r *Roster) Mark(ctx context.Context) (MarkResult, error) {
	r.mu.Lock()
	if r.marking {
		r.mu.Unlock()
		return MarkResult{}, ErrMarkInFlight
	}
	r.marking = true
	date := r.dateLocked()
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.marking = false
		r.mu.Unlock()
	}()

	entries := r.Entries()
	res := MarkResult{Date: date}
	if len(entries) == 0 {
		r.notifier.Notify(notify.Warning, "No students to mark")
		return res, nil
	}

	epoch := r.session.Epoch()
	for _, e := range entries {
		draft := model.AttendanceEntry{
			StudentID: e.StudentID,
			Date:      date + "T00:00:00.000Z",
			Status:    e.Status,
			Notes:     e.Notes,
		}
		_, err := r.api.Create(ctx, draft)
		if apiclient.IsKind(err, apiclient.KindAuthExpired) {
			return res, err
		}
		if r.session.Epoch() != epoch {
			return res, viewmodel.ErrDiscarded
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Student %s: %s", e.StudentID, apiclient.Message(err)))
			continue
		}
		res.Succeeded++
	}

	switch {
	case res.Failed == 0:
		r.mu.Lock()
		r.marks = make(map[string]mark)
		r.mu.Unlock()
		r.notifier.Notify(notify.Success, "Attendance marked")
	case res.Succeeded > 0:
		r.logger.Warn("attendance partially marked", zap.Int("failed", res.Failed), zap.Strings("errors", res.Errors))
		r.notifier.Notify(notify.Warning, fmt.Sprintf("Attendance marked for %d students. %d failed.", res.Succeeded, res.Failed))
	default:
		r.logger.Warn("attendance marking failed", zap.Strings("errors", res.Errors))
		r.notifier.Notify(notify.Error, "Failed to mark attendance for any students")
	}
	return res, nil
}
