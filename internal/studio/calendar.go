package studio

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
	"studiodesk/internal/viewmodel"
)

type attendanceLister interface {
	ListPath(ctx context.Context, path string, query url.Values) ([]model.AttendanceEntry, error)
}

type calendarAPI interface {
	attendanceCreator
	attendanceLister
}

// DayMark is the attendance recorded on one day.
type DayMark struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Cell is one square of the month grid. Blank cells pad the first week.
type Cell struct {
	Blank  bool   `json:"blank,omitempty"`
	Day    int    `json:"day,omitempty"`
	Date   string `json:"date,omitempty"`
	Status string `json:"status,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// CalendarState is the calendar as the view renders it.
type CalendarState struct {
	StudentID string             `json:"studentId"`
	Year      int                `json:"year"`
	Month     int                `json:"month"`
	Loading   bool               `json:"loading"`
	Error     string             `json:"error,omitempty"`
	Days      map[string]DayMark `json:"days"`
	Grid      []Cell             `json:"grid"`
}

// Calendar shows one student's attendance for one month.
type Calendar struct {
	api      calendarAPI
	session  viewmodel.Epocher
	notifier notify.Notifier
	logger   *zap.Logger

	mu        sync.Mutex
	seq       uint64
	studentID string
	year      int
	month     int
	loading   bool
	err       string
	days      map[string]DayMark
}

func NewCalendar(api calendarAPI, session viewmodel.Epocher, n notify.Notifier, logger *zap.Logger) *Calendar {
	return &Calendar{api: api, session: session, notifier: n, logger: logger, days: map[string]DayMark{}}
}

// Load selects a student and month (1-12) and fetches its attendance.
// A response for an earlier selection is discarded.
func (c *Calendar) Load(ctx context.Context, studentID string, year, month int) error {
	if studentID == "" {
		return viewmodel.ErrNoRecord
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("month %d out of range", month)
	}
	epoch := c.session.Epoch()
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.studentID != studentID || c.year != year || c.month != month {
		c.days = map[string]DayMark{}
	}
	c.studentID, c.year, c.month = studentID, year, month
	c.loading = true
	c.err = ""
	c.mu.Unlock()

	entries, err := c.api.ListPath(ctx, apiclient.StudentAttendancePath(studentID), apiclient.MonthQuery(year, month))

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return viewmodel.ErrDiscarded
	}
	c.loading = false
	if c.session.Epoch() != epoch {
		return viewmodel.ErrDiscarded
	}
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindAuthExpired) {
			return err
		}
		c.err = apiclient.Message(err)
		c.logger.Warn("calendar load failed", zap.String("student", studentID), zap.Error(err))
		c.notifier.Notify(notify.Error, "Failed to fetch attendance data: "+c.err)
		return err
	}
	days := make(map[string]DayMark, len(entries))
	for _, e := range entries {
		days[e.Day()] = DayMark{Status: e.Status, Notes: e.Notes}
	}
	c.days = days
	if len(days) == 0 {
		c.notifier.Notify(notify.Info, "No attendance records found for this month")
	}
	return nil
}

// SaveDay records attendance for date (YYYY-MM-DD) for the selected
// student and patches the month on success.
func (c *Calendar) SaveDay(ctx context.Context, date, status, notes string) error {
	if status != model.StatusPresent && status != model.StatusAbsent {
		return ErrUnknownStatus
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return fmt.Errorf("parse date %q: %w", date, err)
	}
	epoch := c.session.Epoch()
	c.mu.Lock()
	studentID := c.studentID
	c.mu.Unlock()
	if studentID == "" {
		return viewmodel.ErrNoRecord
	}

	_, err := c.api.Create(ctx, model.AttendanceEntry{StudentID: studentID, Date: date, Status: status, Notes: notes})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Epoch() != epoch {
		return viewmodel.ErrDiscarded
	}
	if err != nil {
		if !apiclient.IsKind(err, apiclient.KindAuthExpired) {
			c.notifier.Notify(notify.Error, "Failed to save attendance: "+apiclient.Message(err))
		}
		return err
	}
	if c.studentID == studentID {
		days := make(map[string]DayMark, len(c.days)+1)
		for k, v := range c.days {
			days[k] = v
		}
		days[date] = DayMark{Status: status, Notes: notes}
		c.days = days
	}
	c.notifier.Notify(notify.Success, "Updated successfully")
	return nil
}

// Snapshot returns the selection, the day map and the month grid.
func (c *Calendar) Snapshot() CalendarState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := CalendarState{
		StudentID: c.studentID,
		Year:      c.year,
		Month:     c.month,
		Loading:   c.loading,
		Error:     c.err,
		Days:      c.days,
	}
	if c.month != 0 {
		st.Grid = MonthGrid(c.year, time.Month(c.month), c.days)
	}
	return st
}

// MonthGrid lays out a month starting on Sunday: blank cells up to the
// first weekday, then one cell per day carrying any recorded attendance.
func MonthGrid(year int, month time.Month, days map[string]DayMark) []Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	n := first.AddDate(0, 1, -1).Day()
	lead := int(first.Weekday())
	cells := make([]Cell, 0, lead+n)
	for i := 0; i < lead; i++ {
		cells = append(cells, Cell{Blank: true})
	}
	for d := 1; d <= n; d++ {
		date := time.Date(year, month, d, 0, 0, 0, 0, time.UTC).Format(model.DateLayout)
		m := days[date]
		cells = append(cells, Cell{Day: d, Date: date, Status: m.Status, Notes: m.Notes})
	}
	return cells
}
