package studio

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"

	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/confirm"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
	"studiodesk/internal/viewmodel"
)

// RecentPayments is how many payments the student panel lists.
const RecentPayments = 10

type panelAttendanceAPI interface {
	attendanceLister
	DeletePath(ctx context.Context, path string, query url.Values, out any) error
}

type paymentLister interface {
	ListPath(ctx context.Context, path string, query url.Values) ([]model.Payment, error)
}

// PanelState is the student detail screen.
type PanelState struct {
	Student       viewmodel.DetailState[model.Student] `json:"student"`
	Year          int                                  `json:"year"`
	Month         int                                  `json:"month"`
	Attendance    []model.AttendanceEntry              `json:"attendance"`
	AttendanceErr string                               `json:"attendanceError,omitempty"`
	Payments      []model.Payment                      `json:"payments"`
	PaymentsErr   string                               `json:"paymentsError,omitempty"`
	DeleteMonth   confirm.Snapshot                     `json:"deleteMonth"`
}

// StudentPanel is the student detail view: the record itself, one month
// of attendance, the latest payments and the delete-month action.
type StudentPanel struct {
	Detail *viewmodel.Detail[model.Student]

	attendance panelAttendanceAPI
	payments   paymentLister
	session    viewmodel.Epocher
	notifier   notify.Notifier
	logger     *zap.Logger
	gate       confirm.Gate

	mu            sync.Mutex
	seq           uint64
	studentID     string
	year, month   int
	entries       []model.AttendanceEntry
	attendanceErr string
	recent        []model.Payment
	paymentsErr   string
}

func NewStudentPanel(detail *viewmodel.Detail[model.Student], attendance panelAttendanceAPI, payments paymentLister, session viewmodel.Epocher, n notify.Notifier, logger *zap.Logger) *StudentPanel {
	return &StudentPanel{
		Detail:     detail,
		attendance: attendance,
		payments:   payments,
		session:    session,
		notifier:   n,
		logger:     logger,
	}
}

// Open loads the student, the given month of attendance and the recent
// payments. Only the student load decides the returned error; the other
// sections record their own.
func (p *StudentPanel) Open(ctx context.Context, studentID string, year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month %d out of range", month)
	}
	p.mu.Lock()
	if p.studentID != studentID {
		p.gate.Cancel()
		p.entries, p.recent = nil, nil
	}
	p.studentID, p.year, p.month = studentID, year, month
	p.mu.Unlock()

	if err := p.Detail.Load(ctx, studentID); err != nil {
		if apiclient.IsKind(err, apiclient.KindAuthExpired) {
			return err
		}
		p.logger.Debug("student load failed", zap.String("id", studentID), zap.Error(err))
	}
	if err := p.loadAttendance(ctx); apiclient.IsKind(err, apiclient.KindAuthExpired) {
		return err
	}
	if err := p.loadPayments(ctx, studentID); apiclient.IsKind(err, apiclient.KindAuthExpired) {
		return err
	}
	return nil
}

func (p *StudentPanel) loadAttendance(ctx context.Context) error {
	epoch := p.session.Epoch()
	p.mu.Lock()
	p.seq++
	seq := p.seq
	id, year, month := p.studentID, p.year, p.month
	p.mu.Unlock()

	entries, err := p.attendance.ListPath(ctx, apiclient.StudentAttendancePath(id), apiclient.MonthQuery(year, month))

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq || p.session.Epoch() != epoch {
		return viewmodel.ErrDiscarded
	}
	if err != nil {
		if !apiclient.IsKind(err, apiclient.KindAuthExpired) {
			p.attendanceErr = apiclient.Message(err)
			p.notifier.Notify(notify.Error, "Failed to load attendance records.")
		}
		return err
	}
	p.entries = entries
	p.attendanceErr = ""
	return nil
}

func (p *StudentPanel) loadPayments(ctx context.Context, studentID string) error {
	epoch := p.session.Epoch()
	all, err := p.payments.ListPath(ctx, model.CollectionPayments, url.Values{"studentId": {studentID}})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.studentID != studentID || p.session.Epoch() != epoch {
		return viewmodel.ErrDiscarded
	}
	if err != nil {
		if !apiclient.IsKind(err, apiclient.KindAuthExpired) {
			p.paymentsErr = apiclient.Message(err)
			p.notifier.Notify(notify.Error, "Failed to load payment records.")
		}
		return err
	}
	p.recent = LatestPayments(all, studentID, RecentPayments)
	p.paymentsErr = ""
	return nil
}

// LatestPayments keeps studentID's payments, newest payment date first,
// at most n of them.
func LatestPayments(all []model.Payment, studentID string, n int) []model.Payment {
	out := make([]model.Payment, 0, len(all))
	for _, pay := range all {
		if pay.StudentID == studentID {
			out = append(out, pay)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Payment) int { return b.PaidOn().Compare(a.PaidOn()) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RequestDeleteMonth asks for confirmation before deleting every
// attendance record of the open month.
func (p *StudentPanel) RequestDeleteMonth() (confirm.Snapshot, error) {
	p.mu.Lock()
	id, year, month := p.studentID, p.year, p.month
	p.mu.Unlock()
	if id == "" {
		return confirm.Snapshot{}, viewmodel.ErrNoRecord
	}
	desc := fmt.Sprintf("all attendance records for %d/%d", month, year)
	p.gate.Request(desc, func(ctx context.Context) error { return p.deleteMonth(ctx, id, year, month) }, nil)
	return p.gate.Snapshot(), nil
}

// ConfirmDeleteMonth runs a requested delete-month.
func (p *StudentPanel) ConfirmDeleteMonth(ctx context.Context) (bool, error) {
	return p.gate.Confirm(ctx)
}

// CancelDeleteMonth closes the confirmation.
func (p *StudentPanel) CancelDeleteMonth() bool { return p.gate.Cancel() }

func (p *StudentPanel) deleteMonth(ctx context.Context, id string, year, month int) error {
	epoch := p.session.Epoch()
	var res model.DeleteMonthResult
	err := p.attendance.DeletePath(ctx, apiclient.StudentMonthPath(id), apiclient.MonthQuery(year, month), &res)
	if p.session.Epoch() != epoch {
		return viewmodel.ErrDiscarded
	}
	if err != nil {
		if !apiclient.IsKind(err, apiclient.KindAuthExpired) {
			p.notifier.Notify(notify.Error, "Failed to delete attendance records: "+apiclient.Message(err))
		}
		return err
	}
	p.notifier.Notify(notify.Success, fmt.Sprintf("Deleted %d attendance records", res.DeletedCount))

	p.mu.Lock()
	current := p.studentID == id && p.year == year && p.month == month
	p.mu.Unlock()
	if current {
		if err := p.loadAttendance(ctx); err != nil {
			p.logger.Warn("reload after delete-month failed", zap.Error(err))
		}
	}
	return nil
}

// Snapshot returns the panel state.
func (p *StudentPanel) Snapshot() PanelState {
	st := PanelState{Student: p.Detail.Snapshot(), DeleteMonth: p.gate.Snapshot()}
	p.mu.Lock()
	defer p.mu.Unlock()
	st.Year, st.Month = p.year, p.month
	st.Attendance = p.entries
	if st.Attendance == nil {
		st.Attendance = []model.AttendanceEntry{}
	}
	st.AttendanceErr = p.attendanceErr
	st.Payments = p.recent
	if st.Payments == nil {
		st.Payments = []model.Payment{}
	}
	st.PaymentsErr = p.paymentsErr
	return st
}
