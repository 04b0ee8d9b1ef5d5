// Package studio instantiates the generic view-models for each studio
// entity and adds the screens that are specific to the studio: roster
// marking, the monthly calendar and the student detail panel.
package studio

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
	"studiodesk/internal/viewmodel"
)

// IST is the studio's timezone; attendance days are dated in it.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Today returns the current day in IST as YYYY-MM-DD.
func Today(now time.Time) string { return now.In(IST).Format(model.DateLayout) }

// Views is every view-model the dashboard serves, sharing one client and
// one session.
type Views struct {
	Leads    *viewmodel.Collection[model.Lead]
	Students *viewmodel.Collection[model.Student]
	Payments *viewmodel.Collection[model.Payment]

	LeadDetail    *viewmodel.Detail[model.Lead]
	PaymentDetail *viewmodel.Detail[model.Payment]
	Panel         *StudentPanel

	Roster   *Roster
	Calendar *Calendar
}

// NewViews wires the view-models to client.
func NewViews(client *apiclient.Client, session viewmodel.Epocher, n notify.Notifier, logger *zap.Logger) *Views {
	if logger == nil {
		logger = zap.NewNop()
	}
	leadsAPI := apiclient.NewResource[model.Lead](client, model.CollectionLeads)
	studentsAPI := apiclient.NewResource[model.Student](client, model.CollectionStudents)
	paymentsAPI := apiclient.NewResource[model.Payment](client, model.CollectionPayments)
	attendanceAPI := apiclient.NewResource[model.AttendanceEntry](client, model.CollectionAttendance)

	v := &Views{
		Leads: viewmodel.NewCollection[model.Lead](leadsAPI, session,
			viewmodel.WithNotifier[model.Lead](n),
			viewmodel.WithLogger[model.Lead](logger.Named("leads")),
			viewmodel.WithLabel[model.Lead]("Lead")),
		Students: viewmodel.NewCollection[model.Student](studentsAPI, session,
			viewmodel.WithNotifier[model.Student](n),
			viewmodel.WithLogger[model.Student](logger.Named("students")),
			viewmodel.WithLabel[model.Student]("Student"),
			viewmodel.WithSort[model.Student](NewestFirst[model.Student])),
		Payments: viewmodel.NewCollection[model.Payment](paymentsAPI, session,
			viewmodel.WithNotifier[model.Payment](n),
			viewmodel.WithLogger[model.Payment](logger.Named("payments")),
			viewmodel.WithLabel[model.Payment]("Payment")),
	}
	v.LeadDetail = viewmodel.NewDetail[model.Lead](leadsAPI, v.Leads, session, func(l model.Lead) string { return l.Name })
	v.PaymentDetail = viewmodel.NewDetail[model.Payment](paymentsAPI, v.Payments, session, describePayment)
	v.Panel = NewStudentPanel(
		viewmodel.NewDetail[model.Student](studentsAPI, v.Students, session, func(s model.Student) string { return s.Name }),
		attendanceAPI, paymentsAPI, session, n, logger.Named("panel"))
	v.Roster = NewRoster(v.Students, attendanceAPI, session, n, logger.Named("roster"))
	v.Calendar = NewCalendar(attendanceAPI, session, n, logger.Named("calendar"))
	return v
}

// NewestFirst orders records by createdAt descending. Records without a
// creation time sort last.
func NewestFirst[T model.Record](a, b T) int {
	ta, tb := a.Created(), b.Created()
	switch {
	case ta.IsZero() && tb.IsZero():
		return 0
	case ta.IsZero():
		return 1
	case tb.IsZero():
		return -1
	}
	return tb.Compare(ta)
}

func describePayment(p model.Payment) string {
	who := p.StudentName
	if who == "" {
		who = p.StudentID
	}
	return fmt.Sprintf("payment of %.2f from %s", p.Amount, who)
}
