package studio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
)

type fixedSession struct{}

func (fixedSession) Token() string                                 { return "t1" }
func (fixedSession) Epoch() uint64                                 { return 1 }
func (fixedSession) ExpireAuth(ctx context.Context, e uint64) bool { return false }

// upstream is a scripted studio API.
type upstream struct {
	mu       sync.Mutex
	students []model.Student
	posted   []model.AttendanceEntry
	failFor  map[string]bool
	month    []model.AttendanceEntry
	payments []model.Payment
	queries  []string
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if status >= 300 {
		_, _ = w.Write([]byte(`{"success":false,"error":"duplicate entry"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": v})
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.queries = append(u.queries, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/api/students":
		writeData(w, http.StatusOK, u.students)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/students/"):
		id := strings.TrimPrefix(path, "/api/students/")
		for _, s := range u.students {
			if s.ID == id {
				writeData(w, http.StatusOK, s)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"Student not found"}`))
	case r.Method == http.MethodPost && path == "/api/attendance":
		var e model.AttendanceEntry
		_ = json.NewDecoder(r.Body).Decode(&e)
		if u.failFor[e.StudentID] {
			writeData(w, http.StatusInternalServerError, nil)
			return
		}
		e.ID = "att-" + e.StudentID
		u.posted = append(u.posted, e)
		writeData(w, http.StatusCreated, e)
	case r.Method == http.MethodDelete && strings.HasSuffix(path, "/month"):
		n := len(u.month)
		u.month = nil
		writeData(w, http.StatusOK, model.DeleteMonthResult{DeletedCount: n})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/attendance/student/"):
		writeData(w, http.StatusOK, u.month)
	case r.Method == http.MethodGet && path == "/api/payments":
		writeData(w, http.StatusOK, u.payments)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false}`))
	}
}

func newViews(t *testing.T, u *upstream) (*Views, *notify.Recorder) {
	t.Helper()
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)
	rec := notify.NewRecorder(50)
	return NewViews(apiclient.New(srv.URL, 0, fixedSession{}), fixedSession{}, rec, nil), rec
}

func at(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func TestStudents_SortedNewestFirstAfterLoad(t *testing.T) {
	u := &upstream{students: []model.Student{
		{ID: "old", Name: "A", CreatedAt: at("2024-01-01T00:00:00Z")},
		{ID: "undated", Name: "B"},
		{ID: "new", Name: "C", CreatedAt: at("2024-05-01T00:00:00Z")},
	}}
	v, _ := newViews(t, u)

	require.NoError(t, v.Students.Load(context.Background()))
	var got []string
	for _, s := range v.Students.Snapshot().Items {
		got = append(got, s.ID)
	}
	assert.Equal(t, []string{"new", "old", "undated"}, got)
}

func TestPayments_SummaryAndStatusFilter(t *testing.T) {
	items := []model.Payment{
		{ID: "1", StudentName: "Asha", Amount: 1500, Status: model.PaymentCompleted, PaymentMethod: "UPI"},
		{ID: "2", StudentName: "Ravi", Amount: 1000, Status: model.PaymentPending, PaymentMethod: "Cash"},
		{ID: "3", StudentName: "Asha", Amount: 500, Status: "refunded"},
	}
	assert.Equal(t, PaymentSummary{Total: 3000, Completed: 1500, Pending: 1000}, SummarizePayments(items))

	assert.Len(t, FilterPayments(items, "asha", StatusAll), 2)
	only := FilterPayments(items, "asha", model.PaymentCompleted)
	require.Len(t, only, 1)
	assert.Equal(t, "1", only[0].ID)
	assert.Len(t, FilterPayments(items, "", model.PaymentPending), 1)
}

func TestToday_UsesIST(t *testing.T) {
	assert.Equal(t, "2024-03-05", Today(time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-04", Today(time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)))
}

func TestRoster_MarkAllResetsDefaults(t *testing.T) {
	u := &upstream{students: []model.Student{{ID: "s1", Name: "Asha"}, {ID: "s2", Name: "Ravi"}}}
	v, rec := newViews(t, u)
	v.Roster.now = func() time.Time { return time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC) }
	require.NoError(t, v.Students.Load(context.Background()))

	for _, e := range v.Roster.Entries() {
		assert.Equal(t, model.StatusPresent, e.Status)
		assert.Empty(t, e.Notes)
	}
	require.NoError(t, v.Roster.Set("s2", model.StatusAbsent, "sick"))
	assert.ErrorIs(t, v.Roster.Set("s2", "late", ""), ErrUnknownStatus)

	res, err := v.Roster.Mark(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MarkResult{Date: "2024-03-05", Succeeded: 2}, res)
	require.Len(t, u.posted, 2)
	assert.Equal(t, "2024-03-05T00:00:00.000Z", u.posted[0].Date)
	assert.Equal(t, model.StatusAbsent, u.posted[1].Status)
	assert.Equal(t, "sick", u.posted[1].Notes)

	assert.Equal(t, model.StatusPresent, v.Roster.Entries()[1].Status, "roster resets after full success")
	notices := rec.Drain()
	assert.Equal(t, notify.Success, notices[len(notices)-1].Level)
	assert.Equal(t, "Attendance marked", notices[len(notices)-1].Text)
}

func TestRoster_PartialAndTotalFailure(t *testing.T) {
	u := &upstream{
		students: []model.Student{{ID: "s1"}, {ID: "s2"}},
		failFor:  map[string]bool{"s2": true},
	}
	v, rec := newViews(t, u)
	require.NoError(t, v.Students.Load(context.Background()))
	require.NoError(t, v.Roster.Set("s1", model.StatusAbsent, ""))

	res, err := v.Roster.Mark(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"Student s2: duplicate entry"}, res.Errors)
	assert.Equal(t, model.StatusAbsent, v.Roster.Entries()[0].Status, "choices survive a partial failure")
	last := rec.Drain()
	assert.Equal(t, notify.Warning, last[len(last)-1].Level)
	assert.Equal(t, "Attendance marked for 1 students. 1 failed.", last[len(last)-1].Text)

	u.mu.Lock()
	u.failFor["s1"] = true
	u.mu.Unlock()
	res, err = v.Roster.Mark(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	last = rec.Drain()
	assert.Equal(t, notify.Error, last[len(last)-1].Level)
}

func TestRoster_RejectsFutureDate(t *testing.T) {
	v, _ := newViews(t, &upstream{})
	v.Roster.now = func() time.Time { return time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC) }

	assert.ErrorIs(t, v.Roster.SetDate("2024-03-06"), ErrFutureDate)
	require.NoError(t, v.Roster.SetDate("2024-03-01"))
	assert.Equal(t, "2024-03-01", v.Roster.Date())
	assert.Error(t, v.Roster.SetDate("03/01/2024"))
}

func TestMonthGrid_LeadingBlanks(t *testing.T) {
	cells := MonthGrid(2024, time.March, map[string]DayMark{"2024-03-05": {Status: model.StatusAbsent}})
	// March 2024 starts on a Friday.
	require.Len(t, cells, 5+31)
	for _, c := range cells[:5] {
		assert.True(t, c.Blank)
	}
	assert.Equal(t, 1, cells[5].Day)
	assert.Equal(t, "2024-03-05", cells[9].Date)
	assert.Equal(t, model.StatusAbsent, cells[9].Status)
	assert.Len(t, MonthGrid(2024, time.February, nil), 4+29)
}

func TestCalendar_LoadAndSaveDay(t *testing.T) {
	u := &upstream{month: []model.AttendanceEntry{
		{ID: "a1", StudentID: "s1", Date: "2024-03-04T00:00:00.000Z", Status: model.StatusPresent},
		{ID: "a2", StudentID: "s1", Date: "2024-03-05", Status: model.StatusAbsent, Notes: "travel"},
	}}
	v, rec := newViews(t, u)

	require.NoError(t, v.Calendar.Load(context.Background(), "s1", 2024, 3))
	st := v.Calendar.Snapshot()
	assert.Equal(t, DayMark{Status: model.StatusAbsent, Notes: "travel"}, st.Days["2024-03-05"])
	assert.Equal(t, model.StatusPresent, st.Days["2024-03-04"].Status)
	assert.Contains(t, u.queries, "GET /api/attendance/student/s1?month=3&year=2024")

	require.NoError(t, v.Calendar.SaveDay(context.Background(), "2024-03-06", model.StatusPresent, ""))
	assert.Equal(t, model.StatusPresent, v.Calendar.Snapshot().Days["2024-03-06"].Status)
	assert.Equal(t, "Updated successfully", rec.Peek()[len(rec.Peek())-1].Text)
}

func TestCalendar_EmptyMonthNotice(t *testing.T) {
	v, rec := newViews(t, &upstream{})
	require.NoError(t, v.Calendar.Load(context.Background(), "s1", 2024, 2))
	assert.Equal(t, "No attendance records found for this month", rec.Peek()[0].Text)
	assert.Equal(t, notify.Info, rec.Peek()[0].Level)
	assert.Error(t, v.Calendar.Load(context.Background(), "s1", 2024, 13))
}

func TestLatestPayments(t *testing.T) {
	var all []model.Payment
	for i := 1; i <= 12; i++ {
		d := time.Date(2024, time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		all = append(all, model.Payment{ID: d.Format("01"), StudentID: "s1", PaymentDate: &d})
	}
	all = append(all, model.Payment{ID: "other", StudentID: "s2"})

	got := LatestPayments(all, "s1", RecentPayments)
	require.Len(t, got, 10)
	assert.Equal(t, "12", got[0].ID)
	assert.Equal(t, "03", got[9].ID)
}

func TestStudentPanel_OpenAndDeleteMonth(t *testing.T) {
	paid := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	u := &upstream{
		students: []model.Student{{ID: "s1", Name: "Asha", Phone: "555"}},
		month: []model.AttendanceEntry{
			{ID: "a1", StudentID: "s1", Date: "2024-03-04", Status: model.StatusPresent},
			{ID: "a2", StudentID: "s1", Date: "2024-03-05", Status: model.StatusPresent},
		},
		payments: []model.Payment{{ID: "p1", StudentID: "s1", Amount: 1500, PaymentDate: &paid}, {ID: "p2", StudentID: "s9"}},
	}
	v, rec := newViews(t, u)

	require.NoError(t, v.Panel.Open(context.Background(), "s1", 2024, 3))
	st := v.Panel.Snapshot()
	require.NotNil(t, st.Student.Record)
	assert.Equal(t, "Asha", st.Student.Record.Name)
	assert.Len(t, st.Attendance, 2)
	require.Len(t, st.Payments, 1)
	assert.Equal(t, "p1", st.Payments[0].ID)

	snap, err := v.Panel.RequestDeleteMonth()
	require.NoError(t, err)
	assert.Equal(t, "all attendance records for 3/2024", snap.Description)

	ran, err := v.Panel.ConfirmDeleteMonth(context.Background())
	assert.True(t, ran)
	require.NoError(t, err)
	assert.Empty(t, v.Panel.Snapshot().Attendance, "attendance reloads after delete")
	assert.Contains(t, u.queries, "DELETE /api/attendance/student/s1/month?month=3&year=2024")

	var texts []string
	for _, n := range rec.Drain() {
		texts = append(texts, n.Text)
	}
	assert.Contains(t, texts, "Deleted 2 attendance records")
}
