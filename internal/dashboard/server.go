// Package dashboard serves the view-models as a JSON API for the studio
// admin front end. It owns no state of its own: every handler drives a
// view-model and returns its snapshot.
package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/httpmiddleware"
	"studiodesk/internal/model"
	"studiodesk/internal/notify"
	"studiodesk/internal/session"
	"studiodesk/internal/studio"
)

const (
	loginPath = "/login"
	homePath  = "/dashboard"
)

// Deps are the collaborators a Server drives.
type Deps struct {
	Session *session.Manager
	Client  *apiclient.Client
	Views   *studio.Views
	// Notices is drained by GET /ui/notices.
	Notices *notify.Recorder
	// Notifier receives the server's own notices. Defaults to Notices.
	Notifier        notify.Notifier
	Logger          *zap.Logger
	RateLimitPerMin int
	CORSOrigins     []string
	Metrics         bool
}

// Server is the dashboard HTTP surface.
type Server struct {
	session  *session.Manager
	client   *apiclient.Client
	views    *studio.Views
	notices  *notify.Recorder
	notifier notify.Notifier
	logger   *zap.Logger
	limiter  *httpmiddleware.TokenBucket
	origins  []string
	metrics  bool
	now      func() time.Time
}

func New(d Deps) *Server {
	s := &Server{
		session:  d.Session,
		client:   d.Client,
		views:    d.Views,
		notices:  d.Notices,
		notifier: d.Notifier,
		logger:   d.Logger,
		limiter:  httpmiddleware.NewTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin),
		origins:  d.CORSOrigins,
		metrics:  d.Metrics,
		now:      time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notices == nil {
		s.notices = notify.NewRecorder(0)
	}
	if s.notifier == nil {
		s.notifier = s.notices
	}
	return s
}

// Router builds the gin engine with middleware and every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(s.logger, "/healthz", "/metrics"))
	if len(s.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
			MaxAge:           24 * time.Hour,
		}))
	}
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(s.limiter.RateLimitBy(s.rateKey))

	if s.metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	r.GET("/healthz", s.healthz)

	ui := r.Group("/ui")
	ui.POST("/login", s.login)
	ui.POST("/logout", s.logout)
	ui.GET("/session", s.currentSession)
	ui.GET("/notices", s.drainNotices)

	protected := ui.Group("", s.requireSession)
	mountEntity(protected.Group("/"+model.CollectionLeads), s, entity[model.Lead]{
		coll:   s.views.Leads,
		detail: s.views.LeadDetail,
		list:   plainList[model.Lead],
	})
	mountEntity(protected.Group("/"+model.CollectionStudents), s, entity[model.Student]{
		coll:   s.views.Students,
		detail: s.views.Panel.Detail,
		list:   plainList[model.Student],
	})
	mountEntity(protected.Group("/"+model.CollectionPayments), s, entity[model.Payment]{
		coll:   s.views.Payments,
		detail: s.views.PaymentDetail,
		list:   paymentList,
	})

	students := protected.Group("/" + model.CollectionStudents)
	students.GET("/:id/panel", s.openPanel)
	students.POST("/:id/attendance/delete-month", s.requestDeleteMonth)
	students.POST("/:id/attendance/delete-month/confirm", s.confirmDeleteMonth)
	students.POST("/:id/attendance/delete-month/cancel", s.cancelDeleteMonth)

	att := protected.Group("/attendance")
	att.GET("/roster", s.roster)
	att.PUT("/roster/:studentId", s.setRosterEntry)
	att.POST("/mark", s.markAttendance)

	protected.GET("/calendar", s.calendar)
	protected.POST("/calendar/day", s.saveCalendarDay)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	healthy := s.session.Healthy(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "session": healthy})
}

// requireSession answers protected routes with a login redirect, without
// any upstream call, when no usable credential is held.
func (s *Server) requireSession(c *gin.Context) {
	if err := s.session.Require(); err != nil {
		s.redirectToLogin(c)
		return
	}
	c.Next()
}

// rateKey gives each login session its own bucket per address. Requests
// without a credential share the address bucket, login attempts included.
func (s *Server) rateKey(c *gin.Context) string {
	ip := httpmiddleware.ClientIP(c)
	if s.session.Token() == "" {
		return "ip:" + ip
	}
	return "session:" + strconv.FormatUint(s.session.Epoch(), 10) + ":" + ip
}

func (s *Server) drainNotices(c *gin.Context) {
	ok(c, http.StatusOK, s.notices.Drain())
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}
