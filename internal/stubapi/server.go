// Package stubapi is a local stand-in for the studio's REST API. It speaks
// the same JSON envelope so the dashboard can run without the production
// backend.
package stubapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studiodesk/internal/auth"
	"studiodesk/internal/httpmiddleware"
	"studiodesk/internal/model"
)

// Options configures authentication for the stub.
type Options struct {
	Issuer        string
	SigningKey    string
	AccessTTL     time.Duration
	AdminUser     string
	AdminPassword string
}

// Server serves the envelope API from a Store.
type Server struct {
	store  Store
	opts   Options
	denied *auth.Denylist
	logger *zap.Logger
}

func New(store Store, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 8 * time.Hour
	}
	return &Server{store: store, opts: opts, denied: auth.NewDenylist(), logger: logger}
}

type collectionDef struct {
	name     string
	label    string
	validate func([]byte) error
}

var collections = []collectionDef{
	{model.CollectionLeads, "Lead", validateAs[model.Lead]},
	{model.CollectionStudents, "Student", validateAs[model.Student]},
	{model.CollectionPayments, "Payment", validateAs[model.Payment]},
	{model.CollectionAttendance, "Attendance record", validateAs[model.AttendanceEntry]},
}

func validateAs[T any](raw []byte) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return model.Validate(v)
}

func writeOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func writeFail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpmiddleware.RequestLogger(s.logger, "/healthz"))

	api := r.Group("/api")
	api.POST("/auth/login", s.login)

	authed := api.Group("", auth.Bearer(s.opts.SigningKey, s.opts.Issuer, s.denied))
	authed.POST("/auth/logout", s.logout)

	authed.GET("/attendance/student/:id", s.studentAttendance)
	authed.DELETE("/attendance/student/:id/month", s.deleteStudentMonth)

	for _, def := range collections {
		g := authed.Group("/" + def.name)
		g.GET("", s.list(def))
		g.GET("/:id", s.get(def))
		g.POST("", s.create(def))
		g.PUT("/:id", s.update(def))
		g.DELETE("/:id", s.remove(def))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		writeFail(c, http.StatusBadRequest, "Username and password are required")
		return
	}
	if req.Username != s.opts.AdminUser || req.Password != s.opts.AdminPassword {
		writeFail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	tok, err := auth.Issue(req.Username, "admin", s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL)
	if err != nil {
		s.logger.Error("token issue failed", zap.Error(err))
		writeFail(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeOK(c, http.StatusOK, gin.H{
		"token": tok.Value,
		"user": gin.H{
			"id":       req.Username,
			"username": req.Username,
			"role":     "admin",
		},
	})
}

func (s *Server) logout(c *gin.Context) {
	claims := c.MustGet(auth.ClaimsKey).(auth.Claims)
	exp := time.Now().Add(s.opts.AccessTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.denied.Revoke(claims.ID, exp)
	writeOK(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) list(def collectionDef) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := s.store.List(c.Request.Context(), def.name)
		if err != nil {
			s.internal(c, "list", err)
			return
		}
		if sid := c.Query("studentId"); sid != "" {
			docs = filterDocs(docs, func(d Doc) bool { return d.String("studentId") == sid })
		}
		writeOK(c, http.StatusOK, docs)
	}
}

func (s *Server) get(def collectionDef) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := s.store.Get(c.Request.Context(), def.name, c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			writeFail(c, http.StatusNotFound, def.label+" not found")
			return
		}
		if err != nil {
			s.internal(c, "get", err)
			return
		}
		writeOK(c, http.StatusOK, doc)
	}
}

func (s *Server) create(def collectionDef) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, raw, ok := s.bindDoc(c)
		if !ok {
			return
		}
		if err := def.validate(raw); err != nil {
			writeFail(c, http.StatusBadRequest, err.Error())
			return
		}
		delete(doc, "id")
		ctx := c.Request.Context()

		// One attendance record per student per day; a second post
		// overwrites the first.
		if def.name == model.CollectionAttendance {
			day := model.DayKey(doc.String("date"))
			docs, err := s.store.List(ctx, def.name)
			if err != nil {
				s.internal(c, "create", err)
				return
			}
			for _, d := range docs {
				if d.String("studentId") == doc.String("studentId") && model.DayKey(d.String("date")) == day {
					updated, err := s.store.Update(ctx, def.name, d.ID(), doc)
					if err != nil {
						s.internal(c, "create", err)
						return
					}
					writeOK(c, http.StatusOK, updated)
					return
				}
			}
		}

		created, err := s.store.Insert(ctx, def.name, doc)
		if err != nil {
			s.internal(c, "create", err)
			return
		}
		writeOK(c, http.StatusCreated, created)
	}
}

func (s *Server) update(def collectionDef) gin.HandlerFunc {
	return func(c *gin.Context) {
		patch, _, ok := s.bindDoc(c)
		if !ok {
			return
		}
		updated, err := s.store.Update(c.Request.Context(), def.name, c.Param("id"), patch)
		if errors.Is(err, ErrNotFound) {
			writeFail(c, http.StatusNotFound, def.label+" not found")
			return
		}
		if err != nil {
			s.internal(c, "update", err)
			return
		}
		writeOK(c, http.StatusOK, updated)
	}
}

func (s *Server) remove(def collectionDef) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.store.Delete(c.Request.Context(), def.name, c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			writeFail(c, http.StatusNotFound, def.label+" not found")
			return
		}
		if err != nil {
			s.internal(c, "delete", err)
			return
		}
		writeOK(c, http.StatusOK, gin.H{"id": c.Param("id")})
	}
}

func (s *Server) studentAttendance(c *gin.Context) {
	docs, ok := s.monthDocs(c)
	if !ok {
		return
	}
	writeOK(c, http.StatusOK, docs)
}

func (s *Server) deleteStudentMonth(c *gin.Context) {
	docs, ok := s.monthDocs(c)
	if !ok {
		return
	}
	if c.Query("year") == "" || c.Query("month") == "" {
		writeFail(c, http.StatusBadRequest, "year and month are required")
		return
	}
	deleted := 0
	for _, d := range docs {
		err := s.store.Delete(c.Request.Context(), model.CollectionAttendance, d.ID())
		if err != nil && !errors.Is(err, ErrNotFound) {
			s.internal(c, "delete month", err)
			return
		}
		if err == nil {
			deleted++
		}
	}
	writeOK(c, http.StatusOK, model.DeleteMonthResult{DeletedCount: deleted})
}

// monthDocs returns the student's attendance, narrowed to year and month
// when both are given.
func (s *Server) monthDocs(c *gin.Context) ([]Doc, bool) {
	studentID := c.Param("id")
	prefix := ""
	if ys, ms := c.Query("year"), c.Query("month"); ys != "" || ms != "" {
		year, yerr := strconv.Atoi(ys)
		month, merr := strconv.Atoi(ms)
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			writeFail(c, http.StatusBadRequest, "invalid year or month")
			return nil, false
		}
		prefix = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-")
	}
	docs, err := s.store.List(c.Request.Context(), model.CollectionAttendance)
	if err != nil {
		s.internal(c, "list attendance", err)
		return nil, false
	}
	return filterDocs(docs, func(d Doc) bool {
		return d.String("studentId") == studentID && strings.HasPrefix(model.DayKey(d.String("date")), prefix)
	}), true
}

func (s *Server) bindDoc(c *gin.Context) (Doc, []byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		writeFail(c, http.StatusBadRequest, "unreadable body")
		return nil, nil, false
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		writeFail(c, http.StatusBadRequest, "body must be a JSON object")
		return nil, nil, false
	}
	return doc, raw, true
}

func (s *Server) internal(c *gin.Context, op string, err error) {
	s.logger.Error(op+" failed", zap.String("path", c.FullPath()), zap.Error(err))
	writeFail(c, http.StatusInternalServerError, "Internal server error")
}

func filterDocs(docs []Doc, keep func(Doc) bool) []Doc {
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
