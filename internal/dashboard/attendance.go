package dashboard

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/studio"
)

type rosterMark struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type dayMark struct {
	Date   string `json:"date" binding:"required"`
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

func (s *Server) roster(c *gin.Context) {
	if date := c.Query("date"); date != "" {
		if err := s.views.Roster.SetDate(date); err != nil {
			s.fail(c, err)
			return
		}
	}
	if c.Query("refresh") == "true" {
		if err := s.views.Students.Load(c.Request.Context()); err != nil {
			s.fail(c, err)
			return
		}
	}
	ok(c, http.StatusOK, gin.H{"date": s.views.Roster.Date(), "entries": s.views.Roster.Entries()})
}

func (s *Server) setRosterEntry(c *gin.Context) {
	var req rosterMark
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	if err := s.views.Roster.Set(c.Param("studentId"), req.Status, req.Notes); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"date": s.views.Roster.Date(), "entries": s.views.Roster.Entries()})
}

func (s *Server) markAttendance(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badBody(c)
		return
	}
	if req.Date != "" {
		if err := s.views.Roster.SetDate(req.Date); err != nil {
			s.fail(c, err)
			return
		}
	}
	res, err := s.views.Roster.Mark(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

func (s *Server) calendar(c *gin.Context) {
	year, month, err := s.yearMonth(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.views.Calendar.Load(c.Request.Context(), c.Query("student"), year, month); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.views.Calendar.Snapshot())
}

func (s *Server) saveCalendarDay(c *gin.Context) {
	var req dayMark
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	if err := s.views.Calendar.SaveDay(c.Request.Context(), req.Date, req.Status, req.Notes); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.views.Calendar.Snapshot())
}

func (s *Server) openPanel(c *gin.Context) {
	year, month, err := s.yearMonth(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.views.Panel.Open(c.Request.Context(), c.Param("id"), year, month); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.views.Panel.Snapshot())
}

func (s *Server) requestDeleteMonth(c *gin.Context) {
	if !s.panelOpen(c) {
		return
	}
	if _, err := s.views.Panel.RequestDeleteMonth(); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.views.Panel.Snapshot())
}

func (s *Server) confirmDeleteMonth(c *gin.Context) {
	if !s.panelOpen(c) {
		return
	}
	ran, err := s.views.Panel.ConfirmDeleteMonth(c.Request.Context())
	if !ran {
		err = errNothingToConfirm
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.views.Panel.Snapshot())
}

func (s *Server) cancelDeleteMonth(c *gin.Context) {
	if !s.panelOpen(c) {
		return
	}
	s.views.Panel.CancelDeleteMonth()
	ok(c, http.StatusOK, s.views.Panel.Snapshot())
}

func (s *Server) panelOpen(c *gin.Context) bool {
	if s.views.Panel.Snapshot().Student.ID != c.Param("id") {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "error": "student is not open"})
		return false
	}
	return true
}

// yearMonth reads ?year and ?month, defaulting to the current month in IST.
func (s *Server) yearMonth(c *gin.Context) (int, int, error) {
	now := s.now().In(studio.IST)
	year, month := now.Year(), int(now.Month())
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", v)
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < int(time.January) || m > int(time.December) {
			return 0, 0, fmt.Errorf("invalid month %q", v)
		}
		month = m
	}
	return year, month, nil
}
