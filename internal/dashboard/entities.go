package dashboard

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/model"
	"studiodesk/internal/studio"
	"studiodesk/internal/viewmodel"
)

// entity pairs the list and detail view-models of one collection.
type entity[T model.Record] struct {
	coll   *viewmodel.Collection[T]
	detail *viewmodel.Detail[T]
	list   func(c *gin.Context, coll *viewmodel.Collection[T]) gin.H
}

// mountEntity registers the list, mutation and detail routes of e on g.
// Handlers are package functions because methods cannot take type
// parameters.
func mountEntity[T model.Record](g *gin.RouterGroup, s *Server, e entity[T]) {
	g.GET("", func(c *gin.Context) {
		ok(c, http.StatusOK, e.list(c, e.coll))
	})
	g.POST("/refresh", func(c *gin.Context) {
		if err := e.coll.Load(c.Request.Context()); err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusOK, e.list(c, e.coll))
	})
	g.POST("", func(c *gin.Context) {
		var draft T
		if err := c.ShouldBindJSON(&draft); err != nil {
			badBody(c)
			return
		}
		rec, err := e.coll.Create(c.Request.Context(), draft)
		if err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusCreated, rec)
	})
	g.PUT("/:id", func(c *gin.Context) {
		var changes map[string]any
		if err := c.ShouldBindJSON(&changes); err != nil {
			badBody(c)
			return
		}
		rec, err := e.coll.Update(c.Request.Context(), c.Param("id"), changes)
		if err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusOK, rec)
	})
	g.DELETE("/:id", func(c *gin.Context) {
		if err := e.coll.Remove(c.Request.Context(), c.Param("id")); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	g.GET("/:id", func(c *gin.Context) {
		if err := e.detail.Load(c.Request.Context(), c.Param("id")); err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusOK, e.detail.Snapshot())
	})
	g.POST("/:id/edit", func(c *gin.Context) {
		changes, good := focusedChanges(c, e.detail)
		if !good {
			return
		}
		err := e.detail.EnterEdit()
		if err == nil && len(changes) > 0 {
			err = e.detail.Apply(changes)
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusOK, e.detail.Snapshot())
	})
	g.POST("/:id/save", func(c *gin.Context) {
		changes, good := focusedChanges(c, e.detail)
		if !good {
			return
		}
		if len(changes) > 0 {
			if err := e.detail.Apply(changes); err != nil {
				s.fail(c, err)
				return
			}
		}
		if err := e.detail.Save(c.Request.Context()); err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusOK, e.detail.Snapshot())
	})
	g.POST("/:id/cancel-edit", func(c *gin.Context) {
		if !focused(c, e.detail) {
			return
		}
		e.detail.CancelEdit()
		ok(c, http.StatusOK, e.detail.Snapshot())
	})
	g.POST("/:id/delete", func(c *gin.Context) {
		if !focused(c, e.detail) {
			return
		}
		if _, err := e.detail.RequestDelete(); err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusOK, e.detail.Snapshot())
	})
	g.POST("/:id/delete/confirm", func(c *gin.Context) {
		if !focused(c, e.detail) {
			return
		}
		ran, err := e.detail.ConfirmDelete(c.Request.Context())
		if !ran {
			err = errNothingToConfirm
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		ok(c, http.StatusOK, e.detail.Snapshot())
	})
	g.POST("/:id/delete/cancel", func(c *gin.Context) {
		if !focused(c, e.detail) {
			return
		}
		e.detail.CancelDelete()
		ok(c, http.StatusOK, e.detail.Snapshot())
	})
}

func plainList[T model.Record](c *gin.Context, coll *viewmodel.Collection[T]) gin.H {
	st := coll.Snapshot()
	return gin.H{
		"items":   viewmodel.FilterItems(st.Items, c.Query("q")),
		"loading": st.Loading,
		"error":   st.Error,
		"pending": coll.PendingCount(),
	}
}

func paymentList(c *gin.Context, coll *viewmodel.Collection[model.Payment]) gin.H {
	st := coll.Snapshot()
	return gin.H{
		"items":   studio.FilterPayments(st.Items, c.Query("q"), c.Query("status")),
		"summary": studio.SummarizePayments(st.Items),
		"loading": st.Loading,
		"error":   st.Error,
		"pending": coll.PendingCount(),
	}
}

// focused checks that the detail view-model holds the record named in the
// path. Edit and delete act on what the operator is looking at.
func focused[T model.Record](c *gin.Context, d *viewmodel.Detail[T]) bool {
	if d.Snapshot().ID != c.Param("id") {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "error": "record is not open"})
		return false
	}
	return true
}

// focusedChanges reads an optional JSON object of field changes.
func focusedChanges[T model.Record](c *gin.Context, d *viewmodel.Detail[T]) (map[string]any, bool) {
	if !focused(c, d) {
		return nil, false
	}
	var changes map[string]any
	if err := c.ShouldBindJSON(&changes); err != nil && !errors.Is(err, io.EOF) {
		badBody(c)
		return nil, false
	}
	return changes, true
}

func badBody(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
}
