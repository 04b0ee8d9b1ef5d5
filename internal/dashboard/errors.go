package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/model"
	"studiodesk/internal/session"
	"studiodesk/internal/studio"
	"studiodesk/internal/viewmodel"
)

var errNothingToConfirm = errors.New("nothing to confirm")

func (s *Server) redirectToLogin(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success":  false,
		"error":    "Please log in",
		"redirect": loginPath,
	})
}

// fail writes err with the status the front end expects for its kind.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   verr.Error(),
			"fields":  verr.Fields,
		})
		return
	}

	if errors.Is(err, session.ErrUnauthenticated) || apiclient.IsKind(err, apiclient.KindAuthExpired) {
		s.redirectToLogin(c)
		return
	}
	if errors.Is(err, viewmodel.ErrDiscarded) && s.session.Require() != nil {
		s.redirectToLogin(c)
		return
	}

	c.AbortWithStatusJSON(statusOf(err), gin.H{"success": false, "error": apiclient.Message(err)})
}

func statusOf(err error) int {
	switch apiclient.KindOf(err) {
	case apiclient.KindNotFound:
		return http.StatusNotFound
	case apiclient.KindTimeout:
		return http.StatusGatewayTimeout
	case apiclient.KindNetwork, apiclient.KindServer, apiclient.KindDecode:
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, viewmodel.ErrDiscarded),
		errors.Is(err, viewmodel.ErrSaveInFlight),
		errors.Is(err, viewmodel.ErrNotEditing),
		errors.Is(err, viewmodel.ErrNoRecord),
		errors.Is(err, studio.ErrMarkInFlight),
		errors.Is(err, errNothingToConfirm):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
