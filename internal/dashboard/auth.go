package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studiodesk/internal/apiclient"
	"studiodesk/internal/notify"
	"studiodesk/internal/session"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "username and password are required"})
		return
	}

	res, err := s.client.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.loginFailed(c, err)
		return
	}
	cred := session.Credential{Token: res.Token, User: res.User}
	if err := s.session.Login(c.Request.Context(), cred); err != nil {
		s.logger.Error("persist credential failed", zap.Error(err))
		s.notifier.Notify(notify.Error, "Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Login failed"})
		return
	}

	s.logger.Info("operator logged in", zap.String("username", req.Username))
	s.notifier.Notify(notify.Success, "Login successful!")
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"data":     gin.H{"user": res.User},
		"redirect": homePath,
	})
}

// loginFailed reports a rejected login. A 401 here is a wrong password,
// not an expired session, so no redirect is sent.
func (s *Server) loginFailed(c *gin.Context, err error) {
	status, msg := http.StatusBadGateway, apiclient.Message(err)
	switch apiclient.KindOf(err) {
	case apiclient.KindAuthExpired:
		status = http.StatusUnauthorized
	case apiclient.KindNetwork, apiclient.KindTimeout:
		msg = "Network error. Please try again."
	}
	if msg == "" {
		msg = "Login failed"
	}
	s.logger.Warn("login failed", zap.Error(err))
	s.notifier.Notify(notify.Error, msg)
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// logout never waits on the server; the old token is revoked in the
// background by the session.
func (s *Server) logout(c *gin.Context) {
	s.session.Logout(c.Request.Context())
	s.notifier.Notify(notify.Success, "Logged out successfully")
	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": loginPath})
}

func (s *Server) currentSession(c *gin.Context) {
	if s.session.Require() != nil {
		ok(c, http.StatusOK, gin.H{"authenticated": false})
		return
	}
	cred, _ := s.session.Credential()
	out := gin.H{"authenticated": true, "user": json.RawMessage(cred.User)}
	if exp, found := cred.ExpiresAt(); found {
		out["expiresAt"] = exp
	}
	ok(c, http.StatusOK, out)
}
