package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollbook/internal/auth"
)

// TokenResponse is returned by both login routes.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type adminLoginRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type answersForm struct {
	UserID  string `form:"userId" binding:"required"`
	Answer1 string `form:"answer1" binding:"required"`
	Answer2 string `form:"answer2" binding:"required"`
}

type resetPasswordForm struct {
	answersForm
	NewPassword string `form:"newPassword" binding:"required"`
}

func (s *server) issue(c *gin.Context, subject string, role auth.Role) (TokenResponse, bool) {
	token, exp, err := s.Tokens.Issue(subject, role, 0)
	if err != nil {
		fail(c, s.Log, err)
		return TokenResponse{}, false
	}
	return TokenResponse{Token: token, TokenType: "bearer", ExpiresAt: exp.UTC()}, true
}

func (s *server) adminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	a, err := s.Admins.Login(c.Request.Context(), req.UserID, req.Password)
	s.observeLogin(auth.RoleAdmin, err)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	resp, ok := s.issue(c, a.UserID, auth.RoleAdmin)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) verifyAnswers(c *gin.Context) {
	var form answersForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	if err := s.Admins.VerifyAnswers(c.Request.Context(), form.UserID, form.Answer1, form.Answer2); err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) resetPassword(c *gin.Context) {
	var form resetPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	err := s.Admins.ResetPassword(c.Request.Context(), form.UserID, form.Answer1, form.Answer2, form.NewPassword)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
