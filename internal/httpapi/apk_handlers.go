package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/student"
)

type studentLoginRequest struct {
	Roll string `json:"roll" binding:"required"`
	PIN  string `json:"pin" binding:"required"`
}

type forgotPINRequest struct {
	Roll   string `json:"roll" binding:"required"`
	DOB    string `json:"dob" binding:"required,isodate"`
	NewPIN string `json:"new_pin" binding:"required,pin"`
}

type historyQuery struct {
	StartDate string `form:"start_date" binding:"omitempty,isodate"`
	EndDate   string `form:"end_date" binding:"omitempty,isodate"`
	Status    string `form:"status"`
	SortBy    string `form:"sort_by" binding:"omitempty,oneof=date status time"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// StudentLoginResponse carries the token and the profile shown after login.
type StudentLoginResponse struct {
	TokenResponse
	Student student.Profile `json:"student"`
}

func (s *server) studentLogin(c *gin.Context) {
	var req studentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	st, err := s.Students.Authenticate(c.Request.Context(), req.Roll, req.PIN)
	s.observeLogin(auth.RoleStudent, err)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	tok, ok := s.issue(c, st.Roll, auth.RoleStudent)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, StudentLoginResponse{TokenResponse: tok, Student: st.Profile()})
}

func (s *server) forgotPIN(c *gin.Context) {
	var req forgotPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	if err := s.Students.ResetPIN(c.Request.Context(), req.Roll, req.DOB, req.NewPIN); err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "PIN reset successful"})
}

func (s *server) profile(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c.Request.Context())
	st, err := s.Students.Get(c.Request.Context(), p.ID)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, st.Profile())
}

func (s *server) photo(c *gin.Context) {
	st, err := s.Students.Get(c.Request.Context(), c.Param("roll"))
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && st.PhotoURL == "") {
		fail(c, s.Log, apperr.NotFound("Photo not found"))
		return
	}
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	c.Redirect(http.StatusFound, st.PhotoURL)
}

func (s *server) history(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	p, _ := auth.PrincipalFrom(c.Request.Context())
	recs, err := s.Attendance.History(c.Request.Context(), p.ID, attendance.HistoryParams{
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Status:    q.Status,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	c.JSON(http.StatusOK, recs)
}
