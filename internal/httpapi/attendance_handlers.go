package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/report"
)

type listAttendanceQuery struct {
	Roll       string `form:"roll"`
	Status     string `form:"status"`
	FromDate   string `form:"from_date" binding:"omitempty,isodate"`
	ToDate     string `form:"to_date" binding:"omitempty,isodate"`
	IssueValid string `form:"issue_valid" binding:"omitempty,cohort"`
	OrderBy    string `form:"orderBy" binding:"omitempty,oneof=date roll"`
}

type analysisQuery struct {
	Branch           string `form:"branch"`
	IssueValid       string `form:"issue_valid" binding:"omitempty,cohort"`
	Roll             string `form:"roll"`
	FromDate         string `form:"from_date" binding:"omitempty,isodate"`
	ToDate           string `form:"to_date" binding:"omitempty,isodate"`
	TotalWorkingDays *int   `form:"total_working_days" binding:"required,min=0"`
}

type markRequest struct {
	Roll string `json:"roll" binding:"required,max=20"`
	Date string `json:"date" binding:"required,isodate"`
	Time string `json:"time" binding:"max=20"`
}

type selfMarkRequest struct {
	Date string `json:"date" binding:"required,isodate"`
	Time string `json:"time" binding:"max=20"`
}

func (s *server) listAttendance(c *gin.Context) {
	var q listAttendanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	recs, err := s.Attendance.List(c.Request.Context(), attendance.ListParams{
		Roll:       q.Roll,
		Status:     q.Status,
		FromDate:   q.FromDate,
		ToDate:     q.ToDate,
		IssueValid: q.IssueValid,
		OrderBy:    q.OrderBy,
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

func (s *server) runAnalysis(c *gin.Context) (attendance.Analysis, bool) {
	var q analysisQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, s.Log, bindError(err))
		return attendance.Analysis{}, false
	}
	a, err := s.Attendance.Analyze(c.Request.Context(), attendance.AnalysisParams{
		Branch:           q.Branch,
		IssueValid:       q.IssueValid,
		Roll:             q.Roll,
		FromDate:         q.FromDate,
		ToDate:           q.ToDate,
		TotalWorkingDays: *q.TotalWorkingDays,
	})
	if err != nil {
		fail(c, s.Log, err)
		return attendance.Analysis{}, false
	}
	return a, true
}

func (s *server) analysis(c *gin.Context) {
	a, ok := s.runAnalysis(c)
	if !ok {
		return
	}
	rows := a.Rows
	if rows == nil {
		rows = []attendance.Summary{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *server) exportAnalysis(c *gin.Context) {
	a, ok := s.runAnalysis(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteAnalysis(&buf, a); err != nil {
		fail(c, s.Log, fmt.Errorf("render analysis workbook: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(a)))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}

// markAttendance is the admin-surface mark route. The body roll must belong
// to the token's student.
func (s *server) markAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	p, _ := auth.PrincipalFrom(c.Request.Context())
	if !strings.EqualFold(strings.TrimSpace(req.Roll), p.ID) {
		fail(c, s.Log, apperr.Forbidden("cannot mark attendance for another student"))
		return
	}
	s.mark(c, p.ID, req.Date, req.Time)
}

func (s *server) selfMark(c *gin.Context) {
	var req selfMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	p, _ := auth.PrincipalFrom(c.Request.Context())
	s.mark(c, p.ID, req.Date, req.Time)
}

func (s *server) mark(c *gin.Context, roll, date, at string) {
	msg, err := s.Attendance.Mark(c.Request.Context(), roll, date, at)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}
