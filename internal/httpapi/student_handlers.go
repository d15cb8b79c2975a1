package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollbook/internal/apperr"
	"rollbook/internal/calendar"
	"rollbook/internal/student"
)

type createStudentForm struct {
	Roll       string `form:"roll" binding:"required,max=20"`
	Name       string `form:"name" binding:"required,max=100"`
	Branch     string `form:"branch" binding:"required,max=50"`
	DOB        string `form:"dob" binding:"required,isodate"`
	IssueValid string `form:"issue_valid" binding:"required,max=20,cohort"`
	PIN        string `form:"pin" binding:"required,pin"`
}

// updateStudentForm fields left blank keep their stored values.
type updateStudentForm struct {
	Name       string `form:"name" binding:"max=100"`
	Branch     string `form:"branch" binding:"max=50"`
	DOB        string `form:"dob" binding:"isodate"`
	IssueValid string `form:"issue_valid" binding:"max=20,cohort"`
	PIN        string `form:"pin" binding:"pin"`
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

type listStudentsQuery struct {
	Name      string `form:"name"`
	Branch    string `form:"branch"`
	DOB       string `form:"dob" binding:"omitempty,isodate"`
	Roll      string `form:"roll" binding:"max=20"`
	LastYears int    `form:"lastYears" binding:"min=0"`
	Page      int    `form:"page" binding:"min=0"`
	PageSize  int    `form:"pageSize" binding:"min=0,max=500"`
}

// openPhoto returns the optional "photo" part of a multipart form. The caller
// closes the returned file.
func openPhoto(c *gin.Context) (*student.Upload, multipart.File, error) {
	fh, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Validation("invalid photo upload: %v", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperr.Validation("cannot read photo: %v", err)
	}
	return &student.Upload{Filename: fh.Filename, Body: f}, f, nil
}

func (s *server) createStudent(c *gin.Context) {
	var form createStudentForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	up, f, err := openPhoto(c)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	if f != nil {
		defer f.Close()
	}
	st, err := s.Students.Create(c.Request.Context(), student.CreateInput{
		Roll:       form.Roll,
		Name:       form.Name,
		Branch:     form.Branch,
		DOB:        form.DOB,
		IssueValid: form.IssueValid,
		PIN:        form.PIN,
		Photo:      up,
	})
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *server) listStudents(c *gin.Context) {
	var q listStudentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	f := student.Filter{
		Name:      q.Name,
		Branch:    q.Branch,
		Roll:      q.Roll,
		LastYears: q.LastYears,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	if q.DOB != "" {
		d, err := calendar.Parse(q.DOB)
		if err != nil {
			fail(c, s.Log, apperr.Validation("dob must be a date in YYYY-MM-DD format"))
			return
		}
		f.DOB = &d
	}
	list, err := s.Students.List(c.Request.Context(), f)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	if list == nil {
		list = []student.Student{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *server) getStudent(c *gin.Context) {
	st, err := s.Students.Get(c.Request.Context(), c.Param("roll"))
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *server) updateStudent(c *gin.Context) {
	var form updateStudentForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, s.Log, bindError(err))
		return
	}
	up, f, err := openPhoto(c)
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	if f != nil {
		defer f.Close()
	}
	st, err := s.Students.Update(c.Request.Context(), c.Param("roll"), student.UpdateInput{
		Name:       optional(form.Name),
		Branch:     optional(form.Branch),
		DOB:        optional(form.DOB),
		IssueValid: optional(form.IssueValid),
		PIN:        optional(form.PIN),
		Photo:      up,
	})
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *server) deleteStudent(c *gin.Context) {
	if err := s.Students.Delete(c.Request.Context(), c.Param("roll")); err != nil {
		fail(c, s.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
