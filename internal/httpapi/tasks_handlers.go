package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// sweep runs one maintenance job and reports the affected row count.
func (s *server) sweep(c *gin.Context, name string, run func(context.Context) (int, error), message func(int) string) {
	n, err := run(c.Request.Context())
	if err != nil {
		fail(c, s.Log, err)
		return
	}
	s.Metrics.ObserveSweep(name, n)
	c.JSON(http.StatusOK, MessageResponse{Message: message(n), Count: &n})
}

func (s *server) taskMarkAbsent(c *gin.Context) {
	s.sweep(c, "mark_absent", s.Attendance.MarkAbsent, func(int) string {
		return "Absent students marked"
	})
}

func (s *server) taskDeleteExpired(c *gin.Context) {
	s.sweep(c, "delete_expired_students", s.Students.PurgeExpired, func(n int) string {
		return fmt.Sprintf("%d expired students deleted", n)
	})
}

func (s *server) taskCleanupAttendance(c *gin.Context) {
	s.sweep(c, "cleanup_old_attendance", s.Attendance.CleanupOld, func(n int) string {
		return fmt.Sprintf("%d old attendance records deleted", n)
	})
}
