// Package httpapi exposes the admin and student app HTTP surfaces.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rollbook/internal/admin"
	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/metrics"
	"rollbook/internal/student"
)

// AdminService is what the admin auth routes need.
type AdminService interface {
	auth.Resolver
	Login(ctx context.Context, userID, password string) (admin.Admin, error)
	VerifyAnswers(ctx context.Context, userID, answer1, answer2 string) error
	ResetPassword(ctx context.Context, userID, answer1, answer2, newPassword string) error
}

// StudentService is what the student routes need.
type StudentService interface {
	auth.Resolver
	Create(ctx context.Context, in student.CreateInput) (student.Student, error)
	Get(ctx context.Context, roll string) (student.Student, error)
	List(ctx context.Context, f student.Filter) ([]student.Student, error)
	Update(ctx context.Context, roll string, in student.UpdateInput) (student.Student, error)
	Delete(ctx context.Context, roll string) error
	PurgeExpired(ctx context.Context) (int, error)
	Authenticate(ctx context.Context, roll, pin string) (student.Student, error)
	ResetPIN(ctx context.Context, roll, dob, newPIN string) error
}

// AttendanceService is what the attendance and task routes need.
type AttendanceService interface {
	Mark(ctx context.Context, roll, date, at string) (string, error)
	List(ctx context.Context, p attendance.ListParams) ([]attendance.Record, error)
	History(ctx context.Context, roll string, p attendance.HistoryParams) ([]attendance.Record, error)
	Analyze(ctx context.Context, p attendance.AnalysisParams) (attendance.Analysis, error)
	MarkAbsent(ctx context.Context) (int, error)
	CleanupOld(ctx context.Context) (int, error)
}

// Checker reports whether a backing service is reachable.
type Checker interface {
	Healthy(ctx context.Context) bool
}

// Deps wires the router.
type Deps struct {
	Log             *slog.Logger
	Metrics         *metrics.Metrics
	Tokens          *auth.Tokens
	Admins          AdminService
	Students        StudentService
	Attendance      AttendanceService
	TasksAPIKey     string
	AllowOrigins    []string
	RateLimitPerMin int
	Health          map[string]Checker

	// Attempts limits public credential routes; nil disables it.
	Attempts gin.HandlerFunc
}

type server struct {
	Deps
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	RegisterValidators()
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Attempts == nil {
		d.Attempts = func(c *gin.Context) { c.Next() }
	}
	s := &server{Deps: d}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.Logger(d.Log, "/healthz", "/metrics"),
		cors.New(corsConfig(d.AllowOrigins)),
		httpmiddleware.SecurityHeaders(),
		d.Metrics.Middleware(),
		httpmiddleware.NewSimpleTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin).GinMiddleware(),
	)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found", Kind: "not_found"})
	})

	r.GET("/", s.banner)
	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	requireAdmin := auth.Require(d.Tokens, auth.RoleAdmin, d.Admins)
	requireStudent := auth.Require(d.Tokens, auth.RoleStudent, d.Students)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", s.adminLogin)
		authGroup.POST("/verify-answers", s.verifyAnswers)
		authGroup.POST("/reset-password", s.resetPassword)
	}

	students := r.Group("/students", requireAdmin)
	{
		students.POST("", s.createStudent)
		students.GET("", s.listStudents)
		students.GET("/:roll", s.getStudent)
		students.PUT("/:roll", s.updateStudent)
		students.DELETE("/:roll", s.deleteStudent)
	}

	att := r.Group("/attendance")
	{
		att.GET("", requireAdmin, s.listAttendance)
		att.GET("/analysis", requireAdmin, s.analysis)
		att.GET("/analysis/export", requireAdmin, s.exportAnalysis)
		att.POST("/mark", requireStudent, s.markAttendance)
	}

	tasks := r.Group("/tasks", auth.APIKey(d.TasksAPIKey))
	{
		tasks.POST("/mark-absent", s.taskMarkAbsent)
		tasks.POST("/delete-expired-students", s.taskDeleteExpired)
		tasks.POST("/cleanup-old-attendance", s.taskCleanupAttendance)
	}

	apk := r.Group("/apk")
	{
		apk.POST("/login", d.Attempts, s.studentLogin)
		apk.POST("/forgot-pin", d.Attempts, s.forgotPIN)
		apk.GET("/profile", requireStudent, s.profile)
		apk.GET("/photo/:roll", requireStudent, s.photo)
		apk.GET("/attendance", requireStudent, s.history)
		apk.POST("/attendance/mark", requireStudent, s.selfMark)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", auth.APIKeyHeader, httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", httpmiddleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	all := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			all = true
		}
	}
	if all {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *server) banner(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: "Rollbook admin backend running."})
}

func (s *server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, chk := range s.Health {
		ok := chk != nil && chk.Healthy(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (s *server) observeLogin(role auth.Role, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.Metrics.ObserveLogin(string(role), outcome)
}
