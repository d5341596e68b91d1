package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/middleware"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	"github.com/EchoAurora/xingcefupan/internal/version"
)

// NewRouter creates the Gin engine with all middleware and routes wired in.
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	examService services.ExamServiceInterface,
	diagnosticsService services.DiagnosticsServiceInterface,
	plannerService services.PlannerServiceInterface,
	checkinService services.CheckinServiceInterface,
	reviewService services.ReviewServiceInterface,
	strategyService services.StrategyServiceInterface,
	emailService services.EmailServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware())

	// HTTP request logging through the observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backend"})
	})

	// OpenTelemetry middleware for HTTP tracing and context propagation
	router.Use(observability.GinMiddlewareWithErrorHandling("xingce-backend"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Cookie sessions
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	// Security headers
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	// Initialize handlers
	authHandler := NewAuthHandler(userService, cfg, logger)
	examHandler := NewExamHandler(examService, diagnosticsService, strategyService, cfg, logger)
	dashboardHandler := NewDashboardHandler(examService, diagnosticsService, cfg, logger)
	planHandler := NewPlanHandler(plannerService, examService, strategyService, userService, cfg, logger)
	checkinHandler := NewCheckinHandler(checkinService, plannerService, examService, strategyService, userService, cfg, logger)
	reviewHandler := NewReviewHandler(reviewService, strategyService, userService, examService, diagnosticsService, cfg, logger)
	strategyHandler := NewStrategyHandler(strategyService, cfg, logger)
	settingsHandler := NewSettingsHandler(userService, emailService, cfg, logger)
	adminHandler := NewAdminHandler(userService, cfg, logger)

	validate := middleware.RequestValidationMiddleware(logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "backend",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/login", validate, authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/status", authHandler.Status)
			auth.GET("/check", middleware.RequireAuth(), authHandler.Check)
			auth.POST("/signup", validate, authHandler.Signup)
			auth.GET("/signup/status", authHandler.SignupStatus)
		}

		// Exam records and per-record diagnostics
		exams := v1.Group("/exams")
		exams.Use(middleware.RequireAuth())
		{
			exams.POST("", validate, examHandler.CreateExam)
			exams.GET("", examHandler.ListExams)
			exams.GET("/latest", examHandler.GetLatestExam)
			exams.GET("/:id", examHandler.GetExam)
			exams.DELETE("/:id", examHandler.DeleteExam)
			exams.GET("/:id/diagnostics", examHandler.GetExamDiagnostics)
			exams.GET("/:id/digest", examHandler.GetExamDigest)
		}

		// Dashboard summary
		v1.GET("/dashboard", middleware.RequireAuth(), dashboardHandler.GetDashboard)

		// Weekly plan
		v1.GET("/plan/week", middleware.RequireAuth(), planHandler.GetWeekPlan)

		// Daily check-in
		checkin := v1.Group("/checkin")
		checkin.Use(middleware.RequireAuth())
		{
			checkin.GET("", checkinHandler.GetCheckin)
			checkin.PUT("/tasks", validate, checkinHandler.ToggleTask)
			checkin.POST("/tasks", validate, checkinHandler.AddTask)
			checkin.DELETE("/tasks", checkinHandler.ResetTasks)
			checkin.POST("/complete", checkinHandler.CompleteCheckin)
		}

		// Review notes and error-cause analytics
		reviews := v1.Group("/reviews")
		reviews.Use(middleware.RequireAuth())
		{
			reviews.POST("", validate, reviewHandler.CreateReviewNote)
			reviews.GET("", reviewHandler.ListReviewNotes)
			reviews.GET("/analytics", reviewHandler.GetReviewAnalytics)
			reviews.GET("/suggestions", reviewHandler.GetReviewSuggestions)
			reviews.DELETE("/:id", reviewHandler.DeleteReviewNote)
		}

		// Pacing strategy
		v1.GET("/strategy", middleware.RequireAuth(), strategyHandler.GetStrategy)
		v1.PUT("/strategy", middleware.RequireAuth(), validate, strategyHandler.SaveStrategy)

		// Profile and settings
		v1.PUT("/profile", middleware.RequireAuth(), validate, settingsHandler.UpdateProfile)
		v1.PUT("/profile/password", middleware.RequireAuth(), validate, settingsHandler.UpdatePassword)
		v1.POST("/settings/test-email", middleware.RequireAuth(), settingsHandler.SendTestEmail)

		// Admin endpoints
		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin(userService))
		{
			admin.GET("/users", adminHandler.GetAllUsers)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.POST("/clear-database", adminHandler.ClearDatabase)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
