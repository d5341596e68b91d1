// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/database"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetExamService() (services.ExamServiceInterface, error)
	GetDiagnosticsService() (services.DiagnosticsServiceInterface, error)
	GetPlannerService() (services.PlannerServiceInterface, error)
	GetCheckinService() (services.CheckinServiceInterface, error)
	GetReviewService() (services.ReviewServiceInterface, error)
	GetStrategyService() (services.StrategyServiceInterface, error)
	GetEmailService() (services.EmailServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureAdminUser(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Initialize database
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices(ctx)

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetExamService returns the exam record service
func (sc *ServiceContainer) GetExamService() (services.ExamServiceInterface, error) {
	return GetServiceAs[services.ExamServiceInterface](sc, "exam")
}

// GetDiagnosticsService returns the diagnostics engine
func (sc *ServiceContainer) GetDiagnosticsService() (services.DiagnosticsServiceInterface, error) {
	return GetServiceAs[services.DiagnosticsServiceInterface](sc, "diagnostics")
}

// GetPlannerService returns the weekly planner engine
func (sc *ServiceContainer) GetPlannerService() (services.PlannerServiceInterface, error) {
	return GetServiceAs[services.PlannerServiceInterface](sc, "planner")
}

// GetCheckinService returns the check-in service
func (sc *ServiceContainer) GetCheckinService() (services.CheckinServiceInterface, error) {
	return GetServiceAs[services.CheckinServiceInterface](sc, "checkin")
}

// GetReviewService returns the review note service
func (sc *ServiceContainer) GetReviewService() (services.ReviewServiceInterface, error) {
	return GetServiceAs[services.ReviewServiceInterface](sc, "review")
}

// GetStrategyService returns the pacing strategy service
func (sc *ServiceContainer) GetStrategyService() (services.StrategyServiceInterface, error) {
	return GetServiceAs[services.StrategyServiceInterface](sc, "strategy")
}

// GetEmailService returns the email service
func (sc *ServiceContainer) GetEmailService() (services.EmailServiceInterface, error) {
	return GetServiceAs[services.EmailServiceInterface](sc, "email")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all registered shutdown functions
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	// Shutdown in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	// Storage-backed services
	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	examService := services.NewExamServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["exam"] = examService

	reviewService := services.NewReviewServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["review"] = reviewService

	strategyService := services.NewStrategyServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["strategy"] = strategyService

	checkinService := services.NewCheckinServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["checkin"] = checkinService

	// Pure computation engines
	diagnosticsService := services.NewDiagnosticsServiceWithLogger(sc.cfg, sc.logger)
	sc.services["diagnostics"] = diagnosticsService

	plannerService := services.NewPlannerServiceWithLogger(sc.cfg, sc.logger)
	sc.services["planner"] = plannerService

	// Email service
	emailService := services.NewEmailService(sc.cfg, sc.logger)
	sc.services["email"] = emailService
}

// EnsureAdminUser creates the admin user if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureAdminUserExists(ctx, sc.cfg.Server.AdminUsername, sc.cfg.Server.AdminPassword)
}
