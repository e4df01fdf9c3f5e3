package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/jwt"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/medilab/backend/internal/config"
	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/messaging"
	"github.com/medilab/backend/internal/middleware"
	"github.com/medilab/backend/internal/module/auth"
	"github.com/medilab/backend/internal/module/patient"
	"github.com/medilab/backend/internal/module/report"
	"github.com/medilab/backend/internal/module/user"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine   *gin.Engine
	db       *gorm.DB
	logger   *logger.Logger
	cfg      *config.Config
	broker   *messaging.Broker
	consumer *messaging.Consumer
	jwtSvc   jwt.Service
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, the database, the broker connection, the token
// service, domain repositories, services, handlers, middleware, and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Setup logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	// 2. Setup database.
	db, err := config.SetupDatabase(&cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	defer func() {
		if success {
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", slog.Any("error", err))
		}
	}()

	// 3. AutoMigrate in debug mode only.
	if cfg.Server.Mode == gin.DebugMode {
		if err := db.AutoMigrate(&domain.User{}, &domain.AuthUser{}, &domain.Patient{}, &domain.Report{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("auto migration completed")
	}

	// 4. Connect to the broker, or fall back to the no-op publisher when
	// the broker is disabled.
	var publisher messaging.Publisher = messaging.NopPublisher{}
	var broker *messaging.Broker
	if cfg.Broker.Enabled {
		broker, err = messaging.Dial(cfg.Broker.URL, cfg.Broker.Exchange, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		publisher = broker
	}
	defer func() {
		if success || broker == nil {
			return
		}
		if err := broker.Close(); err != nil {
			slog.Error("broker close error", slog.Any("error", err))
		}
	}()

	// 5. Token service and middleware guards.
	var (
		jwtSvc         jwt.Service
		authMiddleware gin.HandlerFunc
		adminGuard     gin.HandlerFunc
		techGuard      gin.HandlerFunc
	)
	if cfg.Auth.Enabled {
		jwtSvc, err = jwt.New(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("setup token service: %w", err)
		}
		authMiddleware = middleware.Auth(jwtSvc, cfg.Auth.PublicPaths)
		adminGuard = middleware.RequireRole(domain.RoleAdmin)
		techGuard = middleware.RequireRole(domain.RoleTechnician)
	} else {
		log.Warn("auth is disabled: all endpoints are unauthenticated")
	}
	defer func() {
		if success || jwtSvc == nil {
			return
		}
		jwtSvc.Close()
	}()

	tokenExpiry, resetTokenTTL := authDurations(&cfg.Auth)

	// 6. Manual dependency injection: repository → service → handler → module.
	keys := cfg.Broker.RoutingKeys

	userRepo := user.NewUserRepository(db)
	userSvc := user.NewUserService(userRepo, publisher, user.RoutingKeys{
		Create:     keys.UserCreate,
		Update:     keys.UserUpdate,
		Delete:     keys.UserDelete,
		Restore:    keys.UserRestore,
		AddRole:    keys.UserAddRole,
		RemoveRole: keys.UserRemoveRole,
	})
	userModule := user.NewModule(user.NewUserHandler(userSvc), adminGuard)

	patientRepo := patient.NewPatientRepository(db)
	patientSvc := patient.NewPatientService(patientRepo, publisher, keys.PatientChanged)
	patientModule := patient.NewModule(patient.NewPatientHandler(patientSvc))

	reportRepo := report.NewReportRepository(db)
	reportSvc := report.NewReportService(reportRepo, patientRepo, publisher, keys.ReportChanged)
	reportModule := report.NewModule(report.NewReportHandler(reportSvc), techGuard)

	authRepo := auth.NewAuthUserRepository(db)
	var authModule *auth.AuthModule
	if cfg.Auth.Enabled {
		authSvc := auth.NewService(jwtSvc, authRepo, tokenExpiry, resetTokenTTL)
		authModule = auth.NewModule(auth.NewHandler(authSvc))
	}

	// 7. Broker consumer replaying user-management events onto auth_users.
	var consumer *messaging.Consumer
	if broker != nil {
		events := auth.NewUserEventHandlers(authRepo, log.Logger)
		consumer, err = broker.NewConsumer(cfg.Broker.Queue, map[string]messaging.Handler{
			keys.UserCreate:     events.HandleCreated,
			keys.UserUpdate:     events.HandleUsernameChanged,
			keys.UserDelete:     events.HandleDeleted,
			keys.UserRestore:    events.HandleRestored,
			keys.UserAddRole:    events.HandleRoleAdded,
			keys.UserRemoveRole: events.HandleRoleRemoved,
		})
		if err != nil {
			return nil, fmt.Errorf("setup consumer: %w", err)
		}
	}

	// 8. Create Gin engine with custom middleware (not gin.Default()).
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	// Build CORS config from application settings.
	// In release mode, when no allowlist is configured, default to deny cross-origin requests.
	corsConfig := resolveCORSConfig(cfg.Server.Mode, cfg.Server.CORS.AllowOrigins)

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.Logger(log.Logger),
		middleware.CORSWithConfig(corsConfig),
	)

	// 9. Register all routes.
	modules := []Module{userModule, patientModule, reportModule}
	if authModule != nil {
		modules = append([]Module{authModule}, modules...)
	}
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules: modules,
		DB:      db,
		Broker:  broker,
		Auth:    authMiddleware,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine:   engine,
		db:       db,
		logger:   log,
		cfg:      cfg,
		broker:   broker,
		consumer: consumer,
		jwtSvc:   jwtSvc,
	}, nil
}

// authDurations parses the already validated auth duration settings.
func authDurations(cfg *config.AuthConfig) (tokenExpiry, resetTokenTTL time.Duration) {
	tokenExpiry, _ = time.ParseDuration(cfg.TokenExpiry)
	resetTokenTTL, _ = time.ParseDuration(cfg.ResetTokenTTL)
	return tokenExpiry, resetTokenTTL
}

func resolveCORSConfig(mode string, configuredAllowOrigins []string) middleware.CORSConfig {
	corsConfig := middleware.DefaultCORSConfig()

	if len(configuredAllowOrigins) > 0 {
		corsConfig.AllowOrigins = configuredAllowOrigins
		return corsConfig
	}

	if mode == gin.ReleaseMode {
		corsConfig.AllowOrigins = []string{}
	}

	return corsConfig
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

// Run starts the broker consumer and the HTTP server and blocks until a
// shutdown signal is received. It performs graceful shutdown with a 5-second
// timeout and closes the consumer, broker, token service, and database.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine)

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
	}

	// Start HTTP server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		a.logf().Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		a.logf().Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		// Graceful shutdown with 5-second deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logf().Error("server shutdown error", slog.Any("error", err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logf().Error("consumer close error", slog.Any("error", err))
		}
	}
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.logf().Error("broker close error", slog.Any("error", err))
		}
	}
	if a.jwtSvc != nil {
		a.jwtSvc.Close()
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.logf().Error("database close error", slog.Any("error", err))
			} else {
				a.logf().Info("database connection closed")
			}
		}
	}

	a.logf().Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}

	return runErr
}

// logf returns the app logger, falling back to the process default so that
// partially constructed apps in tests can still log.
func (a *App) logf() *slog.Logger {
	if a.logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}
