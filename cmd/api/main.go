// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/cache"
	"github.com/dangerclosesec/assessly/internal/config"
	"github.com/dangerclosesec/assessly/internal/email"
	"github.com/dangerclosesec/assessly/internal/email/mailer"
	"github.com/dangerclosesec/assessly/internal/handler"
	"github.com/dangerclosesec/assessly/internal/middleware"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/policy"
	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/dangerclosesec/assessly/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   a.Key,
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg := config.Load()
	if cfg.JWT.Secret == "your-secret-key" {
		logger.Warn("JWT_SECRET is the built-in default; set it before exposing this server")
	}

	failureMode, err := policy.ParseFailureMode(cfg.Policy.FailureMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := setupDatabase(cfg)
	if err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}

	// Initialize cache
	principalCache, closeCache, err := setupCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setting up cache: %w", err)
	}
	defer closeCache()

	// Initialize repositories
	tx := repository.NewTransactor(db)
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	auditRepo := repository.NewAuthzAuditLogRepository(db)

	// Initialize auth services
	var tokenOpts []auth.TokenOption
	if cfg.Policy.RevocationEnabled {
		if cfg.Cache.Backend == "none" {
			logger.Warn("Session revocation enabled without a cache backend; revocations will not be remembered")
		}
		tokenOpts = append(tokenOpts, auth.WithRevocationList(auth.NewCacheRevocationList(principalCache, time.Now)))
	}
	passwordHasher := auth.NewPasswordHasher()
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiryPeriod, tokenOpts...)

	// Initialize email service
	var welcomeMailer service.WelcomeMailer
	if provider, err := email.ParseProvider(cfg.Email.Provider); err != nil {
		logger.Warn("Welcome emails disabled", "error", err)
	} else if emailService, err := email.NewEmailService(cfg, provider); err != nil {
		logger.Warn("Welcome emails disabled", "error", err)
	} else {
		welcomeMailer = mailer.NewWelcomer(emailService)
	}

	// Initialize domain services
	auditService := service.NewAuthzAuditLogService(auditRepo)
	principals := service.NewPrincipalCache(principalCache, userRepo, membershipRepo, service.PrincipalCacheConfig{TTL: cfg.Cache.TTL})
	resolver := service.NewDirectoryRoleResolver(userRepo)
	verifier := service.NewCredentialVerifier(userRepo, orgRepo, membershipRepo, passwordHasher)
	authService := service.NewAuthService(verifier, tokenManager, userRepo, principals)
	onboardingService := service.NewOnboardingService(tx, userRepo, teamRepo, membershipRepo, verifier, passwordHasher,
		tokenManager, principals, welcomeMailer, service.OnboardingConfig{
			BaseURL:           cfg.BaseURL,
			TeamSelectionPath: cfg.Policy.TeamSelectionPath,
		})
	adminService := service.NewAdminService(tx, userRepo, orgRepo, teamRepo, membershipRepo, assessmentRepo, verifier, passwordHasher, principals)
	assessmentService := service.NewAssessmentService(assessmentRepo, assessmentRepo, resolver)

	evaluator := policy.NewEvaluator(tokenManager, resolver, policy.Config{
		Routes:        policy.DefaultRouteTable(),
		FailureMode:   failureMode,
		FailOpenGrace: cfg.Policy.FailOpenGrace,
		LoginPath:     cfg.Policy.LoginPath,
		HomePath:      cfg.Policy.HomePath,
	})

	// Cross-instance cache invalidation
	if cfg.Cache.Backend != "none" {
		listener := service.NewChangeListener(cfg.DSN(), principals)
		if err := listener.Start(); err != nil {
			logger.Warn("Principal change listener unavailable; cache entries expire by TTL only", "error", err)
		} else {
			defer listener.Stop()
		}
	}

	// Manager assignment sweep
	if cfg.Sweep.Interval > 0 {
		mode, err := service.ParseSweepMode(cfg.Sweep.Mode)
		if err != nil {
			return err
		}
		sweeper := service.NewManagerAssignmentSweeper(teamRepo, auditService, cfg.Sweep.Interval, mode, logger)
		sweeper.SetBatchSize(cfg.Sweep.BatchSize)
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, onboardingService, auditService, handler.AuthHandlerConfig{
		SecureCookies:     cfg.SecureCookies(),
		HomePath:          cfg.Policy.HomePath,
		TeamSelectionPath: cfg.Policy.TeamSelectionPath,
	})
	onboardingHandler := handler.NewOnboardingHandler(onboardingService)
	adminHandler := handler.NewAdminHandler(adminService, auditService)
	managerHandler := handler.NewManagerHandler(adminService)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService)
	auditLogHandler := handler.NewAuthzAuditLogHandler(auditService)

	requireAdmin := middleware.RequireRole(resolver, model.RoleAdmin, cfg.Policy.HomePath)
	requireManager := middleware.RequireRole(resolver, model.RoleManager, cfg.Policy.HomePath)
	requireTeam := middleware.RequireTeam(principals, cfg.Policy.TeamSelectionPath, cfg.Policy.LoginPath)

	// Create router
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.AccessPolicy(evaluator, auditService))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Pages
	r.Get(cfg.Policy.LoginPath, handler.Page("login"))
	r.Get("/register", handler.Page("register"))
	r.Get(cfg.Policy.TeamSelectionPath, handler.Page("team-selection"))
	r.Group(func(r chi.Router) {
		r.Use(requireTeam)
		r.Get(cfg.Policy.HomePath, handler.Page("dashboard"))
	})
	r.With(requireAdmin).Get("/admin", handler.Page("admin"))
	r.With(requireManager).Get("/manager", handler.Page("manager"))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Get("/current-role", authHandler.CurrentRoleHandler)
			r.Post("/logout", authHandler.LogoutHandler)

			r.Group(func(r chi.Router) {
				r.Use(chimw.AllowContentType("application/json"))

				r.Post("/login", authHandler.LoginHandler)
				r.Post("/register", authHandler.RegisterHandler)
			})
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(chimw.AllowContentType("application/json"))

			r.Route("/onboarding", func(r chi.Router) {
				r.Get("/status", onboardingHandler.Status)
				r.Get("/teams", onboardingHandler.ListTeams)
				r.Put("/team", onboardingHandler.SelectTeam)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireTeam)
				r.Post("/results", assessmentHandler.SaveResult)
				r.Get("/reports/{id}", assessmentHandler.GetReport)
			})
		})

		// Manager routes
		r.Route("/manager", func(r chi.Router) {
			r.Use(requireManager)
			r.Get("/team", managerHandler.Team)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Use(chimw.AllowContentType("application/json"))

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", adminHandler.ListOrganizations)
				r.Post("/", adminHandler.CreateOrganization)
				r.Delete("/{id}", adminHandler.DeleteOrganization)
				r.Post("/{id}/teams", adminHandler.CreateTeam)
			})
			r.Put("/teams/{id}/manager", adminHandler.AssignManager)
			r.Route("/users", func(r chi.Router) {
				r.Get("/", adminHandler.ListUsers)
				r.Post("/", adminHandler.ProvisionUser)
				r.Put("/{id}/role", adminHandler.ChangeRole)
				r.Delete("/{id}", adminHandler.DeleteUser)
				r.Delete("/{id}/membership", adminHandler.RemoveMembership)
			})
			r.Get("/audit-logs", auditLogHandler.GetAuditLogs)
			r.Get("/audit-logs/{id}", auditLogHandler.GetAuditLogByID)
		})
	})

	// Create server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Server error channel
	serverErrors := make(chan error, 1)

	// Start server
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "policyFailureMode", failureMode)
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for shutdown or error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutdown started")

		// Give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(shutdownCtx); err != nil {
			// If shutdown times out, forcefully close
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

func setupDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// setupCache builds the configured cache backend and returns a function
// that releases it.
func setupCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case "memory", "":
		c := cache.NewInMemoryCache(time.Minute)
		c.StartCleanup(ctx)
		return c, c.StopCleanup, nil

	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c := cache.NewRedisCache(client, "")

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Ping(pingCtx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("pinging redis: %w", err)
		}
		return c, func() { client.Close() }, nil

	case "none":
		return cache.Nop{}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"duration", time.Since(start),
					"status", ww.Status(),
					"size", ww.BytesWritten(),
					"requestID", chimw.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						"error", errors.New("panic recovered"),
						"panic", rvr,
						"stack", string(debug.Stack()),
						"requestID", chimw.GetReqID(r.Context()),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte("{\"error\":\"error encountered\"}"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
