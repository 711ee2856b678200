package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/consumers"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/events"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/handler"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/service"
	"github.com/dealerflow/dealerflow-backend/pkg/config"
	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/dealerflow/dealerflow-backend/pkg/httputil"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/dealerflow/dealerflow-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("attendance-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("attendance-service", cfg.Server.Environment)
	log.Info().Msg("starting Attendance Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue("attendance-service"); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	// Initialize event publisher
	publisher, err := events.NewAttendanceEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	assignmentRepo := repository.NewAssignmentRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	failureRepo := repository.NewValidationFailureRepository(db)
	dealershipRepo := repository.NewDealershipRepository(db)
	employeeCacheRepo := repository.NewEmployeeCacheRepository(db)

	// Initialize services
	overtimeService := service.NewOvertimeService(entryRepo, dealershipRepo, publisher, &cfg.Attendance, log)
	punchService := service.NewPunchService(assignmentRepo, entryRepo, failureRepo, dealershipRepo,
		overtimeService, publisher, &cfg.Attendance, log)
	autoCloseService := service.NewAutoCloseService(entryRepo, reminderRepo, dealershipRepo,
		overtimeService, publisher, &cfg.Attendance, log)

	// Initialize handlers
	punchHandler := handler.NewPunchHandler(punchService, log)
	entryHandler := handler.NewEntryHandler(punchService, log)
	overdueHandler := handler.NewOverdueHandler(autoCloseService, reminderRepo, log)
	adminHandler := handler.NewAdminHandler(assignmentRepo, dealershipRepo, failureRepo, overtimeService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start employee directory sync consumer
	employeeConsumer, err := consumers.NewEmployeeEventConsumer(rmq, employeeCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create employee event consumer")
	}
	if err := employeeConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start employee event consumer")
	}

	// Start the auto-close scanner
	scheduler := service.NewScanScheduler(autoCloseService, dealershipRepo, cfg.Attendance.ScanInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Dealership-ID", "X-Employee-ID", "X-Kiosk-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.IdentityMiddleware) // dealership context with /health exception

	// Health check (no identity required - handled by middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "attendance-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes (dealership identity required)
	r.Route("/api/v1/attendance", func(r chi.Router) {
		r.Route("/punches", func(r chi.Router) {
			r.Post("/validate", punchHandler.Validate)
			r.Post("/clock-in", punchHandler.ClockIn)
			r.Post("/clock-out", punchHandler.ClockOut)
			r.Get("/status", punchHandler.Status)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", entryHandler.List)
			r.Patch("/{id}", entryHandler.Update)
			r.Post("/{id}/dispute", entryHandler.Dispute)
			r.Delete("/{id}/dispute", entryHandler.ResolveDispute)
			r.Delete("/{id}/review", entryHandler.ClearReview)
			r.Get("/{id}/reminders", overdueHandler.ListReminders)
		})

		r.Post("/reminders/{id}/acknowledge", overdueHandler.AcknowledgeReminder)

		r.Route("/overdue", func(r chi.Router) {
			r.Get("/", overdueHandler.List)
			r.Post("/scan", overdueHandler.Scan)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", adminHandler.ListAssignments)
			r.Post("/", adminHandler.CreateAssignment)
			r.Put("/{id}/status", adminHandler.UpdateAssignmentStatus)
		})

		r.Get("/settings", adminHandler.GetSettings)
		r.Put("/settings", adminHandler.UpsertSettings)

		r.Get("/validation-failures", adminHandler.ListFailures)
		r.Post("/validation-failures", punchHandler.LogFailure)

		r.Post("/overtime/recalculate", adminHandler.Recalculate)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop the scanner and consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
