package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/plutusgrip/backend/src/config"
	"github.com/plutusgrip/backend/src/database"
	"github.com/plutusgrip/backend/src/handlers"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/scheduler"
	"github.com/plutusgrip/backend/src/security"
	"github.com/plutusgrip/backend/src/services"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("PlutusGrip backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	reportService := services.NewReportService(database.DB, reportCache)
	recurringService := services.NewRecurringService(database.DB)
	whitelistCache := services.NewWhitelistCache(config.Cfg.WhitelistCacheTTL)
	whitelistService := services.NewWhitelistService(database.DB, whitelistCache)

	userHandler := handlers.NewUserHandler(authService)
	transactionHandler := handlers.NewTransactionHandler(reportService)
	categoryHandler := handlers.NewCategoryHandler()
	budgetHandler := handlers.NewBudgetHandler()
	goalHandler := handlers.NewGoalHandler()
	recurringHandler := handlers.NewRecurringHandler(recurringService)
	reportHandler := handlers.NewReportHandler(reportService)
	whitelistHandler := handlers.NewWhitelistHandler(whitelistService)

	rateLimiters := handlers.NewRateLimiterRegistry(config.Cfg.RateLimitPerSecond, config.Cfg.RateLimitBurst)

	sched := scheduler.New(recurringService, config.Cfg.RecurringCheckInterval)
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go sched.Start(schedulerCtx)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(handlers.RateLimitMiddleware(rateLimiters, whitelistService))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "PlutusGrip Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Get("/auth/csrf", handlers.GetCSRFToken)
		})

		// Auth routes (CSRF protected)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Post("/auth/register", userHandler.RegisterUserHandler)
			r.Post("/auth/login", userHandler.LoginUserHandler)
			r.Post("/auth/refresh", userHandler.RefreshTokenHandler)
			r.With(userHandler.AuthMiddleware).Post("/auth/logout", userHandler.LogoutUserHandler)
		})

		// Protected routes (require authentication and CSRF)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Use(userHandler.AuthMiddleware)

			r.Get("/auth/me", userHandler.GetCurrentUserHandler)
			r.Put("/auth/me", userHandler.UpdateCurrentUserHandler)

			r.Get("/transactions", transactionHandler.ListTransactionsHandler)
			r.Post("/transactions", transactionHandler.CreateTransactionHandler)
			r.Get("/transactions/{id}", transactionHandler.GetTransactionHandler)
			r.Put("/transactions/{id}", transactionHandler.UpdateTransactionHandler)
			r.Delete("/transactions/{id}", transactionHandler.DeleteTransactionHandler)

			r.Get("/categories", categoryHandler.ListCategoriesHandler)
			r.Get("/categories/{id}", categoryHandler.GetCategoryHandler)

			r.Get("/budgets", budgetHandler.ListBudgetsHandler)
			r.Post("/budgets", budgetHandler.CreateBudgetHandler)
			r.Get("/budgets/{id}", budgetHandler.GetBudgetHandler)
			r.Get("/budgets/{id}/status", budgetHandler.GetBudgetStatusHandler)
			r.Put("/budgets/{id}", budgetHandler.UpdateBudgetHandler)
			r.Delete("/budgets/{id}", budgetHandler.DeleteBudgetHandler)

			r.Get("/goals", goalHandler.ListGoalsHandler)
			r.Post("/goals", goalHandler.CreateGoalHandler)
			r.Get("/goals/summary/progress", goalHandler.GetGoalsProgressSummaryHandler)
			r.Get("/goals/{id}", goalHandler.GetGoalHandler)
			r.Put("/goals/{id}", goalHandler.UpdateGoalHandler)
			r.Post("/goals/{id}/progress", goalHandler.AddGoalProgressHandler)
			r.Post("/goals/{id}/complete", goalHandler.CompleteGoalHandler)
			r.Delete("/goals/{id}", goalHandler.DeleteGoalHandler)

			r.Get("/recurring", recurringHandler.ListRecurringHandler)
			r.Post("/recurring", recurringHandler.CreateRecurringHandler)
			r.Get("/recurring/{id}", recurringHandler.GetRecurringHandler)
			r.Put("/recurring/{id}", recurringHandler.UpdateRecurringHandler)
			r.Delete("/recurring/{id}", recurringHandler.DeleteRecurringHandler)

			r.Get("/reports/dashboard", reportHandler.GetDashboardHandler)
			r.Get("/reports/summary", reportHandler.GetFinancialSummaryHandler)
			r.Get("/reports/categories", reportHandler.GetCategoryBreakdownHandler)
			r.Get("/reports/trends", reportHandler.GetMonthlyTrendsHandler)
			r.Get("/reports/patterns", reportHandler.GetSpendingPatternsHandler)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(userHandler.AdminMiddleware)
				r.Get("/admin/whitelist", whitelistHandler.ListWhitelistEntriesHandler)
				r.Post("/admin/whitelist", whitelistHandler.CreateWhitelistEntryHandler)
				r.Post("/admin/whitelist/{id}/deactivate", whitelistHandler.DeactivateWhitelistEntryHandler)
				r.Delete("/admin/whitelist/{id}", whitelistHandler.DeleteWhitelistEntryHandler)
				r.Get("/admin/whitelist/check/{ip}", whitelistHandler.CheckWhitelistedHandler)
				r.Post("/admin/recurring/run", recurringHandler.RunRecurringPassHandler)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
