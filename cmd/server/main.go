package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stockexchange/internal/api"
	"stockexchange/internal/auth"
	"stockexchange/internal/clock"
	"stockexchange/internal/config"
	"stockexchange/internal/db"
	"stockexchange/internal/matching"
	"stockexchange/internal/orders"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Main entry point: sets up database, matching engine, scheduler, and HTTP server
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(ctx)

	location, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid venue timezone", zap.Error(err))
	}
	window, err := cfg.Window()
	if err != nil {
		logger.Fatal("invalid trading window", zap.Error(err))
	}

	venueClock := clock.Real{}

	// Matching engine and order lifecycle service
	engine := matching.NewEngine(database, venueClock, logger, matching.Config{
		Location:     location,
		Window:       window,
		SweepTimeout: cfg.Sweep.ParsedTimeout,
	})
	orderService := orders.NewService(database, venueClock, location, window)

	// Auth service and API handlers
	authService := auth.NewAuthService(database, cfg.JWTSecret)
	handler := api.NewHandler(database, orderService, engine, authService)

	// Periodic matching sweeps
	scheduler := matching.NewScheduler(engine, cfg.Sweep.ParsedInterval, logger)
	go scheduler.Run(ctx)

	// Set up HTTP router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Post("/auth/register", handler.Register)
	r.Post("/auth/login", handler.Login)
	r.Get("/instruments", handler.GetInstruments)

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(handler.JWTAuthMiddleware)
		r.Post("/orders", handler.PlaceOrder)
		r.Get("/orders", handler.GetUserOrders)
		r.Get("/orders/{id}", handler.GetOrder)
		r.Put("/orders/{id}", handler.EditOrder)
		r.Delete("/orders/{id}", handler.CancelOrder)
		r.Get("/executions", handler.GetUserExecutions)
		r.Post("/admin/sweep", handler.TriggerSweep)
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	logger.Info("starting server", zap.String("addr", cfg.ListenAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}
