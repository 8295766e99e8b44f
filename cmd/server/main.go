package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/adapter/gateway"
	"github.com/raceday/race-order/internal/adapter/handler"
	"github.com/raceday/race-order/internal/adapter/storage"
	"github.com/raceday/race-order/internal/config"
	"github.com/raceday/race-order/internal/core/schema"
	"github.com/raceday/race-order/internal/core/service"
)

// defaultFormSpecs applies when FORM_SCHEMA_PATH is unset. The admin
// surface normally supplies the schema; this mirrors a minimal race
// registration form.
var defaultFormSpecs = []schema.FieldSpec{
	{Name: "name", Label: "Full Name", Type: schema.FieldTypeText, Required: true},
	{Name: "email", Label: "Email", Type: schema.FieldTypeEmail, Required: true},
	{Name: "phone", Label: "Phone", Type: schema.FieldTypePhone, Required: true},
	{Name: "nik", Label: "NIK", Type: schema.FieldTypeText, Required: true, Rule: &schema.Rule{Pattern: `^[0-9]{16}$`}},
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.WithError(err).Fatal("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Fatal("failed to ping mysql")
	}
	logger.Info("connected to mysql")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect redis")
	}
	logger.Info("connected to redis")

	formSpecs := defaultFormSpecs
	if cfg.FormSchemaPath != "" {
		formSpecs, err = loadFormSpecs(cfg.FormSchemaPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to load form schema")
		}
	}

	orderRepo := storage.NewOrderRepository(logger, db)
	ticketRepo := storage.NewTicketRepository(logger, db)
	cache := storage.NewRedisAdapter(rdb)
	paymentGateway := gateway.NewMidtransGateway(
		cfg.GatewayBaseURL, cfg.GatewayServerKey, cfg.GatewayBasicAuthKey,
		logger, &http.Client{Timeout: 15 * time.Second},
	)
	idgen := service.NewIdentifierGenerator(orderRepo, cfg.OrderNumberPrefix, cfg.BibMin, cfg.BibMax)

	orderService := service.NewOrderService(service.OrderServiceProperty{
		Logger:        logger,
		OrderRepo:     orderRepo,
		TicketRepo:    ticketRepo,
		Cache:         cache,
		Gateway:       paymentGateway,
		IDGenerator:   idgen,
		FormSpecs:     formSpecs,
		IdentityField: cfg.IdentityField,
		Policy:        cfg.ReservationPolicy,
	})
	reconciler := service.NewReconciliationService(service.ReconciliationServiceProperty{
		Logger:      logger,
		OrderRepo:   orderRepo,
		TicketRepo:  ticketRepo,
		Cache:       cache,
		Gateway:     paymentGateway,
		IDGenerator: idgen,
		Policy:      cfg.ReservationPolicy,
	})

	validate := validator.New()

	router := mux.NewRouter()
	handler.InitHTTPHandler(router, logger, validate, orderService, reconciler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: corsHandler.Handler(router),
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func loadFormSpecs(path string) ([]schema.FieldSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var specs []schema.FieldSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}
