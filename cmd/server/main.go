package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/crochet_shop/internal/config"
	"github.com/Skotchmaster/crochet_shop/internal/db"
	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/httpserver"
	"github.com/Skotchmaster/crochet_shop/internal/logging"
	"github.com/Skotchmaster/crochet_shop/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/crochet_shop/internal/middleware/logging"
	"github.com/Skotchmaster/crochet_shop/internal/repo"
	"github.com/Skotchmaster/crochet_shop/internal/service"
	"github.com/Skotchmaster/crochet_shop/internal/validation"
)

func main() {
	cfg := config.Load()
	cfg.Validate()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	decimal.MarshalJSONWithoutQuotes = true

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err == nil {
		err = db.Migrate(initCtx, gdb)
	}
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	hub := events.NewHub(64)
	publishers := events.Fanout{hub}
	var kafka *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publishers = append(publishers, kafka)
		logger.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	Repo := repo.New(gdb)

	authService := &service.AuthService{
		Repo:          Repo,
		Events:        publishers,
		JWTSecret:     cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
	}
	accountService := &service.AccountService{Repo: Repo, Events: publishers}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: len(cfg.CORSOrigins) > 0 && cfg.CORSOrigins[0] != "*",
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "X-CSRF-Token"},
		ExposeHeaders:    []string{"X-CSRF-Token"},
	}))
	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.Secure = cfg.CSRFSecureCookie
		e.Use(csrf.Middleware(csrfCfg))
	}

	httpserver.Register(e, &httpserver.Deps{
		CartHandler:    &httpserver.CartHTTP{Svc: &service.CartService{Repo: Repo, Events: publishers}},
		OrderHandler:   &httpserver.OrderHTTP{Svc: &service.OrderService{Repo: Repo, Events: publishers}},
		AccountHandler: &httpserver.AccountHTTP{Svc: accountService},
		AuthHandler:    &httpserver.AuthHTTP{Svc: authService, Accounts: accountService},
		TestimonialHandler: &httpserver.TestimonialHTTP{
			Svc: &service.TestimonialService{Repo: Repo, Events: publishers},
			Hub: hub,
		},
		JWTSecret: cfg.JWTAccessSecret,
		Refresher: authService,
		Ready:     Repo.Ping,
	})

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := e.Start(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	// Live streams only end when their subscription closes.
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Error("kafka close", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close", "error", err)
	}

	logger.Info("server stopped")
}
