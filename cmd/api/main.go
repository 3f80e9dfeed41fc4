package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/securelink/internal/config"
	"github.com/Dan9191/securelink/internal/detection"
	"github.com/Dan9191/securelink/internal/handler"
	"github.com/Dan9191/securelink/internal/integrations/sar"
	"github.com/Dan9191/securelink/internal/merchant"
	"github.com/Dan9191/securelink/internal/middleware"
	"github.com/Dan9191/securelink/internal/repository"
	"github.com/Dan9191/securelink/internal/scheduler"
	"github.com/Dan9191/securelink/internal/service"
	"github.com/Dan9191/securelink/internal/simulator"
	"github.com/Dan9191/securelink/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for the given feed and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if *issueToken != "" {
		token, err := middleware.NewToken(cfg.JWTSecret, *issueToken, *tokenTTL)
		if err != nil {
			logger.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	seed := cfg.SimulationSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Initialize layers
	var opts []service.Option
	archive, err := openArchive(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open ring archive: %v", err)
	}
	if archive != nil {
		opts = append(opts, service.WithArchive(archive))
	}
	if cfg.AlertsEnabled() {
		opts = append(opts, service.WithAlerter(email.NewSender(cfg, logger)))
	}
	if cfg.SARURL != "" {
		opts = append(opts, service.WithReporter(sar.NewClient(cfg, logger)))
	}

	engine := detection.NewEngine(detection.WithWindow(cfg.Window))
	ledger := merchant.NewLedger(rand.New(rand.NewSource(seed)))
	svc := service.NewService(engine, ledger, logger, opts...)
	h := handler.NewHandler(svc, logger)

	sim := simulator.New(rand.New(rand.NewSource(seed+1)), time.Now)
	sched, err := scheduler.New(cfg, svc, sim, logger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Router(middleware.AuthMiddleware(cfg)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	sched.Start()
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	sched.Stop()
	if err := svc.Close(); err != nil {
		logger.Errorf("Failed to close service: %v", err)
	}
}

func openArchive(cfg *config.Config, logger *logrus.Logger) (repository.Archive, error) {
	key := []byte(cfg.CardTokenKey)
	switch cfg.ArchiveDriver {
	case config.ArchivePostgres:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := repository.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Archiving rings to PostgreSQL")
		return repository.NewRepository(db, key), nil
	case config.ArchiveBolt:
		archive, err := repository.NewBoltArchive(cfg.BoltPath, key)
		if err != nil {
			return nil, err
		}
		logger.Infof("Archiving rings to %s", cfg.BoltPath)
		return archive, nil
	default:
		return nil, nil
	}
}
