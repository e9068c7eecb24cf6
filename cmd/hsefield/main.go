package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/api"
	"github.com/erazemk/hsefield/internal/config"
	"github.com/erazemk/hsefield/internal/db"
	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/logger"
	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/notify"
	"github.com/erazemk/hsefield/internal/queue"
	"github.com/erazemk/hsefield/internal/report"
	"github.com/erazemk/hsefield/internal/settings"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log := logrus.StandardLogger()
	closeLog, err := logger.Configure(log, logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Path:   cfg.LogPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to open store")
		os.Exit(1)
	}
	defer closeStore()

	ctx := context.Background()
	st := settings.New(store, log)

	password, err := generatePassword(16)
	if err != nil {
		log.WithError(err).Error("failed to generate admin password")
		os.Exit(1)
	}
	seeded, err := st.Seed(ctx, model.User{FullName: cfg.AdminName, Email: cfg.AdminEmail}, password)
	if err != nil {
		log.WithError(err).Error("failed to seed directory")
		os.Exit(1)
	}
	if seeded {
		printSeedResult(cfg.AdminEmail, password)
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = st.JWTSecret(ctx)
		if err != nil {
			log.WithError(err).Error("failed to get JWT secret")
			os.Exit(1)
		}
	}

	repo := report.NewRepository(store, st, log)
	notes := notify.NewStore(store, log)
	reports := report.NewService(repo, &notify.Dispatcher{Store: notes, Log: log}, log)
	offline := queue.New(store, log)

	// Read the reports once so a damaged store is reported at startup. The
	// server keeps running and answers 503 until the data is repaired.
	if all, err := reports.GetAll(ctx); err != nil {
		log.WithError(err).Error("report storage check failed")
	} else {
		log.WithField("reports", len(all)).Info("report storage ready")
	}

	router := api.NewRouter(api.Deps{
		Reports:       reports,
		Notifications: notes,
		Queue:         offline,
		Replayer:      queue.NewReplayer(offline, reports, log),
		Settings:      st,
		JWTSecret:     jwtSecret,
		Log:           log,
		LoginLimit:    cfg.LoginLimit,
		LoginPeriod:   cfg.LoginPeriod,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(log, router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		log.WithField("signal", sig.String()).Info("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Error("server forced to shutdown")
		}
	}()

	log.WithFields(logrus.Fields{"addr": cfg.Addr, "store": cfg.Backend}).Info("server started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("server error")
		os.Exit(1)
	}

	log.Info("server stopped, closing store")
}

// openStore opens the configured backend and returns a function that closes it.
func openStore(cfg *config.Config, log logrus.FieldLogger) (kv.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendRedis:
		store, err := kv.NewRedis(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("prefix", cfg.RedisPrefix).Info("redis store ready")
		return store, func() { store.Close() }, nil
	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("ensuring schema: %w", err)
		}
		log.WithField("path", cfg.DBPath).Info("database ready")
		return kv.NewSQLite(database), func() { database.Close() }, nil
	}
}

// printSeedResult prints the first-run admin credentials to stdout.
func printSeedResult(email, password string) {
	fmt.Println("Directory initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
