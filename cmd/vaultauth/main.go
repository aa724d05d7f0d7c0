package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"vaultauth/internal/config"
	"vaultauth/internal/observability/logging"
	"vaultauth/internal/observability/metrics"
	"vaultauth/internal/observability/middleware"
	"vaultauth/internal/random"
	impl "vaultauth/internal/service/impl"
	"vaultauth/internal/store"
	httpx "vaultauth/internal/transport/http"

	"vaultauth/pkg/db"
)

func main() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "vaultauth",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)

	logger.Info("starting service")

	cfg := config.Load()
	metrics.MustRegister("vaultauth")

	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)
	src := random.NewSource()

	ts, err := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer:       cfg.Issuer,
		AccessTTL:    cfg.AccessTTL,
		MasterSecret: []byte(cfg.MasterSecret),
	}, st, src)
	if err != nil {
		logger.Error("token service init", "error", err)
		os.Exit(1)
	}
	ds := impl.NewDeviceServiceImpl(st)
	tf := impl.NewTwoFactorServiceImpl(st, src)

	mux := httpx.NewRouter(ds, ts, tf)
	handler := middleware.WithRequestAndTrace(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("vaultauth listening", "addr", srv.Addr, "issuer", cfg.Issuer)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
