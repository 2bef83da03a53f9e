package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medbattle-backend/internal/battle"
	"medbattle-backend/internal/config"
	"medbattle-backend/internal/handlers"
	"medbattle-backend/internal/logger"
	"medbattle-backend/internal/metrics"
	"medbattle-backend/internal/middleware"
	"medbattle-backend/internal/questions"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env", ".env", "dotenv file read before the environment")
	flag.Parse()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		log.Fatal(err)
	}

	logg, closer, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()
	slog.SetDefault(logg)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, err := loadBank(cfg.QuestionsPath)
	if err != nil {
		return err
	}
	slog.Info("question bank loaded", slog.Int("questions", bank.Len()), slog.Int("areas", len(bank.Areas())))

	m := metrics.New()
	clk := clock.New()

	opts := battle.OptionsFromConfig(cfg.Battle)
	opts.Secret = []byte(cfg.JWTSecret)
	opts.Clock = clk
	opts.Logger = slog.Default()
	opts.Metrics = m
	svc := battle.NewService(bank, opts)
	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, rejoin tokens will not survive a restart")
	}

	go svc.RunReaper(ctx)

	mw := middleware.New(cfg.Debug)
	battleHandler := handlers.BattleHandler{
		Service: svc,
		Config:  cfg.Websocket,
		Metrics: m,
		Clock:   clk,
		AcceptOptions: websocket.AcceptOptions{
			Subprotocols:       []string{"medbattle"},
			InsecureSkipVerify: cfg.Debug,
		},
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws/battle", mw.Websocket(battleHandler))
	mux.Handle("GET /api/battle/areas", mw.HTTP(handlers.AreasHandler(bank)))
	mux.Handle("GET /healthz", handlers.HealthHandler(svc))
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("/", mw.HTTP(http.HandlerFunc(handlers.NotFoundHandler)))

	srv := http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	svc.Close(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func loadBank(path string) (*questions.Bank, error) {
	if path == "" {
		return questions.Bundled()
	}
	return questions.LoadFile(path)
}
