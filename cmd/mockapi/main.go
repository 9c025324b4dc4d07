// Command mockapi serves a fake library backend for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/mockapi"
	"github.com/HerbHall/libradesk/internal/version"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "listen address")
	envelopes := flag.String("envelopes", "all", "comma-separated list envelopes to rotate (array,data,paginator,data.items,items)")
	minLatency := flag.Duration("min-latency", 0, "minimum injected latency")
	maxLatency := flag.Duration("max-latency", 0, "maximum injected latency")
	seed := flag.Uint64("seed", 1, "seed for generated data and latency jitter")
	email := flag.String("email", mockapi.DefaultEmail, "admin email accepted by login")
	password := flag.String("password", mockapi.DefaultPassword, "admin password accepted by login")
	noAuth := flag.Bool("no-auth", false, "serve every route without a token")
	rps := flag.Float64("rate-limit", 0, "requests per second before answering 429 (0 disables)")
	debug := flag.Bool("debug", false, "log every request")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	var (
		logger *zap.Logger
		err    error
	)
	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	envs, err := mockapi.ParseEnvelopes(*envelopes)
	if err != nil {
		logger.Fatal("invalid -envelopes", zap.Error(err))
	}

	opts := []mockapi.Option{
		mockapi.WithLogger(logger),
		mockapi.WithEnvelopes(envs...),
		mockapi.WithLatency(*minLatency, *maxLatency),
		mockapi.WithSeed(*seed),
		mockapi.WithCredentials(*email, *password),
		mockapi.WithRateLimit(*rps, int(*rps)+1),
	}
	if *noAuth {
		opts = append(opts, mockapi.WithoutAuth())
	}
	srv := mockapi.New(*addr, opts...)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
