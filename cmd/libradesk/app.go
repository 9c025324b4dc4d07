package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/libradesk/internal/apiclient"
	"github.com/HerbHall/libradesk/internal/config"
	"github.com/HerbHall/libradesk/internal/dashboard"
	"github.com/HerbHall/libradesk/internal/normalize"
	"github.com/HerbHall/libradesk/internal/resolve"
	"github.com/HerbHall/libradesk/internal/session"
	"github.com/HerbHall/libradesk/internal/stats"
	"github.com/HerbHall/libradesk/internal/store"
	"github.com/HerbHall/libradesk/internal/telemetry"
	"github.com/HerbHall/libradesk/internal/vault"
)

// common holds the flags every subcommand accepts.
type common struct {
	config string
	output string
	debug  bool
}

func newFlagSet(name string) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &common{}
	fs.StringVar(&c.config, "config", "", "path to configuration file")
	fs.StringVar(&c.output, "o", "table", "output format: table, json or yaml")
	fs.BoolVar(&c.debug, "debug", false, "verbose logging and counter dump on exit")
	return fs, c
}

// app is everything a subcommand needs, built from configuration.
type app struct {
	settings *config.Settings
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	store    *store.Store
	sessions *session.Manager
	client   *apiclient.Client
	resolver *resolve.Resolver
	loc      *time.Location
	out      *printer
	debug    bool
}

func newApp(ctx context.Context, c *common) (*app, error) {
	out, err := newPrinter(os.Stdout, c.output)
	if err != nil {
		return nil, err
	}
	settings, _, err := config.Load(c.config)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(settings.Log.Level, c.debug)
	if err != nil {
		return nil, err
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, settings.Session.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	sessions, err := session.NewManager(ctx, st, vault.New(settings.Session.Passphrase),
		session.WithLogger(logger.Named("session")))
	if err != nil {
		st.Close()
		return nil, err
	}

	resolver := resolve.New(settings.API.BaseURL, settings.API.PageOrigin)
	norm, err := normalize.New(normalize.WithLocation(loc), normalize.WithResolver(resolver.Resolve))
	if err != nil {
		st.Close()
		return nil, err
	}
	metrics := telemetry.New(nil)
	client, err := apiclient.New(settings.API.BaseURL,
		apiclient.WithTimeout(settings.API.Timeout),
		apiclient.WithRateLimit(settings.API.RateLimit, settings.API.RateBurst),
		apiclient.WithCredentials(sessions),
		apiclient.WithLogger(logger.Named("api")),
		apiclient.WithMetrics(metrics),
		apiclient.WithNormalizer(norm),
	)
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Debug("api configured",
		zap.String("base_url", client.BaseURL()),
		zap.String("asset_origin", resolver.Origin()),
	)

	return &app{
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		store:    st,
		sessions: sessions,
		client:   client,
		resolver: resolver,
		loc:      loc,
		out:      out,
		debug:    c.debug,
	}, nil
}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func (a *app) close() {
	if a.debug {
		for _, s := range a.metrics.Counters() {
			fmt.Fprintf(os.Stderr, "counter %s %v %g\n", s.Name, s.Labels, s.Value)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close session store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) options() dashboard.Options {
	return dashboard.Options{
		Logger:   a.logger,
		Metrics:  a.metrics,
		Notifier: stderrNotifier{},
		Debounce: a.settings.Lists.Debounce,
		PageSize: a.settings.Lists.DefaultPageSize,
	}
}

func (a *app) engine() *stats.Engine {
	return stats.New(
		stats.WithLocation(a.loc),
		stats.WithTopN(a.settings.Stats.TopN),
		stats.WithLogger(a.logger.Named("engine")),
	)
}

// stderrNotifier shows load and mutation failures on stderr. The CLI has no modal
// to wait on, so Notify returns at once.
type stderrNotifier struct{}

func (stderrNotifier) Notify(_ context.Context, msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// withApp parses fs, builds the app and runs fn with it.
func withApp(fs *flag.FlagSet, c *common, args []string, fn func(ctx context.Context, a *app, rest []string) error) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.close()
	return withHint(fn(ctx, a, fs.Args()))
}

// withHint marks errors that may go away on their own.
func withHint(err error) error {
	if err != nil && apiclient.IsRetryable(err) {
		return fmt.Errorf("%w (temporary, try again)", err)
	}
	return err
}
