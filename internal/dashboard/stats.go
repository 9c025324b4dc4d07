package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/apiclient"
	"github.com/HerbHall/libradesk/internal/normalize"
	"github.com/HerbHall/libradesk/internal/sequencer"
	"github.com/HerbHall/libradesk/internal/stats"
	"github.com/HerbHall/libradesk/internal/telemetry"
	"github.com/HerbHall/libradesk/pkg/models"
)

// DefaultStatsPerPage is the per_page sent with transaction queries.
const DefaultStatsPerPage = 1000

// StatsAPI is the part of the backend the statistics view uses.
type StatsAPI interface {
	Purchases(ctx context.Context, w apiclient.DateWindow) ([]models.TransactionRecord, normalize.Issues, error)
	LoanRecords(ctx context.Context, w apiclient.DateWindow) ([]models.TransactionRecord, normalize.Issues, error)
}

// Statistics loads transaction records for a date range and aggregates
// them. Purchases are preferred; loans stand in when purchases fail or
// come back empty, and the report says so.
type Statistics struct {
	api     StatsAPI
	engine  *stats.Engine
	perPage int
	now     func() time.Time
	logger  *zap.Logger
	metrics *telemetry.Metrics
	seq     sequencer.Sequencer

	mu     sync.Mutex
	report *stats.Report
	err    error
}

// NewStatistics creates the statistics view. perPage <= 0 means
// DefaultStatsPerPage.
func NewStatistics(api StatsAPI, engine *stats.Engine, perPage int, o Options) *Statistics {
	o = o.withDefaults()
	if perPage <= 0 {
		perPage = DefaultStatsPerPage
	}
	return &Statistics{
		api:     api,
		engine:  engine,
		perPage: perPage,
		now:     o.Now,
		logger:  o.Logger.Named("stats"),
		metrics: o.Metrics,
	}
}

// Name implements View.
func (s *Statistics) Name() string { return "stats" }

// Open loads the default preset.
func (s *Statistics) Open(ctx context.Context) error {
	_, err := s.LoadPreset(ctx, stats.DefaultPreset)
	return err
}

// Close implements View.
func (s *Statistics) Close() {}

// LoadPreset loads one of the named ranges relative to now.
func (s *Statistics) LoadPreset(ctx context.Context, p stats.Preset) (stats.Report, error) {
	r, err := stats.PresetRange(p, s.now(), s.engine.Location())
	if err != nil {
		return stats.Report{}, err
	}
	return s.Load(ctx, r)
}

// Load fetches and aggregates r. If another Load was issued while this
// one was in flight, the result is discarded and ErrSuperseded returned.
func (s *Statistics) Load(ctx context.Context, r stats.Range) (stats.Report, error) {
	tok := s.seq.Issue()

	var (
		rep stats.Report
		err error
	)
	if r.Empty() {
		rep = s.engine.Aggregate(nil, r)
	} else {
		rep, err = s.fetch(ctx, r)
	}

	applied := s.seq.Commit(tok, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.report, s.err = nil, err
			return
		}
		s.report, s.err = &rep, nil
	})
	if !applied {
		s.metrics.Stale("stats").Inc()
		s.logger.Debug("stale response dropped", zap.Uint64("token", uint64(tok)))
		return stats.Report{}, ErrSuperseded
	}
	return rep, err
}

// Report returns the last applied report, if any.
func (s *Statistics) Report() (stats.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return stats.Report{}, false, s.err
	}
	return *s.report, true, s.err
}

func (s *Statistics) fetch(ctx context.Context, r stats.Range) (stats.Report, error) {
	from, to := r.QueryValues()
	w := apiclient.DateWindow{From: from, To: to, PerPage: s.perPage}

	recs, issues, err := s.api.Purchases(ctx, w)
	source := stats.SourcePurchases
	if err != nil || len(recs) == 0 {
		if err != nil {
			s.logger.Warn("purchases unavailable, trying loans", zap.Error(err))
		} else {
			s.logger.Info("no purchases in range, trying loans", zap.String("from", from), zap.String("to", to))
		}
		loans, loanIssues, loanErr := s.api.LoanRecords(ctx, w)
		switch {
		case loanErr != nil && err != nil:
			return stats.Report{}, errors.Join(err, loanErr)
		case loanErr != nil:
			s.logger.Warn("loans unavailable", zap.Error(loanErr))
		case len(loans) > 0 || err != nil:
			recs, issues, source = loans, loanIssues, stats.SourceLoans
			s.metrics.FallbackLoads.Inc()
		}
	}

	rep := s.engine.Aggregate(recs, r)
	rep.Source = source
	rep.Degraded = source == stats.SourceLoans
	rep.Anomalies.UnparsedDates = issues.UnparsedDates
	if issues.UnparsedDates > 0 {
		s.metrics.UnparsedDates.Add(float64(issues.UnparsedDates))
		s.logger.Warn("unparsed transaction dates", zap.Int("count", issues.UnparsedDates))
	}
	return rep, nil
}
