// Package stats aggregates transaction records into the figures shown on
// the statistics view: income, units sold, average price, a top-N ranking
// and a zero-filled daily income series.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/pkg/models"
)

// DefaultTopN is the ranking length when none is configured.
const DefaultTopN = 10

// Source names where a report's records came from.
type Source string

const (
	SourcePurchases Source = "purchases"
	SourceLoans     Source = "loans"
)

// TopItem is one row of the ranking.
type TopItem struct {
	Key      string          `json:"key" yaml:"key"`
	BookID   *int64          `json:"book_id,omitempty" yaml:"book_id,omitempty"`
	Title    string          `json:"title" yaml:"title"`
	Quantity float64         `json:"quantity" yaml:"quantity"`
	Revenue  decimal.Decimal `json:"revenue" yaml:"revenue"`
}

// DayPoint is the income of one calendar day.
type DayPoint struct {
	Date   time.Time       `json:"date" yaml:"date"`
	Income decimal.Decimal `json:"income" yaml:"income"`
}

// Anomalies counts records that could not contribute to a report.
type Anomalies struct {
	// UnparsedDates carried a timestamp that no layout accepted.
	UnparsedDates int `json:"unparsed_dates" yaml:"unparsed_dates"`
	// Undated had no usable timestamp at all (includes UnparsedDates).
	Undated int `json:"undated" yaml:"undated"`
	// OutOfRange fell outside the requested days.
	OutOfRange int `json:"out_of_range" yaml:"out_of_range"`
}

// Report is the result of one aggregation.
type Report struct {
	Range        Range           `json:"-" yaml:"-"`
	From         string          `json:"from" yaml:"from"`
	To           string          `json:"to" yaml:"to"`
	Income       decimal.Decimal `json:"income" yaml:"income"`
	Units        float64         `json:"units" yaml:"units"`
	AveragePrice decimal.Decimal `json:"average_price" yaml:"average_price"`
	Top          []TopItem       `json:"top" yaml:"top"`
	Daily        []DayPoint      `json:"daily" yaml:"daily"`
	Records      int             `json:"records" yaml:"records"`
	Anomalies    Anomalies       `json:"anomalies" yaml:"anomalies"`
	Source       Source          `json:"source" yaml:"source"`
	Degraded     bool            `json:"degraded" yaml:"degraded"`
}

// Engine aggregates records. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	loc    *time.Location
	topN   int
	newKey func() string
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the zone whose calendar days define buckets.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithTopN sets the ranking length; non-positive values keep the default.
func WithTopN(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.topN = n
		}
	}
}

// WithKeyFunc replaces the generator for keys of records that reference
// neither a book nor their own id.
func WithKeyFunc(fn func() string) Option {
	return func(e *Engine) { e.newKey = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine. Defaults: UTC buckets, top 10.
func New(opts ...Option) *Engine {
	e := &Engine{
		loc:    time.UTC,
		topN:   DefaultTopN,
		newKey: func() string { return "anon:" + uuid.NewString() },
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Location returns the zone used for day buckets.
func (e *Engine) Location() *time.Location { return e.loc }

// Aggregate filters records to r once and derives every statistic from
// that filtered set. Records without a timestamp never pass the filter.
// An inverted range yields an empty series and zero totals.
func (e *Engine) Aggregate(records []models.TransactionRecord, r Range) Report {
	r = NewRange(r.From, r.To, e.loc)
	from, to := r.QueryValues()
	rep := Report{
		Range:        r,
		From:         from,
		To:           to,
		Income:       decimal.Zero,
		AveragePrice: decimal.Zero,
		Top:          []TopItem{},
		Daily:        []DayPoint{},
		Source:       SourcePurchases,
	}

	filtered := make([]models.TransactionRecord, 0, len(records))
	for _, rec := range records {
		switch {
		case rec.CreatedAt == nil:
			rep.Anomalies.Undated++
		case !r.Contains(*rec.CreatedAt):
			rep.Anomalies.OutOfRange++
		default:
			filtered = append(filtered, rec)
		}
	}
	rep.Records = len(filtered)

	buckets := make(map[string]decimal.Decimal)
	for _, rec := range filtered {
		rep.Income = rep.Income.Add(rec.Amount)
		rep.Units += rec.Quantity
		key := rec.CreatedAt.In(e.loc).Format(time.DateOnly)
		buckets[key] = buckets[key].Add(rec.Amount)
	}
	if rep.Units > 0 {
		rep.AveragePrice = rep.Income.Div(decimal.NewFromFloat(rep.Units))
	}
	for _, d := range r.Days() {
		rep.Daily = append(rep.Daily, DayPoint{Date: d, Income: buckets[d.Format(time.DateOnly)]})
	}
	rep.Top = e.rank(filtered)

	e.logger.Debug("aggregated",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("records", len(records)),
		zap.Int("in_range", rep.Records),
		zap.Int("undated", rep.Anomalies.Undated),
	)
	return rep
}

// rank groups records and orders groups by quantity, descending. Groups
// with equal quantity keep the order in which they were first seen.
func (e *Engine) rank(records []models.TransactionRecord) []TopItem {
	index := make(map[string]int)
	groups := make([]TopItem, 0)
	for _, rec := range records {
		key := e.groupKey(rec)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, TopItem{
				Key:     key,
				BookID:  rec.BookID,
				Title:   title(rec),
				Revenue: decimal.Zero,
			})
		}
		groups[i].Quantity += rec.Quantity
		groups[i].Revenue = groups[i].Revenue.Add(rec.Amount)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Quantity > groups[b].Quantity
	})
	if len(groups) > e.topN {
		groups = groups[:e.topN]
	}
	return groups
}

func (e *Engine) groupKey(rec models.TransactionRecord) string {
	switch {
	case rec.BookID != nil:
		return "book:" + strconv.FormatInt(*rec.BookID, 10)
	case rec.ID != nil:
		return "record:" + strconv.FormatInt(*rec.ID, 10)
	}
	return e.newKey()
}

func title(rec models.TransactionRecord) string {
	switch {
	case rec.BookTitle != "":
		return rec.BookTitle
	case rec.BookID != nil:
		return fmt.Sprintf("Book %d", *rec.BookID)
	case rec.ID != nil:
		return fmt.Sprintf("Record %d", *rec.ID)
	}
	return "Unknown"
}
