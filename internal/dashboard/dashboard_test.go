package dashboard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/libradesk/internal/apiclient"
	"github.com/HerbHall/libradesk/internal/dashboard"
	"github.com/HerbHall/libradesk/internal/mockapi"
	"github.com/HerbHall/libradesk/internal/normalize"
	"github.com/HerbHall/libradesk/internal/stats"
	"github.com/HerbHall/libradesk/internal/telemetry"
	"github.com/HerbHall/libradesk/internal/testutil"
	"github.com/HerbHall/libradesk/pkg/models"
)

var fixedNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

type fixture struct {
	backend  *mockapi.Server
	client   *apiclient.Client
	metrics  *telemetry.Metrics
	notifier *testutil.Notifier
	opts     dashboard.Options
}

func newFixture(t *testing.T, opts ...mockapi.Option) *fixture {
	t.Helper()
	opts = append([]mockapi.Option{
		mockapi.WithNow(func() time.Time { return fixedNow }),
		mockapi.WithoutAuth(),
	}, opts...)
	backend := mockapi.New("", opts...)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	m := telemetry.New(nil)
	c, err := apiclient.New(srv.URL+"/api", apiclient.WithRateLimit(0, 0), apiclient.WithMetrics(m))
	require.NoError(t, err)
	n := testutil.NewNotifier()
	return &fixture{
		backend:  backend,
		client:   c,
		metrics:  m,
		notifier: n,
		opts: dashboard.Options{
			Metrics:  m,
			Notifier: n,
			Clock:    testutil.NewClock(fixedNow),
			Now:      func() time.Time { return fixedNow },
		},
	}
}

func counter(m *telemetry.Metrics, name string, labels map[string]string) float64 {
	for _, s := range m.Counters() {
		if s.Name != name {
			continue
		}
		match := true
		for k, v := range labels {
			if s.Labels[k] != v {
				match = false
			}
		}
		if match {
			return s.Value
		}
	}
	return 0
}

// countingBooks counts category fetches.
type countingBooks struct {
	*apiclient.Client
	categoryCalls atomic.Int32
}

func (c *countingBooks) Categories(ctx context.Context) ([]models.Category, error) {
	c.categoryCalls.Add(1)
	return c.Client.Categories(ctx)
}

func TestBooks_OpenLoadsFirstPageAndCategoriesOnce(t *testing.T) {
	f := newFixture(t)
	api := &countingBooks{Client: f.client}
	b := dashboard.NewBooks(api, f.opts)
	defer b.Close()

	require.NoError(t, b.Open(context.Background()))
	b.List().Wait()

	snap := b.List().Snapshot()
	require.NoError(t, snap.Err)
	assert.Len(t, snap.Items, models.DefaultPageSize)
	assert.Equal(t, 20, snap.Query.Total)

	cats, err := b.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 3)
	assert.Equal(t, "Fiction", b.CategoryName(cats[0].ID))
	assert.Equal(t, int32(1), api.categoryCalls.Load())
}

func TestBooks_DeleteRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, mockapi.WithEnvelopes(mockapi.EnvelopeData))
	b := dashboard.NewBooks(f.client, f.opts)
	defer b.Close()
	b.List().Reload()
	b.List().Wait()

	before := b.List().Items()
	require.Len(t, before, models.DefaultPageSize)
	victim := before[3]

	f.backend.Fail(http.MethodPost, "/api/Book/delete/"+strconv.FormatInt(victim.ID, 10), http.StatusInternalServerError)
	err := b.Delete(context.Background(), victim.ID)
	require.ErrorIs(t, err, apiclient.ErrServer)

	assert.Equal(t, before, b.List().Items(), "list restored in original order")
	require.Len(t, f.notifier.Messages(), 1)
	assert.Contains(t, f.notifier.Messages()[0], "Could not delete book")
	assert.Equal(t, 1.0, counter(f.metrics, "mutation_failures_total", map[string]string{"kind": "book"}))

	f.backend.Restore(http.MethodPost, "/api/Book/delete/"+strconv.FormatInt(victim.ID, 10))
	require.NoError(t, b.Delete(context.Background(), victim.ID))
	for _, it := range b.List().Items() {
		assert.NotEqual(t, victim.ID, it.ID)
	}
}

func TestBooks_UpdateReloadsFirstPage(t *testing.T) {
	f := newFixture(t)
	b := dashboard.NewBooks(f.client, f.opts)
	defer b.Close()
	b.List().Reload()
	b.List().Wait()

	it := b.List().Items()[0]
	d := models.FromItem(it)
	d.Title = "Renamed"
	require.NoError(t, b.Update(context.Background(), it.ID, d))
	b.List().Wait()

	var found bool
	for _, got := range b.List().Items() {
		if got.ID == it.ID {
			found = true
			assert.Equal(t, "Renamed", got.Title)
		}
	}
	assert.True(t, found)
	assert.Equal(t, 1, b.List().Snapshot().Query.Page)
}

// refusingBooks fails the test if a write reaches the backend.
type refusingBooks struct {
	dashboard.BooksAPI
	t *testing.T
}

func (r refusingBooks) CreateBook(context.Context, models.BookDraft) error {
	r.t.Error("invalid draft sent")
	return nil
}

func TestBooks_CreateValidatesFirst(t *testing.T) {
	f := newFixture(t)
	b := dashboard.NewBooks(refusingBooks{BooksAPI: f.client, t: t}, f.opts)
	defer b.Close()

	err := b.Create(context.Background(), models.BookDraft{Title: "  ", Author: "x", CategoryID: 1})
	assert.ErrorIs(t, err, models.ErrTitleRequired)
}

func TestBooks_SearchDebouncedThroughClock(t *testing.T) {
	f := newFixture(t)
	clk := testutil.NewClock(fixedNow)
	f.opts.Clock = clk
	b := dashboard.NewBooks(f.client, f.opts)
	defer b.Close()

	b.List().SetSearch("aus")
	b.List().SetSearch("austen")
	assert.Equal(t, 1, clk.Pending())
	clk.Advance(350 * time.Millisecond)
	b.List().Wait()

	snap := b.List().Snapshot()
	require.NoError(t, snap.Err)
	assert.Len(t, snap.Items, 2)
}

func TestStatistics_AgainstBackend(t *testing.T) {
	f := newFixture(t)
	s := dashboard.NewStatistics(f.client, stats.New(), 0, f.opts)

	rep, err := s.LoadPreset(context.Background(), stats.PresetYear)
	require.NoError(t, err)
	assert.Equal(t, stats.SourcePurchases, rep.Source)
	assert.False(t, rep.Degraded)
	assert.Equal(t, 80, rep.Records)
	assert.True(t, rep.Income.IsPositive())
	assert.NotEmpty(t, rep.Top)

	got, ok, err := s.Report()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rep.Income.String(), got.Income.String())
}

func TestStatistics_FallsBackToLoans(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(http.MethodGet, "/api/Purchase/get", http.StatusServiceUnavailable)
	s := dashboard.NewStatistics(f.client, stats.New(), 0, f.opts)

	rep, err := s.LoadPreset(context.Background(), stats.PresetYear)
	require.NoError(t, err)
	assert.Equal(t, stats.SourceLoans, rep.Source)
	assert.True(t, rep.Degraded)
	assert.Equal(t, 25, rep.Records)
	assert.Equal(t, 1.0, counter(f.metrics, "stats_fallback_loads_total", nil))
}

type fakeStats struct {
	purchases    []models.TransactionRecord
	purchaseErr  error
	loans        []models.TransactionRecord
	loanErr      error
	issues       int
	block        chan struct{}
	purchaseCall atomic.Int32
}

func (f *fakeStats) Purchases(ctx context.Context, _ apiclient.DateWindow) ([]models.TransactionRecord, normalize.Issues, error) {
	if f.purchaseCall.Add(1) == 1 && f.block != nil {
		<-f.block
	}
	return f.purchases, normalize.Issues{UnparsedDates: f.issues}, f.purchaseErr
}

func (f *fakeStats) LoanRecords(context.Context, apiclient.DateWindow) ([]models.TransactionRecord, normalize.Issues, error) {
	return f.loans, normalize.Issues{}, f.loanErr
}

func week() stats.Range {
	return stats.NewRange(fixedNow.AddDate(0, 0, -6), fixedNow, time.UTC)
}

func TestStatistics_FallbackRules(t *testing.T) {
	day := fixedNow.AddDate(0, 0, -1)
	purchase := testutil.NewPurchase(1, day, testutil.WithAmount("10"))
	loan := testutil.NewPurchase(2, day)
	boom := errors.New("boom")

	tests := []struct {
		name     string
		api      *fakeStats
		source   stats.Source
		records  int
		wantErr  bool
		fallback float64
	}{
		{"purchases present", &fakeStats{purchases: []models.TransactionRecord{purchase}, loans: []models.TransactionRecord{loan}}, stats.SourcePurchases, 1, false, 0},
		{"purchases empty", &fakeStats{loans: []models.TransactionRecord{loan}}, stats.SourceLoans, 1, false, 1},
		{"purchases failed", &fakeStats{purchaseErr: boom}, stats.SourceLoans, 0, false, 1},
		{"both empty", &fakeStats{}, stats.SourcePurchases, 0, false, 0},
		{"empty and loans failed", &fakeStats{loanErr: boom}, stats.SourcePurchases, 0, false, 0},
		{"both failed", &fakeStats{purchaseErr: boom, loanErr: boom}, "", 0, true, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := telemetry.New(nil)
			s := dashboard.NewStatistics(tc.api, stats.New(), 0, dashboard.Options{Metrics: m})
			rep, err := s.Load(context.Background(), week())
			if tc.wantErr {
				require.Error(t, err)
				_, ok, lastErr := s.Report()
				assert.False(t, ok)
				assert.Error(t, lastErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.source, rep.Source)
			assert.Equal(t, tc.source == stats.SourceLoans, rep.Degraded)
			assert.Equal(t, tc.records, rep.Records)
			assert.Equal(t, tc.fallback, counter(m, "stats_fallback_loads_total", nil))
		})
	}
}

func TestStatistics_CountsUnparsedDates(t *testing.T) {
	m := telemetry.New(nil)
	api := &fakeStats{
		purchases: []models.TransactionRecord{testutil.NewPurchase(1, fixedNow, testutil.Undated())},
		issues:    1,
	}
	s := dashboard.NewStatistics(api, stats.New(), 0, dashboard.Options{Metrics: m})
	rep, err := s.Load(context.Background(), week())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Anomalies.UnparsedDates)
	assert.Equal(t, 1.0, counter(m, "stats_unparsed_dates_total", nil))
}

func TestStatistics_InvertedRangeSkipsFetch(t *testing.T) {
	api := &fakeStats{purchaseErr: errors.New("must not be called")}
	s := dashboard.NewStatistics(api, stats.New(), 0, dashboard.Options{})
	r := stats.NewRange(fixedNow, fixedNow.AddDate(0, 0, -3), time.UTC)
	rep, err := s.Load(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, rep.Daily)
	assert.Zero(t, api.purchaseCall.Load())
}

func TestStatistics_OlderLoadIsDropped(t *testing.T) {
	m := telemetry.New(nil)
	api := &fakeStats{
		purchases: []models.TransactionRecord{testutil.NewPurchase(1, fixedNow, testutil.WithAmount("5"))},
		block:     make(chan struct{}),
	}
	s := dashboard.NewStatistics(api, stats.New(), 0, dashboard.Options{Metrics: m})

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Load(context.Background(), week())
	}()
	require.Eventually(t, func() bool { return api.purchaseCall.Load() == 1 }, time.Second, time.Millisecond)

	rep, err := s.Load(context.Background(), week())
	require.NoError(t, err)
	close(api.block)
	wg.Wait()

	assert.ErrorIs(t, firstErr, dashboard.ErrSuperseded)
	got, ok, _ := s.Report()
	require.True(t, ok)
	assert.Equal(t, rep.Income.String(), got.Income.String())
	assert.Equal(t, 1.0, counter(m, "view_stale_responses_total", map[string]string{"view": "stats"}))
}

func TestCoupons_AddReloads(t *testing.T) {
	f := newFixture(t)
	c := dashboard.NewCoupons(f.client, f.opts)
	require.NoError(t, c.Open(context.Background()))
	items, err := c.Items()
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, c.Add(context.Background(), "FALL15", 15))
	items, _ = c.Items()
	assert.Len(t, items, 3)

	err = c.Add(context.Background(), "FALL15", 15)
	require.ErrorIs(t, err, apiclient.ErrValidation)
	assert.Len(t, f.notifier.Messages(), 1)
}

func TestLoans_ReloadFailureEmptiesList(t *testing.T) {
	f := newFixture(t)
	l := dashboard.NewLoans(f.client, f.opts)
	require.NoError(t, l.Open(context.Background()))
	items, _ := l.Items()
	assert.Len(t, items, 25)

	f.backend.Fail(http.MethodGet, "/api/BorrowedBook/get", http.StatusBadGateway)
	_, err := l.Reload(context.Background())
	require.Error(t, err)
	items, lastErr := l.Items()
	assert.Empty(t, items)
	assert.ErrorIs(t, lastErr, apiclient.ErrServer)
}

func TestWallet(t *testing.T) {
	f := newFixture(t)
	w := dashboard.NewWallet(f.client, f.opts)
	ctx := context.Background()
	require.NoError(t, w.Open(ctx))

	users, err := w.Users(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, users)
	history, err := w.History(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, w.Credit(ctx, 0, decimal.NewFromInt(5)), dashboard.ErrUserRequired)
	assert.ErrorIs(t, w.Credit(ctx, users[0].ID, decimal.Zero), dashboard.ErrPointsRequired)

	require.NoError(t, w.Credit(ctx, users[0].ID, decimal.NewFromInt(5)))
	after, err := w.History(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(history)+1)

	acct, err := w.TopUp(ctx, users[0].ID, decimal.NewFromInt(7))
	require.NoError(t, err)
	assert.Equal(t, users[0].Balance.Add(decimal.NewFromInt(12)).String(), acct.User.Balance.String())
	assert.NotEmpty(t, acct.TopUps)
}

func TestNotifications_DeleteRollsBack(t *testing.T) {
	f := newFixture(t)
	n := dashboard.NewNotifications(f.client, f.opts)
	defer n.Close()
	require.NoError(t, n.Open(context.Background()))
	n.List().Wait()

	before := n.List().Items()
	require.Len(t, before, 3)
	id := before[1].ID

	f.backend.Fail(http.MethodDelete, "/api/notifications/"+strconv.FormatInt(id, 10), http.StatusForbidden)
	require.ErrorIs(t, n.Delete(context.Background(), id), apiclient.ErrForbidden)
	assert.Equal(t, before, n.List().Items())

	f.backend.Restore(http.MethodDelete, "/api/notifications/"+strconv.FormatInt(id, 10))
	require.NoError(t, n.Delete(context.Background(), id))
	assert.Len(t, n.List().Items(), 2)
}

func TestRegistry(t *testing.T) {
	var events []string
	reg := dashboard.NewRegistry(testutil.Logger())
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Register(&fakeView{name: name, events: &events}))
	}
	assert.Error(t, reg.Register(&fakeView{name: "b", events: &events}))
	assert.Equal(t, []string{"a", "b", "c"}, reg.Names())

	require.NoError(t, reg.OpenAll(context.Background()))
	_, err := reg.Open(context.Background(), "b")
	require.NoError(t, err)
	_, err = reg.Open(context.Background(), "missing")
	assert.Error(t, err)

	reg.CloseAll()
	assert.Equal(t, []string{"open a", "open b", "open c", "close c", "close b", "close a"}, events)

	v, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", v.Name())
}

func TestRegistry_OpenFailureIsRetried(t *testing.T) {
	var events []string
	reg := dashboard.NewRegistry(nil)
	v := &fakeView{name: "flaky", events: &events, fail: true}
	require.NoError(t, reg.Register(v))

	_, err := reg.Open(context.Background(), "flaky")
	require.Error(t, err)
	v.fail = false
	_, err = reg.Open(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, []string{"open flaky", "open flaky"}, events)
}

type fakeView struct {
	name   string
	events *[]string
	fail   bool
}

func (v *fakeView) Name() string { return v.name }

func (v *fakeView) Open(context.Context) error {
	*v.events = append(*v.events, "open "+v.name)
	if v.fail {
		return errors.New("unavailable")
	}
	return nil
}

func (v *fakeView) Close() { *v.events = append(*v.events, "close "+v.name) }

func TestBooks_FailedLoadNotifies(t *testing.T) {
	f := newFixture(t)
	b := dashboard.NewBooks(f.client, f.opts)
	defer b.Close()

	f.backend.Fail(http.MethodGet, "/api/Book/get", http.StatusInternalServerError)
	b.List().Reload()
	b.List().Wait()

	snap := b.List().Snapshot()
	require.ErrorIs(t, snap.Err, apiclient.ErrServer)
	assert.Empty(t, snap.Items)
	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Could not load books")
}
