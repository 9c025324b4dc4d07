package mockapi_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/libradesk/internal/apiclient"
	"github.com/HerbHall/libradesk/internal/mockapi"
	"github.com/HerbHall/libradesk/pkg/models"
)

var fixedNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func startBackend(t *testing.T, opts ...mockapi.Option) (*mockapi.Server, *httptest.Server) {
	t.Helper()
	opts = append([]mockapi.Option{mockapi.WithNow(func() time.Time { return fixedNow })}, opts...)
	s := mockapi.New("", opts...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

// tokenBox is a mutable credential source.
type tokenBox struct{ tok string }

func (b *tokenBox) Token(context.Context) (string, error) { return b.tok, nil }

func loggedInClient(t *testing.T, srv *httptest.Server) (*apiclient.Client, *tokenBox) {
	t.Helper()
	box := &tokenBox{}
	c, err := apiclient.New(srv.URL+"/api", apiclient.WithRateLimit(0, 0), apiclient.WithCredentials(box))
	require.NoError(t, err)
	res, err := c.Login(context.Background(), mockapi.DefaultEmail, mockapi.DefaultPassword)
	require.NoError(t, err)
	box.tok = res.Token
	return c, box
}

func TestLogin(t *testing.T) {
	_, srv := startBackend(t)
	c, err := apiclient.New(srv.URL+"/api", apiclient.WithRateLimit(0, 0))
	require.NoError(t, err)

	res, err := c.Login(context.Background(), mockapi.DefaultEmail, mockapi.DefaultPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, mockapi.DefaultEmail, res.Admin.Email)
	assert.Equal(t, int64(1), res.Admin.ID)

	_, err = c.Login(context.Background(), mockapi.DefaultEmail, "wrong")
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
}

func TestAuthRequired(t *testing.T) {
	_, srv := startBackend(t)
	anon, err := apiclient.New(srv.URL+"/api", apiclient.WithRateLimit(0, 0))
	require.NoError(t, err)

	_, err = anon.Coupons(context.Background())
	require.ErrorIs(t, err, apiclient.ErrUnauthorized)
	var se *apiclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Unauthenticated.", se.Message)

	c, _ := loggedInClient(t, srv)
	_, err = c.Coupons(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	_, err = c.Coupons(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized, "revoked token must be rejected")
}

func TestExpiredTokenRejected(t *testing.T) {
	_, srv := startBackend(t, mockapi.WithTokenTTL(-time.Minute))
	c, _ := loggedInClient(t, srv)
	_, err := c.Categories(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
}

func TestListBooks_EveryEnvelopeNormalizesAlike(t *testing.T) {
	_, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)

	q := models.NewListQueryState()
	q.Sort = models.SortTitleAsc
	first, meta, err := c.ListBooks(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, first, models.DefaultPageSize)
	assert.Equal(t, 20, meta.Total)

	// The default rotation has five shapes; cycle through all of them.
	for i := 0; i < len(mockapi.AllEnvelopes)-1; i++ {
		items, _, err := c.ListBooks(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, items, len(first), "rotation %d", i)
		for j := range items {
			assert.Equal(t, first[j].ID, items[j].ID)
			assert.Equal(t, first[j].Title, items[j].Title)
			assert.Equal(t, first[j].Price.Decimal.String(), items[j].Price.Decimal.String())
		}
	}
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].Title, first[i].Title)
	}
}

func TestListBooks_SearchAndPaging(t *testing.T) {
	_, srv := startBackend(t, mockapi.WithEnvelopes(mockapi.EnvelopePaginator))
	c, _ := loggedInClient(t, srv)

	q := models.NewListQueryState()
	q.Search = "austen"
	items, meta, err := c.ListBooks(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, meta.TotalPages)

	q = models.NewListQueryState()
	q.PageSize = 25
	q.Page = 1
	_, meta, err = c.ListBooks(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.TotalPages)

	q.PageSize = 5
	q.Page = 4
	items, meta, err = c.ListBooks(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, 4, meta.Page)
	assert.Equal(t, 4, meta.TotalPages)
}

func TestBookLifecycle(t *testing.T) {
	_, srv := startBackend(t, mockapi.WithEnvelopes(mockapi.EnvelopeData))
	c, _ := loggedInClient(t, srv)
	ctx := context.Background()

	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	draft := models.BookDraft{
		Title:      "  Piranesi ",
		Author:     "Clarke",
		Price:      decimal.RequireFromString("12.50"),
		CategoryID: cats[0].ID,
		ImageName:  "piranesi.jpg",
		Image:      []byte("jpeg"),
	}
	require.NoError(t, c.CreateBook(ctx, draft))

	q := models.NewListQueryState()
	q.Search = "piranesi"
	items, _, err := c.ListBooks(ctx, q)
	require.NoError(t, err)
	require.Len(t, items, 1)
	got := items[0]
	assert.Equal(t, "Piranesi", got.Title)
	assert.Equal(t, "12.5", got.Price.Decimal.String())
	assert.Equal(t, "public/storage/covers/piranesi.jpg", got.Image)

	upd := models.FromItem(got)
	upd.Author = "Susanna Clarke"
	require.NoError(t, c.UpdateBook(ctx, got.ID, upd))
	items, _, err = c.ListBooks(ctx, q)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Susanna Clarke", items[0].Author)
	assert.Equal(t, got.Image, items[0].Image, "cover kept when no new image is sent")

	require.NoError(t, c.DeleteBook(ctx, got.ID))
	err = c.DeleteBook(ctx, got.ID)
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestCreateBook_ServerValidation(t *testing.T) {
	_, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)

	err := c.CreateBook(context.Background(), models.BookDraft{
		Title:      "Orphan",
		Author:     "Nobody",
		CategoryID: 999,
	})
	require.ErrorIs(t, err, apiclient.ErrValidation)
	var se *apiclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Fields, "category_id")
}

func TestPurchases_WindowAndShapes(t *testing.T) {
	_, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)
	ctx := context.Background()

	all, issues, err := c.Purchases(ctx, apiclient.DateWindow{})
	require.NoError(t, err)
	assert.Len(t, all, 80)
	assert.Zero(t, issues.UnparsedDates)
	for _, r := range all {
		require.NotNil(t, r.CreatedAt)
		require.NotNil(t, r.BookID)
		assert.True(t, r.Amount.IsPositive(), "amount derived for record %v", *r.ID)
		assert.GreaterOrEqual(t, r.Quantity, 1.0)
	}

	from := fixedNow.AddDate(0, 0, -6).Format(time.DateOnly)
	to := fixedNow.Format(time.DateOnly)
	week, _, err := c.Purchases(ctx, apiclient.DateWindow{From: from, To: to, PerPage: 1000})
	require.NoError(t, err)
	assert.Less(t, len(week), len(all))
	lo, _ := time.Parse(time.DateOnly, from)
	for _, r := range week {
		assert.False(t, r.CreatedAt.Before(lo), "record %v before window", *r.ID)
	}

	capped, _, err := c.Purchases(ctx, apiclient.DateWindow{PerPage: 5})
	require.NoError(t, err)
	assert.Len(t, capped, 5)
}

func TestLoans(t *testing.T) {
	_, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)

	loans, err := c.Loans(context.Background())
	require.NoError(t, err)
	require.Len(t, loans, 25)
	for _, l := range loans {
		assert.NotEmpty(t, l.BookTitle)
		assert.NotEmpty(t, l.UserEmail)
		require.NotNil(t, l.BorrowDate)
		require.NotNil(t, l.DueDate)
		assert.Equal(t, 14*24*time.Hour, l.DueDate.Sub(*l.BorrowDate))
	}

	recs, _, err := c.LoanRecords(context.Background(), apiclient.DateWindow{})
	require.NoError(t, err)
	assert.Len(t, recs, 25)
}

func TestCoupons(t *testing.T) {
	_, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)
	ctx := context.Background()

	list, err := c.Coupons(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 10.0, list[0].Discount)
	assert.Equal(t, 25.0, list[1].Discount)

	require.NoError(t, c.CreateCoupon(ctx, "SUMMER5", 5))
	err = c.CreateCoupon(ctx, "summer5", 5)
	assert.ErrorIs(t, err, apiclient.ErrValidation)

	list, err = c.Coupons(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestWallet(t *testing.T) {
	_, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)
	ctx := context.Background()

	users, err := c.WalletUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 5)
	u := users[1]
	assert.Equal(t, "10", u.Balance.String())

	require.NoError(t, c.TopUp(ctx, u.ID, decimal.NewFromInt(15)))
	got, err := c.WalletUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "25", got.Balance.String())

	topups, err := c.UserTopUps(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, topups, 2)
	assert.Equal(t, u.ID, topups[1].UserID)
	assert.Equal(t, "15", topups[1].Points.String())

	before, err := c.PointHistory(ctx)
	require.NoError(t, err)
	require.NoError(t, c.CreditPoints(ctx, u.ID, decimal.NewFromInt(5), fixedNow))
	after, err := c.PointHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)

	got, err = c.WalletUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "30", got.Balance.String())

	_, err = c.WalletUser(ctx, 9999)
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
	err = c.CreditPoints(ctx, 9999, decimal.NewFromInt(5), fixedNow)
	assert.ErrorIs(t, err, apiclient.ErrValidation)
}

func TestNotifications(t *testing.T) {
	_, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)
	ctx := context.Background()

	list, err := c.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, n := range list {
		assert.NotEmpty(t, n.Title)
		assert.NotEmpty(t, n.Message)
	}

	require.NoError(t, c.DeleteNotification(ctx, list[0].ID))
	assert.ErrorIs(t, c.DeleteNotification(ctx, list[0].ID), apiclient.ErrNotFound)
	list, err = c.Notifications(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestFailAndRestore(t *testing.T) {
	s, srv := startBackend(t)
	c, _ := loggedInClient(t, srv)
	ctx := context.Background()

	s.Fail(http.MethodGet, "/api/Purchase/get", http.StatusServiceUnavailable)
	_, _, err := c.Purchases(ctx, apiclient.DateWindow{})
	require.ErrorIs(t, err, apiclient.ErrServer)
	assert.True(t, apiclient.IsRetryable(err))

	_, _, err = c.LoanRecords(ctx, apiclient.DateWindow{})
	require.NoError(t, err, "other routes unaffected")

	s.Restore(http.MethodGet, "/api/Purchase/get")
	_, _, err = c.Purchases(ctx, apiclient.DateWindow{})
	assert.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	_, srv := startBackend(t, mockapi.WithoutAuth(), mockapi.WithRateLimit(0.001, 1))
	c, err := apiclient.New(srv.URL+"/api", apiclient.WithRateLimit(0, 0))
	require.NoError(t, err)

	_, err = c.Categories(context.Background())
	require.NoError(t, err)
	_, err = c.Categories(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrRateLimited)
}

func TestLatencyHonorsCancellation(t *testing.T) {
	_, srv := startBackend(t, mockapi.WithoutAuth(), mockapi.WithLatency(time.Second, time.Second))
	c, err := apiclient.New(srv.URL+"/api", apiclient.WithRateLimit(0, 0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Categories(ctx)
	assert.ErrorIs(t, err, apiclient.ErrTimeout)
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := startBackend(t, mockapi.WithoutAuth())
	c, err := apiclient.New(srv.URL+"/api", apiclient.WithRateLimit(0, 0))
	require.NoError(t, err)
	_, err = c.Categories(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-LibraDesk-Version"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `libradesk_mockapi_requests_total{code="200",route="/api/Category/get"} 1`)
}

func TestParseEnvelopes(t *testing.T) {
	envs, err := mockapi.ParseEnvelopes("data, paginator")
	require.NoError(t, err)
	assert.Equal(t, []mockapi.Envelope{mockapi.EnvelopeData, mockapi.EnvelopePaginator}, envs)

	envs, err = mockapi.ParseEnvelopes("")
	require.NoError(t, err)
	assert.Equal(t, mockapi.AllEnvelopes, envs)

	_, err = mockapi.ParseEnvelopes("data,bogus")
	assert.Error(t, err)
}
