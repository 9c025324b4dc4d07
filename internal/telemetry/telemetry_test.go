package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Stale("books").Inc()
	m.Requests.WithLabelValues("books.list", "200").Inc()

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n < 2 {
		t.Errorf("gathered %d series, want at least 2", n)
	}
	if got := testutil.ToFloat64(m.Stale("books")); got != 1 {
		t.Errorf("stale{books} = %v, want 1", got)
	}
}

func TestCounters_SkipsZero(t *testing.T) {
	m := New(nil)
	m.Failures("book").Inc()
	m.Failures("book").Inc()
	m.UnparsedDates.Add(3)

	got := m.Counters()
	if len(got) != 2 {
		t.Fatalf("Counters() len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Name != "mutation_failures_total" || got[0].Value != 2 || got[0].Labels["kind"] != "book" {
		t.Errorf("Counters()[0] = %+v, want mutation failures for book = 2", got[0])
	}
	if got[1].Name != "stats_unparsed_dates_total" || got[1].Value != 3 {
		t.Errorf("Counters()[1] = %+v, want unparsed dates = 3", got[1])
	}
}
