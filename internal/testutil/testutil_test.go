package testutil

import (
	"context"
	"testing"
	"time"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()
	c.Advance(5 * time.Minute)
	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("Advance: elapsed = %v, want 5m", got)
	}
}

func TestClock_Set(t *testing.T) {
	c := NewClock()
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if !c.Now().Equal(target) {
		t.Errorf("Set: got %v, want %v", c.Now(), target)
	}
}

func TestClock_TimersFireInDeadlineOrder(t *testing.T) {
	c := NewClock()
	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "late") })
	c.AfterFunc(time.Second, func() { order = append(order, "early") })
	stopped := c.AfterFunc(2*time.Second, func() { order = append(order, "stopped") })

	if !stopped.Stop() {
		t.Error("Stop on a pending timer = false")
	}
	c.Advance(500 * time.Millisecond)
	if len(order) != 0 || c.Pending() != 2 {
		t.Fatalf("fired early: %v, pending %d", order, c.Pending())
	}
	c.Advance(5 * time.Second)
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Errorf("order = %v, want [early late]", order)
	}
	if stopped.Stop() {
		t.Error("Stop after Advance = true, want false")
	}
}

func TestNotifier_Records(t *testing.T) {
	n := NewNotifier()
	n.Notify(context.Background(), "one")
	n.Notify(context.Background(), "two")
	msgs := n.Messages()
	if len(msgs) != 2 || msgs[1] != "two" {
		t.Errorf("Messages = %v", msgs)
	}
}

func TestNewBook_Defaults(t *testing.T) {
	a, b := NewBook(), NewBook(WithTitle("Dune"), WithPrice("7.5"))
	if a.ID == b.ID {
		t.Error("fixtures share an ID")
	}
	if a.Title != "Test Book" || !a.Price.Valid {
		t.Errorf("defaults = %+v", a)
	}
	if b.Title != "Dune" || b.Price.Decimal.String() != "7.5" {
		t.Errorf("options not applied: %+v", b)
	}
}

func TestNewPurchase_Options(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewPurchase(4, at, WithQuantity(3), WithAmount("30"), WithBookTitle("Emma"))
	if *r.BookID != 4 || r.Quantity != 3 || r.Amount.String() != "30" || r.BookTitle != "Emma" {
		t.Errorf("record = %+v", r)
	}
	if !r.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v", r.CreatedAt)
	}
	if NewPurchase(1, at, Undated()).CreatedAt != nil {
		t.Error("Undated left a timestamp")
	}
}
