package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HerbHall/libradesk/internal/apiclient"
	"github.com/HerbHall/libradesk/internal/dashboard"
	"github.com/HerbHall/libradesk/internal/stats"
)

func TestSubcommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantVerb string
		wantRest []string
		wantErr  bool
	}{
		{"known verb", []string{"add", "-code", "X"}, "add", []string{"-code", "X"}, false},
		{"verb only", []string{"list"}, "list", []string{}, false},
		{"missing verb", nil, "", nil, true},
		{"unknown verb", []string{"remove"}, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verb, rest, err := subcommand("coupons", tt.args, "list", "add")
			if (err != nil) != tt.wantErr {
				t.Fatalf("subcommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if verb != tt.wantVerb {
				t.Errorf("verb = %q, want %q", verb, tt.wantVerb)
			}
			if strings.Join(rest, " ") != strings.Join(tt.wantRest, " ") {
				t.Errorf("rest = %v, want %v", rest, tt.wantRest)
			}
		})
	}
}

func TestNewFlagSet_CommonFlags(t *testing.T) {
	fs, c := newFlagSet("books")
	if err := fs.Parse([]string{"-config", "x.yaml", "-o", "json", "-debug", "extra"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.config != "x.yaml" || c.output != "json" || !c.debug {
		t.Errorf("common = %+v, want config x.yaml, output json, debug", *c)
	}
	if fs.NArg() != 1 || fs.Arg(0) != "extra" {
		t.Errorf("args = %v, want [extra]", fs.Args())
	}
}

func TestPrinter(t *testing.T) {
	type item struct {
		ID   int    `json:"id" yaml:"id"`
		Name string `json:"name" yaml:"name"`
	}
	v := []item{{1, "Emma"}, {22, "Persuasion"}}
	table := func(w io.Writer) {
		row(w, "ID", "NAME")
		for _, it := range v {
			row(w, it.ID, it.Name)
		}
	}

	tests := []struct {
		format string
		want   []string
	}{
		{"table", []string{"ID  NAME", "22  Persuasion"}},
		{"json", []string{`"id": 1`, `"name": "Persuasion"`}},
		{"yaml", []string{"- id: 1", "  name: Persuasion"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			p, err := newPrinter(&buf, tt.format)
			if err != nil {
				t.Fatalf("newPrinter() error = %v", err)
			}
			if err := p.print(v, table); err != nil {
				t.Fatalf("print() error = %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(buf.String(), s) {
					t.Errorf("output missing %q:\n%s", s, buf.String())
				}
			}
		})
	}

	if _, err := newPrinter(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("newPrinter(xml) error = nil, want error")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"15", "15", nil},
		{"2.50", "2.5", nil},
		{"0", "0", dashboard.ErrPointsRequired},
		{"-3", "0", dashboard.ErrPointsRequired},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("parseAmount(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("parseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	for _, in := range []string{"", "ten"} {
		if _, err := parseAmount(in); err == nil {
			t.Errorf("parseAmount(%q) error = nil, want error", in)
		}
	}
}

func TestPrintReport(t *testing.T) {
	day := time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)
	rep := stats.Report{
		From:         "2024-03-30",
		To:           "2024-03-31",
		Income:       decimal.NewFromInt(30),
		Units:        3,
		AveragePrice: decimal.NewFromInt(10),
		Records:      2,
		Source:       stats.SourceLoans,
		Degraded:     true,
		Anomalies:    stats.Anomalies{Undated: 1, UnparsedDates: 1},
		Top:          []stats.TopItem{{Title: "Emma", Quantity: 3, Revenue: decimal.NewFromInt(30)}},
		Daily: []stats.DayPoint{
			{Date: day, Income: decimal.NewFromInt(30)},
			{Date: day.AddDate(0, 0, 1), Income: decimal.Zero},
		},
	}
	var buf bytes.Buffer
	printReport(&buf, rep)
	out := buf.String()
	for _, want := range []string{
		"Income\t30.00",
		"purchases unavailable, showing loans",
		"1 undated (1 unparsable)",
		"Emma",
		strings.Repeat("#", 30),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	ts := time.Date(2024, 3, 31, 9, 5, 0, 0, time.UTC)
	if got := date(&ts); got != "2024-03-31" {
		t.Errorf("date() = %q, want 2024-03-31", got)
	}
	if got := stamp(&ts); got != "2024-03-31 09:05" {
		t.Errorf("stamp() = %q, want 2024-03-31 09:05", got)
	}
	if got := date(nil); got != "-" {
		t.Errorf("date(nil) = %q, want -", got)
	}
	if got := orDash(""); got != "-" {
		t.Errorf("orDash(\"\") = %q, want -", got)
	}
}

func TestCategoryLabel(t *testing.T) {
	names := map[int64]string{1: "Fiction"}
	lookup := func(id int64) string { return names[id] }
	one, nine := int64(1), int64(9)
	tests := []struct {
		id   *int64
		want string
	}{
		{&one, "Fiction"},
		{&nine, "#9"},
		{nil, "-"},
	}
	for _, tt := range tests {
		if got := categoryLabel(tt.id, lookup); got != tt.want {
			t.Errorf("categoryLabel() = %q, want %q", got, tt.want)
		}
	}
}

func TestWithHint(t *testing.T) {
	if withHint(nil) != nil {
		t.Error("withHint(nil) != nil")
	}
	err := withHint(fmt.Errorf("list books: %w", apiclient.ErrServer))
	if !errors.Is(err, apiclient.ErrServer) {
		t.Errorf("withHint() lost the cause: %v", err)
	}
	if !strings.HasSuffix(err.Error(), "(temporary, try again)") {
		t.Errorf("withHint() = %q, want retry hint", err)
	}
	plain := errors.New("-id is required")
	if got := withHint(plain); got != plain {
		t.Errorf("withHint(%v) = %v, want it unchanged", plain, got)
	}
}
