package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HerbHall/libradesk/internal/dashboard"
	"github.com/HerbHall/libradesk/internal/stats"
)

func runStats(args []string) error {
	fs, c := newFlagSet("stats")
	preset := fs.String("preset", string(stats.DefaultPreset), "today, week, month or year")
	from := fs.String("from", "", "first day YYYY-MM-DD (with -to, overrides -preset)")
	to := fs.String("to", "", "last day YYYY-MM-DD")
	topN := fs.Int("top", 0, "ranking length (default from config)")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		if *topN > 0 {
			a.settings.Stats.TopN = *topN
		}
		view := dashboard.NewStatistics(a.client, a.engine(), a.settings.Stats.PerPage, a.options())

		var (
			rep stats.Report
			err error
		)
		switch {
		case *from != "" || *to != "":
			if *from == "" || *to == "" {
				return errors.New("-from and -to go together")
			}
			r, perr := stats.ParseRange(*from, *to, a.loc)
			if perr != nil {
				return perr
			}
			rep, err = view.Load(ctx, r)
		default:
			rep, err = view.LoadPreset(ctx, stats.Preset(*preset))
		}
		if err != nil {
			return err
		}
		return a.out.print(rep, func(w io.Writer) { printReport(w, rep) })
	})
}

func printReport(w io.Writer, rep stats.Report) {
	fmt.Fprintf(w, "Period\t%s .. %s\n", rep.From, rep.To)
	source := string(rep.Source)
	if rep.Degraded {
		source += " (purchases unavailable, showing loans)"
	}
	fmt.Fprintf(w, "Source\t%s\n", source)
	fmt.Fprintf(w, "Income\t%s\n", rep.Income.StringFixed(2))
	fmt.Fprintf(w, "Units sold\t%s\n", strconv.FormatFloat(rep.Units, 'f', -1, 64))
	fmt.Fprintf(w, "Average price\t%s\n", rep.AveragePrice.StringFixed(2))
	fmt.Fprintf(w, "Records\t%d\n", rep.Records)
	if a := rep.Anomalies; a.Undated > 0 || a.UnparsedDates > 0 {
		fmt.Fprintf(w, "Skipped\t%d undated (%d unparsable)\n", a.Undated, a.UnparsedDates)
	}

	fmt.Fprintln(w, "\nTOP\tTITLE\tQTY\tREVENUE")
	for i, t := range rep.Top {
		row(w, i+1, t.Title, strconv.FormatFloat(t.Quantity, 'f', -1, 64), t.Revenue.StringFixed(2))
	}

	fmt.Fprintln(w, "\nDAY\tINCOME\t")
	peak := decimal.Zero
	for _, d := range rep.Daily {
		if d.Income.GreaterThan(peak) {
			peak = d.Income
		}
	}
	for _, d := range rep.Daily {
		bar := ""
		if peak.IsPositive() {
			bar = strings.Repeat("#", int(d.Income.Div(peak).Mul(decimal.NewFromInt(30)).IntPart()))
		}
		row(w, d.Date.Format("Mon 2006-01-02"), d.Income.StringFixed(2), bar)
	}
}

func runLoans(args []string) error {
	fs, c := newFlagSet("loans")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		view := dashboard.NewLoans(a.client, a.options())
		loans, err := view.Reload(ctx)
		if err != nil {
			return err
		}
		now := time.Now()
		return a.out.print(loans, func(w io.Writer) {
			row(w, "ID", "BOOK", "AUTHOR", "BORROWER", "EMAIL", "BORROWED", "DUE", "STATUS")
			overdue := 0
			for _, l := range loans {
				if l.DueDate != nil && l.DueDate.Before(now) && l.BookStatus != "returned" {
					overdue++
				}
				row(w, l.ID, orDash(l.BookTitle), orDash(l.BookAuthor), orDash(l.UserName),
					orDash(l.UserEmail), date(l.BorrowDate), date(l.DueDate), orDash(l.BookStatus))
			}
			fmt.Fprintf(os.Stderr, "%d loans, %d past due\n", len(loans), overdue)
		})
	})
}
