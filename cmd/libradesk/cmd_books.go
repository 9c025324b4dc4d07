package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/dashboard"
	"github.com/HerbHall/libradesk/internal/sequencer"
	"github.com/HerbHall/libradesk/pkg/models"
)

func runBooks(args []string) error {
	fs, c := newFlagSet("books")
	search := fs.String("search", "", "filter by title or author")
	sort := fs.String("sort", string(models.DefaultSort), "sort key")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 0, "page size (default from config)")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		q := models.NewListQueryState()
		q.Search = *search
		q.Page = max(1, *page)
		q.PageSize = a.settings.Lists.DefaultPageSize
		if *perPage != 0 {
			if !models.ValidPageSize(*perPage) {
				return fmt.Errorf("-per-page must be one of %v", models.PageSizes)
			}
			q.PageSize = *perPage
		}
		q.Sort = models.SortKey(*sort)
		if !q.Sort.Valid() {
			return fmt.Errorf("unknown sort %q", *sort)
		}
		items, meta, err := a.client.ListBooks(ctx, q)
		if err != nil {
			return err
		}
		q.Total, q.TotalPages = meta.Total, meta.TotalPages
		names := map[int64]string{}
		if cats, err := a.client.Categories(ctx); err == nil {
			for _, c := range cats {
				names[c.ID] = c.Name
			}
		} else {
			a.logger.Warn("categories unavailable", zap.Error(err))
		}
		return printBooks(a, items, q, func(id int64) string { return names[id] })
	})
}

func printBooks(a *app, items []models.CatalogItem, q models.ListQueryState, category func(int64) string) error {
	return a.out.print(items, func(w io.Writer) {
		row(w, "ID", "TITLE", "AUTHOR", "CATEGORY", "PRICE", "DISCOUNT", "COVER")
		for _, b := range items {
			price := "-"
			if b.Price.Valid {
				price = b.Price.Decimal.StringFixed(2)
			}
			disc := "-"
			if b.Discount != nil {
				disc = strconv.FormatFloat(*b.Discount, 'f', -1, 64) + "%"
			}
			row(w, b.ID, b.Title, b.Author, categoryLabel(b.CategoryID, category), price, disc, orDash(b.ImageDisplay))
		}
		pages := "?"
		if q.TotalPages > 0 {
			pages = strconv.Itoa(q.TotalPages)
		}
		fmt.Fprintf(w, "\npage %d of %s, %d per page, sorted by %s\n", q.Page, pages, q.PageSize, q.Sort.Label())
	})
}

func categoryLabel(id *int64, name func(int64) string) string {
	if id == nil {
		return "-"
	}
	if n := name(*id); n != "" {
		return n
	}
	return "#" + strconv.FormatInt(*id, 10)
}

// runBrowse drives a books view from stdin commands so search debounce
// and out-of-order responses can be seen interactively.
func runBrowse(args []string) error {
	fs, c := newFlagSet("browse")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		var books *dashboard.Books
		render := func(s sequencer.Snapshot[models.CatalogItem]) {
			if s.Loading || s.Err != nil {
				return
			}
			if err := printBooks(a, s.Items, s.Query, books.CategoryName); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
		books = dashboard.NewBooks(a.client, a.options(), sequencer.WithObserver(render))
		defer books.Close()
		if err := books.Open(ctx); err != nil {
			return err
		}
		list := books.List()

		fmt.Fprintln(os.Stderr, "commands: /TEXT search, n next, p prev, sort KEY, size N, r reload, q quit")
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			switch {
			case line == "q":
				return nil
			case strings.HasPrefix(line, "/"):
				list.SetSearch(strings.TrimPrefix(line, "/"))
			case line == "n":
				if _, ok := list.NextPage(); !ok {
					fmt.Fprintln(os.Stderr, "already on the last page")
				}
			case line == "p":
				if _, ok := list.PrevPage(); !ok {
					fmt.Fprintln(os.Stderr, "already on the first page")
				}
			case strings.HasPrefix(line, "sort "):
				if _, err := list.SetSort(models.SortKey(strings.TrimSpace(line[5:]))); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			case strings.HasPrefix(line, "size "):
				n, _ := strconv.Atoi(strings.TrimSpace(line[5:]))
				if _, err := list.SetPageSize(n); err != nil {
					fmt.Fprintf(os.Stderr, "%v (want one of %v)\n", err, models.PageSizes)
				}
			case line == "r":
				list.Reload()
			case line != "":
				fmt.Fprintf(os.Stderr, "unknown command %q\n", line)
			}
		}
		return sc.Err()
	})
}

func runBook(args []string) error {
	verb, rest, err := subcommand("book", args, "add", "edit", "delete")
	if err != nil {
		return err
	}
	switch verb {
	case "add":
		return runBookSave("book add", rest, false)
	case "edit":
		return runBookSave("book edit", rest, true)
	}
	fs, c := newFlagSet("book delete")
	id := fs.Int64("id", 0, "book id")
	return withApp(fs, c, rest, func(ctx context.Context, a *app, _ []string) error {
		if *id <= 0 {
			return errors.New("-id is required")
		}
		books := dashboard.NewBooks(a.client, a.options())
		defer books.Close()
		if err := books.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted book %d.\n", *id)
		return nil
	})
}

func runBookSave(name string, args []string, edit bool) error {
	fs, c := newFlagSet(name)
	id := fs.Int64("id", 0, "book id (edit only)")
	title := fs.String("title", "", "title")
	author := fs.String("author", "", "author")
	desc := fs.String("description", "", "description")
	price := fs.String("price", "0", "price")
	category := fs.Int64("category", 0, "category id")
	discount := fs.Float64("discount", 0, "discount percent")
	image := fs.String("image", "", "cover image file")
	document := fs.String("file", "", "PDF file")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		books := dashboard.NewBooks(a.client, a.options())
		defer books.Close()

		var d models.BookDraft
		if edit {
			if *id <= 0 {
				return errors.New("-id is required")
			}
			it, err := findBook(ctx, a, *id)
			if err != nil {
				return err
			}
			d = models.FromItem(it)
		}
		var perr error
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "title":
				d.Title = *title
			case "author":
				d.Author = *author
			case "description":
				d.Description = *desc
			case "price":
				p, err := decimal.NewFromString(strings.TrimSpace(*price))
				if err != nil {
					perr = fmt.Errorf("-price: %w", err)
				}
				d.Price = p
			case "category":
				d.CategoryID = *category
			case "discount":
				d.Discount = *discount
			case "image":
				d.ImageName, d.Image, perr = readAttachment(*image, perr)
			case "file":
				d.DocumentName, d.Document, perr = readAttachment(*document, perr)
			}
		})
		if perr != nil {
			return perr
		}
		if d.CategoryID == 0 {
			cats, err := books.Categories(ctx)
			if err == nil && len(cats) > 0 {
				d.CategoryID = cats[0].ID
			}
		}
		if edit {
			err := books.Update(ctx, *id, d)
			if err == nil {
				fmt.Fprintf(os.Stderr, "Updated book %d.\n", *id)
			}
			return err
		}
		if err := books.Create(ctx, d); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Created %q.\n", d.Title)
		return nil
	})
}

func readAttachment(path string, prev error) (string, []byte, error) {
	if prev != nil {
		return "", nil, prev
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(path), data, nil
}

// findBook pages through the catalog for id; there is no single-book
// endpoint.
func findBook(ctx context.Context, a *app, id int64) (models.CatalogItem, error) {
	q := models.NewListQueryState()
	q.PageSize = models.PageSizes[len(models.PageSizes)-1]
	for {
		items, meta, err := a.client.ListBooks(ctx, q)
		if err != nil {
			return models.CatalogItem{}, err
		}
		for _, it := range items {
			if it.ID == id {
				return it, nil
			}
		}
		q.TotalPages = meta.TotalPages
		if !q.HasNext(len(items)) {
			return models.CatalogItem{}, fmt.Errorf("book %d not found", id)
		}
		q.Page++
	}
}

func runCategories(args []string) error {
	fs, c := newFlagSet("categories")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		cats, err := a.client.Categories(ctx)
		if err != nil {
			return err
		}
		return a.out.print(cats, func(w io.Writer) {
			row(w, "ID", "NAME")
			for _, c := range cats {
				row(w, c.ID, c.Name)
			}
		})
	})
}
