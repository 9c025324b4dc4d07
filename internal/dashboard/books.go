package dashboard

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/mutation"
	"github.com/HerbHall/libradesk/internal/sequencer"
	"github.com/HerbHall/libradesk/pkg/models"
)

// BooksAPI is the part of the backend the books view uses.
// *apiclient.Client satisfies it.
type BooksAPI interface {
	ListBooks(ctx context.Context, q models.ListQueryState) ([]models.CatalogItem, models.ListMeta, error)
	CreateBook(ctx context.Context, d models.BookDraft) error
	UpdateBook(ctx context.Context, id int64, d models.BookDraft) error
	DeleteBook(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]models.Category, error)
}

// Books is the catalog view: a paginated, searchable list plus the edits
// made from it.
type Books struct {
	api    BooksAPI
	list   *sequencer.ListView[models.CatalogItem]
	edits  *mutation.Controller[models.CatalogItem]
	logger *zap.Logger

	catMu  sync.Mutex
	cats   []models.Category
	loaded bool
}

// NewBooks creates the books view. extra options are applied after the
// ones derived from o, so a caller can add an observer.
func NewBooks(api BooksAPI, o Options, extra ...sequencer.ViewOption) *Books {
	o = o.withDefaults()
	b := &Books{api: api, logger: o.Logger.Named("books")}
	fetch := func(ctx context.Context, q models.ListQueryState) (sequencer.Page[models.CatalogItem], error) {
		items, meta, err := api.ListBooks(ctx, q)
		return sequencer.Page[models.CatalogItem]{Items: items, Meta: meta}, err
	}
	b.list = sequencer.NewListView(fetch, append(o.viewOptions("books"), extra...)...)
	b.edits = mutation.New[models.CatalogItem](b.list,
		func(it models.CatalogItem) int64 { return it.ID },
		o.mutationOptions("book")...)
	return b
}

// Name implements View.
func (b *Books) Name() string { return "books" }

// Open loads the categories and the first page. A category failure is
// logged and retried on the next Categories call.
func (b *Books) Open(ctx context.Context) error {
	if _, err := b.Categories(ctx); err != nil {
		b.logger.Warn("categories unavailable", zap.Error(err))
	}
	b.list.Reload()
	return nil
}

// Close implements View.
func (b *Books) Close() { b.list.Close() }

// List returns the underlying list view.
func (b *Books) List() *sequencer.ListView[models.CatalogItem] { return b.list }

// Categories returns the category list, fetching it on first use only.
func (b *Books) Categories(ctx context.Context) ([]models.Category, error) {
	b.catMu.Lock()
	defer b.catMu.Unlock()
	if b.loaded {
		return b.cats, nil
	}
	cats, err := b.api.Categories(ctx)
	if err != nil {
		return nil, err
	}
	b.cats, b.loaded = cats, true
	return cats, nil
}

// CategoryName returns the name of a loaded category, or "".
func (b *Books) CategoryName(id int64) string {
	b.catMu.Lock()
	defer b.catMu.Unlock()
	for _, c := range b.cats {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// Create validates d, sends it and reloads page 1 on success.
func (b *Books) Create(ctx context.Context, d models.BookDraft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return b.edits.Create(ctx, func(ctx context.Context) error {
		return b.api.CreateBook(ctx, d)
	})
}

// Update shows the edit immediately and rolls it back if the backend
// rejects it.
func (b *Books) Update(ctx context.Context, id int64, d models.BookDraft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	item := models.CatalogItem{ID: id}
	for _, it := range b.list.Items() {
		if it.ID == id {
			item = it
			break
		}
	}
	return b.edits.Update(ctx, applyDraft(item, d), func(ctx context.Context) error {
		return b.api.UpdateBook(ctx, id, d)
	})
}

// Delete hides the book immediately and restores it in place if the
// backend rejects the delete.
func (b *Books) Delete(ctx context.Context, id int64) error {
	return b.edits.Remove(ctx, id, func(ctx context.Context) error {
		return b.api.DeleteBook(ctx, id)
	})
}

func applyDraft(it models.CatalogItem, d models.BookDraft) models.CatalogItem {
	it.Title = d.Title
	it.Author = d.Author
	it.Description = d.Description
	it.Price = decimal.NullDecimal{Decimal: d.Price, Valid: true}
	cat, disc := d.CategoryID, d.Discount
	it.CategoryID = &cat
	it.Discount = &disc
	return it
}
