package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/HerbHall/libradesk/pkg/models"
)

// ListBooks fetches one page of the catalog.
func (c *Client) ListBooks(ctx context.Context, q models.ListQueryState) ([]models.CatalogItem, models.ListMeta, error) {
	params := url.Values{}
	params.Set("search", q.Search)
	params.Set("sort", string(q.Sort))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("per_page", strconv.Itoa(q.PageSize))

	payload, err := c.do(ctx, request{
		endpoint: "books.list",
		method:   http.MethodGet,
		path:     "/Book/get",
		query:    params,
	})
	if err != nil {
		return nil, models.ListMeta{}, fmt.Errorf("list books: %w", err)
	}
	items, meta := c.norm.Books(payload, q.Page, q.PageSize)
	return items, meta, nil
}

// CreateBook submits a new book. The draft is validated first.
func (c *Client) CreateBook(ctx context.Context, d models.BookDraft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	body, ct, err := bookForm(d)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		endpoint:    "books.create",
		method:      http.MethodPost,
		path:        "/Book/create",
		body:        body,
		contentType: ct,
	})
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// UpdateBook replaces book id with the draft.
func (c *Client) UpdateBook(ctx context.Context, id int64, d models.BookDraft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	body, ct, err := bookForm(d)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		endpoint:    "books.update",
		method:      http.MethodPost,
		path:        "/Book/update/" + strconv.FormatInt(id, 10),
		body:        body,
		contentType: ct,
	})
	if err != nil {
		return fmt.Errorf("update book %d: %w", id, err)
	}
	return nil
}

// DeleteBook removes book id.
func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	_, err := c.do(ctx, request{
		endpoint: "books.delete",
		method:   http.MethodPost,
		path:     "/Book/delete/" + strconv.FormatInt(id, 10),
	})
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	return nil
}

// Categories lists the categories offered by the book form.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	payload, err := c.do(ctx, request{
		endpoint: "categories.list",
		method:   http.MethodGet,
		path:     "/Category/get",
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return c.norm.Categories(payload), nil
}

// bookForm encodes a draft as the multipart body the backend expects.
func bookForm(d models.BookDraft) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"book_title", d.Title},
		{"author", d.Author},
		{"description", d.Description},
		{"price", d.Price.String()},
		{"category_id", strconv.FormatInt(d.CategoryID, 10)},
		{"discount", strconv.FormatFloat(d.Discount, 'f', -1, 64)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", f[0], err)
		}
	}
	files := []struct {
		field, name string
		data        []byte
	}{
		{"image", d.ImageName, d.Image},
		{"file", d.DocumentName, d.Document},
	}
	for _, f := range files {
		if len(f.data) == 0 {
			continue
		}
		name := f.name
		if name == "" {
			name = f.field
		}
		part, err := w.CreateFormFile(f.field, name)
		if err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", f.field, err)
		}
		if _, err := part.Write(f.data); err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
