package mockapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteProblem(t *testing.T) {
	w := httptest.NewRecorder()

	WriteProblem(w, Problem{
		Type:     ProblemTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   "book 42 not found",
		Instance: "/api/Book/delete/42",
	})

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q, want %q", ct, "application/problem+json")
	}

	var p Problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if p.Type != ProblemTypeNotFound {
		t.Errorf("type = %q, want %q", p.Type, ProblemTypeNotFound)
	}
	if p.Detail != "book 42 not found" {
		t.Errorf("detail = %q, want %q", p.Detail, "book 42 not found")
	}
	if p.Instance != "/api/Book/delete/42" {
		t.Errorf("instance = %q", p.Instance)
	}
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		typ    string
	}{
		{"not found", func(w http.ResponseWriter) { NotFound(w, "x", "/x") }, http.StatusNotFound, ProblemTypeNotFound},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "x", "/x") }, http.StatusBadRequest, ProblemTypeBadRequest},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "x", "/x") }, http.StatusInternalServerError, ProblemTypeInternal},
		{"rate limited", func(w http.ResponseWriter) { RateLimited(w, "x", "/x") }, http.StatusTooManyRequests, ProblemTypeRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var p Problem
			if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
				t.Fatal(err)
			}
			if p.Type != tt.typ || p.Status != tt.status {
				t.Errorf("problem = %+v", p)
			}
		})
	}
}

func TestValidationFailed(t *testing.T) {
	w := httptest.NewRecorder()
	ValidationFailed(w, map[string]string{
		"book_title": "The book title field is required.",
		"author":     "The author field is required.",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "The author field is required." {
		t.Errorf("message = %q, want the first field's message", body.Message)
	}
	if len(body.Errors["book_title"]) != 1 {
		t.Errorf("errors = %v", body.Errors)
	}
}
