package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lifedb/lifedb/internal/models"
)

func TestClient(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.Method + " " + r.URL.Path {
		case "GET /api/items":
			_ = json.NewEncoder(w).Encode([]models.Item{{ID: "a", Title: "one", UpdatedAt: now}})
		case "GET /api/categories":
			_ = json.NewEncoder(w).Encode([]models.Category{{ID: "c", Name: "Home"}})
		case "POST /api/items":
			var item models.Item
			_ = json.NewDecoder(r.Body).Decode(&item)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(item)
		case "PUT /api/items/a":
			var item models.Item
			_ = json.NewDecoder(r.Body).Decode(&item)
			_ = json.NewEncoder(w).Encode(item)
		case "POST /api/categories":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte("category already exists"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token", 0)
	ctx := context.Background()

	t.Run("list items", func(t *testing.T) {
		items, err := c.ListItems(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 || items[0].ID != "a" {
			t.Errorf("ListItems() = %+v", items)
		}
		if gotAuth != "Bearer secret-token" {
			t.Errorf("Authorization = %q", gotAuth)
		}
	})

	t.Run("list categories", func(t *testing.T) {
		cats, err := c.ListCategories(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(cats) != 1 || cats[0].Name != "Home" {
			t.Errorf("ListCategories() = %+v", cats)
		}
	})

	t.Run("create and update item", func(t *testing.T) {
		created, err := c.CreateItem(ctx, models.Item{ID: "b", Title: "new"})
		if err != nil {
			t.Fatal(err)
		}
		if created.ID != "b" {
			t.Errorf("CreateItem() = %+v", created)
		}
		updated, err := c.UpdateItem(ctx, "a", models.Item{ID: "a", Title: "renamed"})
		if err != nil {
			t.Fatal(err)
		}
		if updated.Title != "renamed" {
			t.Errorf("UpdateItem() = %+v", updated)
		}
	})

	t.Run("conflict surfaces as APIError", func(t *testing.T) {
		_, err := c.CreateCategory(ctx, models.Category{ID: "c"})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("CreateCategory() error = %v, want APIError", err)
		}
		if apiErr.Status != http.StatusConflict {
			t.Errorf("Status = %d, want 409", apiErr.Status)
		}
		if apiErr.Message != "category already exists" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})

	t.Run("missing route", func(t *testing.T) {
		_, err := c.UpdateItem(ctx, "nope", models.Item{})
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
			t.Errorf("err = %v, want 404 APIError", err)
		}
	})
}
