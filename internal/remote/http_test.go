package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHTTPClientValidation(t *testing.T) {
	if _, err := NewHTTPClient("", "uid", ""); err == nil {
		t.Error("Expected error for empty baseURL")
	}
	if _, err := NewHTTPClient("https://example.com", "", ""); err == nil {
		t.Error("Expected error for empty uid")
	}
	c, err := NewHTTPClient("https://example.com/", "uid", "tok")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if got := c.collectionURL("members"); got != "https://example.com/users/uid/members" {
		t.Errorf("collectionURL = %q, want trailing slash trimmed", got)
	}
}

func TestHTTPClientListCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/users/u1/members" {
			t.Errorf("Path = %q, want /users/u1/members", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		json.NewEncoder(w).Encode(listResponse{Documents: map[string]Document{
			"abc": {"name": "Alice"},
		}})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, "u1", "tok")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	coll, err := c.ListCollection(context.Background(), "members")
	if err != nil {
		t.Fatalf("ListCollection failed: %v", err)
	}
	if len(coll) != 1 || coll["abc"]["name"] != "Alice" {
		t.Errorf("Collection = %+v, want one Alice document", coll)
	}
}

func TestHTTPClientListAbsentCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, "u1", "")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	coll, err := c.ListCollection(context.Background(), "members")
	if err != nil {
		t.Fatalf("An absent collection should list as empty: %v", err)
	}
	if len(coll) != 0 {
		t.Errorf("Expected empty collection, got %d documents", len(coll))
	}
}

func TestHTTPClientMergeSet(t *testing.T) {
	var gotBody Document
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/users/u1/members/abc" {
			t.Errorf("Path = %q, want /users/u1/members/abc", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, "u1", "")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := c.MergeSet(context.Background(), "members", "abc", Document{"name": "Alice"}); err != nil {
		t.Fatalf("MergeSet failed: %v", err)
	}
	if gotBody["name"] != "Alice" {
		t.Errorf("Uploaded body = %+v, want the document fields", gotBody)
	}
}

func TestHTTPClientMergeSetServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, "u1", "")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := c.MergeSet(context.Background(), "members", "abc", Document{}); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestHTTPClientDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Method = %s, want DELETE", r.Method)
		}
		// An absent document deletes cleanly.
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, "u1", "")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := c.Delete(context.Background(), "members", "gone"); err != nil {
		t.Errorf("Deleting an absent document should be a no-op: %v", err)
	}
}
