package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/warunglabs/tanya/internal/models"
)

func TestHTTPSourceListAll(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]models.FAQItem{
			{ID: 1, Question: "a", Answer: "x"},
			{ID: 2, Question: "b", Answer: "y"},
		})
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, "secret", 5*time.Second)
	items, err := src.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != 1 || items[1].Question != "b" {
		t.Errorf("items = %+v", items)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestHTTPSourceNoToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, "", 5*time.Second)
	if _, err := src.ListAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Errorf("auth header = %q, want none", gotAuth)
	}
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, "", 5*time.Second)
	_, err := src.ListAll(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestHTTPSourceUnreachable(t *testing.T) {
	src := NewHTTPSource("http://127.0.0.1:1", "", 500*time.Millisecond)
	_, err := src.ListAll(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestHTTPSourceBadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{broken"))
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, "", 5*time.Second)
	_, err := src.ListAll(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}
