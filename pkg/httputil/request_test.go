package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestParseJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"editor"}`))

	var dest struct {
		Name string `json:"name"`
	}
	if err := ParseJSON(r, &dest); err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if dest.Name != "editor" {
		t.Errorf("Expected name editor, got %s", dest.Name)
	}
}

func TestParseJSONOrError(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	var dest map[string]string
	if ParseJSONOrError(w, r, &dest) {
		t.Error("Expected false for invalid JSON")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 written, got %d", w.Code)
	}
}

func TestParsePathInt64(t *testing.T) {
	r := httptest.NewRequest("GET", "/things/42", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "42"})

	val, err := ParsePathInt64(r, "id")
	if err != nil {
		t.Fatalf("ParsePathInt64 failed: %v", err)
	}
	if val != 42 {
		t.Errorf("Expected 42, got %d", val)
	}

	r = mux.SetURLVars(httptest.NewRequest("GET", "/things/x", nil), map[string]string{"id": "x"})
	if _, err := ParsePathInt64(r, "id"); err == nil {
		t.Error("Expected error for non-numeric parameter")
	}

	r = httptest.NewRequest("GET", "/things", nil)
	if _, err := ParsePathInt64(r, "id"); err == nil {
		t.Error("Expected error for missing parameter")
	}
}

func TestParsePathString(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest("GET", "/roles/editor", nil), map[string]string{"name": "editor"})

	val, err := ParsePathString(r, "name")
	if err != nil {
		t.Fatalf("ParsePathString failed: %v", err)
	}
	if val != "editor" {
		t.Errorf("Expected editor, got %s", val)
	}

	r = httptest.NewRequest("GET", "/roles", nil)
	if _, err := ParsePathString(r, "name"); err == nil {
		t.Error("Expected error for missing parameter")
	}
}
