package db

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestTogglePreferenceTwiceRestores(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	on, err := TogglePreference(db, "visitor-a", "bookmark", 42)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !on {
		t.Fatalf("expected first toggle to add")
	}
	has, err := HasPreference(db, "visitor-a", "bookmark", 42)
	if err != nil || !has {
		t.Fatalf("expected bookmark present, has=%v err=%v", has, err)
	}

	on, err = TogglePreference(db, "visitor-a", "bookmark", 42)
	if err != nil {
		t.Fatalf("toggle 2: %v", err)
	}
	if on {
		t.Fatalf("expected second toggle to remove")
	}
	list, err := ListPreferences(db, "visitor-a", "bookmark")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty set, got %v", list)
	}
}

func TestPreferencesAreScopedByVisitorAndKind(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for _, n := range []int{300, 7, 1330} {
		if _, err := TogglePreference(db, "a", "like", n); err != nil {
			t.Fatalf("toggle %d: %v", n, err)
		}
	}
	if _, err := TogglePreference(db, "a", "bookmark", 5); err != nil {
		t.Fatalf("toggle bookmark: %v", err)
	}
	if _, err := TogglePreference(db, "b", "like", 9); err != nil {
		t.Fatalf("toggle other visitor: %v", err)
	}

	likes, err := ListPreferences(db, "a", "like")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int{7, 300, 1330}
	if len(likes) != len(want) {
		t.Fatalf("expected %v, got %v", want, likes)
	}
	for i := range want {
		if likes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, likes)
		}
	}
}

func TestSetPreferenceIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	for i := 0; i < 3; i++ {
		if err := SetPreference(db, "a", "like", 10, true); err != nil {
			t.Fatalf("set on: %v", err)
		}
	}
	list, _ := ListPreferences(db, "a", "like")
	if len(list) != 1 {
		t.Fatalf("expected one row, got %v", list)
	}
	if err := SetPreference(db, "a", "like", 10, false); err != nil {
		t.Fatalf("set off: %v", err)
	}
	if has, _ := HasPreference(db, "a", "like", 10); has {
		t.Fatalf("expected like removed")
	}
}

func TestTogglePreferenceValidates(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if _, err := TogglePreference(db, "", "like", 1); err == nil {
		t.Fatalf("expected error for empty visitor")
	}
	if _, err := TogglePreference(db, "a", "like", 0); err == nil {
		t.Fatalf("expected error for number 0")
	}
	if _, err := TogglePreference(db, "a", "like", 1331); err == nil {
		t.Fatalf("expected error for number 1331")
	}
}

func TestExplanationUpsert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if _, err := GetExplanation(db, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := SaveExplanation(db, 1, "gemini-2.5-flash", `{"en":{}}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := SaveExplanation(db, 1, "gemini-2.0-flash", `{"ta":{}}`); err != nil {
		t.Fatalf("save again: %v", err)
	}
	e, err := GetExplanation(db, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Model != "gemini-2.0-flash" || e.Payload != `{"ta":{}}` {
		t.Fatalf("expected replaced row, got %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	done, err := ExplainedNumbers(db)
	if err != nil {
		t.Fatalf("explained: %v", err)
	}
	if !done[1] || len(done) != 1 {
		t.Fatalf("expected {1}, got %v", done)
	}
	if err := SaveExplanation(db, 2, "m", "  "); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestProgress(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	last, err := GetProgress(db, "warm")
	if err != nil || last != 0 {
		t.Fatalf("expected 0, got %d err=%v", last, err)
	}
	if err := UpdateProgress(db, "warm", 12); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := UpdateProgress(db, "warm", 20); err != nil {
		t.Fatalf("update 2: %v", err)
	}
	last, err = GetProgress(db, "warm")
	if err != nil || last != 20 {
		t.Fatalf("expected 20, got %d err=%v", last, err)
	}
}

func TestTogglePreferenceConcurrency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	const n = 8
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := TogglePreference(db, "a", "bookmark", 100)
			done <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	list, err := ListPreferences(db, "a", "bookmark")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) > 1 {
		t.Fatalf("expected at most one row, got %v", list)
	}
}
