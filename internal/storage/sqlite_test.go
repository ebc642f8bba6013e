package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_PutGetPref(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutPref(ctx, "locale", "zh"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.GetPref(ctx, "locale")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "zh" {
		t.Errorf("GetPref = %q, %v", v, ok)
	}
}

func TestSQLiteStore_GetPref_Missing(t *testing.T) {
	s := newTestStore(t)
	v, ok, err := s.GetPref(context.Background(), "theme")
	if err != nil {
		t.Fatal(err)
	}
	if ok || v != "" {
		t.Errorf("GetPref = %q, %v", v, ok)
	}
}

func TestSQLiteStore_PutPref_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutPref(ctx, "theme", "dark")
	s.PutPref(ctx, "theme", "light")

	v, _, _ := s.GetPref(ctx, "theme")
	if v != "light" {
		t.Errorf("theme = %q, want light", v)
	}
	prefs, err := s.Prefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(prefs) != 1 {
		t.Errorf("prefs = %d, want 1", len(prefs))
	}
	if prefs[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestSQLiteStore_DeletePref(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutPref(ctx, "locale", "en")
	if err := s.DeletePref(ctx, "locale"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetPref(ctx, "locale"); ok {
		t.Error("pref should be gone")
	}
	if err := s.DeletePref(ctx, "never-set"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestSQLiteStore_PrefsOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.PutPref(ctx, "theme", "dark")
	s.PutPref(ctx, "locale", "zh")

	prefs, _ := s.Prefs(ctx)
	if len(prefs) != 2 || prefs[0].Key != "locale" || prefs[1].Key != "theme" {
		t.Errorf("prefs = %+v", prefs)
	}
}

func TestSQLiteStore_Downloads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		err := s.RecordDownload(ctx, Download{ReportID: id, Path: "/tmp/" + id + ".json", Bytes: 100 * (i + 1), SavedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Downloads(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].ReportID != "r3" || got[1].ReportID != "r2" {
		t.Errorf("order = %s, %s", got[0].ReportID, got[1].ReportID)
	}
	if got[0].Bytes != 300 || !got[0].SavedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("download = %+v", got[0])
	}
}

func TestSQLiteStore_DownloadDefaultsTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.RecordDownload(ctx, Download{ReportID: "r1", Path: "r1.json"})
	got, _ := s.Downloads(ctx, 0)
	if len(got) != 1 || got[0].SavedAt.IsZero() {
		t.Errorf("got = %+v", got)
	}
}

func TestSQLiteStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "techintel.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	s.PutPref(ctx, "locale", "zh")
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	v, ok, _ := s2.GetPref(ctx, "locale")
	if !ok || v != "zh" {
		t.Errorf("after reopen = %q, %v", v, ok)
	}
}

func TestSQLiteStore_ImplementsStore(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
}
