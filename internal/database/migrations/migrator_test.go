package migrations

import (
	"testing"
	"testing/fstest"
)

func TestLoadSQLRegistersEmbeddedFiles(t *testing.T) {
	m := New()
	if err := m.LoadSQL(Files); err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, id := range []string{"0001_documents_recent_index", "0002_documents_data_gin"} {
		if _, ok := m.migrations[id]; !ok {
			t.Fatalf("migration %s not registered", id)
		}
	}
}

func TestLoadSQLSkipsOtherFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0001_a.sql":   {Data: []byte("SELECT 1")},
		"sql/README.md":    {Data: []byte("notes")},
		"sql/nested/b.sql": {Data: []byte("SELECT 2")},
	}
	m := New()
	if err := m.LoadSQL(fsys); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.migrations) != 1 {
		t.Fatalf("registered %d migrations, want 1", len(m.migrations))
	}
	if m.migrations["0001_a"].Down != nil {
		t.Fatal("sql migrations have no down step")
	}
}

func TestLoadSQLMissingDir(t *testing.T) {
	if err := New().LoadSQL(fstest.MapFS{}); err == nil {
		t.Fatal("expected error for missing sql directory")
	}
}
