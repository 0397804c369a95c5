package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDatabaseBytes(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string // suffix appended to the db path -> content
		want  int64
	}{
		{name: "no database yet", files: nil, want: 0},
		{name: "database only", files: map[string]string{"": "1234"}, want: 4},
		{name: "database and wal", files: map[string]string{"": "1234", "-wal": "56"}, want: 6},
		{name: "database wal and shm", files: map[string]string{"": "1234", "-wal": "56", "-shm": "789"}, want: 9},
		{name: "orphaned shm", files: map[string]string{"-shm": "78"}, want: 2},
		{name: "unrelated siblings ignored", files: map[string]string{"": "1", "-journal.bak": "ignored", ".old": "ignored"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := filepath.Join(t.TempDir(), "kotae.db")
			for suffix, content := range tt.files {
				if err := os.WriteFile(db+suffix, []byte(content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			got, err := DatabaseBytes(db)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}

func TestDatabaseBytes_emptyPath(t *testing.T) {
	got, err := DatabaseBytes("")
	if err != nil || got != 0 {
		t.Errorf("got %d, %v; want 0, nil", got, err)
	}
}

func TestDatabaseBytes_liveStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kotae.db")
	store, err := NewSQLiteStorage(db)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	got, err := DatabaseBytes(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(db)
	if err != nil {
		t.Fatal(err)
	}
	if got < info.Size() || got == 0 {
		t.Errorf("DatabaseBytes = %d, main file alone is %d", got, info.Size())
	}
}

func TestDiskUsageBytes_directoryOfDatabases(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.db"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.db-wal"), []byte("cde"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(dir, "", filepath.Join(dir, "missing.db"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("got %d bytes, want 5", got)
	}
}
