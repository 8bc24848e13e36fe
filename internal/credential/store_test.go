package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreReadAll(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T, path string)
		want      string
		wantErr   error
	}{
		{
			name:      "missingFile",
			setupFunc: func(t *testing.T, path string) {},
			wantErr:   ErrNotFound,
		},
		{
			name: "existingFile",
			setupFunc: func(t *testing.T, path string) {
				_ = os.WriteFile(path, []byte(`{"refresh_token":"r"}`), 0600)
			},
			want: `{"refresh_token":"r"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tokens.json")
			tt.setupFunc(t, path)

			got, err := NewFileStore(path).ReadAll(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ReadAll() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadAll() error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ReadAll() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileStoreAtomicWriteReplaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	path := filepath.Join(dir, "tokens.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.AtomicWrite(ctx, []byte("first")); err != nil {
		t.Fatalf("AtomicWrite() error: %v", err)
	}
	if err := store.AtomicWrite(ctx, []byte("second")); err != nil {
		t.Fatalf("AtomicWrite() error: %v", err)
	}

	got, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("ReadAll() = %q, want second", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp files left behind)", len(entries))
	}
}

func TestFileStoreAtomicWriteFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.AtomicWrite(ctx, []byte("original")); err != nil {
		t.Fatalf("AtomicWrite() error: %v", err)
	}

	// A directory at the target path makes the final rename fail.
	blocked := NewFileStore(filepath.Join(dir, "blocked"))
	if err := os.MkdirAll(filepath.Join(dir, "blocked", "child"), 0o700); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	if err := blocked.AtomicWrite(ctx, []byte("new")); err == nil {
		t.Fatal("AtomicWrite() over a non-empty directory should fail")
	}

	got, _ := store.ReadAll(ctx)
	if string(got) != "original" {
		t.Errorf("ReadAll() = %q, want original", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestFileStorePath(t *testing.T) {
	if got := NewFileStore("/tmp/tokens.json").Path(); got != "/tmp/tokens.json" {
		t.Errorf("Path() = %q, want /tmp/tokens.json", got)
	}
}
