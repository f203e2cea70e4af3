package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func decodeObject(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	return m, ok
}

func TestLoadWithRecoveryOrder(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	tests := []struct {
		name    string
		primary string
		backup  string
		want    Source
	}{
		{name: "primary", primary: `{"gen": "p"}`, backup: `{"gen": "b"}`, want: SourcePrimary},
		{name: "corrupt primary", primary: `{"gen": `, backup: `{"gen": "b"}`, want: SourceBackup},
		{name: "non-object primary", primary: `[1,2]`, backup: `{"gen": "b"}`, want: SourceBackup},
		{name: "missing primary", backup: `{"gen": "b"}`, want: SourceBackup},
		{name: "both corrupt", primary: `nope`, backup: `"str"`, want: SourceDefault},
		{name: "nothing", want: SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "doc.json")
			if tt.primary != "" {
				if err := os.WriteFile(path, []byte(tt.primary), 0o644); err != nil {
					t.Fatalf("seed primary: %v", err)
				}
			}
			if tt.backup != "" {
				if err := os.WriteFile(BackupPath(path), []byte(tt.backup), 0o644); err != nil {
					t.Fatalf("seed backup: %v", err)
				}
			}
			doc, source, err := LoadWithRecovery(ctx, store, path, decodeObject)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if source != tt.want {
				t.Fatalf("expected source %s, got %s", tt.want, source)
			}
			if source == SourceDefault && doc != nil {
				t.Fatalf("default source must return the zero document")
			}
		})
	}
}

func TestLoadWithRecoveryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := LoadWithRecovery(ctx, New(nil), filepath.Join(t.TempDir(), "x.json"), decodeObject); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNeedsRepair(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.json")
	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{"), 0o644); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}

	if NeedsRepair(SourcePrimary, corrupt) {
		t.Fatalf("primary documents never need repair")
	}
	if !NeedsRepair(SourceBackup, missing) {
		t.Fatalf("backup-served documents need repair")
	}
	if NeedsRepair(SourceDefault, missing) {
		t.Fatalf("a never-written document should be left alone")
	}
	if !NeedsRepair(SourceDefault, corrupt) {
		t.Fatalf("an unreadable primary needs repair")
	}
}
