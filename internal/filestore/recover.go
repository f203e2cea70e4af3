package filestore

import (
	"context"
	stdErrors "errors"
	"os"
)

// Source names where a recovered document came from.
type Source string

const (
	SourcePrimary Source = "primary"
	SourceBackup  Source = "backup"
	SourceDefault Source = "default"
)

// LoadWithRecovery tries path, then path.bak. decode turns a decoded JSON value
// into a typed document; ok=false marks the value as structurally unusable. When neither yields a usable
// document it returns the zero T with SourceDefault and the caller supplies
// the default. Only context cancellation is reported as an error.
func LoadWithRecovery[T any](ctx context.Context, s *Store, path string, decode func(raw any) (T, bool)) (T, Source, error) {
	var zero T
	candidates := []struct {
		path   string
		source Source
	}{
		{path: path, source: SourcePrimary},
		{path: BackupPath(path), source: SourceBackup},
	}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		raw, err := s.Read(ctx, c.path)
		if err != nil {
			if !stdErrors.Is(err, ErrNotFound) {
				return zero, "", err
			}
			continue
		}
		doc, ok := decode(raw)
		if !ok {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"path": c.path}), "document is not an object; skipping")
			continue
		}
		return doc, c.source, nil
	}
	return zero, SourceDefault, nil
}

// Repair reports the outcome of rewriting a document from its fallback.
type Repair struct {
	Document string `json:"document"`
	Source   Source `json:"source"`
	Repaired bool   `json:"repaired"`
}

// NeedsRepair reports whether a document served from source should be
// rewritten to path. A document that was simply never written is left alone.
func NeedsRepair(source Source, path string) bool {
	switch source {
	case SourceBackup:
		return true
	case SourceDefault:
		return exists(path) || exists(BackupPath(path))
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
