// Package filestore persists JSON documents with a write-temp, rotate-backup,
// rename-promote sequence so the target path never holds a partial file.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/logger"
	"go.uber.org/multierr"
)

const (
	tempSuffix   = ".tmp"
	backupSuffix = ".bak"

	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// ErrNotFound is returned by Read for a missing, unreadable or unparseable file.
var ErrNotFound = stdErrors.New("document not found")

// TempPath is the sibling file a write is staged in.
func TempPath(path string) string { return path + tempSuffix }

// BackupPath is the sibling file holding the previous generation.
func BackupPath(path string) string { return path + backupSuffix }

// Store reads and writes JSON documents atomically.
type Store struct {
	logg   *logger.Logger
	rename func(oldPath, newPath string) error
}

// New returns a Store that logs rotation problems through logg.
func New(logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{logg: logg, rename: os.Rename}
}

// Write serializes document and atomically replaces path with it. The previous
// file, if any, is rotated to path.bak on a best-effort basis.
func (s *Store) Write(ctx context.Context, path string, document any) error {
	if path == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "document path is required")
	}
	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode document")
	}
	payload = append(payload, '\n')

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create document directory")
	}

	tmp := TempPath(path)
	if err := writeSynced(tmp, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write temp document")
	}

	rotated := false
	if _, statErr := os.Stat(path); statErr == nil {
		if err := s.rename(path, BackupPath(path)); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"path":  path,
				"error": err.Error(),
			}), "backup rotation failed")
		} else {
			rotated = true
		}
	}

	if err := s.rename(tmp, path); err != nil {
		combined := err
		if rotated {
			if _, statErr := os.Stat(path); stdErrors.Is(statErr, fs.ErrNotExist) {
				combined = multierr.Append(combined, s.rename(BackupPath(path), path))
			}
		}
		combined = multierr.Append(combined, removeIfExists(tmp))
		return pkgerrors.Wrap(pkgerrors.CodeStorage, combined, "promote document")
	}
	return nil
}

// Ready reports whether the directory holding path exists or can be created.
func (s *Store) Ready(path string) error {
	if path == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "document path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "prepare document directory")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "stat document directory")
	}
	if !info.IsDir() {
		return pkgerrors.New(pkgerrors.CodeStorage, fmt.Sprintf("%s is not a directory", dir))
	}
	return nil
}

// Read decodes the JSON document at path. Numbers decode as json.Number so
// integer fields survive untouched. Any failure reports ErrNotFound.
func (s *Store) Read(ctx context.Context, path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var document any
	if err := decoder.Decode(&document); err != nil {
		s.logg.Debug(s.logg.WithField(ctx, "path", path), "document failed to parse")
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: %s: trailing data after document", ErrNotFound, path)
	}
	return document, nil
}

// writeSynced writes payload to path and fsyncs it. A partially written file
// is removed before returning the error.
func writeSynced(path string, payload []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
		if err != nil {
			err = multierr.Append(err, removeIfExists(path))
		}
	}()
	if _, err = f.Write(payload); err != nil {
		return err
	}
	return f.Sync()
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !stdErrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
