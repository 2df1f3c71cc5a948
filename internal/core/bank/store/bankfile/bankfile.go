// Package bankfile stores a bank snapshot in a local file.
package bankfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/bank/store/stream"
	"github.com/rschio/bank/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

type Store struct {
	log  *slog.Logger
	path string
}

func NewStore(log *slog.Logger, path string) *Store {
	return &Store{
		log:  log,
		path: path,
	}
}

// Save writes the snapshot next to the target and renames it into place, so
// a failed save leaves the previous file intact.
func (s *Store) Save(ctx context.Context, snap bank.Snapshot) error {
	ctx, span := web.AddSpan(ctx, "core.bank.store.bankfile.Save", attribute.String("path", s.path))
	defer span.End()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := stream.Encode(f, snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	s.log.InfoContext(ctx, "bankfile.Save", "path", s.path, "customers", len(snap.Customers))
	return nil
}

func (s *Store) Load(ctx context.Context) (bank.Snapshot, error) {
	ctx, span := web.AddSpan(ctx, "core.bank.store.bankfile.Load", attribute.String("path", s.path))
	defer span.End()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return bank.Snapshot{}, bank.ErrNoSnapshot
		}
		return bank.Snapshot{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	snap, err := stream.Decode(f)
	if err != nil {
		return bank.Snapshot{}, err
	}

	s.log.InfoContext(ctx, "bankfile.Load", "path", s.path, "customers", len(snap.Customers))
	return snap, nil
}

// WriteReport writes the transaction export of an account to path.
func WriteReport(path string, r bank.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
