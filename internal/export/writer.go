// Package export writes output tables as CSV files.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fortuna/gridiron/internal/table"
	"github.com/fortuna/gridiron/pkg/logger"
)

// fileMode is the permission of written CSV files.
const fileMode os.FileMode = 0o644

// Writer writes tables to <prefix>_<table name>.csv.
type Writer struct {
	prefix string
	log    logger.Logger
	rename func(oldpath, newpath string) error
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer's logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWriter returns a writer for the given output prefix. The prefix may
// include a directory, e.g. "out/cfb".
func NewWriter(prefix string, opts ...Option) *Writer {
	w := &Writer{prefix: prefix, log: logger.Nop(), rename: os.Rename}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the output file path for a table name.
func (w *Writer) Path(name string) string {
	return fmt.Sprintf("%s_%s.csv", w.prefix, name)
}

type staged struct {
	tmp       string
	final     string
	backup    string
	published bool
}

// WriteAll writes every table, or none of them. Each table is first
// written to a temporary file next to its destination. Once all tables
// are staged, existing outputs are moved aside and the temporaries are
// renamed into place; if any rename fails the previous outputs are put
// back. It returns the final paths in table order.
func (w *Writer) WriteAll(ctx context.Context, tables ...table.Table) ([]string, error) {
	dir := filepath.Dir(w.Path("x"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrWrite, dir, err)
	}

	var files []staged
	cleanup := func() {
		for _, f := range files {
			_ = os.Remove(f.tmp)
		}
	}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		final := w.Path(t.Name)
		tmp, err := stage(dir, t)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: %s: %v", ErrWrite, final, err)
		}
		files = append(files, staged{tmp: tmp, final: final})
		w.log.Debug(ctx, "table staged", logger.String("table", t.Name), logger.Int("rows", t.Len()))
	}

	if err := w.publish(files); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.backup != "" {
			_ = os.Remove(f.backup)
		}
		paths = append(paths, f.final)
		w.log.Info(ctx, "table written", logger.String("path", f.final))
	}
	return paths, nil
}

// publish moves staged files into place, restoring the previous outputs
// if any step fails.
func (w *Writer) publish(files []staged) error {
	for i := range files {
		f := &files[i]
		if _, err := os.Lstat(f.final); err == nil {
			f.backup = f.tmp + ".old"
			if err := w.rename(f.final, f.backup); err != nil {
				f.backup = ""
				w.rollback(files)
				return fmt.Errorf("%w: move aside %s: %v", ErrWrite, f.final, err)
			}
		}
		if err := w.rename(f.tmp, f.final); err != nil {
			w.rollback(files)
			return fmt.Errorf("%w: rename %s: %v", ErrWrite, f.final, err)
		}
		f.published = true
	}
	return nil
}

func (w *Writer) rollback(files []staged) {
	for _, f := range files {
		if f.published && f.backup == "" {
			_ = os.Remove(f.final)
		}
		if f.backup != "" {
			_ = w.rename(f.backup, f.final)
		}
		if !f.published {
			_ = os.Remove(f.tmp)
		}
	}
}

func stage(dir string, t table.Table) (path string, err error) {
	f, err := os.CreateTemp(dir, "."+t.Name+"-*.csv.tmp")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = Encode(f, t); err != nil {
		return "", err
	}
	if err = f.Chmod(fileMode); err != nil {
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}
