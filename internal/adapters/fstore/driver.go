package fstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/SscSPs/sledge/internal/adapters/entitystore"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/utils/pagination"
)

// dirDriver stores one entity per file in dir. File names are the path-escaped identifiers.
type dirDriver struct {
	dir   string
	index entitystore.Indexer
}

var _ entitystore.Driver = (*dirDriver)(nil)

// fileName escapes id into a single path segment. A leading dot is escaped too, since dotfiles
// are reserved for temporary files.
func fileName(id string) string {
	name := url.PathEscape(id)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name
}

func (d *dirDriver) path(id string) string {
	return filepath.Join(d.dir, fileName(id))
}

func (d *dirDriver) read(id string) ([]byte, bool, error) {
	p := d.path(id)
	body, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewIOError("read", p, err)
	}
	return body, true, nil
}

func (d *dirDriver) Get(_ context.Context, id string) (entitystore.Row, bool, error) {
	body, ok, err := d.read(id)
	if err != nil || !ok {
		return entitystore.Row{}, false, err
	}
	return entitystore.Row{ID: id, Body: body}, true, nil
}

// Insert writes a temporary file and hard-links it into place, which fails when the target
// already exists. Nothing is linked once ctx is done.
func (d *dirDriver) Insert(ctx context.Context, row entitystore.Row) error {
	tmp, err := writeTemp(d.dir, row.Body)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := ctx.Err(); err != nil {
		return err
	}
	target := d.path(row.ID)
	if err := os.Link(tmp, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return apperrors.ErrDuplicate
		}
		return apperrors.NewIOError("link", target, err)
	}
	return syncDir(d.dir)
}

func (d *dirDriver) Replace(ctx context.Context, id string, apply func(prev entitystore.Row) (entitystore.Row, error)) error {
	body, ok, err := d.read(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotFound
	}
	next, err := apply(entitystore.Row{ID: id, Body: body})
	if err != nil {
		return err
	}
	return writeAtomic(ctx, d.path(id), next.Body)
}

func (d *dirDriver) Remove(ctx context.Context, id string, check func(prev entitystore.Row) error) error {
	body, ok, err := d.read(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotFound
	}
	if err := check(entitystore.Row{ID: id, Body: body}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := d.path(id)
	if err := os.Remove(p); err != nil {
		return apperrors.NewIOError("remove", p, err)
	}
	return syncDir(d.dir)
}

// Scan reads every entity file. Files are plain entity documents, so ordering needs the
// creation time inside each one.
func (d *dirDriver) Scan(ctx context.Context, after *pagination.Cursor, limit int) ([]entitystore.Row, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, apperrors.NewIOError("list", d.dir, err)
	}

	rows := make([]entitystore.Row, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		id, err := url.PathUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("%w: unexpected file %q in %s", apperrors.ErrSerialization, name, d.dir)
		}
		p := filepath.Join(d.dir, name)
		body, err := os.ReadFile(p)
		if err != nil {
			return nil, apperrors.NewIOError("read", p, err)
		}
		stored, created, err := d.index(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrSerialization, p, err)
		}
		if stored != id {
			return nil, fmt.Errorf("%w: %s holds entity %q", apperrors.ErrSerialization, p, stored)
		}
		rows = append(rows, entitystore.Row{ID: id, Created: created, Body: body})
	}
	entitystore.SortRows(rows)
	return entitystore.PageAfter(rows, after, limit), nil
}

// writeTemp writes body to a fresh dotfile in dir and flushes it to disk.
func writeTemp(dir string, body []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", apperrors.NewIOError("create", dir, err)
	}
	name := f.Name()
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(name)
		return "", apperrors.NewIOError("write", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", apperrors.NewIOError("sync", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", apperrors.NewIOError("close", name, err)
	}
	return name, nil
}

// writeAtomic replaces path with body: temp file, fsync, rename, directory fsync. The rename
// is skipped once ctx is done.
func writeAtomic(ctx context.Context, path string, body []byte) error {
	dir := filepath.Dir(path)
	tmp, err := writeTemp(dir, body)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperrors.NewIOError("rename", path, err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return apperrors.NewIOError("open", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return apperrors.NewIOError("sync", dir, err)
	}
	return nil
}
