package recordstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aid-distribution/ticket-api/internal/adapters/csvtable"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

// DefaultPath is the register file used when none is configured.
const DefaultPath = "beneficiaries.csv"

const defaultPerm fs.FileMode = 0o644

// Store is a CSV file implementation of recordstore.Store.
// It does not serialize callers; see recordstore.Store.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

func (s *Store) Location() string { return s.path }

func (s *Store) Load(ctx context.Context) (recordstore.Table, error) {
	if err := ctx.Err(); err != nil {
		return recordstore.Table{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return recordstore.Table{}, s.fail(recordstore.ErrNotFound, false, err)
		case errors.Is(err, fs.ErrPermission):
			return recordstore.Table{}, s.fail(recordstore.ErrUnreadable, true, err)
		default:
			return recordstore.Table{}, s.fail(recordstore.ErrCorrupt, false, err)
		}
	}
	defer f.Close()

	t, err := csvtable.Decode(f)
	if err != nil {
		return recordstore.Table{}, s.fail(recordstore.ErrCorrupt, errors.Is(err, fs.ErrPermission), err)
	}
	return t, nil
}

// Save replaces the register by writing a sibling temp file and renaming it into place,
// so readers never observe a partially written file. When the directory does not allow
// creating the temp file, Save falls back to rewriting the file in place.
func (s *Store) Save(ctx context.Context, t recordstore.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := csvtable.Marshal(t)
	if err != nil {
		return s.fail(recordstore.ErrUnwritable, false, err)
	}

	perm := defaultPerm
	if fi, err := os.Stat(s.path); err == nil {
		perm = fi.Mode().Perm()
		// Refuse up front when the target itself is not writable; a rename would
		// otherwise silently replace a read-only register.
		probe, err := os.OpenFile(s.path, os.O_WRONLY, 0)
		if err != nil {
			return s.fail(recordstore.ErrUnwritable, errors.Is(err, fs.ErrPermission), err)
		}
		_ = probe.Close()
	}

	err = s.writeAtomic(data, perm)
	if errors.Is(err, fs.ErrPermission) {
		err = s.writeInPlace(data, perm)
	}
	if err != nil {
		return s.fail(recordstore.ErrUnwritable, errors.Is(err, fs.ErrPermission), err)
	}
	return nil
}

func (s *Store) writeAtomic(data []byte, perm fs.FileMode) error {
	dir, base := filepath.Split(s.path)
	tmp := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *Store) writeInPlace(data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) fail(kind error, permission bool, err error) *recordstore.Error {
	return &recordstore.Error{Kind: kind, Location: s.path, Permission: permission, Err: err}
}
