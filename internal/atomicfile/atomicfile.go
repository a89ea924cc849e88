// Package atomicfile provides the whole-file-replace and append-only
// write primitives shared by the history journal and the champion
// document: a temp file in the same directory, synced and renamed into
// place for whole-document writes, and an O_APPEND+fsync write for
// journal lines.
package atomicfile

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteJSON marshals v and atomically replaces the file at path: it writes
// to a temp file created in the same directory (so the final rename is
// same-filesystem and therefore atomic), syncs it, closes it, and renames
// it over path. The temp file is removed if anything fails before the
// rename.
func WriteJSON(path string, v any) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	success = true
	return nil
}

// ReadJSON loads and decodes the file at path into v. Returns an error
// wrapping os.ErrNotExist if the file does not exist yet.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// AppendLog is an open handle to an append-only JSON-lines file, held for
// the life of an iteration stream so each append only pays for one
// O_APPEND write and one fsync rather than reopening per record.
type AppendLog struct {
	f *os.File
}

// OpenAppendLog opens (creating if necessary) the journal file at path for
// appending.
func OpenAppendLog(path string) (*AppendLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &AppendLog{f: f}, nil
}

// Append marshals v as one JSON line and appends it, syncing before
// returning so a crash immediately after Append cannot lose the record.
func (a *AppendLog) Append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := a.f.Write(b); err != nil {
		return err
	}
	return a.f.Sync()
}

// Close releases the underlying file handle.
func (a *AppendLog) Close() error {
	return a.f.Close()
}

// Path returns the path to the journal file.
func (a *AppendLog) Path() string {
	return a.f.Name()
}
