package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
)

// SessionFileName is the file holding the session identifier inside a profile directory.
const SessionFileName = "session_id"

// File implements SessionStore with a single file in the profile directory
type File struct {
	path string
}

// NewFile creates a file based session store located in profileDir
func NewFile(profileDir string) *File {
	return &File{path: filepath.Join(profileDir, SessionFileName)}
}

// Path returns the location of the session file
func (f *File) Path() string { return f.path }

func (f *File) GetSessionID(ctx context.Context) (model.SessionID, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, goerr.Wrap(model.ErrStorageUnavailable, "failed to read session file",
			goerr.V("path", f.path), goerr.V("cause", err.Error()))
	}

	id := model.SessionID(strings.TrimSpace(string(data)))
	if id == "" {
		return "", false, nil
	}
	if !id.Valid() {
		return "", false, goerr.Wrap(model.ErrStorageUnavailable, "session file is corrupted", goerr.V("path", f.path))
	}

	return id, true, nil
}

func (f *File) PutSessionID(ctx context.Context, id model.SessionID) error {
	if !id.Valid() {
		return goerr.New("invalid session id", goerr.V("id", id))
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return goerr.Wrap(model.ErrStorageUnavailable, "failed to create profile directory",
			goerr.V("dir", dir), goerr.V("cause", err.Error()))
	}

	// write-then-rename so a crash never leaves a truncated identifier
	tmp, err := os.CreateTemp(dir, SessionFileName+".*")
	if err != nil {
		return goerr.Wrap(model.ErrStorageUnavailable, "failed to create temp file",
			goerr.V("dir", dir), goerr.V("cause", err.Error()))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(string(id) + "\n"); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(model.ErrStorageUnavailable, "failed to write session file", goerr.V("cause", err.Error()))
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(model.ErrStorageUnavailable, "failed to chmod session file", goerr.V("cause", err.Error()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(model.ErrStorageUnavailable, "failed to close session file", goerr.V("cause", err.Error()))
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return goerr.Wrap(model.ErrStorageUnavailable, "failed to replace session file",
			goerr.V("path", f.path), goerr.V("cause", err.Error()))
	}

	return nil
}

func (f *File) DeleteSessionID(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(model.ErrStorageUnavailable, "failed to remove session file",
			goerr.V("path", f.path), goerr.V("cause", err.Error()))
	}
	return nil
}
