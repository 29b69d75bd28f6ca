package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/repository"
)

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFile(filepath.Join(t.TempDir(), "profile"))

	_, found, err := store.GetSessionID(ctx)
	gt.NoError(t, err)
	gt.False(t, found)

	gt.NoError(t, store.PutSessionID(ctx, "web_abc123"))

	id, found, err := store.GetSessionID(ctx)
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, id, model.SessionID("web_abc123"))

	info, err := os.Stat(store.Path())
	gt.NoError(t, err)
	if runtime.GOOS != "windows" {
		gt.Equal(t, info.Mode().Perm(), os.FileMode(0o600))
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	gt.NoError(t, repository.NewFile(dir).PutSessionID(ctx, "web_persisted"))

	id, found, err := repository.NewFile(dir).GetSessionID(ctx)
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, id, model.SessionID("web_persisted"))
}

func TestFileDelete(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFile(t.TempDir())

	// deleting a missing value is fine
	gt.NoError(t, store.DeleteSessionID(ctx))

	gt.NoError(t, store.PutSessionID(ctx, "web_delete_me"))
	gt.NoError(t, store.DeleteSessionID(ctx))

	_, found, err := store.GetSessionID(ctx)
	gt.NoError(t, err)
	gt.False(t, found)
}

func TestFileBlankContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, repository.SessionFileName), []byte("  \n"), 0o600))

	_, found, err := repository.NewFile(dir).GetSessionID(ctx)
	gt.NoError(t, err)
	gt.False(t, found)
}

func TestFileUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// a directory where the session file should be makes every operation fail
	gt.NoError(t, os.Mkdir(filepath.Join(dir, repository.SessionFileName), 0o700))
	store := repository.NewFile(dir)

	_, _, err := store.GetSessionID(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrStorageUnavailable))

	err = store.PutSessionID(ctx, "web_abc123")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrStorageUnavailable))
}

func TestFileRejectsInvalidID(t *testing.T) {
	store := repository.NewFile(t.TempDir())
	gt.Error(t, store.PutSessionID(context.Background(), "web_\nbroken"))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()

	_, found, err := store.GetSessionID(ctx)
	gt.NoError(t, err)
	gt.False(t, found)

	gt.NoError(t, store.PutSessionID(ctx, "web_mem"))
	id, found, err := store.GetSessionID(ctx)
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, id, model.SessionID("web_mem"))

	gt.NoError(t, store.DeleteSessionID(ctx))
	_, found, _ = store.GetSessionID(ctx)
	gt.False(t, found)
}
