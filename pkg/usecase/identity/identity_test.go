package identity_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/repository"
	"github.com/m-mizutani/sahayak/pkg/usecase/identity"
)

type brokenStore struct {
	getErr error
	putErr error
	puts   int
}

func (b *brokenStore) GetSessionID(ctx context.Context) (model.SessionID, bool, error) {
	return "", false, b.getErr
}

func (b *brokenStore) PutSessionID(ctx context.Context, id model.SessionID) error {
	b.puts++
	return b.putErr
}

func (b *brokenStore) DeleteSessionID(ctx context.Context) error {
	return nil
}

func TestGetOrCreateIsStable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := identity.New(repository.NewFile(dir)).GetOrCreate(ctx)
	gt.True(t, regexp.MustCompile(`^web_[0-9a-z]{10}$`).MatchString(string(first)))

	// a new manager over the same profile simulates a reload
	mgr := identity.New(repository.NewFile(dir))
	gt.Equal(t, mgr.GetOrCreate(ctx), first)
	gt.Equal(t, mgr.GetOrCreate(ctx), first)
	gt.False(t, mgr.Degraded())
}

func TestGetOrCreateUsesExistingValue(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	gt.NoError(t, store.PutSessionID(ctx, "web_abc123"))

	generated := 0
	mgr := identity.New(store, identity.WithGenerator(func() model.SessionID {
		generated++
		return "web_new"
	}))

	gt.Equal(t, mgr.GetOrCreate(ctx), model.SessionID("web_abc123"))
	gt.Equal(t, generated, 0)
}

func TestGetOrCreateDegradesOnReadFailure(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{getErr: goerr.New("disk gone")}
	mgr := identity.New(store)

	id := mgr.GetOrCreate(ctx)
	gt.True(t, id.Valid())
	gt.True(t, mgr.Degraded())
	gt.Equal(t, mgr.GetOrCreate(ctx), id)
	gt.Equal(t, store.puts, 0)
}

func TestGetOrCreateDegradesOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{putErr: goerr.New("read-only")}
	mgr := identity.New(store)

	id := mgr.GetOrCreate(ctx)
	gt.True(t, mgr.Degraded())
	gt.Equal(t, mgr.GetOrCreate(ctx), id)
	gt.Equal(t, store.puts, 1)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	ids := []model.SessionID{"web_first", "web_second"}
	mgr := identity.New(store, identity.WithGenerator(func() model.SessionID {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	gt.Equal(t, mgr.GetOrCreate(ctx), model.SessionID("web_first"))
	gt.NoError(t, mgr.Clear(ctx))

	_, found, err := store.GetSessionID(ctx)
	gt.NoError(t, err)
	gt.False(t, found)

	gt.Equal(t, mgr.GetOrCreate(ctx), model.SessionID("web_second"))
}
