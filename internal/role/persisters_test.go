package role

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/staff-directory/internal/config"
)

func TestSQLitePersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "preferences.db")

	p, err := OpenSQLitePersister(ctx, dsn, "userRole")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, ok, err := p.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Save(ctx, "Manager"))
	require.NoError(t, p.Save(ctx, "Technician")) // upsert

	value, ok, err := p.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Technician", value)
}

func TestSQLitePersisterSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "preferences.db")

	p, err := OpenSQLitePersister(ctx, dsn, "userRole")
	require.NoError(t, err)
	require.NoError(t, NewStore(p).SetRole(ctx, Manager))
	require.NoError(t, p.Close())

	reopened, err := OpenSQLitePersister(ctx, dsn, "userRole")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.Equal(t, Manager, NewStore(reopened).Role())
}

func TestSQLitePersisterErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	p, err := OpenSQLitePersister(ctx, filepath.Join(t.TempDir(), "p.db"), "userRole")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, _, err = p.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get preference[userRole]")

	err = p.Save(ctx, "Admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set preference[userRole]")
}

type fakeRedis struct {
	values map[string]string
	getErr error
	setErr error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func TestRedisPersister(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: map[string]string{}}
	p := NewRedisPersister(fake, "techdir:userRole")

	_, ok, err := p.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Save(ctx, "Manager"))
	assert.Equal(t, "Manager", fake.values["techdir:userRole"])

	value, ok, err := p.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Manager", value)

	fake.getErr = errors.New("connection refused")
	_, _, err = p.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get techdir:userRole")

	fake.setErr = errors.New("READONLY")
	require.Error(t, p.Save(ctx, "Admin"))
}

func TestOpenPersisterSelectsAdapter(t *testing.T) {
	ctx := context.Background()
	projectDir := t.TempDir()
	require.NoError(t, config.InitDir(projectDir))
	cfg, err := config.NewConfig(projectDir)
	require.NoError(t, err)

	p, closeFn, err := OpenPersister(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &FilePersister{}, p)
	require.NoError(t, closeFn())

	cfg.Project.Role.Store = config.StoreSQLite
	p, closeFn, err = OpenPersister(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLitePersister{}, p)
	require.NoError(t, closeFn())

	cfg.Project.Role.Store = config.StoreMemory
	p, _, err = OpenPersister(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryPersister{}, p)

	cfg.Project.Role.Store = "floppy"
	_, closeFn, err = OpenPersister(ctx, cfg, nil)
	require.Error(t, err)
	assert.NotNil(t, closeFn)
}
