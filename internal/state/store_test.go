package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Get_Absent", func(t *testing.T) {
		record, err := store.Get(ctx, "absent", resource.Build)
		assert.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("Put_Get", func(t *testing.T) {
		err := store.Put(ctx, &resource.Record{
			Namespace:   "put-get",
			Kind:        resource.Fleet,
			Name:        "put-get-fleet",
			Identifiers: map[string]string{resource.IDFleetID: "fleet-1234"},
			Status:      resource.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		require.NoError(t, err)

		record, err := store.Get(ctx, "put-get", resource.Fleet)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "put-get-fleet", record.Name)
		assert.Equal(t, "fleet-1234", record.ID(resource.IDFleetID))
		assert.Equal(t, resource.StatusActive, record.Status)
		assert.True(t, now.Equal(record.CreatedAt))
	})

	t.Run("Put_ReplacesWholeRecord", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, &resource.Record{
			Namespace:   "replace",
			Kind:        resource.Build,
			Identifiers: map[string]string{resource.IDBuildID: "build-1"},
			Status:      resource.StatusPending,
			Error:       "stale",
		}))
		require.NoError(t, store.Put(ctx, &resource.Record{
			Namespace: "replace",
			Kind:      resource.Build,
			Status:    resource.StatusActive,
		}))

		record, err := store.Get(ctx, "replace", resource.Build)
		require.NoError(t, err)
		assert.Equal(t, resource.StatusActive, record.Status)
		assert.Empty(t, record.Error)
		assert.Empty(t, record.ID(resource.IDBuildID))
	})

	t.Run("Put_CopiesRecord", func(t *testing.T) {
		record := &resource.Record{
			Namespace:   "copy",
			Kind:        resource.UserPool,
			Identifiers: map[string]string{resource.IDUserPoolID: "pool-1"},
			Status:      resource.StatusActive,
		}
		require.NoError(t, store.Put(ctx, record))
		record.Identifiers[resource.IDUserPoolID] = "mutated"

		got, err := store.Get(ctx, "copy", resource.UserPool)
		require.NoError(t, err)
		assert.Equal(t, "pool-1", got.ID(resource.IDUserPoolID))
	})

	t.Run("Put_RejectsUnknownKind", func(t *testing.T) {
		err := store.Put(ctx, &resource.Record{Namespace: "unknown", Kind: "Database"})
		assert.ErrorIs(t, err, errors.ErrUnknownKind)
	})

	t.Run("List_Ordered", func(t *testing.T) {
		for _, kind := range []resource.Kind{resource.RestApi, resource.Build, resource.LoginFunction} {
			require.NoError(t, store.Put(ctx, &resource.Record{Namespace: "list", Kind: kind, Status: resource.StatusActive}))
		}
		require.NoError(t, store.Put(ctx, &resource.Record{Namespace: "list-other", Kind: resource.Fleet, Status: resource.StatusActive}))

		records, err := store.List(ctx, "list")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, resource.Build, records[0].Kind)
		assert.Equal(t, resource.LoginFunction, records[1].Kind)
		assert.Equal(t, resource.RestApi, records[2].Kind)

		snapshot, err := Load(ctx, store, "list")
		require.NoError(t, err)
		assert.True(t, snapshot.Present(resource.RestApi))
		assert.False(t, snapshot.Present(resource.Fleet))
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, &resource.Record{Namespace: "remove", Kind: resource.RestApi, Status: resource.StatusActive}))
		require.NoError(t, store.Remove(ctx, "remove", resource.RestApi))
		require.NoError(t, store.Remove(ctx, "remove", resource.RestApi))

		record, err := store.Get(ctx, "remove", resource.RestApi)
		assert.NoError(t, err)
		assert.Nil(t, record)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	testStore(t, NewFileStore(t.TempDir()))
}

func TestFileStore_Durable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, NewFileStore(dir).Put(ctx, &resource.Record{
		Namespace:   "test1",
		Kind:        resource.Build,
		Identifiers: map[string]string{resource.IDBuildID: "build-abc"},
		Status:      resource.StatusActive,
	}))

	record, err := NewFileStore(dir).Get(ctx, "test1", resource.Build)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "build-abc", record.ID(resource.IDBuildID))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test1.json", entries[0].Name())
}

func TestFileStore_IgnoresAbandonedTempFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Put(ctx, &resource.Record{Namespace: "test1", Kind: resource.Build, Status: resource.StatusActive}))

	// a crash between write and rename leaves only the temp file behind
	err := os.WriteFile(filepath.Join(dir, ".test1-123.json.tmp"), []byte(`{"version":1,"resou`), 0o644)
	require.NoError(t, err)

	records, err := store.List(ctx, "test1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resource.StatusActive, records[0].Status)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test1.json"), []byte("{not json"), 0o644))

	_, err := NewFileStore(dir).List(context.Background(), "test1")
	assert.Error(t, err)
}

func TestFileStore_InvalidNamespace(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.List(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrNamespaceEmpty)

	_, err = store.List(context.Background(), "../escape")
	assert.Error(t, err)
}
