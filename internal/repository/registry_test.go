package repository_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/SergeiKhy/snaplink/internal/config"
	"github.com/SergeiKhy/snaplink/internal/models"
	"github.com/SergeiKhy/snaplink/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(code string) *models.URLRecord {
	return &models.URLRecord{
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
		CreatedAt:   baseTime,
		ExpiryDate:  baseTime.Add(30 * time.Minute),
	}
}

func setupRegistry(t *testing.T, maxRecords int) (repository.RegistryStore, repository.Storage) {
	t.Helper()

	storage := repository.NewMemoryStorage()
	registry := repository.NewRegistry(storage, repository.DefaultStorageKey, maxRecords)
	require.NoError(t, registry.Init(context.Background()))

	return registry, storage
}

func TestRegistry_Create(t *testing.T) {
	registry, _ := setupRegistry(t, 5)
	ctx := context.Background()

	id, err := registry.Create(ctx, newRecord("abc123"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	found, err := registry.FindByShortcode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "https://example.com/abc123", found.OriginalURL)
	assert.NotNil(t, found.Clicks)
	assert.Empty(t, found.Clicks)
}

func TestRegistry_Create_DuplicateShortcode(t *testing.T) {
	registry, _ := setupRegistry(t, 5)
	ctx := context.Background()

	_, err := registry.Create(ctx, newRecord("abc123"))
	require.NoError(t, err)

	_, err = registry.Create(ctx, newRecord("abc123"))
	assert.ErrorIs(t, err, repository.ErrCodeExists)

	records, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRegistry_Create_StoreFull(t *testing.T) {
	registry, _ := setupRegistry(t, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := registry.Create(ctx, newRecord(fmt.Sprintf("code%d", i)))
		require.NoError(t, err)
	}

	_, err := registry.Create(ctx, newRecord("code5"))
	assert.ErrorIs(t, err, repository.ErrStoreFull)

	records, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestRegistry_Create_InvalidRecord(t *testing.T) {
	registry, _ := setupRegistry(t, 5)

	record := newRecord("abc123")
	record.ExpiryDate = record.CreatedAt.Add(-time.Minute)

	_, err := registry.Create(context.Background(), record)
	assert.ErrorIs(t, err, repository.ErrInvalidRecord)
}

func TestRegistry_CreateBatch_AllOrNothing(t *testing.T) {
	registry, _ := setupRegistry(t, 5)
	ctx := context.Background()

	_, err := registry.Create(ctx, newRecord("taken"))
	require.NoError(t, err)

	t.Run("duplicate inside batch", func(t *testing.T) {
		err := registry.CreateBatch(ctx, []*models.URLRecord{newRecord("one"), newRecord("one")})
		assert.ErrorIs(t, err, repository.ErrCodeExists)
	})

	t.Run("duplicate against store", func(t *testing.T) {
		err := registry.CreateBatch(ctx, []*models.URLRecord{newRecord("two"), newRecord("taken")})
		assert.ErrorIs(t, err, repository.ErrCodeExists)
	})

	t.Run("over capacity", func(t *testing.T) {
		batch := []*models.URLRecord{newRecord("a"), newRecord("b"), newRecord("c"), newRecord("d"), newRecord("e")}
		err := registry.CreateBatch(ctx, batch)
		assert.ErrorIs(t, err, repository.ErrStoreFull)
	})

	records, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, registry.CreateBatch(ctx, []*models.URLRecord{newRecord("x"), newRecord("y")}))
	records, err = registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRegistry_FindByShortcode_NotFound(t *testing.T) {
	registry, _ := setupRegistry(t, 5)

	record, err := registry.FindByShortcode(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
	assert.Nil(t, record)
}

func TestRegistry_AppendClick_KeepsArrivalOrder(t *testing.T) {
	registry, _ := setupRegistry(t, 5)
	ctx := context.Background()

	_, err := registry.Create(ctx, newRecord("abc123"))
	require.NoError(t, err)

	first := models.NewClickEvent(baseTime.Add(time.Minute), models.ClickMeta{Referrer: "https://news.ycombinator.com"})
	second := models.NewClickEvent(baseTime.Add(2*time.Minute), models.ClickMeta{})

	require.NoError(t, registry.AppendClick(ctx, "abc123", first))
	require.NoError(t, registry.AppendClick(ctx, "abc123", second))

	found, err := registry.FindByShortcode(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, found.Clicks, 2)
	assert.Equal(t, first, found.Clicks[0])
	assert.Equal(t, second, found.Clicks[1])
	assert.Equal(t, models.DirectSource, found.Clicks[1].Source)
	assert.Equal(t, models.UnknownLocation, found.Clicks[1].Location)

	err = registry.AppendClick(ctx, "missing", first)
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestRegistry_RoundTrip(t *testing.T) {
	registry, storage := setupRegistry(t, 5)
	ctx := context.Background()

	record := newRecord("abc123")
	_, err := registry.Create(ctx, record)
	require.NoError(t, err)

	click := models.NewClickEvent(baseTime.Add(time.Minute), models.ClickMeta{Referrer: "https://t.co", Location: "Local"})
	require.NoError(t, registry.AppendClick(ctx, "abc123", click))
	record.Clicks = append(record.Clicks, click)

	// Новый реестр поверх того же хранилища видит те же данные
	reloaded := repository.NewRegistry(storage, repository.DefaultStorageKey, 5)
	found, err := reloaded.FindByShortcode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, *record, *found)
}

func TestRegistry_PersistedLayout(t *testing.T) {
	registry, storage := setupRegistry(t, 5)
	ctx := context.Background()

	_, err := registry.Create(ctx, newRecord("abc123"))
	require.NoError(t, err)

	raw, err := storage.Get(ctx, repository.DefaultStorageKey)
	require.NoError(t, err)

	assert.Contains(t, string(raw), "\n  {")
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	for _, field := range []string{"id", "originalUrl", "shortcode", "createdAt", "expiryDate", "clicks"} {
		assert.Contains(t, decoded[0], field)
	}
}

func TestRegistry_InitAndReset(t *testing.T) {
	storage := repository.NewMemoryStorage()
	registry := repository.NewRegistry(storage, "", 5)
	ctx := context.Background()

	require.NoError(t, registry.Init(ctx))
	raw, err := storage.Get(ctx, repository.DefaultStorageKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	_, err = registry.Create(ctx, newRecord("abc123"))
	require.NoError(t, err)

	// Повторный Init не затирает данные
	require.NoError(t, registry.Init(ctx))
	codes, err := registry.Codes(ctx)
	require.NoError(t, err)
	assert.Contains(t, codes, "abc123")

	require.NoError(t, registry.Reset(ctx))
	_, err = storage.Get(ctx, repository.DefaultStorageKey)
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)

	records, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOpen_Memory(t *testing.T) {
	storage, closeFn, err := repository.Open(context.Background(), &config.Config{
		Storage: config.StorageConfig{Driver: config.StorageMemory},
	})
	require.NoError(t, err)
	defer closeFn()

	assert.NoError(t, storage.Ping(context.Background()))

	_, _, err = repository.Open(context.Background(), &config.Config{
		Storage: config.StorageConfig{Driver: "sqlite"},
	})
	assert.Error(t, err)
}
