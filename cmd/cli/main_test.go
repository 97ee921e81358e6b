package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/SergeiKhy/snaplink/internal/config"
	"github.com/SergeiKhy/snaplink/internal/repository"
	"github.com/SergeiKhy/snaplink/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{BaseURL: "http://sho.rt"},
		Storage: config.StorageConfig{Driver: config.StorageMemory, Key: repository.DefaultStorageKey},
		Links:   config.LinksConfig{MaxLinks: 5, DefaultValidity: 30, CodeLength: 6},
		Log:     config.LogConfig{Stack: "backend"},
	}
}

// run выполняет команду поверх общего хранилища и возвращает вывод
func run(t *testing.T, storage repository.Storage, args ...string) (string, error) {
	t.Helper()

	a := &app{cfg: testConfig(), storage: storage}
	root := newRootCmd(a)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_CreateListResolve(t *testing.T) {
	storage := repository.NewMemoryStorage()

	out, err := run(t, storage, "create", "--url", "https://example.com/long", "--code", "promo1", "-v", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "Code: promo1")
	assert.Contains(t, out, "Short URL: http://sho.rt/promo1")

	out, err = run(t, storage, "resolve", "promo1", "--referrer", "https://t.co")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/long\n", out)

	out, err = run(t, storage, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "CODE")
	assert.Regexp(t, `promo1\s+https://example.com/long\s+1\s+\d+m left`, out)
}

func TestCLI_Errors(t *testing.T) {
	storage := repository.NewMemoryStorage()

	_, err := run(t, storage, "create")
	assert.Error(t, err)

	_, err = run(t, storage, "create", "--url", "not-a-url")
	assert.ErrorIs(t, err, service.ErrInvalidURL)

	_, err = run(t, storage, "resolve", "missing")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = run(t, storage, "create", "--url", "https://example.com", "--code", "dup1")
	require.NoError(t, err)
	_, err = run(t, storage, "create", "--url", "https://example.com", "--code", "dup1")
	assert.ErrorIs(t, err, service.ErrDuplicateShortcode)
}

func TestCLI_Reset(t *testing.T) {
	storage := repository.NewMemoryStorage()

	_, err := run(t, storage, "create", "--url", "https://example.com")
	require.NoError(t, err)

	out, err := run(t, storage, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "All links deleted")

	out, err = run(t, storage, "list")
	require.NoError(t, err)
	assert.Equal(t, "CODE  URL  CLICKS  STATUS\n", out)
}
