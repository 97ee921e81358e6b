package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/snaplink/internal/config"
)

// Open подключает бэкенд, выбранный STORAGE_DRIVER. closeFn освобождает соединения.
func Open(ctx context.Context, cfg *config.Config) (Storage, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewPostgresStorage(db), db.Close, nil

	case config.StorageRedis:
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStorage(client), func() { _ = client.Close() }, nil

	case config.StorageMemory, "":
		return NewMemoryStorage(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
