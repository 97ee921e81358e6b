package repository

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("storage key not found")

// Storage key/value хранилище, в котором реестр держит всю коллекцию
// ссылок одним документом.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
