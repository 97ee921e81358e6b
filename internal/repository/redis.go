package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/snaplink/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisDB struct {
	Client *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDB{Client: client}, nil
}

func (db *RedisDB) Close() error {
	return db.Client.Close()
}

type redisStorage struct {
	redis *RedisDB
}

// NewRedisStorage хранит каждое значение строковым ключом без TTL
func NewRedisStorage(redis *RedisDB) Storage {
	return &redisStorage{redis: redis}
}

func (s *redisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get %q from redis: %w", key, err)
	}

	return data, nil
}

func (s *redisStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.redis.Client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q in redis: %w", key, err)
	}
	return nil
}

func (s *redisStorage) Delete(ctx context.Context, key string) error {
	return s.redis.Client.Del(ctx, key).Err()
}

func (s *redisStorage) Ping(ctx context.Context) error {
	return s.redis.Client.Ping(ctx).Err()
}
