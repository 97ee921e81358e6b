package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/snaplink/internal/models"
	"github.com/SergeiKhy/snaplink/internal/remote"
	"github.com/SergeiKhy/snaplink/internal/repository"
	"go.uber.org/zap"
)

// Resolver переводит короткий код в адрес для редиректа
type Resolver interface {
	// Resolve returns ErrNotFound or ErrExpired, or the record with the new click appended.
	Resolve(ctx context.Context, code string, meta models.ClickMeta) (*models.URLRecord, error)
}

type ResolverConfig struct {
	Stack string
	Now   func() time.Time
}

type resolver struct {
	registry repository.RegistryStore
	events   EventLogger
	logger   *zap.Logger
	stack    string
	now      func() time.Time
}

func NewResolver(registry repository.RegistryStore, events EventLogger, cfg ResolverConfig, logger *zap.Logger) Resolver {
	if events == nil {
		events = remote.NopShipper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Stack == "" {
		cfg.Stack = defaultStack
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &resolver{
		registry: registry,
		events:   events,
		logger:   logger,
		stack:    cfg.Stack,
		now:      cfg.Now,
	}
}

func (r *resolver) Resolve(ctx context.Context, code string, meta models.ClickMeta) (*models.URLRecord, error) {
	record, err := r.registry.FindByShortcode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			r.events.Log(r.stack, remote.LevelWarn, logPackage, "Shortcode not found: "+code)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve %s: %w", code, err)
	}

	now := r.now().UTC()

	// Истёкшая ссылка остаётся в хранилище, но клик не записывается
	if record.IsExpired(now) {
		r.events.Log(r.stack, remote.LevelWarn, logPackage, "Shortcode expired: "+code)
		return nil, ErrExpired
	}

	event := models.NewClickEvent(now, meta)
	if err := r.registry.AppendClick(ctx, code, event); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to record click", zap.String("short_code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to record click: %w", err)
	}
	record.Clicks = append(record.Clicks, event)

	r.events.Log(r.stack, remote.LevelInfo, logPackage, "Redirected "+code)

	return record, nil
}
