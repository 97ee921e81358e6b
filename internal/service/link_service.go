package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/SergeiKhy/snaplink/internal/models"
	"github.com/SergeiKhy/snaplink/internal/remote"
	"github.com/SergeiKhy/snaplink/internal/repository"
	"go.uber.org/zap"
)

// Срок жизни ссылки в минутах
const (
	DefaultValidity = 30
	MaxValidity     = 30 * 24 * 60
)

const (
	logPackage   = "service"
	defaultStack = "backend"
)

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
}

// EventLogger принимает диагностические события для удалённого коллектора.
// remote.LogShipper удовлетворяет этому интерфейсу.
type EventLogger interface {
	Log(stack, level, pkg, message string)
}

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.URLRecord, error)
	CreateLinks(ctx context.Context, inputs []models.CreateLinkInput) ([]models.URLRecord, error)
	GetStats(ctx context.Context, code string) (*models.LinkStats, error)
	ListStats(ctx context.Context) ([]models.LinkStats, error)
}

type LinkServiceConfig struct {
	BaseURL         string
	DefaultValidity int // минуты
	MaxBatch        int // 0 означает без ограничения
	Stack           string
	Now             func() time.Time
}

type linkService struct {
	registry  repository.RegistryStore
	generator *ShortcodeGenerator
	events    EventLogger
	logger    *zap.Logger
	baseURL   string
	validity  int
	maxBatch  int
	stack     string
	now       func() time.Time
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	registry repository.RegistryStore,
	generator *ShortcodeGenerator,
	events EventLogger,
	cfg LinkServiceConfig,
	logger *zap.Logger,
) LinkService {
	if generator == nil {
		generator = NewShortcodeGenerator(DefaultCodeLength)
	}
	if events == nil {
		events = remote.NopShipper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultValidity <= 0 {
		cfg.DefaultValidity = DefaultValidity
	}
	if cfg.Stack == "" {
		cfg.Stack = defaultStack
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &linkService{
		registry:  registry,
		generator: generator,
		events:    events,
		logger:    logger,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		validity:  cfg.DefaultValidity,
		maxBatch:  cfg.MaxBatch,
		stack:     cfg.Stack,
		now:       cfg.Now,
	}
}

// CreateLink создаёт одну короткую ссылку
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.URLRecord, error) {
	if input == nil {
		return nil, ErrInvalidURL
	}

	records, err := s.CreateLinks(ctx, []models.CreateLinkInput{*input})
	if err != nil {
		return nil, err
	}

	return &records[0], nil
}

// CreateLinks валидирует все ссылки и сохраняет их одной записью в хранилище
func (s *linkService) CreateLinks(ctx context.Context, inputs []models.CreateLinkInput) ([]models.URLRecord, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	if s.maxBatch > 0 && len(inputs) > s.maxBatch {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrBatchTooLarge, len(inputs), s.maxBatch)
	}

	normalized := make([]models.CreateLinkInput, len(inputs))
	for i := range inputs {
		in, err := s.normalize(inputs[i])
		if err != nil {
			s.events.Log(s.stack, remote.LevelWarn, logPackage, "Rejected link submission: "+err.Error())
			if len(inputs) > 1 {
				return nil, fmt.Errorf("link %d: %w", i+1, err)
			}
			return nil, err
		}
		normalized[i] = in
	}

	now := s.now().UTC()

	// Между чтением кодов и записью другой запрос может занять код; тогда пересобираем батч
	for attempt := 0; attempt < s.generator.maxAttempts; attempt++ {
		records, err := s.buildRecords(ctx, normalized, now)
		if err != nil {
			return nil, err
		}

		batch := make([]*models.URLRecord, len(records))
		for i := range records {
			batch[i] = &records[i]
		}

		err = s.registry.CreateBatch(ctx, batch)
		switch {
		case err == nil:
			for _, rec := range records {
				s.logger.Info("Link created",
					zap.String("short_code", rec.ShortCode),
					zap.Time("expiry_date", rec.ExpiryDate),
				)
				s.events.Log(s.stack, remote.LevelInfo, logPackage, "Created short link "+rec.ShortCode)
			}
			return records, nil
		case errors.Is(err, repository.ErrCodeExists):
			s.logger.Debug("Short code taken concurrently, retrying", zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, repository.ErrStoreFull):
			s.events.Log(s.stack, remote.LevelWarn, logPackage, "Link store is full")
			return nil, ErrStoreFull
		default:
			s.logger.Error("Failed to persist links", zap.Error(err))
			s.events.Log(s.stack, remote.LevelError, logPackage, "Failed to persist links")
			return nil, fmt.Errorf("failed to create links: %w", err)
		}
	}

	return nil, ErrCodeSpaceExhausted
}

// GetStats возвращает статистику одной ссылки, в том числе истёкшей
func (s *linkService) GetStats(ctx context.Context, code string) (*models.LinkStats, error) {
	record, err := s.registry.FindByShortcode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	stats := s.toStats(record, s.now())
	return &stats, nil
}

// ListStats возвращает статистику всех ссылок в порядке создания
func (s *linkService) ListStats(ctx context.Context) ([]models.LinkStats, error) {
	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	now := s.now()
	stats := make([]models.LinkStats, 0, len(records))
	for i := range records {
		stats = append(stats, s.toStats(&records[i], now))
	}

	return stats, nil
}

// normalize проверяет ввод и подставляет значения по умолчанию
func (s *linkService) normalize(in models.CreateLinkInput) (models.CreateLinkInput, error) {
	in.OriginalURL = strings.TrimSpace(in.OriginalURL)
	if err := ValidateURL(in.OriginalURL); err != nil {
		return in, err
	}

	validity := s.validity
	if in.Validity != nil {
		validity = *in.Validity
	}
	if validity < 1 || validity > MaxValidity {
		return in, ErrInvalidValidity
	}
	in.Validity = &validity

	if in.ShortCode != nil {
		code := strings.TrimSpace(*in.ShortCode)
		if code == "" {
			in.ShortCode = nil
		} else {
			if err := ValidateShortcode(code); err != nil {
				return in, err
			}
			in.ShortCode = &code
		}
	}

	return in, nil
}

// buildRecords назначает коды: пользовательские проверяются на уникальность,
// остальные генерируются с учётом уже занятых
func (s *linkService) buildRecords(ctx context.Context, inputs []models.CreateLinkInput, now time.Time) ([]models.URLRecord, error) {
	taken, err := s.registry.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing codes: %w", err)
	}

	records := make([]models.URLRecord, len(inputs))

	// Сначала пользовательские коды, чтобы генератор их не занял
	for i, in := range inputs {
		if in.ShortCode == nil {
			continue
		}
		if _, exists := taken[*in.ShortCode]; exists {
			s.events.Log(s.stack, remote.LevelWarn, logPackage, "Duplicate shortcode "+*in.ShortCode)
			return nil, fmt.Errorf("%w: %s", ErrDuplicateShortcode, *in.ShortCode)
		}
		taken[*in.ShortCode] = struct{}{}
		records[i].ShortCode = *in.ShortCode
	}

	for i, in := range inputs {
		if records[i].ShortCode == "" {
			code, err := s.generator.Generate(taken)
			if err != nil {
				return nil, err
			}
			taken[code] = struct{}{}
			records[i].ShortCode = code
		}

		records[i].OriginalURL = in.OriginalURL
		records[i].CreatedAt = now
		records[i].ExpiryDate = now.Add(time.Duration(*in.Validity) * time.Minute)
		records[i].Clicks = []models.ClickEvent{}
	}

	return records, nil
}

func (s *linkService) toStats(record *models.URLRecord, now time.Time) models.LinkStats {
	clicks := record.Clicks
	if clicks == nil {
		clicks = []models.ClickEvent{}
	}

	return models.LinkStats{
		ShortCode:   record.ShortCode,
		OriginalURL: record.OriginalURL,
		ShortURL:    s.baseURL + "/" + record.ShortCode,
		CreatedAt:   record.CreatedAt,
		ExpiryDate:  record.ExpiryDate,
		Expired:     record.IsExpired(now),
		Status:      record.TimeLeft(now),
		TotalClicks: len(clicks),
		Clicks:      clicks,
	}
}

// ValidateURL accepts absolute http, https and ftp URLs with a host.
func ValidateURL(raw string) error {
	if raw == "" || strings.ContainsAny(raw, " \t\n\"'<>") {
		return ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] || u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}
