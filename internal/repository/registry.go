package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/SergeiKhy/snaplink/internal/models"
	"github.com/google/uuid"
)

// DefaultStorageKey ключ, под которым хранится весь список ссылок
const DefaultStorageKey = "shortened_urls"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrCodeExists     = errors.New("short code already exists")
	ErrStoreFull      = errors.New("link store is full")
	ErrInvalidRecord  = errors.New("invalid record")
)

type RegistryStore interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	Create(ctx context.Context, record *models.URLRecord) (string, error)
	CreateBatch(ctx context.Context, records []*models.URLRecord) error
	FindByShortcode(ctx context.Context, code string) (*models.URLRecord, error)
	AppendClick(ctx context.Context, code string, event models.ClickEvent) error
	List(ctx context.Context) ([]models.URLRecord, error)
	Codes(ctx context.Context) (map[string]struct{}, error)
}

// registry держит всю коллекцию одним JSON-документом: каждая мутация
// читает, изменяет и перезаписывает массив целиком. Мьютекс сериализует
// read-modify-write внутри процесса; несколько процессов-писателей не поддерживаются.
type registry struct {
	storage    Storage
	key        string
	maxRecords int
	mu         sync.Mutex
}

func NewRegistry(storage Storage, key string, maxRecords int) RegistryStore {
	if key == "" {
		key = DefaultStorageKey
	}
	return &registry{
		storage:    storage,
		key:        key,
		maxRecords: maxRecords,
	}
}

// Init записывает пустой массив, если ключ ещё не существует
func (r *registry) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.storage.Get(ctx, r.key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("failed to init registry: %w", err)
	}

	return r.save(ctx, []models.URLRecord{})
}

// Reset удаляет всю коллекцию
func (r *registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storage.Delete(ctx, r.key)
}

func (r *registry) Create(ctx context.Context, record *models.URLRecord) (string, error) {
	if err := r.CreateBatch(ctx, []*models.URLRecord{record}); err != nil {
		return "", err
	}
	return record.ID, nil
}

// CreateBatch сохраняет все записи одной записью в хранилище либо не сохраняет ни одной
func (r *registry) CreateBatch(ctx context.Context, records []*models.URLRecord) error {
	for _, record := range records {
		if err := validateRecord(record); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(ctx)
	if err != nil {
		return err
	}

	codes := make(map[string]struct{}, len(existing)+len(records))
	for _, rec := range existing {
		codes[rec.ShortCode] = struct{}{}
	}
	for _, record := range records {
		if _, taken := codes[record.ShortCode]; taken {
			return fmt.Errorf("%w: %s", ErrCodeExists, record.ShortCode)
		}
		codes[record.ShortCode] = struct{}{}
	}

	if r.maxRecords > 0 && len(existing)+len(records) > r.maxRecords {
		return ErrStoreFull
	}

	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.Clicks == nil {
			record.Clicks = []models.ClickEvent{}
		}
		existing = append(existing, *record)
	}

	return r.save(ctx, existing)
}

func (r *registry) FindByShortcode(ctx context.Context, code string) (*models.URLRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	i := indexOf(records, code)
	if i < 0 {
		return nil, ErrRecordNotFound
	}

	return &records[i], nil
}

func (r *registry) AppendClick(ctx context.Context, code string, event models.ClickEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return err
	}

	i := indexOf(records, code)
	if i < 0 {
		return ErrRecordNotFound
	}

	records[i].Clicks = append(records[i].Clicks, event)

	return r.save(ctx, records)
}

func (r *registry) List(ctx context.Context) ([]models.URLRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(ctx)
}

func (r *registry) Codes(ctx context.Context) (map[string]struct{}, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	codes := make(map[string]struct{}, len(records))
	for _, rec := range records {
		codes[rec.ShortCode] = struct{}{}
	}

	return codes, nil
}

func (r *registry) load(ctx context.Context) ([]models.URLRecord, error) {
	data, err := r.storage.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return []models.URLRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var records []models.URLRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry: %w", err)
	}
	if records == nil {
		records = []models.URLRecord{}
	}

	return records, nil
}

func (r *registry) save(ctx context.Context, records []models.URLRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := r.storage.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}

	return nil
}

func validateRecord(record *models.URLRecord) error {
	if record == nil || record.ShortCode == "" || record.OriginalURL == "" {
		return ErrInvalidRecord
	}
	if record.ExpiryDate.Before(record.CreatedAt) {
		return fmt.Errorf("%w: expiry before creation", ErrInvalidRecord)
	}
	return nil
}

func indexOf(records []models.URLRecord, code string) int {
	for i := range records {
		if records[i].ShortCode == code {
			return i
		}
	}
	return -1
}
