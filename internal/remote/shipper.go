package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Уровни логов, которые принимает коллектор
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Константы worker pool
const (
	defaultWorkerCount = 2
	defaultBufferSize  = 256
	defaultSendTimeout = 5 * time.Second
)

var (
	ErrTransport = errors.New("transport error")
	ErrQueueFull = errors.New("log queue is full")
)

// LogEntry тело запроса к коллектору логов
type LogEntry struct {
	Stack   string `json:"stack"`
	Level   string `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

// LogShipper асинхронно отправляет записи в удалённый коллектор.
// Log никогда не блокирует и не возвращает ошибок.
type LogShipper interface {
	Start()
	Stop()
	Log(stack, level, pkg, message string)
}

type ShipperConfig struct {
	Endpoint   string
	Workers    int
	BufferSize int
	Timeout    time.Duration
	// Token returns a bearer token for the collector; empty means no Authorization header.
	Token func() string
	// OnError получает каждую неудачную доставку. По умолчанию пишет debug в zap.
	OnError    func(entry LogEntry, err error)
	HTTPClient *http.Client
}

type logShipper struct {
	endpoint string
	client   *http.Client
	token    func() string
	onError  func(entry LogEntry, err error)
	logger   *zap.Logger
	entries  chan LogEntry
	workers  int
	timeout  time.Duration
	wg       sync.WaitGroup
	mu       sync.RWMutex
	started  bool
	stopped  bool
}

// NewLogShipper создаёт отправщик; при пустом Endpoint возвращает no-op реализацию
func NewLogShipper(cfg ShipperConfig, logger *zap.Logger) LogShipper {
	if cfg.Endpoint == "" {
		return NopShipper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	s := &logShipper{
		endpoint: cfg.Endpoint,
		client:   cfg.HTTPClient,
		token:    cfg.Token,
		onError:  cfg.OnError,
		logger:   logger,
		entries:  make(chan LogEntry, cfg.BufferSize),
		workers:  cfg.Workers,
		timeout:  cfg.Timeout,
	}
	if s.onError == nil {
		s.onError = func(entry LogEntry, err error) {
			logger.Debug("Remote log delivery failed",
				zap.String("package", entry.Package),
				zap.Error(err),
			)
		}
	}

	return s
}

// Start запускает worker pool
func (s *logShipper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	s.logger.Info("Starting remote log shipper",
		zap.String("endpoint", s.endpoint),
		zap.Int("workers", s.workers),
	)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop закрывает очередь и ждёт, пока воркеры отправят то, что уже в ней
func (s *logShipper) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.entries)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Remote log shipper stopped")
}

// Log ставит запись в очередь (неблокирующая операция)
func (s *logShipper) Log(stack, level, pkg, message string) {
	entry := LogEntry{
		Stack:   stack,
		Level:   level,
		Package: pkg,
		Message: message,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}

	select {
	case s.entries <- entry:
	default:
		// Очередь заполнена: запись теряется, запрос не блокируем
		s.onError(entry, ErrQueueFull)
	}
}

func (s *logShipper) worker() {
	defer s.wg.Done()

	for entry := range s.entries {
		if err := s.send(entry); err != nil {
			s.onError(entry, err)
		}
	}
}

// send делает ровно одну попытку доставки
func (s *logShipper) send(entry LogEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build log request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != nil {
		if token := s.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: collector responded with status %d", ErrTransport, resp.StatusCode)
	}

	return nil
}

// NopShipper отбрасывает все записи
type NopShipper struct{}

func (NopShipper) Start() {}

func (NopShipper) Stop() {}

func (NopShipper) Log(_, _, _, _ string) {}
