package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/SergeiKhy/snaplink/internal/repository"
)

// LoggedEvent одна запись, переданная в MockEventLogger
type LoggedEvent struct {
	Stack   string
	Level   string
	Package string
	Message string
}

// MockEventLogger implements service.EventLogger for testing
type MockEventLogger struct {
	mu     sync.Mutex
	events []LoggedEvent
}

func NewMockEventLogger() *MockEventLogger {
	return &MockEventLogger{}
}

func (m *MockEventLogger) Log(stack, level, pkg, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, LoggedEvent{Stack: stack, Level: level, Package: pkg, Message: message})
}

func (m *MockEventLogger) Events() []LoggedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LoggedEvent(nil), m.events...)
}

// Levels возвращает уровни всех записей в порядке поступления
func (m *MockEventLogger) Levels() []string {
	events := m.Events()
	levels := make([]string, len(events))
	for i, e := range events {
		levels[i] = e.Level
	}
	return levels
}

func (m *MockEventLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// ErrStorageUnavailable возвращается MockStorage, когда запись или чтение "сломаны"
var ErrStorageUnavailable = errors.New("storage unavailable")

// MockStorage implements repository.Storage for testing with switchable failures
type MockStorage struct {
	mu       sync.RWMutex
	data     map[string][]byte
	failGet  bool
	failSet  bool
	setCalls int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{data: make(map[string][]byte)}
}

func (m *MockStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failGet {
		return nil, ErrStorageUnavailable
	}
	value, exists := m.data[key]
	if !exists {
		return nil, repository.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MockStorage) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setCalls++
	if m.failSet {
		return ErrStorageUnavailable
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failGet {
		return ErrStorageUnavailable
	}
	return nil
}

// FailWrites переключает ошибки на Set
func (m *MockStorage) FailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = fail
}

// FailReads переключает ошибки на Get и Ping
func (m *MockStorage) FailReads(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = fail
}

// SetCalls возвращает число вызовов Set
func (m *MockStorage) SetCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.setCalls
}

// SequenceSource выдаёт заранее заданные коды по очереди; после последнего повторяет его
func SequenceSource(codes ...string) func(alphabet string, size int) (string, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func(_ string, _ int) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		if len(codes) == 0 {
			return "", errors.New("no codes configured")
		}
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}
