package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/snaplink/internal/handler"
	"github.com/SergeiKhy/snaplink/internal/middleware"
	"github.com/SergeiKhy/snaplink/internal/models"
	"github.com/SergeiKhy/snaplink/internal/remote"
	"github.com/SergeiKhy/snaplink/internal/repository"
	"github.com/SergeiKhy/snaplink/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAuthenticator заменяет удалённый сервис аутентификации
type fakeAuthenticator struct {
	token *remote.Token
	err   error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, _ *remote.Registration) (*remote.Token, error) {
	return f.token, f.err
}

type testServer struct {
	router *gin.Engine
	clock  *fakeClock
	auth   *fakeAuthenticator
}

func setupServer(t *testing.T, authRequired bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	logger := zap.NewNop()

	storage := repository.NewMemoryStorage()
	registry := repository.NewRegistry(storage, repository.DefaultStorageKey, 5)
	require.NoError(t, registry.Init(context.Background()))

	linkService := service.NewLinkService(registry, nil, nil, service.LinkServiceConfig{
		BaseURL:  "http://sho.rt",
		MaxBatch: 5,
		Now:      clock.Now,
	}, logger)
	resolver := service.NewResolver(registry, nil, service.ResolverConfig{Now: clock.Now}, logger)

	gate := middleware.NewTokenGate(middleware.TokenGateConfig{
		StaticKeys: map[string]string{"static-key": "ci"},
		Optional:   !authRequired,
	})
	auth := &fakeAuthenticator{
		token: &remote.Token{TokenType: "Bearer", AccessToken: "granted-token", ExpiresIn: 3600},
	}

	router := handler.NewRouter(handler.Handlers{
		Links:  handler.NewLinkHandler(linkService, resolver, "http://sho.rt", logger),
		Auth:   handler.NewAuthHandler(auth, gate, logger),
		Health: handler.NewHealthHandler(storage, "memory"),
		Gate:   gate.Middleware(),
	}, logger)

	return &testServer{router: router, clock: clock, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// TestCreateLink_Success проверяет создание ссылки через API
func TestCreateLink_Success(t *testing.T) {
	srv := setupServer(t, false)

	w := srv.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": "https://example.com", "validity": 30}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decode[handler.CreateLinkResponse](t, w)
	assert.Regexp(t, `^[a-zA-Z0-9]{6}$`, resp.ShortCode)
	assert.Equal(t, "http://sho.rt/"+resp.ShortCode, resp.ShortURL)
	assert.Equal(t, 30*time.Minute, resp.ExpiryDate.Sub(resp.CreatedAt))
}

// TestCreateLink_Errors проверяет коды ответа на ошибки валидации и ёмкости
func TestCreateLink_Errors(t *testing.T) {
	srv := setupServer(t, false)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing url", gin.H{}, http.StatusBadRequest, "invalid_request"},
		{"bad url", gin.H{"url": "not-a-url"}, http.StatusBadRequest, "invalid_url"},
		{"bad validity", gin.H{"url": "https://example.com", "validity": 0}, http.StatusBadRequest, "invalid_validity"},
		{"bad shortcode", gin.H{"url": "https://example.com", "shortcode": "a-b"}, http.StatusBadRequest, "invalid_shortcode"},
		{"custom shortcode", gin.H{"url": "https://example.com", "shortcode": "abc123"}, http.StatusCreated, ""},
		{"duplicate shortcode", gin.H{"url": "https://example.com", "shortcode": "abc123"}, http.StatusBadRequest, "duplicate_shortcode"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/api/v1/links", tc.body, nil)
			assert.Equal(t, tc.status, w.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, decode[handler.ErrorResponse](t, w).Error)
			}
		})
	}
}

// TestCreateLink_StoreFull проверяет 409 на шестую ссылку
func TestCreateLink_StoreFull(t *testing.T) {
	srv := setupServer(t, false)

	for i := 0; i < 5; i++ {
		w := srv.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": fmt.Sprintf("https://example.com/%d", i)}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := srv.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": "https://example.com/6"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "store_full", decode[handler.ErrorResponse](t, w).Error)
}

// TestCreateLinks_Batch проверяет пакетное создание и откат пакета с ошибкой
func TestCreateLinks_Batch(t *testing.T) {
	srv := setupServer(t, false)

	w := srv.do(t, http.MethodPost, "/api/v1/links/batch", gin.H{"links": []gin.H{
		{"url": "https://example.com/a"},
		{"url": "not-a-url"},
	}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/links/batch", gin.H{"links": []gin.H{
		{"url": "https://example.com/a"},
		{"url": "https://example.com/b", "shortcode": "bee"},
	}}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[handler.BatchCreateResponse](t, w)
	require.Len(t, resp.Links, 2)
	assert.Equal(t, "bee", resp.Links[1].ShortCode)

	w = srv.do(t, http.MethodGet, "/api/v1/links", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Links []models.LinkStats `json:"links"`
		Total int                `json:"total"`
	}](t, w)
	assert.Equal(t, 2, list.Total)
}

// TestRedirect проверяет редирект и запись клика
func TestRedirect(t *testing.T) {
	srv := setupServer(t, false)

	w := srv.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": "https://example.com/target", "shortcode": "go1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodGet, "/go1", nil, map[string]string{"Referer": "https://t.co/x", "CF-IPCountry": "DE"})
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://example.com/target", w.Header().Get("Location"))

	w = srv.do(t, http.MethodGet, "/api/v1/links/go1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.LinkStats](t, w)
	assert.Equal(t, 1, stats.TotalClicks)
	require.Len(t, stats.Clicks, 1)
	assert.Equal(t, "https://t.co/x", stats.Clicks[0].Source)
	assert.Equal(t, "DE", stats.Clicks[0].Location)
}

// TestRedirect_LookupErrors проверяет 404/410 с возвратом на главную
func TestRedirect_LookupErrors(t *testing.T) {
	srv := setupServer(t, false)

	w := srv.do(t, http.MethodGet, "/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "3; url=/", w.Header().Get("Refresh"))

	w = srv.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": "https://example.com", "shortcode": "old1", "validity": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	srv.clock.Advance(2 * time.Minute)

	w = srv.do(t, http.MethodGet, "/old1", nil, nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "3; url=/", w.Header().Get("Refresh"))
	assert.Equal(t, "expired", decode[handler.ErrorResponse](t, w).Error)

	// Истёкшая ссылка остаётся в статистике без новых кликов
	w = srv.do(t, http.MethodGet, "/api/v1/links/old1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.LinkStats](t, w)
	assert.True(t, stats.Expired)
	assert.Equal(t, 0, stats.TotalClicks)
}

// TestGate проверяет закрытый management API и выдачу токена
func TestGate(t *testing.T) {
	srv := setupServer(t, true)
	body := gin.H{"url": "https://example.com"}

	w := srv.do(t, http.MethodPost, "/api/v1/links", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/links", body, map[string]string{"Authorization": "Bearer granted-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/links", body, map[string]string{"X-API-Key": "static-key"})
	assert.Equal(t, http.StatusCreated, w.Code)

	registration := gin.H{
		"email":          "jane@example.com",
		"name":           "Jane",
		"mobileNo":       "9999999999",
		"githubUsername": "jane",
		"rollNo":         "42",
		"accessCode":     "code",
	}
	w = srv.do(t, http.MethodPost, "/api/v1/auth", registration, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[handler.TokenResponse](t, w)
	assert.Equal(t, "granted-token", token.AccessToken)

	w = srv.do(t, http.MethodPost, "/api/v1/links", body, map[string]string{"Authorization": "Bearer granted-token"})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Редирект не требует токена
	w = srv.do(t, http.MethodGet, "/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestAuthenticate_Errors проверяет ответы при отказе и недоступности сервиса аутентификации
func TestAuthenticate_Errors(t *testing.T) {
	srv := setupServer(t, true)
	registration := gin.H{
		"email":          "jane@example.com",
		"name":           "Jane",
		"mobileNo":       "9999999999",
		"githubUsername": "jane",
		"rollNo":         "42",
		"accessCode":     "code",
	}

	w := srv.do(t, http.MethodPost, "/api/v1/auth", gin.H{"email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	srv.auth.token = nil
	srv.auth.err = fmt.Errorf("%w: failed to get client credentials", remote.ErrRejected)
	w = srv.do(t, http.MethodPost, "/api/v1/auth", registration, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, w).Message, "failed to get client credentials")

	srv.auth.err = fmt.Errorf("%w: connection refused", remote.ErrTransport)
	w = srv.do(t, http.MethodPost, "/api/v1/auth", registration, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

// TestHealthAndIndex проверяет служебные эндпоинты
func TestHealthAndIndex(t *testing.T) {
	srv := setupServer(t, true)

	w := srv.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = srv.do(t, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "snaplink")
}
