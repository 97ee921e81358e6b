package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Ключи контекста gin
const (
	ctxAuthenticated  = "auth_validated"
	ctxCredentialName = "auth_credential_name"
)

const grantedTokenName = "evaluation-token"

// TokenGateConfig конфигурация доступа к management API
type TokenGateConfig struct {
	// StaticKeys API ключи из конфигурации: ключ -> описание
	StaticKeys map[string]string
	// HeaderName имя заголовка для ключа (по умолчанию: X-API-Key)
	HeaderName string
	// Optional пропускает запросы без учётных данных (AUTH_REQUIRED=false)
	Optional bool
	Now      func() time.Time
}

// TokenGate пропускает запросы с выданным bearer-токеном или статическим API ключом
type TokenGate struct {
	config TokenGateConfig
	mu     sync.RWMutex
	tokens map[string]time.Time // token -> expiresAt
	latest string
}

func NewTokenGate(config TokenGateConfig) *TokenGate {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TokenGate{
		config: config,
		tokens: make(map[string]time.Time),
	}
}

// Grant регистрирует токен, полученный от сервиса аутентификации
func (g *TokenGate) Grant(token string, expiresAt time.Time) {
	if token == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.config.Now()
	for t, exp := range g.tokens {
		if !exp.After(now) {
			delete(g.tokens, t)
		}
	}

	g.tokens[token] = expiresAt
	g.latest = token
}

// Latest возвращает последний выданный и ещё действующий токен или пустую строку
func (g *TokenGate) Latest() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.latest == "" {
		return ""
	}
	if exp, ok := g.tokens[g.latest]; !ok || !exp.After(g.config.Now()) {
		return ""
	}
	return g.latest
}

// Validate checks a credential against static keys (constant time) and granted tokens.
func (g *TokenGate) Validate(credential string) (string, bool) {
	for key, name := range g.config.StaticKeys {
		if subtle.ConstantTimeCompare([]byte(credential), []byte(key)) == 1 {
			return name, true
		}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	exp, ok := g.tokens[credential]
	if !ok || !exp.After(g.config.Now()) {
		return "", false
	}
	return grantedTokenName, true
}

// Middleware возвращает Gin middleware handler для проверки доступа
func (g *TokenGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := extractCredential(c, g.config.HeaderName)

		if credential == "" {
			if g.config.Optional {
				c.Set(ctxAuthenticated, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authentication required: pass a token via Authorization: Bearer, X-API-Key or api_key",
			})
			return
		}

		name, ok := g.Validate(credential)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token is invalid or expired",
			})
			return
		}

		c.Set(ctxAuthenticated, true)
		c.Set(ctxCredentialName, name)

		c.Next()
	}
}

// extractCredential ищет ключ в заголовке, затем в query, затем в Authorization
func extractCredential(c *gin.Context, header string) string {
	if v := c.GetHeader(header); v != "" {
		return v
	}
	if v := c.Query("api_key"); v != "" {
		return v
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// CredentialName возвращает описание ключа или "evaluation-token" для выданного токена
func CredentialName(c *gin.Context) string {
	return c.GetString(ctxCredentialName)
}

// IsAuthenticated проверяет, прошёл ли запрос проверку доступа
func IsAuthenticated(c *gin.Context) bool {
	return c.GetBool(ctxAuthenticated)
}
