package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/allumi/attribution-api/internal/core/ports"
)

// APIKeyValidator resolves the bearer key sent by checkout integrations to
// the owning marketer account, checking the cache before PostgreSQL.
type APIKeyValidator struct {
	DB           *sql.DB
	Cache        ports.CacheRepository
	validateStmt *sql.Stmt
	initOnce     sync.Once
}

func NewAPIKeyValidator(db *sql.DB, cache ports.CacheRepository) *APIKeyValidator {
	v := &APIKeyValidator{
		DB:    db,
		Cache: cache,
	}
	v.initOnce.Do(v.initStatements)
	return v
}

func (v *APIKeyValidator) initStatements() {
	var err error
	v.validateStmt, err = v.DB.Prepare(`SELECT "userId" FROM api_keys WHERE token = $1 AND revoked = false LIMIT 1`)
	if err != nil {
		panic("failed to prepare validate api key statement: " + err.Error())
	}
}

// KeyFromHeaders extracts the API key from the Authorization bearer header,
// falling back to X-API-Key.
func KeyFromHeaders(authorization, apiKeyHeader string) (string, error) {
	if strings.HasPrefix(authorization, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer ")); token != "" {
			return token, nil
		}
	}
	if apiKeyHeader != "" {
		return apiKeyHeader, nil
	}
	return "", errors.New("api key not found")
}

// ValidateKey returns the userId owning the key. Cache hits skip PostgreSQL;
// misses warm the cache off the request path.
func (v *APIKeyValidator) ValidateKey(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.New("api key is required")
	}

	cacheKey := "apikey:" + token
	if cachedUserID, err := v.Cache.Get(ctx, cacheKey); err == nil && cachedUserID != "" {
		return cachedUserID, nil
	}

	var userID string
	if err := v.validateStmt.QueryRowContext(ctx, token).Scan(&userID); err == nil {
		go func() {
			_ = v.Cache.Set(context.Background(), cacheKey, userID, 300)
		}()
		return userID, nil
	}

	return "", errors.New("invalid or revoked api key")
}
