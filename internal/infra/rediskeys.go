package infra

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "reqview"

	RedisKeyQueryPrefix = RedisNamespace + ":query:"
)

// QueryCacheKey строит ключ кэша ответа: reqview:query:<sha256(source|table?select=...)>.
// Источник входит в ключ, чтобы ответы REST и прямого SQL не смешивались.
func QueryCacheKey(source, query string) string {
	sum := sha256.Sum256([]byte(source + "|" + query))
	return RedisKeyQueryPrefix + hex.EncodeToString(sum[:16])
}
