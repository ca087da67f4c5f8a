package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/reqview/internal/domain"
)

var ErrEmptySecret = errors.New("jwt secret is empty")

// Validator проверяет пользовательские токены Supabase (HS256, общий JWT secret проекта).
type Validator struct {
	secret []byte
}

func NewValidator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Validator{secret: []byte(secret)}, nil
}

// VerifyToken реализует интерфейс auth.TokenValidator.
func (v *Validator) VerifyToken(tokenStr string) (*domain.SupabaseClaims, error) {
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	tokenStr = strings.TrimSpace(tokenStr)

	token, err := jwt.ParseWithClaims(tokenStr, &domain.SupabaseClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*domain.SupabaseClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}

	return claims, nil
}

// KeyInfo — то, что удалось узнать об API-ключе без проверки подписи.
type KeyInfo struct {
	Opaque    bool // Ключ нового формата (sb_publishable_..., sb_secret_...), не JWT
	Role      string
	Ref       string
	ExpiresAt time.Time
}

func (k *KeyInfo) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// InspectKey разбирает SUPABASE_KEY без проверки подписи: секрета у клиента нет,
// подпись проверит сам сервис. Нужен только для диагностики при старте.
func InspectKey(key string) (*KeyInfo, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("inspect key: key is empty")
	}
	if strings.Count(key, ".") != 2 {
		return &KeyInfo{Opaque: true}, nil
	}

	var claims domain.SupabaseClaims
	if _, _, err := jwt.NewParser().ParseUnverified(key, &claims); err != nil {
		return nil, fmt.Errorf("inspect key: %w", err)
	}

	info := &KeyInfo{Role: claims.Role, Ref: claims.Ref}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
