package domain

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims — полезная нагрузка JWT, который выдает Supabase (API-ключи и токены пользователей).
type SupabaseClaims struct {
	Role  string `json:"role"`          // anon, authenticated, service_role
	Ref   string `json:"ref,omitempty"` // ref проекта, есть только у API-ключей
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
