package connectors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidURL = errors.New("invalid supabase url")
	ErrEmptyKey   = errors.New("supabase key is empty")
)

// ThrottleError — сервис попросил подождать (429/503 с Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// ServerError — 5xx от шлюза Supabase, имеет смысл повторить.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("postgrest: server error [%d]: %s", e.Status, e.Body)
}

// IsRetryable — сетевые сбои, троттлинг и 5xx повторяем, остальное нет.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var tErr *ThrottleError
	var sErr *ServerError
	if errors.As(err, &tErr) || errors.As(err, &sErr) {
		return true
	}
	var pErr *PermanentError
	return !errors.As(err, &pErr)
}

// PermanentError помечает ошибки, которые повтор не исправит (битый ответ, неверный запрос).
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string { return e.Cause.Error() }

func (e *PermanentError) Unwrap() error { return e.Cause }
