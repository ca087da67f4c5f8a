package postgres

/*
Файл request_repo.go — прямой источник данных через Postgres проекта Supabase.
Строит ту же форму строк, что и встраивание PostgREST: колонки Request плюс
объект "Employee" (согласующий) и массив "RequestLog".
*/

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/reqview/internal/domain"
)

var ErrUnsupportedQuery = errors.New("postgres: query has no SQL equivalent")

// requestsWithApproverAndLogsSQL — SQL-аналог RequestsWithApproverAndLogs.
const requestsWithApproverAndLogsSQL = `
SELECT to_jsonb(r) || jsonb_build_object(
         'Employee', (SELECT to_jsonb(e) FROM "Employee" e WHERE e."Staff_ID" = r."Approver_ID"),
         'RequestLog', COALESCE(
             (SELECT jsonb_agg(to_jsonb(l) ORDER BY l."Log_ID")
                FROM "RequestLog" l WHERE l."Request_ID" = r."Request_ID"),
             '[]'::jsonb)
       ) AS row
  FROM "Request" r
 ORDER BY r."Request_ID"`

type RequestRepo struct {
	db *sql.DB
}

// NewRequestRepo открывает пул соединений. Реальное подключение проверяется через Ping.
func NewRequestRepo(connString string, maxConns int) (*RequestRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &RequestRepo{db: db}, nil
}

// NewRequestRepoFromDB — для тестов и уже открытых пулов.
func NewRequestRepoFromDB(db *sql.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// Ping проверяет доступность базы при старте
func (r *RequestRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *RequestRepo) Close() error {
	return r.db.Close()
}

// Fetch реализует engine.Fetcher для фиксированного запроса.
func (r *RequestRepo) Fetch(ctx context.Context, q domain.Query) (*domain.Response, error) {
	if q != domain.RequestsWithApproverAndLogs {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedQuery, q)
	}

	rows, err := r.db.QueryContext(ctx, requestsWithApproverAndLogsSQL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query requests: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	data := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan request: %w", err)
		}
		data = append(data, json.RawMessage(raw))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	total := int64(len(data))
	return &domain.Response{Data: data, Status: http.StatusOK, Count: &total}, nil
}
