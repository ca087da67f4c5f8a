package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Query описывает одно чтение из PostgREST: таблица и выражение select со встраиванием связей.
type Query struct {
	Table  string
	Select string
}

// RequestsWithApproverAndLogs — единственный запрос CLI: все заявки,
// согласующий сотрудник (через Request_Approver_ID_fkey) и вся история RequestLog.
var RequestsWithApproverAndLogs = Query{
	Table:  "Request",
	Select: "*, Employee!Request_Approver_ID_fkey(*), RequestLog(*)",
}

// CleanSelect убирает пробелы вне кавычек, как это делают клиенты Supabase.
func (q Query) CleanSelect() string {
	var b strings.Builder
	quoted := false
	for _, r := range q.Select {
		switch {
		case r == '"':
			quoted = !quoted
			b.WriteRune(r)
		case !quoted && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (q Query) String() string {
	return q.Table + "?select=" + q.CleanSelect()
}

// APIError — тело ошибки PostgREST.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Response — обертка ответа: либо строки (Data), либо Error.
// Сама обертка всегда не-nil, поэтому успех определяется только через OK().
type Response struct {
	Data   []json.RawMessage `json:"data"`
	Status int               `json:"status"`
	Count  *int64            `json:"count,omitempty"`
	Error  *APIError         `json:"error,omitempty"`
}

// OK — единственный признак успешного запроса
func (r *Response) OK() bool {
	return r != nil && r.Error == nil && r.Status > 0 && r.Status < 400
}

// Requests декодирует строки в типизированные заявки.
func (r *Response) Requests() ([]Request, error) {
	out := make([]Request, 0, len(r.Data))
	for i, raw := range r.Data {
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		out = append(out, req)
	}
	return out, nil
}
