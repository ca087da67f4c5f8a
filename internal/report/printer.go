// Package report печатает результат выборки: одна запись — одна строка stdout.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/xela07ax/reqview/internal/connectors"
	"github.com/xela07ax/reqview/internal/domain"
)

// ErrFetchFailed возвращается после печати строки об ошибке.
var ErrFetchFailed = errors.New("error fetching data")

type Printer struct {
	out     io.Writer
	errLine *color.Color
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:     out,
		errLine: color.New(color.FgRed),
	}
}

// Print выводит строки ответа. Успех проверяется по полю ошибки (Response.OK),
// а не по самому факту наличия ответа: обертка приходит всегда.
func (p *Printer) Print(resp *domain.Response) error {
	if !resp.OK() {
		return p.printFailure(resp)
	}

	for i, row := range resp.Data {
		var buf bytes.Buffer
		if err := json.Compact(&buf, row); err != nil {
			return fmt.Errorf("report: row %d is not valid json: %w", i, err)
		}
		buf.WriteByte('\n')
		if _, err := p.out.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("report: write row %d: %w", i, err)
		}
	}
	return nil
}

func (p *Printer) printFailure(resp *domain.Response) error {
	status := 0
	msg := ""
	if resp != nil {
		status = resp.Status
		if resp.Error != nil {
			msg = resp.Error.Error()
		}
	}

	line := fmt.Sprintf("Error fetching data: %d", status)
	if msg != "" {
		line += " " + msg
	}
	// тело ответа шлюза бывает многострочным (HTML), строка ошибки всегда одна
	line = strings.Join(strings.Fields(line), " ")
	if _, err := p.errLine.Fprintln(p.out, line); err != nil {
		return fmt.Errorf("report: write failure line: %w", err)
	}
	return fmt.Errorf("%w: status %d", ErrFetchFailed, status)
}

// ResponseFromError превращает сбой выборки в ответ с ошибкой, чтобы напечатать его тем же путем.
// Статус берется из ответа сервиса, если он был, иначе 0.
func ResponseFromError(err error) *domain.Response {
	status := 0
	var sErr *connectors.ServerError
	if errors.As(err, &sErr) {
		status = sErr.Status
	}
	return &domain.Response{Status: status, Error: &domain.APIError{Message: err.Error()}}
}
