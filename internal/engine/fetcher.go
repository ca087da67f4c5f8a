package engine

import (
	"context"

	"github.com/xela07ax/reqview/internal/domain"
)

// Fetcher — единый контракт источника данных: REST-клиент, прямой SQL и декораторы над ними.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.Query) (*domain.Response, error)
}

// FetcherFunc позволяет использовать функцию как Fetcher.
type FetcherFunc func(ctx context.Context, q domain.Query) (*domain.Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, q domain.Query) (*domain.Response, error) {
	return f(ctx, q)
}
