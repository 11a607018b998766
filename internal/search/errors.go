package search

import (
	"context"
	"errors"
)

var (
	// ErrIndexUnavailable is returned when the search cluster cannot answer
	ErrIndexUnavailable = errors.New("search index unavailable")

	// ErrBackendPanic wraps a panic recovered from a backend
	ErrBackendPanic = errors.New("search backend panicked")

	ErrClusterRequired  = errors.New("search cluster is required")
	ErrDatabaseRequired = errors.New("database is required")
	ErrBackendRequired  = errors.New("relational backend is required")
)

// Backend serves one page of search results for a normalized request.
// variants is empty in listing mode.
type Backend interface {
	Search(ctx context.Context, params Params, variants []string) (Result, error)
}

// Suggester serves autocomplete suggestions
type Suggester interface {
	Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error)
}

// Cluster is the subset of search cluster operations the engine needs.
type Cluster interface {
	// Search runs a query body against index and returns the raw response body.
	Search(ctx context.Context, index string, body []byte) ([]byte, error)
	// Health returns the cluster status ("green", "yellow" or "red").
	Health(ctx context.Context) (string, error)
	// ResolveAlias returns the concrete indices behind alias.
	ResolveAlias(ctx context.Context, alias string) ([]string, error)
}
