package query

import (
	"context"
	"fmt"

	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/cursor"
	"github.com/rs/zerolog"
)

// SearchFields are matched by the free text query.
var SearchFields = []string{catalog.FieldArtist, catalog.FieldAlbum, catalog.FieldCategory}

// Finder is the read side of a record store.
type Finder interface {
	// Find returns at most limit records matching cond, ascending by sort.Field.
	Find(ctx context.Context, cond Condition, sort Sort, limit int) ([]catalog.Record, error)
}

// Build translates filter parameters and a decoded cursor into a condition.
// The result is always an And; clauses are only added for set values.
func Build(params catalog.FilterParams, cur cursor.Cursor) Condition {
	cond := And{}

	if cur.Last != "" {
		cond = append(cond, After{Field: catalog.FieldID, Value: cur.Last})
	}

	if params.Query != "" {
		search := make(Or, 0, len(SearchFields))
		for _, field := range SearchFields {
			search = append(search, ContainsFold{Field: field, Value: params.Query})
		}
		cond = append(cond, search)
	}

	exact := []struct {
		field string
		value string
	}{
		{catalog.FieldArtist, params.Artist},
		{catalog.FieldAlbum, params.Album},
		{catalog.FieldFormat, string(params.Format)},
		{catalog.FieldCategory, string(params.Category)},
	}
	for _, e := range exact {
		if e.value != "" {
			cond = append(cond, Eq{Field: e.field, Value: e.value})
		}
	}

	return cond
}

// Executor runs listing queries against a Finder.
type Executor struct {
	finder Finder
	logger zerolog.Logger
}

func NewExecutor(finder Finder, logger zerolog.Logger) *Executor {
	return &Executor{finder: finder, logger: logger}
}

// Execute returns the page of records after cur.Last that match params,
// ascending by id. An empty page is returned as an empty, non nil slice.
func (e *Executor) Execute(ctx context.Context, params catalog.FilterParams, cur cursor.Cursor) ([]catalog.Record, error) {
	limit := cur.Limit
	if limit <= 0 {
		limit = cursor.DefaultLimit
	}

	e.logger.Debug().
		Str("last", cur.Last).
		Int("limit", limit).
		Msg("executing record query")

	records, err := e.finder.Find(ctx, Build(params, cur), Sort{Field: catalog.FieldID}, limit)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	if records == nil {
		records = []catalog.Record{}
	}
	return records, nil
}
