package listing

import (
	"context"

	"github.com/goliatone/go-record-catalog/cache"
	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/cursor"
	"github.com/rs/zerolog"
)

// ListRecordsMethod names listing entries in cache keys.
const ListRecordsMethod = "ListRecords"

// Querier runs an uncached listing query.
type Querier interface {
	Execute(ctx context.Context, params catalog.FilterParams, cur cursor.Cursor) ([]catalog.Record, error)
}

// Page is one listing result with the token that resumes after it.
type Page struct {
	Records    []catalog.Record `json:"data"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// Service decorates a Querier with cache-aside reads.
type Service struct {
	querier       Querier
	cache         *cache.Service
	keySerializer cache.KeySerializer
	codec         cursor.Codec
	logger        zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithCursorCodec sets the codec used for tokens, and with it the default limit.
func WithCursorCodec(codec cursor.Codec) Option {
	return func(s *Service) {
		s.codec = codec
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service that caches querier results in cacheService.
func New(querier Querier, cacheService *cache.Service, keySerializer cache.KeySerializer, opts ...Option) *Service {
	s := &Service{
		querier:       querier,
		cache:         cacheService,
		keySerializer: keySerializer,
		codec:         cursor.NewCodec(cursor.DefaultLimit),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultLimit returns the page size used when no token is given.
func (s *Service) DefaultLimit() int {
	return s.codec.DefaultLimit()
}

// GetPage returns the records matching params that follow token, ascending by id.
// An empty token selects the first page with the default limit.
func (s *Service) GetPage(ctx context.Context, params catalog.FilterParams, token string) ([]catalog.Record, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if token == "" {
		token = s.codec.Encode(cursor.Cursor{})
	}

	key := s.keySerializer.SerializeKey(ListRecordsMethod, params, token)
	return cache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) ([]catalog.Record, error) {
		cur, err := s.codec.Decode(token)
		if err != nil {
			return nil, err
		}
		s.logger.Debug().Str("key", key).Msg("listing cache miss")
		return s.querier.Execute(ctx, params, cur)
	})
}

// List returns a page along with the token for the page after it.
func (s *Service) List(ctx context.Context, params catalog.FilterParams, token string) (Page, error) {
	records, err := s.GetPage(ctx, params, token)
	if err != nil {
		return Page{}, err
	}

	limit := s.codec.DefaultLimit()
	if token != "" {
		if cur, err := s.codec.Decode(token); err == nil {
			limit = cur.Limit
		}
	}

	return Page{Records: records, NextCursor: NextToken(records, limit)}, nil
}

// NextToken derives the token following page. It is empty when the page is
// empty, which marks the end of the listing.
func NextToken(page []catalog.Record, limit int) string {
	if len(page) == 0 {
		return ""
	}
	return cursor.Encode(cursor.Cursor{Last: page[len(page)-1].ID, Limit: limit})
}
