package cache

import (
	"context"
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// ErrUnavailable marks transport level failures reported by a Store.
// Service absorbs them: a failed read is a miss and a failed write is skipped.
var ErrUnavailable = errors.New("cache unavailable")

// Store is the byte oriented cache backend. Get reports a miss with ok=false
// and a nil error. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature GetOrFetch expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Service runs cache-aside reads against a Store. Entries are written once
// with the configured TTL and never updated in place.
type Service struct {
	store    Store
	codec    Codec
	ttl      time.Duration
	logger   zerolog.Logger
	inflight *xsync.MapOf[string, *call]
}

// Option customizes a Service.
type Option func(*Service)

// WithCodec sets the codec used to serialize cached values. JSON is the default.
func WithCodec(codec Codec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithLogger sets the logger used to report degraded cache operations.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCoalescing makes concurrent misses on the same key share one fetch.
// Without it every caller that misses runs its own fetch.
func WithCoalescing() Option {
	return func(s *Service) {
		s.inflight = xsync.NewMapOf[string, *call]()
	}
}

// NewService creates a Service storing entries in store for ttl.
func NewService(store Store, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:  store,
		codec:  JSONCodec{},
		ttl:    ttl,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime given to new entries.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// lookup reads key from the store. Any store error is logged and reported as a miss.
func (s *Service) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	return data, ok
}

// save writes data under key. Any store error is logged and dropped.
func (s *Service) save(ctx context.Context, key string, data []byte) {
	if err := s.store.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// GetOrFetch returns the value cached under key, or calls fetchFn on a miss
// and caches its result. Cache failures never reach the caller; errors from
// fetchFn are returned unchanged and nothing is cached for them.
func GetOrFetch[T any](ctx context.Context, s *Service, key string, fetchFn FetchFn[T]) (T, error) {
	if data, ok := s.lookup(ctx, key); ok {
		var cached T
		err := s.codec.Unmarshal(data, &cached)
		if err == nil {
			s.logger.Debug().Str("key", key).Msg("cache hit")
			return cached, nil
		}
		s.logger.Warn().Err(err).Str("key", key).Msg("cached entry could not be decoded, treating as miss")
	}

	if s.inflight != nil {
		return fetchShared(ctx, s, key, fetchFn)
	}
	return fetchAndStore(ctx, s, key, fetchFn)
}

func fetchAndStore[T any](ctx context.Context, s *Service, key string, fetchFn FetchFn[T]) (T, error) {
	value, err := fetchFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	data, err := s.codec.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("value could not be encoded for cache")
		return value, nil
	}

	s.save(ctx, key, data)
	return value, nil
}

// call is a fetch in progress shared by callers missing on the same key.
type call struct {
	done  chan struct{}
	value any
	err   error
}

func fetchShared[T any](ctx context.Context, s *Service, key string, fetchFn FetchFn[T]) (T, error) {
	c := &call{done: make(chan struct{})}
	leader, loaded := s.inflight.LoadOrStore(key, c)
	if loaded {
		select {
		case <-leader.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
		if leader.err != nil {
			if isContextErr(leader.err) && ctx.Err() == nil {
				s.logger.Debug().Err(leader.err).Str("key", key).Msg("shared fetch abandoned by its caller, fetching again")
				return fetchShared(ctx, s, key, fetchFn)
			}
			var zero T
			return zero, leader.err
		}
		if value, ok := leader.value.(T); ok {
			return value, nil
		}
		return fetchAndStore(ctx, s, key, fetchFn)
	}

	defer func() {
		s.inflight.Delete(key)
		close(c.done)
	}()

	value, err := fetchAndStore(ctx, s, key, fetchFn)
	c.value, c.err = value, err
	return value, err
}

// isContextErr reports whether err came from the leader's own context ending.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
