package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-record-catalog/api"
	"github.com/goliatone/go-record-catalog/cache"
	"github.com/goliatone/go-record-catalog/config"
	"github.com/goliatone/go-record-catalog/cursor"
	"github.com/goliatone/go-record-catalog/internal/cacheinfra"
	"github.com/goliatone/go-record-catalog/internal/storeinfra"
	"github.com/goliatone/go-record-catalog/listing"
	"github.com/goliatone/go-record-catalog/musicbrainz"
	"github.com/goliatone/go-record-catalog/query"
	"github.com/goliatone/go-record-catalog/records"
	"github.com/rs/zerolog"
)

// RecordStore is a backend that serves both listings and record writes.
type RecordStore interface {
	query.Finder
	records.RecordRepository
}

// Container wires the catalogue from a config: the cache backend, the
// record store, the services on top of them and the HTTP handler.
type Container struct {
	config        config.Config
	logger        zerolog.Logger
	cacheStore    cache.Store
	cacheService  *cache.Service
	keySerializer cache.KeySerializer
	recordStore   RecordStore
	orderStore    records.OrderRepository
	tracks        records.TrackLister
	listing       *listing.Service
	records       *records.Service
	orders        *records.OrderService
	pinger        api.Pinger
	closers       []func(context.Context) error
}

// NewContainer builds every component described by cfg. Connections opened
// before a failure are closed again.
func NewContainer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{config: cfg, logger: logger}

	if err := c.initCache(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	if err := c.initStore(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.initServices()
	return c, nil
}

// NewContainerWithDefaults builds a container from the default configuration:
// an in-process cache and a SQLite store.
func NewContainerWithDefaults(ctx context.Context) (*Container, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, *cfg, zerolog.Nop())
}

func (c *Container) initCache(ctx context.Context) error {
	cc := c.config.Cache

	switch cc.Backend {
	case "redis":
		rc := cacheinfra.DefaultRedisConfig()
		rc.Addr = cc.Redis.Addr
		rc.Password = cc.Redis.Password
		rc.DB = cc.Redis.DB
		store, err := cacheinfra.OpenRedisStore(rc)
		if err != nil {
			return err
		}
		if err := store.Ping(ctx); err != nil {
			c.logger.Warn().Err(err).Str("addr", rc.Addr).Msg("redis not reachable, listings will bypass the cache")
		}
		c.cacheStore = store
		c.closers = append(c.closers, func(context.Context) error { return store.Close() })
	default:
		sc := cacheinfra.DefaultConfig()
		sc.Capacity = cc.Memory.Capacity
		sc.NumShards = cc.Memory.NumShards
		sc.EvictionPercentage = cc.Memory.EvictionPercentage
		sc.EvictionInterval = cc.Memory.EvictionInterval
		sc.TTL = cc.TTL
		store, err := cacheinfra.NewSturdycStore(sc)
		if err != nil {
			return err
		}
		c.cacheStore = store
	}

	svc, err := cache.Config{
		TTL:       cc.TTL,
		Namespace: cc.Namespace,
		Codec:     cc.Codec,
		Coalesce:  cc.Coalesce,
	}.NewService(c.cacheStore, c.logger)
	if err != nil {
		return err
	}
	c.cacheService = svc
	c.keySerializer = cache.NewKeySerializer(cc.Namespace)
	return nil
}

func (c *Container) initStore(ctx context.Context) error {
	sc := c.config.Store

	switch sc.Driver {
	case "mongo":
		client, db, err := storeinfra.ConnectMongo(ctx, sc.URI, sc.Database)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client.Disconnect)

		recordStore := storeinfra.NewMongoRecordStore(db)
		if sc.Migrate {
			if err := recordStore.EnsureIndexes(ctx); err != nil {
				return err
			}
		}
		c.recordStore = recordStore
		c.orderStore = storeinfra.NewMongoOrderStore(db)
		c.pinger = api.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) })
	case storeinfra.DriverSQLite, storeinfra.DriverPostgres:
		db, err := storeinfra.OpenBun(sc.Driver, sc.URI)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func(context.Context) error { return db.Close() })

		if sc.Migrate {
			if err := storeinfra.CreateSchema(ctx, db); err != nil {
				return err
			}
		}
		c.recordStore = storeinfra.NewBunRecordStore(db)
		c.orderStore = storeinfra.NewBunOrderStore(db)
		c.pinger = api.PingFunc(db.PingContext)
	default:
		return fmt.Errorf("unsupported store driver %q", sc.Driver)
	}

	c.logger.Info().Str("driver", sc.Driver).Msg("record store ready")
	return nil
}

func (c *Container) initServices() {
	mb := c.config.MusicBrainz
	if mb.Enabled {
		c.tracks = musicbrainz.NewClient(musicbrainz.Config{
			BaseURL:          mb.BaseURL,
			UserAgent:        mb.UserAgent,
			Timeout:          mb.Timeout,
			FailureThreshold: mb.FailureThreshold,
			OpenTimeout:      mb.OpenTimeout,
		}, musicbrainz.WithLogger(c.logger))
	}

	c.listing = listing.New(
		query.NewExecutor(c.recordStore, c.logger),
		c.cacheService,
		c.keySerializer,
		listing.WithCursorCodec(cursor.NewCodec(c.config.Pagination.DefaultLimit)),
		listing.WithLogger(c.logger),
	)
	c.records = records.NewService(c.recordStore, c.tracks, c.logger)
	c.orders = records.NewOrderService(c.orderStore, c.recordStore, c.logger)
}

// CacheService returns the singleton cache service instance.
func (c *Container) CacheService() *cache.Service {
	return c.cacheService
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}

func (c *Container) RecordStore() RecordStore {
	return c.recordStore
}

func (c *Container) Listing() *listing.Service {
	return c.listing
}

func (c *Container) Records() *records.Service {
	return c.records
}

func (c *Container) Orders() *records.OrderService {
	return c.orders
}

// Handler returns the HTTP handler over the container's services.
func (c *Container) Handler() *api.Handler {
	return api.NewHandler(c.listing, c.records, c.orders, c.pinger)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
