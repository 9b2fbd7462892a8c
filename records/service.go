// Package records implements the write side of the catalogue: creating and
// updating records and placing orders.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/query"
	"github.com/rs/zerolog"
)

// RecordRepository persists records.
type RecordRepository interface {
	FindByID(ctx context.Context, id string) (catalog.Record, error)
	FindOne(ctx context.Context, cond query.Condition) (catalog.Record, error)
	Insert(ctx context.Context, record catalog.Record) (catalog.Record, error)
	Replace(ctx context.Context, record catalog.Record) (catalog.Record, error)
}

// OrderRepository persists orders.
type OrderRepository interface {
	Insert(ctx context.Context, order catalog.Order) (catalog.Order, error)
}

// TrackLister looks up the track titles of a release.
type TrackLister interface {
	TrackList(ctx context.Context, mbid string) ([]string, error)
}

// CreateRecordInput holds the fields accepted when creating a record.
type CreateRecordInput struct {
	Artist   string           `json:"artist"`
	Album    string           `json:"album"`
	Price    float64          `json:"price"`
	Qty      int              `json:"qty"`
	Format   catalog.Format   `json:"format"`
	Category catalog.Category `json:"category"`
	MBID     string           `json:"mbid,omitempty"`
}

// UpdateRecordInput patches a record. Nil fields are left unchanged.
type UpdateRecordInput struct {
	Artist   *string           `json:"artist,omitempty"`
	Album    *string           `json:"album,omitempty"`
	Price    *float64          `json:"price,omitempty"`
	Qty      *int              `json:"qty,omitempty"`
	Format   *catalog.Format   `json:"format,omitempty"`
	Category *catalog.Category `json:"category,omitempty"`
	MBID     *string           `json:"mbid,omitempty"`
}

func (in UpdateRecordInput) apply(r *catalog.Record) {
	if in.Artist != nil {
		r.Artist = *in.Artist
	}
	if in.Album != nil {
		r.Album = *in.Album
	}
	if in.Price != nil {
		r.Price = *in.Price
	}
	if in.Qty != nil {
		r.Qty = *in.Qty
	}
	if in.Format != nil {
		r.Format = *in.Format
	}
	if in.Category != nil {
		r.Category = *in.Category
	}
	if in.MBID != nil {
		r.MBID = *in.MBID
	}
}

// Service creates and updates records.
type Service struct {
	records RecordRepository
	tracks  TrackLister
	logger  zerolog.Logger
}

// NewService returns a Service. tracks may be nil, in which case records are
// stored without a track list.
func NewService(records RecordRepository, tracks TrackLister, logger zerolog.Logger) *Service {
	return &Service{records: records, tracks: tracks, logger: logger}
}

// Get returns the record with id.
func (s *Service) Get(ctx context.Context, id string) (catalog.Record, error) {
	return s.records.FindByID(ctx, id)
}

// Create stores a new record. A record with the same artist, album and
// format already present yields catalog.ErrConflict.
func (s *Service) Create(ctx context.Context, in CreateRecordInput) (catalog.Record, error) {
	record := catalog.Record{
		Artist:   in.Artist,
		Album:    in.Album,
		Price:    in.Price,
		Qty:      in.Qty,
		Format:   in.Format,
		Category: in.Category,
		MBID:     in.MBID,
	}
	if err := record.Validate(); err != nil {
		return catalog.Record{}, err
	}

	duplicate := query.And{
		query.Eq{Field: catalog.FieldArtist, Value: record.Artist},
		query.Eq{Field: catalog.FieldAlbum, Value: record.Album},
		query.Eq{Field: catalog.FieldFormat, Value: string(record.Format)},
	}
	_, err := s.records.FindOne(ctx, duplicate)
	switch {
	case err == nil:
		return catalog.Record{}, fmt.Errorf("%w: record already exists with the same artist, album and format", catalog.ErrConflict)
	case !errors.Is(err, catalog.ErrNotFound):
		return catalog.Record{}, fmt.Errorf("check duplicate record: %w", err)
	}

	if record.MBID != "" {
		tracks, err := s.trackList(ctx, record.MBID)
		if err != nil {
			return catalog.Record{}, err
		}
		record.TrackList = tracks
	}

	s.logger.Info().
		Str("artist", record.Artist).
		Str("album", record.Album).
		Str("format", string(record.Format)).
		Msg("creating record")

	return s.records.Insert(ctx, record)
}

// Update applies in to the record with id. When both the stored and the new
// MBID are set and differ, the track list is fetched again.
func (s *Service) Update(ctx context.Context, id string, in UpdateRecordInput) (catalog.Record, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		return catalog.Record{}, err
	}

	if record.MBID != "" && in.MBID != nil && *in.MBID != "" && *in.MBID != record.MBID {
		tracks, err := s.trackList(ctx, *in.MBID)
		if err != nil {
			return catalog.Record{}, err
		}
		record.TrackList = tracks
	}

	in.apply(&record)
	if err := record.Validate(); err != nil {
		return catalog.Record{}, err
	}

	s.logger.Info().Str("id", id).Msg("updating record")
	return s.records.Replace(ctx, record)
}

func (s *Service) trackList(ctx context.Context, mbid string) ([]string, error) {
	if s.tracks == nil {
		return nil, nil
	}
	tracks, err := s.tracks.TrackList(ctx, mbid)
	if err != nil {
		return nil, fmt.Errorf("fetch track list for %s: %w", mbid, err)
	}
	return tracks, nil
}

// CreateOrderInput holds the fields accepted when placing an order.
type CreateOrderInput struct {
	RecordID string `json:"recordId"`
	Quantity int    `json:"quantity"`
}

// OrderService places orders for existing records.
type OrderService struct {
	orders  OrderRepository
	records RecordRepository
	logger  zerolog.Logger
}

func NewOrderService(orders OrderRepository, records RecordRepository, logger zerolog.Logger) *OrderService {
	return &OrderService{orders: orders, records: records, logger: logger}
}

// Create stores an order. The record must exist.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (catalog.Order, error) {
	order := catalog.Order{RecordID: in.RecordID, Quantity: in.Quantity}
	if err := order.Validate(); err != nil {
		return catalog.Order{}, err
	}

	if _, err := s.records.FindByID(ctx, order.RecordID); err != nil {
		return catalog.Order{}, err
	}

	s.logger.Info().
		Str("record_id", order.RecordID).
		Int("quantity", order.Quantity).
		Msg("creating order")

	return s.orders.Insert(ctx, order)
}
