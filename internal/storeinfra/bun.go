// Package storeinfra implements the record and order stores on MongoDB and on
// SQL databases through bun.
package storeinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/query"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// SQL drivers accepted by OpenBun.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type recordRow struct {
	bun.BaseModel `bun:"table:records,alias:r"`

	ID        string    `bun:"id,pk"`
	Artist    string    `bun:"artist,notnull"`
	Album     string    `bun:"album,notnull"`
	Price     float64   `bun:"price,notnull"`
	Qty       int       `bun:"qty,notnull"`
	Format    string    `bun:"format,notnull"`
	Category  string    `bun:"category,notnull"`
	MBID      string    `bun:"mbid"`
	TrackList []string  `bun:"track_list,type:text"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (r recordRow) record() catalog.Record {
	return catalog.Record{
		ID:        r.ID,
		Artist:    r.Artist,
		Album:     r.Album,
		Price:     r.Price,
		Qty:       r.Qty,
		Format:    catalog.Format(r.Format),
		Category:  catalog.Category(r.Category),
		MBID:      r.MBID,
		TrackList: r.TrackList,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newRecordRow(r catalog.Record) recordRow {
	return recordRow{
		ID:        r.ID,
		Artist:    r.Artist,
		Album:     r.Album,
		Price:     r.Price,
		Qty:       r.Qty,
		Format:    string(r.Format),
		Category:  string(r.Category),
		MBID:      r.MBID,
		TrackList: r.TrackList,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID        string    `bun:"id,pk"`
	RecordID  string    `bun:"record_id,notnull"`
	Quantity  int       `bun:"quantity,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// OpenBun opens a bun database for driver and dsn.
func OpenBun(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite, "sqlite3":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// every connection to :memory: is a separate database
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// CreateSchema creates the record and order tables and their indexes.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{(*recordRow)(nil), (*orderRow)(nil)}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*recordRow)(nil)).
		Index("records_artist_album_format_idx").
		Unique().
		IfNotExists().
		Column("artist", "album", "format").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create record index: %w", err)
	}
	return nil
}

// BunRecordStore keeps records in a SQL table through bun. New ids are
// UUIDv7 strings, which sort in creation order.
type BunRecordStore struct {
	db  bun.IDB
	now func() time.Time
}

func NewBunRecordStore(db bun.IDB) *BunRecordStore {
	return &BunRecordStore{db: db, now: time.Now}
}

func (s *BunRecordStore) Find(ctx context.Context, cond query.Condition, sort query.Sort, limit int) ([]catalog.Record, error) {
	criteria, err := bunCriteria(cond)
	if err != nil {
		return nil, err
	}
	column, err := sqlColumn(sort.Field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", query.ErrInvalidSortKey, err)
	}
	criteria = append(criteria, orderBy(column))
	if limit > 0 {
		criteria = append(criteria, limitTo(limit))
	}

	var rows []recordRow
	q := s.db.NewSelect().Model(&rows)
	for _, c := range criteria {
		q = c(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	records := make([]catalog.Record, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

func (s *BunRecordStore) FindByID(ctx context.Context, id string) (catalog.Record, error) {
	record, err := s.FindOne(ctx, query.Eq{Field: catalog.FieldID, Value: id})
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Record{}, fmt.Errorf("record %s: %w", id, catalog.ErrNotFound)
	}
	return record, err
}

func (s *BunRecordStore) FindOne(ctx context.Context, cond query.Condition) (catalog.Record, error) {
	criteria, err := bunCriteria(cond)
	if err != nil {
		return catalog.Record{}, err
	}
	criteria = append(criteria, orderBy("id"), limitTo(1))

	var row recordRow
	q := s.db.NewSelect().Model(&row)
	for _, c := range criteria {
		q = c(q)
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Record{}, catalog.ErrNotFound
		}
		return catalog.Record{}, fmt.Errorf("select record: %w", err)
	}
	return row.record(), nil
}

func (s *BunRecordStore) Insert(ctx context.Context, record catalog.Record) (catalog.Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return catalog.Record{}, fmt.Errorf("generate id: %w", err)
	}
	now := s.now().UTC()
	record.ID = id.String()
	record.CreatedAt = now
	record.UpdatedAt = now

	row := newRecordRow(record)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return catalog.Record{}, fmt.Errorf("%w: %v", catalog.ErrConflict, err)
		}
		return catalog.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return row.record(), nil
}

func (s *BunRecordStore) Replace(ctx context.Context, record catalog.Record) (catalog.Record, error) {
	record.UpdatedAt = s.now().UTC()
	row := newRecordRow(record)

	res, err := s.db.NewUpdate().Model(&row).ExcludeColumn("created_at").WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.Record{}, fmt.Errorf("%w: %v", catalog.ErrConflict, err)
		}
		return catalog.Record{}, fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Record{}, fmt.Errorf("record %s: %w", record.ID, catalog.ErrNotFound)
	}
	return row.record(), nil
}

// BunOrderStore keeps orders in a SQL table through bun.
type BunOrderStore struct {
	db bun.IDB
}

func NewBunOrderStore(db bun.IDB) *BunOrderStore {
	return &BunOrderStore{db: db}
}

func (s *BunOrderStore) Insert(ctx context.Context, order catalog.Order) (catalog.Order, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return catalog.Order{}, fmt.Errorf("generate id: %w", err)
	}
	row := orderRow{
		ID:        id.String(),
		RecordID:  order.RecordID,
		Quantity:  order.Quantity,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return catalog.Order{}, fmt.Errorf("insert order: %w", err)
	}

	order.ID = row.ID
	order.CreatedAt = row.CreatedAt
	return order, nil
}

func sqlColumn(field string) (string, error) {
	switch field {
	case catalog.FieldID, catalog.FieldArtist, catalog.FieldAlbum, catalog.FieldFormat, catalog.FieldCategory:
		return field, nil
	default:
		return "", fmt.Errorf("unknown field %q", field)
	}
}

func orderBy(column string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("? ASC", bun.Ident(column))
	}
}

func limitTo(n int) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(n)
	}
}

// bunCriteria turns a condition tree into select criteria. The root And
// becomes one WHERE per child; nested nodes render as SQL fragments.
func bunCriteria(cond query.Condition) ([]repository.SelectCriteria, error) {
	var roots []query.Condition
	switch c := cond.(type) {
	case nil:
		return nil, nil
	case query.And:
		roots = c
	default:
		roots = []query.Condition{c}
	}

	criteria := make([]repository.SelectCriteria, 0, len(roots)+2)
	for _, child := range roots {
		fragment, args, err := sqlWhere(child)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where(fragment, args...)
		})
	}
	return criteria, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func sqlWhere(cond query.Condition) (string, []any, error) {
	switch c := cond.(type) {
	case nil:
		return "1 = 1", nil, nil
	case query.And:
		return sqlJoin(c, "AND", "1 = 1")
	case query.Or:
		return sqlJoin(c, "OR", "1 = 0")
	case query.Eq:
		column, err := sqlColumn(c.Field)
		if err != nil {
			return "", nil, err
		}
		return "? = ?", []any{bun.Ident(column), c.Value}, nil
	case query.ContainsFold:
		column, err := sqlColumn(c.Field)
		if err != nil {
			return "", nil, err
		}
		pattern := "%" + likeEscaper.Replace(strings.ToLower(c.Value)) + "%"
		return "LOWER(?) LIKE ? ESCAPE '!'", []any{bun.Ident(column), pattern}, nil
	case query.After:
		column, err := sqlColumn(c.Field)
		if err != nil {
			return "", nil, err
		}
		return "? > ?", []any{bun.Ident(column), c.Value}, nil
	default:
		return "", nil, fmt.Errorf("unsupported condition %T", cond)
	}
}

func sqlJoin(children []query.Condition, op, empty string) (string, []any, error) {
	if len(children) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(children))
	var args []any
	for _, child := range children {
		fragment, childArgs, err := sqlWhere(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+fragment+")")
		args = append(args, childArgs...)
	}
	return strings.Join(parts, " "+op+" "), args, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
