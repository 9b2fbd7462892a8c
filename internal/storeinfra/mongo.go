package storeinfra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the Mongo stores.
const (
	RecordsCollection = "records"
	OrdersCollection  = "orders"
)

type recordDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Artist    string             `bson:"artist"`
	Album     string             `bson:"album"`
	Price     float64            `bson:"price"`
	Qty       int                `bson:"qty"`
	Format    string             `bson:"format"`
	Category  string             `bson:"category"`
	MBID      string             `bson:"mbid,omitempty"`
	TrackList []string           `bson:"trackList,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d recordDocument) record() catalog.Record {
	return catalog.Record{
		ID:        d.ID.Hex(),
		Artist:    d.Artist,
		Album:     d.Album,
		Price:     d.Price,
		Qty:       d.Qty,
		Format:    catalog.Format(d.Format),
		Category:  catalog.Category(d.Category),
		MBID:      d.MBID,
		TrackList: d.TrackList,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func newRecordDocument(r catalog.Record, id primitive.ObjectID) recordDocument {
	return recordDocument{
		ID:        id,
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

type orderDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	RecordID  primitive.ObjectID `bson:"recordId"`
	Quantity  int                `bson:"quantity"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// ConnectMongo opens a client for uri and checks it with a ping.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// MongoRecordStore keeps records in a MongoDB collection. Ids are ObjectIDs
// rendered as hex, which sort in creation order.
type MongoRecordStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRecordStore(db *mongo.Database) *MongoRecordStore {
	return &MongoRecordStore{collection: db.Collection(RecordsCollection), now: time.Now}
}

// EnsureIndexes creates the unique (artist, album, format) index.
func (s *MongoRecordStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: catalog.FieldArtist, Value: 1},
			{Key: catalog.FieldAlbum, Value: 1},
			{Key: catalog.FieldFormat, Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("artist_album_format"),
	})
	if err != nil {
		return fmt.Errorf("create record index: %w", err)
	}
	return nil
}

func (s *MongoRecordStore) Find(ctx context.Context, cond query.Condition, sort query.Sort, limit int) ([]catalog.Record, error) {
	filter, err := mongoFilter(cond)
	if err != nil {
		return nil, err
	}
	sortField, err := mongoField(sort.Field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", query.ErrInvalidSortKey, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []recordDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}

	records := make([]catalog.Record, len(docs))
	for i, d := range docs {
		records[i] = d.record()
	}
	return records, nil
}

func (s *MongoRecordStore) FindByID(ctx context.Context, id string) (catalog.Record, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("record %s: %w", id, catalog.ErrNotFound)
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoRecordStore) FindOne(ctx context.Context, cond query.Condition) (catalog.Record, error) {
	filter, err := mongoFilter(cond)
	if err != nil {
		return catalog.Record{}, err
	}
	return s.findOne(ctx, filter)
}

func (s *MongoRecordStore) findOne(ctx context.Context, filter bson.M) (catalog.Record, error) {
	var doc recordDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	if err := s.collection.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return catalog.Record{}, catalog.ErrNotFound
		}
		return catalog.Record{}, fmt.Errorf("mongo find one: %w", err)
	}
	return doc.record(), nil
}

func (s *MongoRecordStore) Insert(ctx context.Context, record catalog.Record) (catalog.Record, error) {
	now := s.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	doc := newRecordDocument(record, primitive.NewObjectID())
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return catalog.Record{}, fmt.Errorf("%w: %v", catalog.ErrConflict, err)
		}
		return catalog.Record{}, fmt.Errorf("mongo insert: %w", err)
	}
	return doc.record(), nil
}

func (s *MongoRecordStore) Replace(ctx context.Context, record catalog.Record) (catalog.Record, error) {
	oid, err := primitive.ObjectIDFromHex(record.ID)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("record %s: %w", record.ID, catalog.ErrNotFound)
	}
	record.UpdatedAt = s.now().UTC()

	doc := newRecordDocument(record, oid)
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return catalog.Record{}, fmt.Errorf("%w: %v", catalog.ErrConflict, err)
		}
		return catalog.Record{}, fmt.Errorf("mongo replace: %w", err)
	}
	if res.MatchedCount == 0 {
		return catalog.Record{}, fmt.Errorf("record %s: %w", record.ID, catalog.ErrNotFound)
	}
	return doc.record(), nil
}

// MongoOrderStore keeps orders in a MongoDB collection.
type MongoOrderStore struct {
	collection *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{collection: db.Collection(OrdersCollection)}
}

func (s *MongoOrderStore) Insert(ctx context.Context, order catalog.Order) (catalog.Order, error) {
	recordID, err := primitive.ObjectIDFromHex(order.RecordID)
	if err != nil {
		return catalog.Order{}, fmt.Errorf("%w: record id %q", catalog.ErrInvalid, order.RecordID)
	}

	doc := orderDocument{
		ID:        primitive.NewObjectID(),
		RecordID:  recordID,
		Quantity:  order.Quantity,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return catalog.Order{}, fmt.Errorf("mongo insert order: %w", err)
	}

	order.ID = doc.ID.Hex()
	order.CreatedAt = doc.CreatedAt
	return order, nil
}

func mongoField(field string) (string, error) {
	switch field {
	case catalog.FieldID:
		return "_id", nil
	case catalog.FieldArtist, catalog.FieldAlbum, catalog.FieldFormat, catalog.FieldCategory:
		return field, nil
	default:
		return "", fmt.Errorf("unknown field %q", field)
	}
}

// mongoValue converts id values to ObjectIDs and passes other fields through.
func mongoValue(field, value string) (any, error) {
	if field != "_id" {
		return value, nil
	}
	oid, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an object id", query.ErrInvalidSortKey, value)
	}
	return oid, nil
}

// mongoFilter translates a condition tree into a MongoDB filter document.
func mongoFilter(cond query.Condition) (bson.M, error) {
	switch c := cond.(type) {
	case nil:
		return bson.M{}, nil
	case query.And:
		if len(c) == 0 {
			return bson.M{}, nil
		}
		children, err := mongoFilters(c)
		if err != nil {
			return nil, err
		}
		return bson.M{"$and": children}, nil
	case query.Or:
		if len(c) == 0 {
			return bson.M{"_id": bson.M{"$in": bson.A{}}}, nil
		}
		children, err := mongoFilters(c)
		if err != nil {
			return nil, err
		}
		return bson.M{"$or": children}, nil
	case query.Eq:
		field, err := mongoField(c.Field)
		if err != nil {
			return nil, err
		}
		value, err := mongoValue(field, c.Value)
		if err != nil {
			return nil, err
		}
		return bson.M{field: value}, nil
	case query.ContainsFold:
		field, err := mongoField(c.Field)
		if err != nil {
			return nil, err
		}
		return bson.M{field: primitive.Regex{Pattern: regexp.QuoteMeta(c.Value), Options: "i"}}, nil
	case query.After:
		field, err := mongoField(c.Field)
		if err != nil {
			return nil, err
		}
		value, err := mongoValue(field, c.Value)
		if err != nil {
			return nil, err
		}
		return bson.M{field: bson.M{"$gt": value}}, nil
	default:
		return nil, fmt.Errorf("unsupported condition %T", cond)
	}
}

func mongoFilters[C ~[]query.Condition](conds C) (bson.A, error) {
	out := make(bson.A, 0, len(conds))
	for _, child := range conds {
		m, err := mongoFilter(child)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
