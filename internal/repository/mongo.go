package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tableside/internal/models"
)

const (
	OrdersCollection   = "orders"
	HistoryCollection  = "order_history"
	CountersCollection = "counters"

	orderNumberCounter = "orderNumber"
)

// orderDocument is the stored shape of a live order.
type orderDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	models.Order `bson:",inline"`
}

type historyDocument struct {
	ID                   primitive.ObjectID `bson:"_id"`
	models.HistoryRecord `bson:",inline"`
}

// MongoStore implements Store over a replica set. Change streams and
// multi-document transactions both require one.
type MongoStore struct {
	db       *mongo.Database
	orders   *mongo.Collection
	history  *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:       db,
		orders:   db.Collection(OrdersCollection),
		history:  db.Collection(HistoryCollection),
		counters: db.Collection(CountersCollection),
		now:      time.Now,
	}
}

func (s *MongoStore) Live(ctx context.Context) ([]models.Order, error) {
	return findLive(ctx, s.orders, Filter{})
}

func (s *MongoStore) Get(ctx context.Context, id string) (models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Order{}, ErrNotFound
	}
	var raw bson.M
	err = s.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	return normalizeOrderDocument(raw)
}

func (s *MongoStore) Create(ctx context.Context, order models.Order) (models.Order, error) {
	number, err := s.nextOrderNumber(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("assign order number: %w", err)
	}

	o := order.Clone()
	o.OrderNumber = number
	if o.Timestamp.IsZero() {
		o.Timestamp = s.now().UTC()
	}
	o.Version = 1

	doc := orderDocument{ID: primitive.NewObjectID(), Order: o}
	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		return models.Order{}, err
	}
	o.ID = doc.ID.Hex()
	return o, nil
}

func (s *MongoStore) nextOrderNumber(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": orderNumberCounter},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, pre Precondition, patch Patch) error {
	return updateLive(ctx, s.orders, id, pre, patch)
}

// InBatch runs fn inside a multi-document transaction. The driver may retry
// fn on transient errors, so fn must not carry state across attempts.
func (s *MongoStore) InBatch(ctx context.Context, fn func(ctx context.Context, b Batch) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, &mongoBatch{store: s})
	})
	return err
}

func (s *MongoStore) Watch(ctx context.Context, notify func()) error {
	stream, err := s.orders.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer stream.Close(context.Background())

	notify()
	for stream.Next(ctx) {
		notify()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("change stream: %w", err)
	}
	return errors.New("change stream closed")
}

func (s *MongoStore) History(ctx context.Context, q HistoryQuery) ([]models.HistoryRecord, int64, error) {
	filter := bson.M{}
	if q.TableKey != "" {
		filter["tableId"] = tableFilter(q.TableKey)
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	total, err := s.history.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	skip, ok := pageOffset(page, limit)
	if !ok || skip >= total {
		return []models.HistoryRecord{}, total, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "archivedAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	records := make([]models.HistoryRecord, 0, limit)
	for cursor.Next(ctx) {
		var doc historyDocument
		if err := cursor.Decode(&doc); err != nil {
			log.Println("[STORE] [WARN] skipping undecodable history record:", err)
			continue
		}
		rec := doc.HistoryRecord
		rec.ID = doc.ID.Hex()
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.db.Client().Ping(checkCtx, readpref.Primary())
}

type mongoBatch struct {
	store *MongoStore
}

func (b *mongoBatch) FindLive(ctx context.Context, filter Filter) ([]models.Order, error) {
	return findLive(ctx, b.store.orders, filter)
}

func (b *mongoBatch) PutHistory(ctx context.Context, record models.HistoryRecord) (string, error) {
	rec := record
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = b.store.now().UTC()
	}
	doc := historyDocument{ID: primitive.NewObjectID(), HistoryRecord: rec}
	if _, err := b.store.history.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID.Hex(), nil
}

func (b *mongoBatch) DeleteLive(ctx context.Context, id string, pre Precondition) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	filter := preconditionFilter(oid, pre)
	res, err := b.store.orders.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return missOrConflict(ctx, b.store.orders, oid)
	}
	return nil
}

func (b *mongoBatch) UpdateLive(ctx context.Context, id string, pre Precondition, patch Patch) error {
	return updateLive(ctx, b.store.orders, id, pre, patch)
}

func findLive(ctx context.Context, orders *mongo.Collection, filter Filter) ([]models.Order, error) {
	query := bson.M{}
	if filter.TableKey != "" {
		query["tableId"] = tableFilter(filter.TableKey)
	}
	if len(filter.IDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				ids = append(ids, oid)
			}
		}
		query["_id"] = bson.M{"$in": ids}
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: -1},
		{Key: "_id", Value: -1},
	})
	cursor, err := orders.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]models.Order, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		o, err := normalizeOrderDocument(raw)
		if err != nil {
			log.Println("[STORE] [WARN] skipping live order:", err)
			continue
		}
		out = append(out, o)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func updateLive(ctx context.Context, orders *mongo.Collection, id string, pre Precondition, patch Patch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Items != nil {
		set["items"] = patch.Items
	}
	if patch.TotalPrice != nil {
		set["totalPrice"] = *patch.TotalPrice
	}
	if patch.HelpRequested != nil {
		set["helpRequested"] = *patch.HelpRequested
	}
	update := bson.M{"$inc": bson.M{"version": 1}}
	if len(set) > 0 {
		update["$set"] = set
	}

	res, err := orders.UpdateOne(ctx, preconditionFilter(oid, pre), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return missOrConflict(ctx, orders, oid)
	}
	return nil
}

// preconditionFilter matches the order only in the state the caller read.
// Legacy documents may hold the status in any casing or no version at all.
func preconditionFilter(oid primitive.ObjectID, pre Precondition) bson.M {
	filter := bson.M{"_id": oid}
	if pre.Status != "" {
		filter["status"] = looseMatch(string(pre.Status))
	}
	if pre.Version != nil {
		if *pre.Version == 0 {
			filter["version"] = bson.M{"$in": bson.A{0, nil}}
		} else {
			filter["version"] = *pre.Version
		}
	}
	return filter
}

func missOrConflict(ctx context.Context, orders *mongo.Collection, oid primitive.ObjectID) error {
	n, err := orders.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// tableFilter matches a table key the way models.NormalizeTableID groups it:
// any casing, surrounding whitespace ignored, and empty or missing tableIds
// in the takeaway bucket.
func tableFilter(key string) interface{} {
	normalized := models.NormalizeTableID(key)
	if normalized == models.TakeawayTable {
		return bson.M{"$in": bson.A{looseMatch(models.TakeawayTable), blankPattern, nil}}
	}
	return looseMatch(normalized)
}

var blankPattern = primitive.Regex{Pattern: `^\s*$`}

// looseMatch matches value case-insensitively, ignoring surrounding
// whitespace.
func looseMatch(value string) primitive.Regex {
	return primitive.Regex{Pattern: `^\s*` + regexp.QuoteMeta(value) + `\s*$`, Options: "i"}
}
