package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoConnectTimeout = 20 * time.Second

// MongoStore implements store.Store with one MongoDB collection per store
// collection. Batches and Transact use multi-document transactions, which
// need a replica set or sharded cluster.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

type mongoDocument struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.Raw  `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore connects, pings the primary and returns the store.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb database is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(mongoConnectTimeout).
		SetConnectTimeout(mongoConnectTimeout)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", cfg.Database)
	return &MongoStore{
		client: client,
		db:     client.Database(cfg.Database),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureIndexes creates the owner/timestamp index on each collection.
func (s *MongoStore) EnsureIndexes(ctx context.Context, collections ...string) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "timestamp", Value: -1},
			{Key: "_id", Value: -1},
		},
		Options: options.Index().SetName("owner_timestamp"),
	}
	for _, c := range collections {
		if _, err := s.db.Collection(c).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", c, err)
		}
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var md mongoDocument
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromMongo(md)
}

func (s *MongoStore) Put(ctx context.Context, collection string, doc store.Document) error {
	filter, update, err := s.upsert(doc)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) BatchPut(ctx context.Context, writes []store.Write) error {
	writes = store.DedupeWrites(writes)
	if len(writes) == 0 {
		return nil
	}

	models := make(map[string][]mongo.WriteModel)
	var order []string
	for _, w := range writes {
		filter, update, err := s.upsert(w.Doc)
		if err != nil {
			return err
		}
		if _, ok := models[w.Collection]; !ok {
			order = append(order, w.Collection)
		}
		models[w.Collection] = append(models[w.Collection],
			mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		for _, c := range order {
			if _, err := s.db.Collection(c).BulkWrite(ctx, models[c], options.BulkWrite().SetOrdered(true)); err != nil {
				return fmt.Errorf("bulk write to %s: %w", c, err)
			}
		}
		return nil
	})
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MongoStore) BatchDelete(ctx context.Context, keys []store.Key) error {
	byCollection := groupKeys(keys)
	if len(byCollection) == 0 {
		return nil
	}
	return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		for c, ids := range byCollection {
			if _, err := s.db.Collection(c).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MongoStore) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	filter, opts := mongoFindQuery(q)
	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mds []mongoDocument
	if err := cursor.All(ctx, &mds); err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(mds))
	for _, md := range mds {
		doc, err := fromMongo(md)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// mongoFindQuery translates q into a filter and sort. Bounds are inclusive and
// the cursor continues strictly past the last (timestamp, _id) seen.
func mongoFindQuery(q store.Query) (bson.M, *options.FindOptions) {
	var and []bson.M
	if q.OwnerID != "" {
		and = append(and, bson.M{"owner_id": q.OwnerID})
	}
	if q.At != nil {
		and = append(and, bson.M{"timestamp": q.At.UTC()})
	} else {
		window := bson.M{}
		if q.From != nil {
			window["$gte"] = q.From.UTC()
		}
		if q.To != nil {
			window["$lte"] = q.To.UTC()
		}
		if len(window) > 0 {
			and = append(and, bson.M{"timestamp": window})
		}
	}

	dir, cmp := -1, "$lt"
	if q.Order == store.Ascending {
		dir, cmp = 1, "$gt"
	}
	if q.After != nil {
		ts := q.After.Timestamp.UTC()
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"timestamp": bson.M{cmp: ts}},
			bson.M{"timestamp": ts, "_id": bson.M{cmp: q.After.ID}},
		}})
	}

	filter := bson.M{}
	if len(and) > 0 {
		filter["$and"] = and
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: dir}, {Key: "_id", Value: dir}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return filter, opts
}

// Transact runs fn in a session transaction. Calls made with the context
// handed to fn join it; nested calls reuse the session already in ctx.
func (s *MongoStore) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

func (s *MongoStore) upsert(doc store.Document) (bson.M, bson.M, error) {
	var data bson.D
	if len(doc.Data) > 0 {
		if err := bson.UnmarshalExtJSON(doc.Data, false, &data); err != nil {
			return nil, nil, fmt.Errorf("document %s is not a JSON object: %w", doc.ID, err)
		}
	}
	now := s.now()
	return bson.M{"_id": doc.ID}, bson.M{
		"$set": bson.M{
			"owner_id":   doc.OwnerID,
			"timestamp":  doc.Timestamp.UTC(),
			"data":       data,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}, nil
}

func fromMongo(md mongoDocument) (*store.Document, error) {
	var data []byte
	if len(md.Data) > 0 {
		var err error
		data, err = bson.MarshalExtJSON(md.Data, false, false)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", md.ID, err)
		}
	}
	return &store.Document{
		ID:        md.ID,
		OwnerID:   md.OwnerID,
		Timestamp: md.Timestamp.UTC(),
		Data:      data,
		CreatedAt: md.CreatedAt.UTC(),
		UpdatedAt: md.UpdatedAt.UTC(),
	}, nil
}
