package eventstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// mongoEventDoc mirrors one row of the Postgres `events` table, stored as a
// single document per event in a shared `events` collection.
type mongoEventDoc struct {
	GlobalSeq     int64     `bson:"global_seq"`
	StreamID      string    `bson:"stream_id"`
	StreamVersion int       `bson:"stream_version"`
	EventType     string    `bson:"event_type"`
	Payload       []byte    `bson:"payload"`
	CommittedAt   time.Time `bson:"committed_at"`
}

type mongoSnapshotDoc struct {
	AggregateID   string    `bson:"_id"`
	AggregateType string    `bson:"aggregate_type"`
	Version       int       `bson:"version"`
	Payload       []byte    `bson:"payload"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type mongoCounterDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

// MongoStore is a secondary EventStore backend, collection-per-concern
// instead of collection-per-stream: one `events` collection holding every
// stream's rows (indexed on stream_id+stream_version and on global_seq), one
// `snapshots` collection keyed by aggregate id, and a `counters` collection
// supplying the global sequence via findAndModify increment.
type MongoStore struct {
	events    *mongo.Collection
	snapshots *mongo.Collection
	counters  *mongo.Collection
	registry  *cqrs.EventDataRegistry

	subMu       chan struct{}
	subscribers map[string]subscriberEntry
}

// NewMongoStore wires a MongoStore against an already-connected database.
// Callers are expected to have created the indexes below once at startup:
//
//	db.events.createIndex({stream_id: 1, stream_version: 1}, {unique: true})
//	db.events.createIndex({global_seq: 1})
//	db.events.createIndex({event_type: 1, global_seq: 1})
func NewMongoStore(db *mongo.Database, registry *cqrs.EventDataRegistry) *MongoStore {
	return &MongoStore{
		events:      db.Collection("events"),
		snapshots:   db.Collection("snapshots"),
		counters:    db.Collection("counters"),
		registry:    registry,
		subMu:       make(chan struct{}, 1),
		subscribers: make(map[string]subscriberEntry),
	}
}

var _ EventStore = (*MongoStore)(nil)

func (m *MongoStore) lockSubs()   { m.subMu <- struct{}{} }
func (m *MongoStore) unlockSubs() { <-m.subMu }

func (m *MongoStore) AppendToStream(ctx context.Context, streamID string, events []cqrs.EventMessage, expectedVersion int) (int, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}

	current, err := m.CurrentVersion(ctx, streamID)
	if err != nil {
		return 0, err
	}

	if current != expectedVersion {
		return 0, &cqrs.VersionConflictError{StreamID: streamID, Expected: expectedVersion, Actual: current}
	}

	serializer := cqrs.NewJSONEventSerializer(m.registry)
	committedAt := time.Now()
	version := expectedVersion
	docs := make([]interface{}, 0, len(events))
	stored := make([]StoredEvent, 0, len(events))

	for _, event := range events {
		version++
		payload, err := serializer.Serialize(event)
		if err != nil {
			return 0, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to serialize event", err)
		}

		globalSeq, err := m.nextGlobalSeq(ctx)
		if err != nil {
			return 0, err
		}

		docs = append(docs, mongoEventDoc{
			GlobalSeq:     globalSeq,
			StreamID:      streamID,
			StreamVersion: version,
			EventType:     event.EventType(),
			Payload:       payload,
			CommittedAt:   committedAt,
		})
		stored = append(stored, StoredEvent{EventMessage: event, StreamID: streamID, GlobalSequence: globalSeq, CommittedAt: committedAt})
	}

	if _, err := m.events.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, &cqrs.VersionConflictError{StreamID: streamID, Expected: expectedVersion, Actual: current}
		}
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to insert events", err)
	}

	m.publish(stored)
	return version, nil
}

func (m *MongoStore) nextGlobalSeq(ctx context.Context) (int64, error) {
	var doc mongoCounterDoc
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "global_seq"},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to allocate global sequence", err)
	}
	return doc.Value, nil
}

func (m *MongoStore) publish(events []StoredEvent) {
	m.lockSubs()
	defer m.unlockSubs()
	for _, sub := range m.subscribers {
		for _, e := range events {
			if !sub.filter.matches(e.EventType()) {
				continue
			}
			m.safeNotify(sub.handler, e)
		}
	}
}

func (m *MongoStore) safeNotify(handler PushHandler, event StoredEvent) {
	defer func() { _ = recover() }()
	handler(event)
}

func (m *MongoStore) ReadStream(ctx context.Context, streamID string, fromVersion int, limit int) ([]StoredEvent, error) {
	findOpts := options.Find().SetSort(bson.M{"stream_version": 1})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := m.events.Find(ctx, bson.M{"stream_id": streamID, "stream_version": bson.M{"$gt": fromVersion}}, findOpts)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read stream", err)
	}
	defer cursor.Close(ctx)

	return m.decodeCursor(ctx, cursor)
}

func (m *MongoStore) ReadAllFrom(ctx context.Context, fromGlobal int64, limit int) ([]StoredEvent, error) {
	findOpts := options.Find().SetSort(bson.M{"global_seq": 1})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := m.events.Find(ctx, bson.M{"global_seq": bson.M{"$gt": fromGlobal}}, findOpts)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read global stream", err)
	}
	defer cursor.Close(ctx)

	return m.decodeCursor(ctx, cursor)
}

func (m *MongoStore) ReadByType(ctx context.Context, eventType string, fromGlobal int64, limit int) ([]StoredEvent, error) {
	findOpts := options.Find().SetSort(bson.M{"global_seq": 1})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := m.events.Find(ctx, bson.M{"event_type": eventType, "global_seq": bson.M{"$gt": fromGlobal}}, findOpts)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read events by type", err)
	}
	defer cursor.Close(ctx)

	return m.decodeCursor(ctx, cursor)
}

func (m *MongoStore) decodeCursor(ctx context.Context, cursor *mongo.Cursor) ([]StoredEvent, error) {
	serializer := cqrs.NewJSONEventSerializer(m.registry)
	var out []StoredEvent
	for cursor.Next(ctx) {
		var doc mongoEventDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to decode event document", err)
		}
		event, err := serializer.Deserialize(doc.Payload)
		if err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to deserialize event", err)
		}
		out = append(out, StoredEvent{EventMessage: event, StreamID: doc.StreamID, GlobalSequence: doc.GlobalSeq, CommittedAt: doc.CommittedAt})
	}
	return out, cursor.Err()
}

func (m *MongoStore) CurrentVersion(ctx context.Context, streamID string) (int, error) {
	var doc struct {
		StreamVersion int `bson:"stream_version"`
	}
	err := m.events.FindOne(ctx,
		bson.M{"stream_id": streamID},
		options.FindOne().SetSort(bson.M{"stream_version": -1}),
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read current version", err)
	}
	return doc.StreamVersion, nil
}

func (m *MongoStore) SaveSnapshot(ctx context.Context, snapshot cqrs.SnapshotData) error {
	payload, err := marshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	_, err = m.snapshots.UpdateOne(ctx,
		bson.M{"_id": snapshot.AggregateID()},
		bson.M{"$set": mongoSnapshotDoc{
			AggregateID:   snapshot.AggregateID(),
			AggregateType: snapshot.AggregateType(),
			Version:       snapshot.Version(),
			Payload:       payload,
			UpdatedAt:     time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to save snapshot", err)
	}
	return nil
}

func (m *MongoStore) GetLatestSnapshot(ctx context.Context, aggregateID string) (cqrs.SnapshotData, error) {
	var doc mongoSnapshotDoc
	err := m.snapshots.FindOne(ctx, bson.M{"_id": aggregateID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to load snapshot", err)
	}
	return unmarshalSnapshot(doc.AggregateID, doc.AggregateType, doc.Version, doc.Payload)
}

func (m *MongoStore) Subscribe(filter SubscriptionFilter, handler PushHandler) string {
	m.lockSubs()
	defer m.unlockSubs()
	id := newSubscriptionID()
	m.subscribers[id] = subscriberEntry{filter: filter, handler: handler}
	return id
}

func (m *MongoStore) Unsubscribe(subscriptionID string) {
	m.lockSubs()
	defer m.unlockSubs()
	delete(m.subscribers, subscriptionID)
}

// Archive deletes events older than olderThanDays in batches of 1000 after
// copying them into an `events_archive` collection. Run against a replica
// that can absorb the extra IO; this is not meant for the primary.
func (m *MongoStore) Archive(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	archive := m.events.Database().Collection("events_archive")
	total := 0

	for {
		cursor, err := m.events.Find(ctx,
			bson.M{"committed_at": bson.M{"$lt": cutoff}},
			options.Find().SetLimit(1000),
		)
		if err != nil {
			return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to scan events for archival", err)
		}

		var batch []interface{}
		var ids []int64
		for cursor.Next(ctx) {
			var doc mongoEventDoc
			if err := cursor.Decode(&doc); err != nil {
				cursor.Close(ctx)
				return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to decode event for archival", err)
			}
			batch = append(batch, doc)
			ids = append(ids, doc.GlobalSeq)
		}
		cursor.Close(ctx)

		if len(batch) == 0 {
			break
		}

		if _, err := archive.InsertMany(ctx, batch); err != nil {
			return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to copy events to archive", err)
		}
		if _, err := m.events.DeleteMany(ctx, bson.M{"global_seq": bson.M{"$in": ids}}); err != nil {
			return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to delete archived events", err)
		}

		total += len(batch)
		if len(batch) < 1000 {
			break
		}
	}

	return total, nil
}
