package eventstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// PostgresStore is the primary EventStore backend: an append-only `events`
// table with a per-stream version and a global, strictly monotonic
// `global_sequence`, plus a `snapshots` table holding one row per aggregate.
//
// Schema (created by migrations, not by this package):
//
//	CREATE TABLE events (
//	    global_sequence BIGSERIAL PRIMARY KEY,
//	    stream_id       TEXT NOT NULL,
//	    stream_version  INT NOT NULL,
//	    event_id        TEXT NOT NULL,
//	    event_type      TEXT NOT NULL,
//	    aggregate_type  TEXT NOT NULL,
//	    payload         JSONB NOT NULL,
//	    metadata        JSONB NOT NULL,
//	    committed_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (stream_id, stream_version)
//	);
//	CREATE TABLE snapshots (
//	    aggregate_id   TEXT PRIMARY KEY,
//	    aggregate_type TEXT NOT NULL,
//	    version        INT NOT NULL,
//	    payload        JSONB NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	pool         *pgxpool.Pool
	registry     *cqrs.EventDataRegistry
	versionCache *cqrs.LRUCache[string, int]

	subMu       chan struct{} // guards subscribers without blocking appends
	subscribers map[string]subscriberEntry
}

// NewPostgresStore wraps an already-configured pool. cacheSize bounds the
// in-process current-version cache (0 picks a sane default).
func NewPostgresStore(pool *pgxpool.Pool, registry *cqrs.EventDataRegistry, cacheSize int) *PostgresStore {
	if cacheSize <= 0 {
		cacheSize = 10_000
	}
	return &PostgresStore{
		pool:         pool,
		registry:     registry,
		versionCache: cqrs.NewLRUCache[string, int](cacheSize),
		subMu:        make(chan struct{}, 1),
		subscribers:  make(map[string]subscriberEntry),
	}
}

var _ EventStore = (*PostgresStore)(nil)

func (p *PostgresStore) lockSubs() {
	p.subMu <- struct{}{}
}

func (p *PostgresStore) unlockSubs() {
	<-p.subMu
}

func (p *PostgresStore) AppendToStream(ctx context.Context, streamID string, events []cqrs.EventMessage, expectedVersion int) (int, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(stream_version), 0) FROM events WHERE stream_id = $1`,
		streamID,
	).Scan(&current)
	if err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read current stream version", err)
	}

	if current != expectedVersion {
		return 0, &cqrs.VersionConflictError{StreamID: streamID, Expected: expectedVersion, Actual: current}
	}

	serializer := cqrs.NewJSONEventSerializer(p.registry)
	batch := &pgx.Batch{}
	version := expectedVersion
	stored := make([]StoredEvent, 0, len(events))
	committedAt := time.Now()

	for _, event := range events {
		version++
		payload, err := serializer.Serialize(event)
		if err != nil {
			return 0, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to serialize event", err)
		}

		batch.Queue(
			`INSERT INTO events (stream_id, stream_version, event_id, event_type, aggregate_type, payload, metadata, committed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			streamID, version, event.EventID(), event.EventType(), event.AggregateType(), payload, event.Metadata(), committedAt,
		)
		stored = append(stored, StoredEvent{EventMessage: event, StreamID: streamID, CommittedAt: committedAt})
	}

	br := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to append events", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to close batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to commit transaction", err)
	}

	p.versionCache.Put(streamID, version)
	p.publish(stored)

	return version, nil
}

func (p *PostgresStore) publish(events []StoredEvent) {
	p.lockSubs()
	defer p.unlockSubs()
	for _, sub := range p.subscribers {
		for _, e := range events {
			if !sub.filter.matches(e.EventType()) {
				continue
			}
			p.safeNotify(sub.handler, e)
		}
	}
}

func (p *PostgresStore) safeNotify(handler PushHandler, event StoredEvent) {
	defer func() { _ = recover() }()
	handler(event)
}

func (p *PostgresStore) ReadStream(ctx context.Context, streamID string, fromVersion int, limit int) ([]StoredEvent, error) {
	query := `SELECT global_sequence, stream_version, payload, committed_at FROM events
	          WHERE stream_id = $1 AND stream_version > $2 ORDER BY stream_version ASC`
	args := []interface{}{streamID, fromVersion}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read stream", err)
	}
	defer rows.Close()

	return p.scanRows(rows, streamID)
}

func (p *PostgresStore) ReadAllFrom(ctx context.Context, fromGlobal int64, limit int) ([]StoredEvent, error) {
	query := `SELECT global_sequence, stream_id, payload, committed_at FROM events
	          WHERE global_sequence > $1 ORDER BY global_sequence ASC`
	args := []interface{}{fromGlobal}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read global stream", err)
	}
	defer rows.Close()

	return p.scanGlobalRows(rows)
}

func (p *PostgresStore) ReadByType(ctx context.Context, eventType string, fromGlobal int64, limit int) ([]StoredEvent, error) {
	query := `SELECT global_sequence, stream_id, payload, committed_at FROM events
	          WHERE event_type = $1 AND global_sequence > $2 ORDER BY global_sequence ASC`
	args := []interface{}{eventType, fromGlobal}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read events by type", err)
	}
	defer rows.Close()

	return p.scanGlobalRows(rows)
}

func (p *PostgresStore) scanRows(rows pgx.Rows, streamID string) ([]StoredEvent, error) {
	serializer := cqrs.NewJSONEventSerializer(p.registry)
	var out []StoredEvent
	for rows.Next() {
		var globalSeq int64
		var version int
		var payload []byte
		var committedAt time.Time
		if err := rows.Scan(&globalSeq, &version, &payload, &committedAt); err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to scan event row", err)
		}
		event, err := serializer.Deserialize(payload)
		if err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to deserialize event", err)
		}
		out = append(out, StoredEvent{EventMessage: event, StreamID: streamID, GlobalSequence: globalSeq, CommittedAt: committedAt})
	}
	return out, rows.Err()
}

func (p *PostgresStore) scanGlobalRows(rows pgx.Rows) ([]StoredEvent, error) {
	serializer := cqrs.NewJSONEventSerializer(p.registry)
	var out []StoredEvent
	for rows.Next() {
		var globalSeq int64
		var streamID string
		var payload []byte
		var committedAt time.Time
		if err := rows.Scan(&globalSeq, &streamID, &payload, &committedAt); err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to scan event row", err)
		}
		event, err := serializer.Deserialize(payload)
		if err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to deserialize event", err)
		}
		out = append(out, StoredEvent{EventMessage: event, StreamID: streamID, GlobalSequence: globalSeq, CommittedAt: committedAt})
	}
	return out, rows.Err()
}

func (p *PostgresStore) CurrentVersion(ctx context.Context, streamID string) (int, error) {
	if v, ok := p.versionCache.Get(streamID); ok {
		return v, nil
	}

	var version int
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(stream_version), 0) FROM events WHERE stream_id = $1`,
		streamID,
	).Scan(&version)
	if err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read current version", err)
	}

	p.versionCache.Put(streamID, version)
	return version, nil
}

func (p *PostgresStore) SaveSnapshot(ctx context.Context, snapshot cqrs.SnapshotData) error {
	data, err := marshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO snapshots (aggregate_id, aggregate_type, version, payload, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (aggregate_id) DO UPDATE
		 SET aggregate_type = EXCLUDED.aggregate_type, version = EXCLUDED.version,
		     payload = EXCLUDED.payload, updated_at = now()`,
		snapshot.AggregateID(), snapshot.AggregateType(), snapshot.Version(), data,
	)
	if err != nil {
		return cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to save snapshot", err)
	}
	return nil
}

func (p *PostgresStore) GetLatestSnapshot(ctx context.Context, aggregateID string) (cqrs.SnapshotData, error) {
	var aggregateType string
	var version int
	var data []byte

	err := p.pool.QueryRow(ctx,
		`SELECT aggregate_type, version, payload FROM snapshots WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&aggregateType, &version, &data)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to load snapshot", err)
	}

	return unmarshalSnapshot(aggregateID, aggregateType, version, data)
}

func (p *PostgresStore) Subscribe(filter SubscriptionFilter, handler PushHandler) string {
	p.lockSubs()
	defer p.unlockSubs()
	id := newSubscriptionID()
	p.subscribers[id] = subscriberEntry{filter: filter, handler: handler}
	return id
}

func (p *PostgresStore) Unsubscribe(subscriptionID string) {
	p.lockSubs()
	defer p.unlockSubs()
	delete(p.subscribers, subscriptionID)
}

// Archive moves events older than olderThanDays into an `events_archive`
// table in batches of 1000, one transaction per batch, so a large archival
// run never holds one long-lived transaction against the hot table.
func (p *PostgresStore) Archive(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	total := 0

	for {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to begin archive transaction", err)
		}

		tag, err := tx.Exec(ctx, `
			WITH moved AS (
				SELECT global_sequence FROM events
				WHERE committed_at < $1
				ORDER BY global_sequence
				LIMIT 1000
			)
			INSERT INTO events_archive
			SELECT * FROM events WHERE global_sequence IN (SELECT global_sequence FROM moved)
		`, cutoff)
		if err != nil {
			tx.Rollback(ctx)
			return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to copy events to archive", err)
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM events WHERE committed_at < $1 AND global_sequence IN (
				SELECT global_sequence FROM events_archive
			)
		`, cutoff)
		if err != nil {
			tx.Rollback(ctx)
			return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to delete archived events", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return total, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to commit archive batch", err)
		}

		moved := int(tag.RowsAffected())
		total += moved
		if moved < 1000 {
			break
		}
	}

	return total, nil
}

func marshalSnapshot(snapshot cqrs.SnapshotData) ([]byte, error) {
	serializer := cqrs.NewJSONEventSerializer(nil)
	wrapped := cqrs.NewBaseEventMessage("snapshot", snapshot.AggregateID(), snapshot.AggregateType(), snapshot.Version(), snapshot.Data())
	return serializer.Serialize(wrapped)
}

func unmarshalSnapshot(aggregateID, aggregateType string, version int, data []byte) (cqrs.SnapshotData, error) {
	serializer := cqrs.NewJSONEventSerializer(nil)
	event, err := serializer.Deserialize(data)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to deserialize snapshot", err)
	}
	return cqrs.NewBaseSnapshotData(aggregateID, aggregateType, version, event.EventData()), nil
}
