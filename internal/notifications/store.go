package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
)

// DeliveryStore persists delivery logs so failed notices can be retried
type DeliveryStore interface {
	// Save inserts or replaces the log by id
	Save(ctx context.Context, log *DeliveryLog) error
	// ListRetryable returns failed logs, oldest first
	ListRetryable(ctx context.Context, limit int) ([]*DeliveryLog, error)
}

// MemoryDeliveryStore is a process-local DeliveryStore
type MemoryDeliveryStore struct {
	mu   sync.Mutex
	logs map[string]DeliveryLog
}

func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return &MemoryDeliveryStore{logs: make(map[string]DeliveryLog)}
}

func (s *MemoryDeliveryStore) Save(_ context.Context, log *DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[log.ID] = *log
	return nil
}

func (s *MemoryDeliveryStore) ListRetryable(_ context.Context, limit int) ([]*DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*DeliveryLog
	for _, l := range s.logs {
		if l.Status == StatusFailed {
			cp := l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns a copy of the log with the id
func (s *MemoryDeliveryStore) Get(id string) (DeliveryLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[id]
	return l, ok
}

// All returns every stored log
func (s *MemoryDeliveryStore) All() []DeliveryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeliveryLog, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l)
	}
	return out
}

// GormDeliveryStore keeps delivery logs in PostgreSQL
type GormDeliveryStore struct {
	db *gorm.DB
}

func NewGormDeliveryStore(db *gorm.DB) *GormDeliveryStore {
	return &GormDeliveryStore{db: db}
}

func (s *GormDeliveryStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DeliveryLog{}); err != nil {
		return fmt.Errorf("failed to migrate delivery logs: %w", err)
	}
	return nil
}

func (s *GormDeliveryStore) Save(ctx context.Context, log *DeliveryLog) error {
	if err := s.db.WithContext(ctx).Save(log).Error; err != nil {
		return fmt.Errorf("failed to save delivery log: %w", err)
	}
	return nil
}

func (s *GormDeliveryStore) ListRetryable(ctx context.Context, limit int) ([]*DeliveryLog, error) {
	var logs []*DeliveryLog
	q := s.db.WithContext(ctx).Where("status = ?", StatusFailed).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list retryable deliveries: %w", err)
	}
	return logs, nil
}

// MongoDeliveryStore keeps delivery logs in a MongoDB collection
type MongoDeliveryStore struct {
	coll *mongo.Collection
}

func NewMongoDeliveryStore(db *mongo.Database, collection string) *MongoDeliveryStore {
	return &MongoDeliveryStore{coll: db.Collection(collection)}
}

func (s *MongoDeliveryStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create delivery indexes: %w", err)
	}
	return nil
}

func (s *MongoDeliveryStore) Save(ctx context.Context, log *DeliveryLog) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": log.ID}, log, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save delivery log: %w", err)
	}
	return nil
}

func (s *MongoDeliveryStore) ListRetryable(ctx context.Context, limit int) ([]*DeliveryLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{"status": StatusFailed}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable deliveries: %w", err)
	}
	var logs []*DeliveryLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode delivery logs: %w", err)
	}
	return logs, nil
}
