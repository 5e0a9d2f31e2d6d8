package repository

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tableside/internal/models"
)

const SessionsCollection = "sessions"

// MongoSessionStore persists customer session start times. Documents are
// keyed by session id and expire through a TTL index on startTime.
type MongoSessionStore struct {
	sessions *mongo.Collection
}

func NewMongoSessionStore(db *mongo.Database) *MongoSessionStore {
	return &MongoSessionStore{sessions: db.Collection(SessionsCollection)}
}

func (s *MongoSessionStore) Load(ctx context.Context, key string) (models.Session, bool, error) {
	var sess models.Session
	err := s.sessions.FindOne(ctx, bson.M{"_id": key}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, err
	}
	return sess, true, nil
}

// Save records the session only if none exists yet, so the first observed
// start time wins across processes.
func (s *MongoSessionStore) Save(ctx context.Context, sess models.Session) error {
	_, err := s.sessions.UpdateOne(
		ctx,
		bson.M{"_id": sess.Key},
		bson.M{"$setOnInsert": bson.M{"tableId": sess.TableID, "startTime": sess.StartTime}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoSessionStore) Clear(ctx context.Context, key string) error {
	_, err := s.sessions.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// MemorySessionStore is the in-process session persistence.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]models.Session)}
}

func (s *MemorySessionStore) Load(_ context.Context, key string) (models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return sess, ok, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.Key]; !ok {
		s.sessions[sess.Key] = sess
	}
	return nil
}

func (s *MemorySessionStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}
