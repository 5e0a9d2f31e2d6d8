package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureOrderIndexes backs the live feed sort and the per-table archive
// lookup.
func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("timestamp_desc"),
		},
		{
			Keys:    bson.D{{Key: "tableId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("tableId_status"),
		},
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().SetName("sessionId_index").SetSparse(true),
		},
	}

	log.Println("EnsureOrderIndexes: creating live order indexes")
	if _, err := indexes.CreateMany(ctx, models); err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: live order indexes created")
	return nil
}

func EnsureHistoryIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("order_history").Indexes()

	historyIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "tableId", Value: 1}, {Key: "archivedAt", Value: -1}},
		Options: options.Index().SetName("tableId_archivedAt"),
	}

	log.Println("EnsureHistoryIndexes: creating tableId_archivedAt index")
	if _, err := indexes.CreateOne(ctx, historyIndex); err != nil {
		log.Println("EnsureHistoryIndexes: index error:", err)
		return err
	}
	log.Println("EnsureHistoryIndexes: tableId_archivedAt index created")
	return nil
}

// EnsureSessionIndexes lets MongoDB drop session records a while after they
// could possibly still be running.
func EnsureSessionIndexes(db *mongo.Database, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("sessions").Indexes()

	ttlIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "startTime", Value: 1}},
		Options: options.Index().
			SetName("startTime_ttl").
			SetExpireAfterSeconds(int32(ttl.Seconds())),
	}

	log.Println("EnsureSessionIndexes: creating startTime_ttl index")
	if _, err := indexes.CreateOne(ctx, ttlIndex); err != nil {
		log.Println("EnsureSessionIndexes: ttl index error:", err)
		return err
	}
	log.Println("EnsureSessionIndexes: startTime_ttl index created")
	return nil
}
