package journal

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BartekS5/ridsync/pkg/database"
	"github.com/BartekS5/ridsync/pkg/logger"
)

const writeTimeout = 30 * time.Second

// MongoJournal stores run records in one MongoDB collection.
type MongoJournal struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoJournal(client *mongo.Client, dbName, collection string) *MongoJournal {
	return &MongoJournal{
		client: client,
		coll:   client.Database(dbName).Collection(collection),
	}
}

// OpenMongo connects to uri and returns a journal that owns the client.
func OpenMongo(ctx context.Context, uri, dbName, collection string, timeout time.Duration) (*MongoJournal, error) {
	client, err := database.ConnectMongo(ctx, uri, timeout)
	if err != nil {
		return nil, err
	}
	return NewMongoJournal(client, dbName, collection), nil
}

func (j *MongoJournal) Record(ctx context.Context, rec RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if _, err := j.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}
	logger.Debugf("Journal: recorded run %s (%s, %d rows)", rec.RunID, rec.Status, rec.Rows)
	return nil
}

// Recent returns up to limit records for job, newest first.
func (j *MongoJournal) Recent(ctx context.Context, job string, limit int64) ([]RunRecord, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := j.coll.Find(ctx, recentFilter(job), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []RunRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func recentFilter(job string) bson.M {
	if job == "" {
		return bson.M{}
	}
	return bson.M{"job": job}
}

func (j *MongoJournal) Close(ctx context.Context) error {
	return j.client.Disconnect(ctx)
}
