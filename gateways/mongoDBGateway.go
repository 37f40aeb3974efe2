package gateways

import (
	"context"
	"fmt"
	"time"

	"finco/settlement/common"
	"finco/settlement/errors"
	"finco/settlement/settlement"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	log "github.com/sirupsen/logrus"
)

// ConnectDB creates a MongoDB client and prepares the journal collection.
func ConnectDB(ctx context.Context, uri string, cfg common.MongoConfigurations) (*common.Database, *mongo.Client, error) {
	if uri == "" {
		uri = cfg.Uri
	}
	if uri == "" || cfg.Database == "" {
		return nil, nil, errors.BuildErrMsg(errors.DBConfigurationError, fmt.Errorf("mongo uri and database are required"))
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, errors.BuildErrMsg(errors.DBInitializationError, err)
	}
	if err = c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, nil, errors.BuildAndLogErrorMsg(errors.DBConnectionError, err)
	}

	var databaseCollections common.Database
	database := c.Database(cfg.Database)
	databaseCollections.Transitions = database.Collection(cfg.TransitionsCollection)

	mod := mongo.IndexModel{
		Keys: bson.D{{Key: "key", Value: 1}, {Key: "at", Value: 1}},
	}
	if _, err = databaseCollections.Transitions.Indexes().CreateOne(ctx, mod); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, nil, errors.BuildErrMsg(errors.DBConfigurationError, err)
	}

	log.WithFields(log.Fields{
		"database":   cfg.Database,
		"collection": cfg.TransitionsCollection,
	}).Info("settlement journal connected")
	return &databaseCollections, c, nil
}

// MongoJournal appends settlement transitions to a collection.
type MongoJournal struct {
	collection *mongo.Collection
}

func NewMongoJournal(db *common.Database) *MongoJournal {
	return &MongoJournal{collection: db.Transitions}
}

func (j *MongoJournal) Record(ctx context.Context, t settlement.Transition) error {
	if _, err := j.collection.InsertOne(ctx, t); err != nil {
		return errors.BuildErrMsg(errors.JournalWriteError, err)
	}
	return nil
}
