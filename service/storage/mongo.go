package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

var mdb *mongo.Database

func InitMongo(ctx context.Context, cfg MongoConfig) error {
	if cfg.URI == "" {
		return errors.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, "mongo ping")
	}
	if cfg.Database == "" {
		cfg.Database = "marketplace"
	}
	mdb = client.Database(cfg.Database)
	return nil
}

// Mongo exposes the shared database handle for health checks.
func Mongo() *mongo.Database { return mdb }
