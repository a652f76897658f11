// Package mongostore implements the repositories on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yousefihsm/natours/internal/repo"
	"github.com/yousefihsm/natours/pkg/logger"
)

const (
	ColUsers    = "users"
	ColTours    = "tours"
	ColBookings = "bookings"
)

const opTimeout = 3 * time.Second

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings it and makes sure the indexes exist. The unique
// indexes back duplicate detection, so failing to build one is fatal.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: %w", err)
	}
	logger.Info("mongostore: indexes ready", "db", dbName)
	return s, nil
}

// Repos exposes the store through the shared repository contracts.
func (s *Store) Repos() *repo.Store {
	return &repo.Store{
		Users:    &UserRepo{col: s.col(ColUsers)},
		Tours:    &TourRepo{col: s.col(ColTours)},
		Bookings: &BookingRepo{col: s.col(ColBookings)},
		Close:    s.Close,
	}
}

func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col  string
		keys bson.D
		opts *options.IndexOptionsBuilder
	}

	indexes := []idx{
		{ColUsers, bson.D{{Key: "email", Value: 1}}, options.Index().SetUnique(true)},
		{ColUsers, bson.D{{Key: "password_reset_token", Value: 1}}, options.Index().SetSparse(true)},

		{ColTours, bson.D{{Key: "name", Value: 1}}, options.Index().SetUnique(true)},
		{ColTours, bson.D{{Key: "slug", Value: 1}}, nil},

		// Only bookings paid through the gateway carry a session id.
		{ColBookings, bson.D{{Key: "payment_session_id", Value: 1}}, options.Index().SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "payment_session_id", Value: bson.D{{Key: "$type", Value: "string"}}}})},
		{ColBookings, bson.D{{Key: "user_id", Value: 1}}, nil},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.opts != nil {
			model.Options = i.opts
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}
	return nil
}
