package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yousefihsm/natours/internal/domain"
)

type BookingRepo struct{ col *mongo.Collection }

// CreateIfAbsent leans on the unique payment_session_id index: the losing
// insert of a concurrent pair fails with a duplicate key error.
func (r *BookingRepo) CreateIfAbsent(ctx context.Context, b *domain.Booking) (bool, error) {
	err := insertOne(ctx, r.col, b)
	if errors.Is(err, domain.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	return insertOne(ctx, r.col, b)
}

func (r *BookingRepo) Get(ctx context.Context, id string) (*domain.Booking, error) {
	return findOne[domain.Booking](ctx, r.col, bson.D{{Key: "_id", Value: id}})
}

func (r *BookingRepo) List(ctx context.Context) ([]domain.Booking, error) {
	return findMany[domain.Booking](ctx, r.col, bson.D{}, newestFirst())
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return findMany[domain.Booking](ctx, r.col, bson.D{{Key: "user_id", Value: userID}}, newestFirst())
}

func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id)
}

func newestFirst() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}
