package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yousefihsm/natours/internal/domain"
)

type TourRepo struct{ col *mongo.Collection }

// visible adds the secret-tour predicate to filter.
func visible(filter bson.D, f domain.TourFilter) bson.D {
	if f.IncludeSecret {
		return filter
	}
	return append(filter, bson.E{Key: "secret_tour", Value: bson.D{{Key: "$ne", Value: true}}})
}

func (r *TourRepo) List(ctx context.Context, f domain.TourFilter) ([]domain.Tour, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "name", Value: 1}})
	return findMany[domain.Tour](ctx, r.col, visible(bson.D{}, f), opts)
}

func (r *TourRepo) Get(ctx context.Context, id string, f domain.TourFilter) (*domain.Tour, error) {
	return findOne[domain.Tour](ctx, r.col, visible(bson.D{{Key: "_id", Value: id}}, f))
}

func (r *TourRepo) GetBySlug(ctx context.Context, slug string, f domain.TourFilter) (*domain.Tour, error) {
	return findOne[domain.Tour](ctx, r.col, visible(bson.D{{Key: "slug", Value: slug}}, f))
}

func (r *TourRepo) Create(ctx context.Context, t *domain.Tour) error {
	return insertOne(ctx, r.col, t)
}

func (r *TourRepo) Update(ctx context.Context, t *domain.Tour) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: t.ID}}, t)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TourRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id)
}

func (r *TourRepo) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.col)
}
