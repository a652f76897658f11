package mongostore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yousefihsm/natours/internal/domain"
)

type UserRepo struct{ col *mongo.Collection }

var active = bson.E{Key: "active", Value: true}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	doc := *u
	doc.Email = strings.ToLower(doc.Email)
	return insertOne(ctx, r.col, &doc)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.col, bson.D{{Key: "email", Value: strings.ToLower(email)}, active})
}

func (r *UserRepo) FindAnyByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.col, bson.D{{Key: "email", Value: strings.ToLower(email)}})
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.col, bson.D{{Key: "_id", Value: id}, active})
}

func (r *UserRepo) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	return findOne[domain.User](ctx, r.col, resetFilter(tokenHash, now))
}

func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	return updateOne(ctx, r.col, bson.D{{Key: "_id", Value: id}, active}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_reset_token", Value: tokenHash},
		{Key: "password_reset_expires", Value: expires},
	}}})
}

func (r *UserRepo) ClearResetToken(ctx context.Context, id string) error {
	return updateOne(ctx, r.col, bson.D{{Key: "_id", Value: id}}, unsetReset())
}

func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := append(unsetReset(), bson.E{Key: "$set", Value: bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "password_changed_at", Value: changedAt},
	}})
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u domain.User
	if err := r.col.FindOneAndUpdate(ctx, resetFilter(tokenHash, now), update, opts).Decode(&u); err != nil {
		return nil, wrapError(err)
	}
	return &u, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	return updateOne(ctx, r.col, bson.D{{Key: "_id", Value: id}, active}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "password_changed_at", Value: changedAt},
	}}})
}

func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	return updateOne(ctx, r.col, bson.D{{Key: "_id", Value: id}, active}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "active", Value: false},
	}}})
}

func (r *UserRepo) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.col)
}

func resetFilter(tokenHash string, now time.Time) bson.D {
	return bson.D{
		{Key: "password_reset_token", Value: tokenHash},
		{Key: "password_reset_expires", Value: bson.D{{Key: "$gt", Value: now}}},
		active,
	}
}

func unsetReset() bson.D {
	return bson.D{{Key: "$unset", Value: bson.D{
		{Key: "password_reset_token", Value: ""},
		{Key: "password_reset_expires", Value: ""},
	}}}
}
