package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yousefihsm/natours/internal/domain"
)

type ToursRepoImpl struct{ pool *pgxpool.Pool }

func NewToursRepo(pool *pgxpool.Pool) *ToursRepoImpl { return &ToursRepoImpl{pool: pool} }

const tourCols = `id, name, slug, duration, max_group_size, difficulty,
ratings_average::float8, ratings_quantity, price::float8, price_discount::float8,
summary, description, image_cover, images, start_dates, secret_tour, created_at`

// visibility is appended to every read. $1 is reserved for IncludeSecret.
const visibility = ` ($1 OR NOT secret_tour)`

func scanTour(row pgx.Row) (*domain.Tour, error) {
	var t domain.Tour
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
		&t.RatingsAverage, &t.RatingsQuantity, &t.Price, &t.PriceDiscount,
		&t.Summary, &t.Description, &t.ImageCover, &t.Images, &t.StartDates, &t.SecretTour, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ToursRepoImpl) List(ctx context.Context, f domain.TourFilter) ([]domain.Tour, error) {
	const q = `SELECT ` + tourCols + ` FROM tours WHERE` + visibility + ` ORDER BY created_at, name`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, f.IncludeSecret)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ts := make([]domain.Tour, 0)
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		ts = append(ts, *t)
	}
	return ts, rows.Err()
}

func (r *ToursRepoImpl) Get(ctx context.Context, id string, f domain.TourFilter) (*domain.Tour, error) {
	const q = `SELECT ` + tourCols + ` FROM tours WHERE` + visibility + ` AND id=$2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanTour(r.pool.QueryRow(ctx, q, f.IncludeSecret, id))
}

func (r *ToursRepoImpl) GetBySlug(ctx context.Context, slug string, f domain.TourFilter) (*domain.Tour, error) {
	const q = `SELECT ` + tourCols + ` FROM tours WHERE` + visibility + ` AND slug=$2 ORDER BY created_at LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanTour(r.pool.QueryRow(ctx, q, f.IncludeSecret, slug))
}

func (r *ToursRepoImpl) Create(ctx context.Context, t *domain.Tour) error {
	const q = `
INSERT INTO tours (id, name, slug, duration, max_group_size, difficulty, ratings_average, ratings_quantity,
  price, price_discount, summary, description, image_cover, images, start_dates, secret_tour, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, q,
		t.ID, t.Name, t.Slug, t.Duration, t.MaxGroupSize, t.Difficulty, t.RatingsAverage, t.RatingsQuantity,
		t.Price, t.PriceDiscount, t.Summary, t.Description, t.ImageCover, nonNil(t.Images), nonNil(t.StartDates), t.SecretTour, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

func (r *ToursRepoImpl) Update(ctx context.Context, t *domain.Tour) error {
	const q = `
UPDATE tours SET name=$2, slug=$3, duration=$4, max_group_size=$5, difficulty=$6,
  price=$7, price_discount=$8, summary=$9, description=$10, image_cover=$11,
  images=$12, start_dates=$13, secret_tour=$14
WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := r.pool.Exec(ctx, q,
		t.ID, t.Name, t.Slug, t.Duration, t.MaxGroupSize, t.Difficulty,
		t.Price, t.PriceDiscount, t.Summary, t.Description, t.ImageCover,
		nonNil(t.Images), nonNil(t.StartDates), t.SecretTour,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ToursRepoImpl) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM tours WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ToursRepoImpl) DeleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM tours`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
