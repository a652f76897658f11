package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/repo"
)

type TourService interface {
	ListTours(ctx context.Context, viewer *domain.User) ([]domain.Tour, error)
	GetTour(ctx context.Context, viewer *domain.User, idOrSlug string) (*domain.Tour, error)
	CreateTour(ctx context.Context, in *domain.TourInput) (*domain.Tour, error)
	UpdateTour(ctx context.Context, id string, in *domain.TourInput) (*domain.Tour, error)
	DeleteTour(ctx context.Context, id string) error
}

type tourService struct {
	tours repo.TourRepo
	now   func() time.Time
}

func NewTourService(tours repo.TourRepo, now func() time.Time) TourService {
	return &tourService{tours: tours, now: clockOrNow(now)}
}

func (s *tourService) ListTours(ctx context.Context, viewer *domain.User) ([]domain.Tour, error) {
	ts, err := s.tours.List(ctx, domain.FilterFor(viewer))
	if err != nil {
		return nil, storeError(err, nil)
	}
	return ts, nil
}

// GetTour accepts either the tour id or its slug.
func (s *tourService) GetTour(ctx context.Context, viewer *domain.User, idOrSlug string) (*domain.Tour, error) {
	f := domain.FilterFor(viewer)
	t, err := s.tours.Get(ctx, idOrSlug, f)
	if errors.Is(err, domain.ErrNotFound) {
		t, err = s.tours.GetBySlug(ctx, idOrSlug, f)
	}
	if err != nil {
		return nil, storeError(err, errTourNotFound)
	}
	return t, nil
}

func (s *tourService) CreateTour(ctx context.Context, in *domain.TourInput) (*domain.Tour, error) {
	t := &domain.Tour{
		ID:             uuid.NewString(),
		RatingsAverage: domain.DefaultRatingsAverage,
		CreatedAt:      s.now().UTC(),
	}
	in.Apply(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.tours.Create(ctx, t); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ValidationError("A tour with that name already exists.")
		}
		return nil, storeError(err, nil)
	}
	return t, nil
}

func (s *tourService) UpdateTour(ctx context.Context, id string, in *domain.TourInput) (*domain.Tour, error) {
	t, err := s.tours.Get(ctx, id, domain.TourFilter{IncludeSecret: true})
	if err != nil {
		return nil, storeError(err, errTourNotFound)
	}

	in.Apply(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.tours.Update(ctx, t); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ValidationError("A tour with that name already exists.")
		}
		return nil, storeError(err, errTourNotFound)
	}
	return t, nil
}

func (s *tourService) DeleteTour(ctx context.Context, id string) error {
	if err := s.tours.Delete(ctx, id); err != nil {
		return storeError(err, errTourNotFound)
	}
	return nil
}
