package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/service"
)

func ptr[T any](v T) *T { return &v }

func validTourInput(name string) *domain.TourInput {
	return &domain.TourInput{
		Name:         ptr(name),
		Duration:     ptr(5),
		MaxGroupSize: ptr(25),
		Difficulty:   ptr(domain.DifficultyEasy),
		Price:        ptr(397.0),
		Summary:      ptr("Breathtaking hike through the Canadian Banff National Park"),
		ImageCover:   ptr("tour-1-cover.jpg"),
	}
}

func TestTourService_Visibility(t *testing.T) {
	tours := newMockTours(
		domain.Tour{ID: "1", Name: "The Forest Hiker", Slug: "the-forest-hiker"},
		domain.Tour{ID: "2", Name: "The Secret Valley", Slug: "the-secret-valley", SecretTour: true},
	)
	svc := service.NewTourService(tours, nil)
	ctx := context.Background()

	list, err := svc.ListTours(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.ListTours(ctx, &domain.User{Role: domain.RoleLeadGuide})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.ListTours(ctx, &domain.User{Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.GetTour(ctx, nil, "the-secret-valley")
	assert.Equal(t, domain.KindNotFound, domain.ErrorKindOf(err))

	got, err := svc.GetTour(ctx, nil, "the-forest-hiker")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	got, err = svc.GetTour(ctx, nil, "1")
	require.NoError(t, err)
	assert.Equal(t, "the-forest-hiker", got.Slug)
}

func TestTourService_CreateUpdateDelete(t *testing.T) {
	svc := service.NewTourService(newMockTours(), newClock().Now)
	ctx := context.Background()

	tour, err := svc.CreateTour(ctx, validTourInput("The Forest Hiker"))
	require.NoError(t, err)
	assert.Equal(t, "the-forest-hiker", tour.Slug)
	assert.Equal(t, domain.DefaultRatingsAverage, tour.RatingsAverage)

	_, err = svc.CreateTour(ctx, validTourInput("The Forest Hiker"))
	assert.Equal(t, domain.KindValidation, domain.ErrorKindOf(err))

	_, err = svc.CreateTour(ctx, &domain.TourInput{Name: ptr("Too short")})
	assert.Equal(t, domain.KindValidation, domain.ErrorKindOf(err))

	updated, err := svc.UpdateTour(ctx, tour.ID, &domain.TourInput{Name: ptr("The Forest Hiker Deluxe"), Price: ptr(497.0)})
	require.NoError(t, err)
	assert.Equal(t, "the-forest-hiker-deluxe", updated.Slug)
	assert.Equal(t, 497.0, updated.Price)

	_, err = svc.UpdateTour(ctx, tour.ID, &domain.TourInput{PriceDiscount: ptr(600.0)})
	assert.Equal(t, domain.KindValidation, domain.ErrorKindOf(err))

	_, err = svc.UpdateTour(ctx, "missing", &domain.TourInput{})
	assert.Equal(t, domain.KindNotFound, domain.ErrorKindOf(err))

	require.NoError(t, svc.DeleteTour(ctx, tour.ID))
	assert.Equal(t, domain.KindNotFound, domain.ErrorKindOf(svc.DeleteTour(ctx, tour.ID)))
}

func TestTourService_StoreFailure(t *testing.T) {
	tours := newMockTours()
	tours.err = errStoreDown
	_, err := service.NewTourService(tours, nil).ListTours(context.Background(), nil)
	assert.Equal(t, domain.KindDependency, domain.ErrorKindOf(err))
}
