package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

const DefaultRatingsAverage = 4.5

type Tour struct {
	ID              string      `json:"id" bson:"_id"`
	Name            string      `json:"name" bson:"name"`
	Slug            string      `json:"slug" bson:"slug"`
	Duration        int         `json:"duration" bson:"duration"`
	MaxGroupSize    int         `json:"maxGroupSize" bson:"max_group_size"`
	Difficulty      Difficulty  `json:"difficulty" bson:"difficulty"`
	RatingsAverage  float64     `json:"ratingsAverage" bson:"ratings_average"`
	RatingsQuantity int         `json:"ratingsQuantity" bson:"ratings_quantity"`
	Price           float64     `json:"price" bson:"price"`
	PriceDiscount   *float64    `json:"priceDiscount,omitempty" bson:"price_discount,omitempty"`
	Summary         string      `json:"summary" bson:"summary"`
	Description     string      `json:"description,omitempty" bson:"description"`
	ImageCover      string      `json:"imageCover" bson:"image_cover"`
	Images          []string    `json:"images" bson:"images"`
	StartDates      []time.Time `json:"startDates" bson:"start_dates"`
	SecretTour      bool        `json:"secretTour,omitempty" bson:"secret_tour"`
	CreatedAt       time.Time   `json:"createdAt" bson:"created_at"`
}

// TourFilter is passed into every tour read. Secret tours stay hidden
// unless IncludeSecret is set.
type TourFilter struct {
	IncludeSecret bool
}

// FilterFor returns the visibility filter for a viewer. Only admins see
// secret tours; a nil viewer is anonymous.
func FilterFor(viewer *User) TourFilter {
	return TourFilter{IncludeSecret: viewer != nil && viewer.Role == RoleAdmin}
}

// Visible reports whether t passes the filter.
func (f TourFilter) Visible(t *Tour) bool {
	return f.IncludeSecret || !t.SecretTour
}

// TourInput carries the writable fields of a tour. Nil fields are left
// unchanged on update.
type TourInput struct {
	Name          *string     `json:"name"`
	Duration      *int        `json:"duration"`
	MaxGroupSize  *int        `json:"maxGroupSize"`
	Difficulty    *Difficulty `json:"difficulty"`
	Price         *float64    `json:"price"`
	PriceDiscount *float64    `json:"priceDiscount"`
	Summary       *string     `json:"summary"`
	Description   *string     `json:"description"`
	ImageCover    *string     `json:"imageCover"`
	Images        []string    `json:"images"`
	StartDates    []time.Time `json:"startDates"`
	SecretTour    *bool       `json:"secretTour"`
}

// Apply copies the set fields of in onto t and refreshes the slug.
func (in *TourInput) Apply(t *Tour) {
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Duration != nil {
		t.Duration = *in.Duration
	}
	if in.MaxGroupSize != nil {
		t.MaxGroupSize = *in.MaxGroupSize
	}
	if in.Difficulty != nil {
		t.Difficulty = *in.Difficulty
	}
	if in.Price != nil {
		t.Price = *in.Price
	}
	if in.PriceDiscount != nil {
		d := *in.PriceDiscount
		t.PriceDiscount = &d
	}
	if in.Summary != nil {
		t.Summary = strings.TrimSpace(*in.Summary)
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.ImageCover != nil {
		t.ImageCover = *in.ImageCover
	}
	if in.Images != nil {
		t.Images = in.Images
	}
	if in.StartDates != nil {
		t.StartDates = in.StartDates
	}
	if in.SecretTour != nil {
		t.SecretTour = *in.SecretTour
	}
	t.Slug = slug.Make(t.Name)
}

// Validate checks a complete tour before it is stored.
func (t *Tour) Validate() error {
	n := utf8.RuneCountInString(t.Name)
	switch {
	case t.Name == "":
		return ValidationError("A tour must have a name.")
	case n < 10 || n > 40:
		return ValidationError("A tour name must have between 10 and 40 characters.")
	case t.Duration <= 0:
		return ValidationError("A tour must have a duration.")
	case t.MaxGroupSize <= 0:
		return ValidationError("A tour must have a group size.")
	case t.Difficulty != DifficultyEasy && t.Difficulty != DifficultyMedium && t.Difficulty != DifficultyDifficult:
		return ValidationError("Difficulty is either: easy, medium, difficult.")
	case t.RatingsAverage < 1 || t.RatingsAverage > 5:
		return ValidationError("Rating must be between 1.0 and 5.0.")
	case t.Price <= 0:
		return ValidationError("A tour must have a price.")
	case t.PriceDiscount != nil && *t.PriceDiscount >= t.Price:
		return ValidationError("Discount price should be below regular price.")
	case t.Summary == "":
		return ValidationError("A tour must have a summary.")
	case t.ImageCover == "":
		return ValidationError("A tour must have a cover image.")
	}
	return nil
}

// UnitAmount returns the price in the smallest currency unit.
func (t *Tour) UnitAmount() int64 {
	return int64(t.Price*100 + 0.5)
}
