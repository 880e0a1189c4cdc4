package events

import (
	"strings"
	"time"

	"github.com/cultureradar/server/internal/domain/locations"
)

// defaultDuration is assumed for events that carry no end time.
const defaultDuration = 2 * time.Hour

type Category string

const (
	CategoryMusic      Category = "MUSIC"
	CategoryTheatre    Category = "THEATRE"
	CategoryDance      Category = "DANCE"
	CategoryVisualArts Category = "VISUAL_ARTS"
	CategoryFilm       Category = "FILM"
	CategoryLiterature Category = "LITERATURE"
	CategoryFestival   Category = "FESTIVAL"
	CategoryWorkshop   Category = "WORKSHOP"
	CategoryExhibition Category = "EXHIBITION"
	CategoryOther      Category = "OTHER"
)

func ParseCategory(value string) (Category, bool) {
	category := Category(strings.ToUpper(strings.TrimSpace(value)))
	switch category {
	case CategoryMusic, CategoryTheatre, CategoryDance, CategoryVisualArts,
		CategoryFilm, CategoryLiterature, CategoryFestival, CategoryWorkshop,
		CategoryExhibition, CategoryOther:
		return category, true
	default:
		return "", false
	}
}

// External source identifiers for ingested records. Manual submissions carry
// neither an external id nor a source.
const (
	SourceEventbrite = "EVENTBRITE"
	SourceCanadaGov  = "CANADA_GOV"
)

type Event struct {
	ID             int64               `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	StartTime      time.Time           `json:"startTime"`
	EndTime        *time.Time          `json:"endTime,omitempty"`
	ImageURL       string              `json:"imageUrl,omitempty"`
	Price          *float64            `json:"price,omitempty"`
	IsFree         bool                `json:"isFree"`
	Category       Category            `json:"category"`
	LocationID     int64               `json:"locationId"`
	Location       *locations.Location `json:"location,omitempty"`
	Approved       bool                `json:"approved"`
	CreatorID      *int64              `json:"creatorId,omitempty"`
	ExternalID     *string             `json:"externalId,omitempty"`
	ExternalSource *string             `json:"externalSource,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`

	// DistanceKm is populated by the search service when the caller supplies a
	// coordinate and the event's location has one. Never persisted.
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// IsFreeEvent reports whether the event costs nothing: either flagged free or
// carrying a non-positive price.
func (e *Event) IsFreeEvent() bool {
	return e.IsFree || (e.Price != nil && *e.Price <= 0)
}

func (e *Event) effectiveEnd() time.Time {
	if e.EndTime != nil {
		return *e.EndTime
	}
	return e.StartTime.Add(defaultDuration)
}

// IsHappeningNow reports whether now falls within [start, end). Events without
// an end time are assumed to run for two hours.
func (e *Event) IsHappeningNow(now time.Time) bool {
	return !now.Before(e.StartTime) && now.Before(e.effectiveEnd())
}

// IsPast reports whether the event is over at the given instant.
func (e *Event) IsPast(now time.Time) bool {
	return !now.Before(e.effectiveEnd())
}
