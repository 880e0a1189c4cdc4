package events

import (
	"context"
	"time"

	"github.com/cultureradar/server/internal/domain/locations"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sortable event attributes. The postgres repository maps these to columns;
// anything else is rejected at parse time.
const (
	SortByStartTime = "startTime"
	SortByName      = "name"
	SortByPrice     = "price"
	SortByCategory  = "category"
	SortByCreatedAt = "createdAt"
	SortByID        = "id"
)

type Filters struct {
	City      string
	IsFree    *bool
	Category  *Category
	StartDate *time.Time
	EndDate   *time.Time
	// Approved restricts results by approval state. Nil means no constraint
	// (admin listings); public search always sets it to true.
	Approved *bool
}

type PageRequest struct {
	Page      int
	Size      int
	SortBy    string
	Direction SortDirection
}

type Page struct {
	Content       []Event `json:"content"`
	TotalElements int64   `json:"totalElements"`
	Page          int     `json:"page"`
	Size          int     `json:"size"`
}

type CreateParams struct {
	Name        string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	ImageURL    string
	Price       *float64
	IsFree      bool
	Category    Category

	// Exactly one of LocationID or NewLocation must be set. With NewLocation
	// the repository creates the venue and the event in a single transaction
	// so a failure leaves neither behind.
	LocationID  *int64
	NewLocation *locations.CreateParams

	Approved       bool
	CreatorID      *int64
	ExternalID     *string
	ExternalSource *string
}

// UpdateParams carries the full replacement payload for an event. Identity,
// creator, approval state and provenance are immutable through updates.
type UpdateParams struct {
	Name        string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	ImageURL    string
	Price       *float64
	IsFree      bool
	Category    Category
	LocationID  int64
}

type Repository interface {
	Search(ctx context.Context, filters Filters, page PageRequest) (Page, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, params CreateParams) (*Event, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Event, error)
	Delete(ctx context.Context, id int64) error
	// Approve marks the given events approved and returns every listed event
	// that exists, already-approved ids included. Unknown ids are skipped
	// without error.
	Approve(ctx context.Context, ids []int64) ([]Event, error)
	ExistsByExternal(ctx context.Context, externalID, externalSource string) (bool, error)
}
