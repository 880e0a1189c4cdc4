package events

import (
	"context"
	"strings"

	"github.com/cultureradar/server/internal/domain/locations"
)

// Actor identifies the authenticated caller for curation decisions.
type Actor struct {
	ID      int64
	IsAdmin bool
}

// ApprovalService governs the event publication workflow: submissions start
// pending, moderators approve, admins delete. It also owns submission and
// update validation.
type ApprovalService struct {
	repo Repository
	// enforceOwnership rejects updates from non-admin callers other than the
	// creator. Off by default to match the historical behavior.
	enforceOwnership bool
}

func NewApprovalService(repo Repository, enforceOwnership bool) *ApprovalService {
	return &ApprovalService{repo: repo, enforceOwnership: enforceOwnership}
}

// Create validates and stores a submission. Events always start unapproved
// unless the creator is an admin who explicitly set the approved flag.
func (s *ApprovalService) Create(ctx context.Context, params CreateParams, actor Actor) (*Event, error) {
	if err := validateCreate(params); err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		params.Approved = false
	}
	if actor.ID != 0 {
		creator := actor.ID
		params.CreatorID = &creator
	}
	return s.repo.Create(ctx, params)
}

// Update replaces the mutable fields of an existing event. Approval state,
// identity, creator and provenance are never touched.
func (s *ApprovalService) Update(ctx context.Context, id int64, params UpdateParams, actor Actor) (*Event, error) {
	if err := validateUpdate(params); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.enforceOwnership && !actor.IsAdmin {
		if existing.CreatorID == nil || *existing.CreatorID != actor.ID {
			return nil, ErrForbidden
		}
	}

	return s.repo.Update(ctx, id, params)
}

func (s *ApprovalService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Approve transitions every existing id to approved and returns those events.
// Already-approved ids are included (the transition is idempotent); unknown
// ids are dropped silently.
func (s *ApprovalService) Approve(ctx context.Context, ids []int64) ([]Event, error) {
	if len(ids) == 0 {
		return []Event{}, nil
	}
	return s.repo.Approve(ctx, ids)
}

// Pending lists unapproved events for the moderation queue, newest first.
func (s *ApprovalService) Pending(ctx context.Context, page PageRequest) (Page, error) {
	approved := false
	filters := Filters{Approved: &approved}
	if page.SortBy == "" {
		page = PageRequest{Page: page.Page, Size: page.Size, SortBy: SortByID, Direction: SortDesc}
	}
	return s.repo.Search(ctx, filters, NormalizePage(page))
}

func validateCreate(params CreateParams) error {
	if strings.TrimSpace(params.Name) == "" {
		return ValidationError{Field: "name", Message: "must not be blank"}
	}
	if params.StartTime.IsZero() {
		return ValidationError{Field: "startTime", Message: "is required"}
	}
	if params.EndTime != nil && params.EndTime.Before(params.StartTime) {
		return ValidationError{Field: "endTime", Message: "must not precede startTime"}
	}
	if _, ok := ParseCategory(string(params.Category)); !ok {
		return ValidationError{Field: "category", Message: "unknown category"}
	}
	if (params.LocationID == nil) == (params.NewLocation == nil) {
		return ValidationError{Field: "location", Message: "exactly one of locationId or location is required"}
	}
	if params.NewLocation != nil {
		if err := locations.ValidateParams(*params.NewLocation); err != nil {
			return err
		}
	}
	if (params.ExternalID == nil) != (params.ExternalSource == nil) {
		return ValidationError{Field: "externalId", Message: "externalId and externalSource must be set together"}
	}
	return nil
}

func validateUpdate(params UpdateParams) error {
	if strings.TrimSpace(params.Name) == "" {
		return ValidationError{Field: "name", Message: "must not be blank"}
	}
	if params.StartTime.IsZero() {
		return ValidationError{Field: "startTime", Message: "is required"}
	}
	if params.EndTime != nil && params.EndTime.Before(params.StartTime) {
		return ValidationError{Field: "endTime", Message: "must not precede startTime"}
	}
	if _, ok := ParseCategory(string(params.Category)); !ok {
		return ValidationError{Field: "category", Message: "unknown category"}
	}
	if params.LocationID <= 0 {
		return ValidationError{Field: "locationId", Message: "is required"}
	}
	return nil
}
