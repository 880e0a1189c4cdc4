package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cultureradar/server/internal/domain/locations"
)

func int64Ptr(v int64) *int64 { return &v }

func validCreateParams() CreateParams {
	return CreateParams{
		Name:       "Jazz Night",
		StartTime:  time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
		Category:   CategoryMusic,
		LocationID: int64Ptr(7),
	}
}

func TestCreateForcesPendingForNonAdmin(t *testing.T) {
	var stored CreateParams
	repo := stubRepo{createFn: func(params CreateParams) (*Event, error) {
		stored = params
		return &Event{ID: 1}, nil
	}}
	svc := NewApprovalService(repo, false)

	params := validCreateParams()
	params.Approved = true

	_, err := svc.Create(context.Background(), params, Actor{ID: 42})
	require.NoError(t, err)
	require.False(t, stored.Approved)
	require.Equal(t, int64(42), *stored.CreatorID)
}

func TestCreateAdminMayApproveDirectly(t *testing.T) {
	var stored CreateParams
	repo := stubRepo{createFn: func(params CreateParams) (*Event, error) {
		stored = params
		return &Event{ID: 1, Approved: true}, nil
	}}
	svc := NewApprovalService(repo, false)

	params := validCreateParams()
	params.Approved = true

	_, err := svc.Create(context.Background(), params, Actor{ID: 1, IsAdmin: true})
	require.NoError(t, err)
	require.True(t, stored.Approved)
}

func TestCreateValidation(t *testing.T) {
	svc := NewApprovalService(stubRepo{}, false)

	tests := []struct {
		name   string
		mutate func(*CreateParams)
		field  string
	}{
		{name: "blank name", mutate: func(p *CreateParams) { p.Name = "   " }, field: "name"},
		{name: "missing start", mutate: func(p *CreateParams) { p.StartTime = time.Time{} }, field: "startTime"},
		{name: "end before start", mutate: func(p *CreateParams) {
			end := p.StartTime.Add(-time.Hour)
			p.EndTime = &end
		}, field: "endTime"},
		{name: "bad category", mutate: func(p *CreateParams) { p.Category = "KARAOKE" }, field: "category"},
		{name: "no location", mutate: func(p *CreateParams) { p.LocationID = nil }, field: "location"},
		{name: "both locations", mutate: func(p *CreateParams) {
			p.NewLocation = &locations.CreateParams{Name: "Hall", City: "Toronto"}
		}, field: "location"},
		{name: "external id without source", mutate: func(p *CreateParams) {
			id := "EB1"
			p.ExternalID = &id
		}, field: "externalId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validCreateParams()
			tt.mutate(&params)

			_, err := svc.Create(context.Background(), params, Actor{ID: 1})
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateValidatesInlineLocation(t *testing.T) {
	repo := stubRepo{createFn: func(CreateParams) (*Event, error) {
		t.Fatal("invalid location must not reach the repository")
		return nil, nil
	}}
	svc := NewApprovalService(repo, false)

	lat := 43.65
	tests := []struct {
		name     string
		location locations.CreateParams
		field    string
	}{
		{name: "blank venue", location: locations.CreateParams{Latitude: &lat}, field: "name"},
		{name: "missing city", location: locations.CreateParams{Name: "Hall"}, field: "city"},
		{name: "lone latitude", location: locations.CreateParams{Name: "Hall", City: "Toronto", Latitude: &lat}, field: "coordinates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validCreateParams()
			params.LocationID = nil
			params.NewLocation = &tt.location

			_, err := svc.Create(context.Background(), params, Actor{ID: 1})
			var verr locations.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
}

func validUpdateParams() UpdateParams {
	return UpdateParams{
		Name:       "Jazz Night",
		StartTime:  time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
		Category:   CategoryMusic,
		LocationID: 7,
	}
}

func TestUpdateWithoutOwnershipEnforcement(t *testing.T) {
	creator := int64(1)
	repo := stubRepo{
		getFn: func(id int64) (*Event, error) {
			return &Event{ID: id, CreatorID: &creator}, nil
		},
		updateFn: func(id int64, params UpdateParams) (*Event, error) {
			return &Event{ID: id, Name: params.Name}, nil
		},
	}
	svc := NewApprovalService(repo, false)

	// A different authenticated user may edit when enforcement is off.
	updated, err := svc.Update(context.Background(), 5, validUpdateParams(), Actor{ID: 99})
	require.NoError(t, err)
	require.Equal(t, "Jazz Night", updated.Name)
}

func TestUpdateOwnershipEnforced(t *testing.T) {
	creator := int64(1)
	repo := stubRepo{
		getFn: func(id int64) (*Event, error) {
			return &Event{ID: id, CreatorID: &creator}, nil
		},
		updateFn: func(id int64, params UpdateParams) (*Event, error) {
			return &Event{ID: id}, nil
		},
	}
	svc := NewApprovalService(repo, true)

	_, err := svc.Update(context.Background(), 5, validUpdateParams(), Actor{ID: 99})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(context.Background(), 5, validUpdateParams(), Actor{ID: 1})
	require.NoError(t, err)

	// Admins bypass ownership.
	_, err = svc.Update(context.Background(), 5, validUpdateParams(), Actor{ID: 99, IsAdmin: true})
	require.NoError(t, err)
}

func TestUpdateMissingEvent(t *testing.T) {
	repo := stubRepo{getFn: func(int64) (*Event, error) { return nil, ErrNotFound }}
	svc := NewApprovalService(repo, false)

	_, err := svc.Update(context.Background(), 404, validUpdateParams(), Actor{ID: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApproveEmptyList(t *testing.T) {
	svc := NewApprovalService(stubRepo{}, false)

	got, err := svc.Approve(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestApprovePassesIDsThrough(t *testing.T) {
	repo := stubRepo{approveFn: func(ids []int64) ([]Event, error) {
		require.Equal(t, []int64{5, 999}, ids)
		// 999 does not exist; only 5 comes back.
		return []Event{{ID: 5, Approved: true}}, nil
	}}
	svc := NewApprovalService(repo, false)

	got, err := svc.Approve(context.Background(), []int64{5, 999})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(5), got[0].ID)
}

func TestPendingDefaultsToNewestFirst(t *testing.T) {
	var seenFilters Filters
	var seenPage PageRequest
	repo := stubRepo{searchFn: func(filters Filters, page PageRequest) (Page, error) {
		seenFilters = filters
		seenPage = page
		return Page{}, nil
	}}
	svc := NewApprovalService(repo, false)

	_, err := svc.Pending(context.Background(), PageRequest{Size: 50})
	require.NoError(t, err)
	require.NotNil(t, seenFilters.Approved)
	require.False(t, *seenFilters.Approved)
	require.Equal(t, SortByID, seenPage.SortBy)
	require.Equal(t, SortDesc, seenPage.Direction)
	require.Equal(t, 50, seenPage.Size)
}
