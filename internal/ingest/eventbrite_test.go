package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cultureradar/server/internal/domain/events"
)

const eventbriteFixture = `{
  "events": [
    {
      "id": "EB100",
      "name": {"text": "Jazz Night"},
      "description": {"text": "An evening of jazz"},
      "start": {"utc": "2026-10-01T23:00:00Z"},
      "end": {"utc": "2026-10-02T02:00:00Z"},
      "logo": {"url": "https://img.example/jazz.jpg"},
      "is_free": false,
      "venue": {
        "name": "The Rex",
        "address": {
          "address_1": "194 Queen St W",
          "city": "Toronto",
          "region": "ON",
          "postal_code": "M5V 1Z1",
          "latitude": "43.6503",
          "longitude": "-79.3885"
        }
      },
      "category": {"name": "Music"},
      "ticket_availability": {"minimum_ticket_price": {"major_value": "15.00"}}
    },
    {
      "id": "",
      "name": {"text": "Broken record without id"},
      "start": {"utc": "2026-10-01T23:00:00Z"}
    },
    {
      "id": "EB101",
      "name": {"text": "Bad start time"},
      "start": {"utc": "sometime soon"}
    }
  ]
}`

func TestEventbriteFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventbriteFixture))
	}))
	defer server.Close()

	client := NewEventbriteClient(server.URL, "test-token", 5*time.Second)
	require.Equal(t, events.SourceEventbrite, client.Name())

	listings, err := client.Fetch(context.Background())
	require.NoError(t, err)

	// Malformed records are dropped, not fatal.
	require.Len(t, listings, 1)

	got := listings[0]
	require.Equal(t, "EB100", got.ExternalID)
	require.Equal(t, "Jazz Night", got.Name)
	require.Equal(t, time.Date(2026, 10, 1, 23, 0, 0, 0, time.UTC), got.StartTime)
	require.NotNil(t, got.EndTime)
	require.Equal(t, events.CategoryMusic, got.Category)
	require.NotNil(t, got.Price)
	require.InDelta(t, 15.0, *got.Price, 1e-9)
	require.Equal(t, "The Rex", got.Venue.Name)
	require.Equal(t, "Toronto", got.Venue.City)
	require.NotNil(t, got.Venue.Latitude)
	require.InDelta(t, 43.6503, *got.Venue.Latitude, 1e-6)
}

func TestEventbriteFetchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewEventbriteClient(server.URL, "test-token", 5*time.Second)
	_, err := client.Fetch(context.Background())
	require.ErrorContains(t, err, "unexpected status 429")
}

func TestCanadaGovFetch(t *testing.T) {
	fixture := `{
  "events": [
    {
      "id": "CG7",
      "title": "Winterlude",
      "description": "Ice sculptures on the canal",
      "start_date": "2027-02-05T17:00:00Z",
      "end_date": "2027-02-05T22:00:00Z",
      "category": "Festival",
      "free_admission": true,
      "venue": {
        "name": "Rideau Canal",
        "city": "Ottawa",
        "province": "ON",
        "latitude": 45.4215,
        "longitude": -75.6972
      }
    },
    {
      "id": "CG8",
      "title": "",
      "start_date": "2027-02-05T17:00:00Z"
    }
  ]
}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cultural-events.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixture))
	}))
	defer server.Close()

	client := NewCanadaGovClient(server.URL, 5*time.Second)
	require.Equal(t, events.SourceCanadaGov, client.Name())

	listings, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)

	got := listings[0]
	require.Equal(t, "CG7", got.ExternalID)
	require.Equal(t, "Winterlude", got.Name)
	require.True(t, got.IsFree)
	require.Equal(t, events.CategoryFestival, got.Category)
	require.Equal(t, "Ottawa", got.Venue.City)
	require.NotNil(t, got.EndTime)
}

func TestMapCategory(t *testing.T) {
	require.Equal(t, events.CategoryMusic, mapCategory("Music"))
	require.Equal(t, events.CategoryTheatre, mapCategory("Performing & Visual Arts"))
	require.Equal(t, events.CategoryExhibition, mapCategory(" museum "))
	require.Equal(t, events.CategoryOther, mapCategory("Quantum Chess"))
	require.Equal(t, events.CategoryOther, mapCategory(""))
}
