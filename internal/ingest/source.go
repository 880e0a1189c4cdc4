package ingest

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cultureradar/server/internal/domain/events"
)

// Listing is the normalized shape of one external event record, as mapped
// from a source's own wire format.
type Listing struct {
	ExternalID  string
	Name        string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	ImageURL    string
	Price       *float64
	IsFree      bool
	Category    events.Category
	Venue       Venue
}

// Venue carries enough location detail to find or create the referenced
// Location record.
type Venue struct {
	Name       string
	Address    string
	City       string
	Province   string
	PostalCode string
	Latitude   *float64
	Longitude  *float64
}

// Client fetches one source's current listings. A fetch is finite and
// non-restartable; transient failures surface as errors and the next
// scheduled pass retries from scratch.
type Client interface {
	Name() string
	Fetch(ctx context.Context) ([]Listing, error)
}

// newHTTPClient builds the shared client for source fetches: 10s to connect,
// overall deadline from configuration.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
		},
	}
}
