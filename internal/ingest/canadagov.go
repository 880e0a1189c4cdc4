package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cultureradar/server/internal/domain/events"
)

// CanadaGovClient pulls cultural event listings from the federal open-data
// feed.
type CanadaGovClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCanadaGovClient(baseURL string, timeout time.Duration) *CanadaGovClient {
	return &CanadaGovClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
}

func (c *CanadaGovClient) Name() string {
	return events.SourceCanadaGov
}

type canadaGovEvent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Category    string   `json:"category"`
	Free        bool     `json:"free_admission"`
	Price       *float64 `json:"price"`
	ImageURL    string   `json:"image_url"`
	Venue       struct {
		Name       string   `json:"name"`
		Address    string   `json:"address"`
		City       string   `json:"city"`
		Province   string   `json:"province"`
		PostalCode string   `json:"postal_code"`
		Latitude   *float64 `json:"latitude"`
		Longitude  *float64 `json:"longitude"`
	} `json:"venue"`
}

func (c *CanadaGovClient) Fetch(ctx context.Context) ([]Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cultural-events.json", nil)
	if err != nil {
		return nil, fmt.Errorf("canada gov request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("canada gov fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("canada gov fetch: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Events []canadaGovEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("canada gov decode: %w", err)
	}

	listings := make([]Listing, 0, len(payload.Events))
	for _, item := range payload.Events {
		if item.ID == "" || item.Title == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.StartDate)
		if err != nil {
			continue
		}
		listing := Listing{
			ExternalID:  item.ID,
			Name:        item.Title,
			Description: item.Description,
			StartTime:   start,
			ImageURL:    item.ImageURL,
			Price:       item.Price,
			IsFree:      item.Free,
			Category:    mapCategory(item.Category),
			Venue: Venue{
				Name:       item.Venue.Name,
				Address:    item.Venue.Address,
				City:       item.Venue.City,
				Province:   item.Venue.Province,
				PostalCode: item.Venue.PostalCode,
				Latitude:   item.Venue.Latitude,
				Longitude:  item.Venue.Longitude,
			},
		}
		if end, err := time.Parse(time.RFC3339, item.EndDate); err == nil {
			listing.EndTime = &end
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
