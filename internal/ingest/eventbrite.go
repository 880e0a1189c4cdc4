package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cultureradar/server/internal/domain/events"
)

// EventbriteClient pulls listings from the Eventbrite search API.
type EventbriteClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewEventbriteClient(baseURL, token string, timeout time.Duration) *EventbriteClient {
	return &EventbriteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: newHTTPClient(timeout),
	}
}

func (c *EventbriteClient) Name() string {
	return events.SourceEventbrite
}

type eventbriteResponse struct {
	Events []eventbriteEvent `json:"events"`
}

type eventbriteEvent struct {
	ID   string `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
	Start struct {
		UTC string `json:"utc"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	Logo struct {
		URL string `json:"url"`
	} `json:"logo"`
	IsFree bool `json:"is_free"`
	Venue  struct {
		Name    string `json:"name"`
		Address struct {
			Address1   string `json:"address_1"`
			City       string `json:"city"`
			Region     string `json:"region"`
			PostalCode string `json:"postal_code"`
			Latitude   string `json:"latitude"`
			Longitude  string `json:"longitude"`
		} `json:"address"`
	} `json:"venue"`
	Category struct {
		Name string `json:"name"`
	} `json:"category"`
	TicketAvailability struct {
		MinimumTicketPrice struct {
			MajorValue string `json:"major_value"`
		} `json:"minimum_ticket_price"`
	} `json:"ticket_availability"`
}

func (c *EventbriteClient) Fetch(ctx context.Context) ([]Listing, error) {
	url := fmt.Sprintf("%s/events/search/?expand=venue,category,ticket_availability", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("eventbrite request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eventbrite fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eventbrite fetch: unexpected status %d", resp.StatusCode)
	}

	var payload eventbriteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("eventbrite decode: %w", err)
	}

	listings := make([]Listing, 0, len(payload.Events))
	for _, item := range payload.Events {
		listing, err := mapEventbrite(item)
		if err != nil {
			// A malformed listing is dropped, not fatal for the batch.
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func mapEventbrite(item eventbriteEvent) (Listing, error) {
	if item.ID == "" || item.Name.Text == "" {
		return Listing{}, fmt.Errorf("missing id or name")
	}
	start, err := time.Parse(time.RFC3339, item.Start.UTC)
	if err != nil {
		return Listing{}, fmt.Errorf("parse start: %w", err)
	}

	listing := Listing{
		ExternalID:  item.ID,
		Name:        item.Name.Text,
		Description: item.Description.Text,
		StartTime:   start,
		ImageURL:    item.Logo.URL,
		IsFree:      item.IsFree,
		Category:    mapCategory(item.Category.Name),
		Venue: Venue{
			Name:       item.Venue.Name,
			Address:    item.Venue.Address.Address1,
			City:       item.Venue.Address.City,
			Province:   item.Venue.Address.Region,
			PostalCode: item.Venue.Address.PostalCode,
		},
	}

	if end, err := time.Parse(time.RFC3339, item.End.UTC); err == nil {
		listing.EndTime = &end
	}
	if price, err := strconv.ParseFloat(item.TicketAvailability.MinimumTicketPrice.MajorValue, 64); err == nil {
		listing.Price = &price
	}
	if lat, err := strconv.ParseFloat(item.Venue.Address.Latitude, 64); err == nil {
		if lon, err := strconv.ParseFloat(item.Venue.Address.Longitude, 64); err == nil {
			listing.Venue.Latitude = &lat
			listing.Venue.Longitude = &lon
		}
	}
	return listing, nil
}

// mapCategory folds a source's free-form category label onto the fixed
// catalog enumeration.
func mapCategory(name string) events.Category {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "music", "concert", "concerts":
		return events.CategoryMusic
	case "theatre", "theater", "performing arts", "performing & visual arts":
		return events.CategoryTheatre
	case "dance":
		return events.CategoryDance
	case "visual arts", "art", "arts":
		return events.CategoryVisualArts
	case "film", "film & media", "cinema":
		return events.CategoryFilm
	case "literature", "books", "book fair":
		return events.CategoryLiterature
	case "festival", "festivals", "seasonal":
		return events.CategoryFestival
	case "workshop", "workshops", "class", "classes":
		return events.CategoryWorkshop
	case "exhibition", "exhibitions", "museum":
		return events.CategoryExhibition
	default:
		return events.CategoryOther
	}
}
