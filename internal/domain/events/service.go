package events

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPageSize  = 10
	maxPageSize      = 100
	upcomingPageSize = 20
	upcomingWindow   = 7 * 24 * time.Hour
)

// localDateTime is the wire format for search date bounds, an ISO-8601 local
// date-time without offset.
const localDateTime = "2006-01-02T15:04:05"

// Service implements the public search contract over the event store.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Coordinate is a caller-supplied point used to augment results with a
// great-circle distance.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// ParseSearchQuery maps the public search query string onto normalized store
// arguments. Absent filters mean no constraint; page and size fall back to
// defaults, size is capped at maxPageSize.
func ParseSearchQuery(values url.Values) (Filters, PageRequest, *Coordinate, error) {
	filters := Filters{}
	page := PageRequest{Size: defaultPageSize, SortBy: SortByStartTime, Direction: SortAsc}

	filters.City = strings.TrimSpace(values.Get("city"))

	if raw := strings.TrimSpace(values.Get("isFree")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, page, nil, ValidationError{Field: "isFree", Message: "must be true or false"}
		}
		filters.IsFree = &parsed
	}

	if raw := strings.TrimSpace(values.Get("category")); raw != "" {
		category, ok := ParseCategory(raw)
		if !ok {
			return filters, page, nil, ValidationError{Field: "category", Message: "unknown category"}
		}
		filters.Category = &category
	}

	startDate, err := parseDateTime("startDate", values.Get("startDate"))
	if err != nil {
		return filters, page, nil, err
	}
	endDate, err := parseDateTime("endDate", values.Get("endDate"))
	if err != nil {
		return filters, page, nil, err
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return filters, page, nil, ValidationError{Field: "endDate", Message: "must be on or after startDate"}
	}
	filters.StartDate = startDate
	filters.EndDate = endDate

	page.Page = parseIntDefault(values.Get("page"), 0)
	page.Size = parseIntDefault(values.Get("size"), defaultPageSize)

	if raw := strings.TrimSpace(values.Get("sortBy")); raw != "" {
		if !isSortable(raw) {
			return filters, page, nil, ValidationError{Field: "sortBy", Message: "unsupported sort field"}
		}
		page.SortBy = raw
	}
	if strings.EqualFold(strings.TrimSpace(values.Get("direction")), string(SortDesc)) {
		page.Direction = SortDesc
	}

	coord, err := parseCoordinate(values)
	if err != nil {
		return filters, page, nil, err
	}

	return filters, NormalizePage(page), coord, nil
}

// NormalizePage clamps page and size into valid bounds and fills sort
// defaults: negative page becomes 0, size outside [1, maxPageSize] becomes the
// default, missing sort becomes startTime ascending.
func NormalizePage(page PageRequest) PageRequest {
	if page.Page < 0 {
		page.Page = 0
	}
	if page.Size <= 0 {
		page.Size = defaultPageSize
	}
	if page.Size > maxPageSize {
		page.Size = maxPageSize
	}
	if page.SortBy == "" || !isSortable(page.SortBy) {
		page.SortBy = SortByStartTime
	}
	if page.Direction != SortDesc {
		page.Direction = SortAsc
	}
	return page
}

// Search runs the public filtered query. Only approved events are visible;
// when a coordinate is supplied, results whose location has coordinates gain a
// distance in kilometres.
func (s *Service) Search(ctx context.Context, filters Filters, page PageRequest, coord *Coordinate) (Page, error) {
	approved := true
	filters.Approved = &approved

	result, err := s.repo.Search(ctx, filters, NormalizePage(page))
	if err != nil {
		return Page{}, err
	}
	augmentDistances(result.Content, coord)
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

// Upcoming returns approved events starting within the next seven days of the
// given instant, at most upcomingPageSize of them, earliest first. The window
// is inclusive at both ends, so an event starting exactly seven days out is
// still listed. The pagination envelope is deliberately dropped.
func (s *Service) Upcoming(ctx context.Context, now time.Time) ([]Event, error) {
	weekLater := now.Add(upcomingWindow)
	approved := true
	filters := Filters{StartDate: &now, EndDate: &weekLater, Approved: &approved}
	page := PageRequest{Size: upcomingPageSize, SortBy: SortByStartTime, Direction: SortAsc}

	result, err := s.repo.Search(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	return result.Content, nil
}

func augmentDistances(items []Event, coord *Coordinate) {
	if coord == nil {
		return
	}
	for i := range items {
		loc := items[i].Location
		if loc == nil || !loc.HasCoordinates() {
			continue
		}
		distance := DistanceKm(coord.Latitude, coord.Longitude, *loc.Latitude, *loc.Longitude)
		items[i].DistanceKm = &distance
	}
}

// ParseTimestamp parses an ISO-8601 local date-time from a request field. A
// trailing offset is tolerated.
func ParseTimestamp(field, value string) (*time.Time, error) {
	return parseDateTime(field, value)
}

func parseDateTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(localDateTime, value)
	if err != nil {
		// Tolerate a trailing offset.
		parsed, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, ValidationError{Field: field, Message: "must be an ISO-8601 date-time"}
		}
	}
	return &parsed, nil
}

func parseIntDefault(value string, fallback int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCoordinate(values url.Values) (*Coordinate, error) {
	rawLat := strings.TrimSpace(values.Get("lat"))
	rawLon := strings.TrimSpace(values.Get("lon"))
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, ValidationError{Field: "lat", Message: "lat and lon must be supplied together"}
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, ValidationError{Field: "lat", Message: "must be a latitude between -90 and 90"}
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, ValidationError{Field: "lon", Message: "must be a longitude between -180 and 180"}
	}
	return &Coordinate{Latitude: lat, Longitude: lon}, nil
}

func isSortable(field string) bool {
	switch field {
	case SortByStartTime, SortByName, SortByPrice, SortByCategory, SortByCreatedAt, SortByID:
		return true
	default:
		return false
	}
}
