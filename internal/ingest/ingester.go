package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cultureradar/server/internal/domain/events"
	"github.com/cultureradar/server/internal/domain/locations"
)

// SourceReport counts the outcome of one source's pass.
type SourceReport struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// Report aggregates one full ingestion pass across all sources.
type Report struct {
	Sources []SourceReport `json:"sources"`
}

func (r Report) Inserted() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Inserted
	}
	return total
}

// Recorder receives per-source counters after each pass. Implementations
// must be safe for concurrent use.
type Recorder interface {
	ObserveIngest(source string, fetched, inserted, skipped, failed int)
}

// Ingester pulls listings from every configured source and stores the ones
// not seen before as unapproved events.
type Ingester struct {
	events    events.Repository
	locations locations.Repository
	clients   []Client
	recorder  Recorder
	logger    zerolog.Logger
}

func NewIngester(eventsRepo events.Repository, locationsRepo locations.Repository, clients []Client, recorder Recorder, logger zerolog.Logger) *Ingester {
	return &Ingester{
		events:    eventsRepo,
		locations: locationsRepo,
		clients:   clients,
		recorder:  recorder,
		logger:    logger.With().Str("component", "ingest").Logger(),
	}
}

// RunOnce executes a single pass over all sources. Sources run concurrently
// and a failing source never aborts the others; its error is logged and
// reflected in the report.
func (ing *Ingester) RunOnce(ctx context.Context) Report {
	reports := make([]SourceReport, len(ing.clients))

	g, ctx := errgroup.WithContext(ctx)
	for i, client := range ing.clients {
		g.Go(func() error {
			reports[i] = ing.runSource(ctx, client)
			return nil
		})
	}
	g.Wait()

	for _, r := range reports {
		if ing.recorder != nil {
			ing.recorder.ObserveIngest(r.Source, r.Fetched, r.Inserted, r.Skipped, r.Failed)
		}
		ing.logger.Info().
			Str("source", r.Source).
			Int("fetched", r.Fetched).
			Int("inserted", r.Inserted).
			Int("skipped", r.Skipped).
			Int("failed", r.Failed).
			Msg("ingest pass complete")
	}
	return Report{Sources: reports}
}

func (ing *Ingester) runSource(ctx context.Context, client Client) SourceReport {
	report := SourceReport{Source: client.Name()}

	listings, err := client.Fetch(ctx)
	if err != nil {
		ing.logger.Error().Err(err).Str("source", client.Name()).Msg("source fetch failed")
		report.Error = err.Error()
		return report
	}
	report.Fetched = len(listings)

	for _, listing := range listings {
		switch err := ing.storeListing(ctx, client.Name(), listing); {
		case err == nil:
			report.Inserted++
		case errors.Is(err, errAlreadySeen):
			report.Skipped++
		default:
			report.Failed++
			ing.logger.Warn().Err(err).
				Str("source", client.Name()).
				Str("external_id", listing.ExternalID).
				Msg("listing not stored")
		}
	}
	return report
}

var errAlreadySeen = errors.New("listing already ingested")

// storeListing inserts one listing as an unapproved event. A listing whose
// external identity is already present is left untouched; first seen wins.
func (ing *Ingester) storeListing(ctx context.Context, source string, listing Listing) error {
	exists, err := ing.events.ExistsByExternal(ctx, listing.ExternalID, source)
	if err != nil {
		return err
	}
	if exists {
		return errAlreadySeen
	}

	params := events.CreateParams{
		Name:           listing.Name,
		Description:    listing.Description,
		StartTime:      listing.StartTime,
		EndTime:        listing.EndTime,
		ImageURL:       listing.ImageURL,
		Price:          listing.Price,
		IsFree:         listing.IsFree,
		Category:       listing.Category,
		Approved:       false,
		ExternalID:     &listing.ExternalID,
		ExternalSource: &source,
	}

	venue := ing.resolveVenue(ctx, listing.Venue)
	if venue != nil {
		params.LocationID = &venue.ID
	} else {
		newVenue := locations.CreateParams{
			Name:       listing.Venue.Name,
			Address:    listing.Venue.Address,
			City:       listing.Venue.City,
			Province:   listing.Venue.Province,
			PostalCode: listing.Venue.PostalCode,
			Latitude:   listing.Venue.Latitude,
			Longitude:  listing.Venue.Longitude,
		}
		// Every event needs a venue; a listing whose venue cannot make a
		// valid location record cannot be stored.
		if err := locations.ValidateParams(newVenue); err != nil {
			return fmt.Errorf("listing %s venue: %w", listing.ExternalID, err)
		}
		params.NewLocation = &newVenue
	}

	if _, err := ing.events.Create(ctx, params); err != nil {
		if errors.Is(err, events.ErrConflict) {
			// Another pass inserted the same listing between the existence
			// check and the insert.
			return errAlreadySeen
		}
		return err
	}
	return nil
}

// resolveVenue returns the stored venue matching the listing's venue by name
// and city, or nil when a new one must be created with the event.
func (ing *Ingester) resolveVenue(ctx context.Context, venue Venue) *locations.Location {
	if venue.Name == "" || venue.City == "" {
		return nil
	}
	found, err := ing.locations.FindByNameAndCity(ctx, venue.Name, venue.City)
	if err != nil {
		if !errors.Is(err, locations.ErrNotFound) {
			ing.logger.Warn().Err(err).Str("venue", venue.Name).Msg("venue lookup failed")
		}
		return nil
	}
	return found
}
