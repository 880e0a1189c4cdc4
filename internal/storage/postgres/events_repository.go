package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cultureradar/server/internal/domain/events"
	"github.com/cultureradar/server/internal/domain/locations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ events.Repository = (*EventRepository)(nil)

// sortColumns whitelists the ORDER BY targets; the sort field is validated at
// parse time but the repository never interpolates caller input directly.
var sortColumns = map[string]string{
	events.SortByStartTime: "e.start_time",
	events.SortByName:      "e.name",
	events.SortByPrice:     "e.price",
	events.SortByCategory:  "e.category",
	events.SortByCreatedAt: "e.created_at",
	events.SortByID:        "e.id",
}

const eventColumns = `
e.id, e.name, e.description, e.start_time, e.end_time, e.image_url, e.price,
e.is_free, e.category, e.location_id, e.approved, e.creator_id, e.external_id,
e.external_source, e.created_at, e.updated_at,
l.id, l.name, l.address, l.city, l.province, l.postal_code, l.latitude,
l.longitude, l.created_at, l.updated_at`

// Both date bounds are inclusive: an event starting exactly on the end date
// still matches. Upcoming relies on this for its seven-day window.
const eventFilterClause = `
      ($1 = '' OR lower(l.city) = lower($1))
  AND ($2::boolean IS NULL OR (e.is_free OR (e.price IS NOT NULL AND e.price <= 0)) = $2::boolean)
  AND ($3 = '' OR e.category = $3)
  AND ($4::timestamptz IS NULL OR e.start_time >= $4::timestamptz)
  AND ($5::timestamptz IS NULL OR e.start_time <= $5::timestamptz)
  AND ($6::boolean IS NULL OR e.approved = $6::boolean)`

func (r *EventRepository) Search(ctx context.Context, filters events.Filters, page events.PageRequest) (events.Page, error) {
	q := r.querier()

	sortColumn, ok := sortColumns[page.SortBy]
	if !ok {
		sortColumn = sortColumns[events.SortByStartTime]
	}
	direction := "ASC"
	if page.Direction == events.SortDesc {
		direction = "DESC"
	}

	category := ""
	if filters.Category != nil {
		category = string(*filters.Category)
	}

	args := []any{
		filters.City,
		filters.IsFree,
		category,
		filters.StartDate,
		filters.EndDate,
		filters.Approved,
	}

	var total int64
	countQuery := `
SELECT count(*)
  FROM events e
  JOIN locations l ON l.id = e.location_id
 WHERE` + eventFilterClause
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return events.Page{}, fmt.Errorf("count events: %w", err)
	}

	// Ties broken by id ascending so paging is deterministic.
	listQuery := fmt.Sprintf(`
SELECT %s
  FROM events e
  JOIN locations l ON l.id = e.location_id
 WHERE %s
 ORDER BY %s %s, e.id ASC
 LIMIT $7 OFFSET $8`, eventColumns, eventFilterClause, sortColumn, direction)

	rows, err := q.Query(ctx, listQuery, append(args, page.Size, page.Page*page.Size)...)
	if err != nil {
		return events.Page{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, page.Size)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return events.Page{}, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return events.Page{}, fmt.Errorf("iterate events: %w", err)
	}

	return events.Page{
		Content:       items,
		TotalElements: total,
		Page:          page.Page,
		Size:          page.Size,
	}, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*events.Event, error) {
	q := r.querier()

	rows, err := q.Query(ctx, `
SELECT `+eventColumns+`
  FROM events e
  JOIN locations l ON l.id = e.location_id
 WHERE e.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get event: %w", err)
		}
		return nil, events.ErrNotFound
	}
	event, err := scanEvent(rows)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	// A brand-new location is created in the same transaction as the event so
	// a failure on either side leaves nothing behind.
	if r.tx == nil && params.NewLocation != nil {
		repo := &Repository{pool: r.pool}
		var created *events.Event
		err := repo.WithTx(ctx, func(ctx context.Context, txRepo *Repository) error {
			inner := &EventRepository{pool: txRepo.pool, tx: txRepo.tx}
			var err error
			created, err = inner.Create(ctx, params)
			return err
		})
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	locationID, err := r.resolveLocation(ctx, params)
	if err != nil {
		return nil, err
	}

	q := r.querier()
	var id int64
	if params.ExternalID != nil {
		// The partial unique index on (external_source, external_id) makes
		// concurrent ingestion of the same listing insert exactly once.
		err = q.QueryRow(ctx, `
INSERT INTO events (name, description, start_time, end_time, image_url, price,
                    is_free, category, location_id, approved, creator_id,
                    external_id, external_source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (external_source, external_id) WHERE external_id IS NOT NULL DO NOTHING
RETURNING id`,
			params.Name, params.Description, params.StartTime, params.EndTime,
			params.ImageURL, params.Price, params.IsFree, string(params.Category),
			locationID, params.Approved, params.CreatorID,
			params.ExternalID, params.ExternalSource,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrConflict
		}
	} else {
		err = q.QueryRow(ctx, `
INSERT INTO events (name, description, start_time, end_time, image_url, price,
                    is_free, category, location_id, approved, creator_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`,
			params.Name, params.Description, params.StartTime, params.EndTime,
			params.ImageURL, params.Price, params.IsFree, string(params.Category),
			locationID, params.Approved, params.CreatorID,
		).Scan(&id)
	}
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *EventRepository) resolveLocation(ctx context.Context, params events.CreateParams) (int64, error) {
	if params.LocationID != nil {
		return *params.LocationID, nil
	}
	if params.NewLocation == nil {
		return 0, fmt.Errorf("create event: location is required")
	}
	locRepo := &LocationRepository{pool: r.pool, tx: r.tx}
	location, err := locRepo.Create(ctx, *params.NewLocation)
	if err != nil {
		return 0, err
	}
	return location.ID, nil
}

func (r *EventRepository) Update(ctx context.Context, id int64, params events.UpdateParams) (*events.Event, error) {
	q := r.querier()

	tag, err := q.Exec(ctx, `
UPDATE events
   SET name = $2, description = $3, start_time = $4, end_time = $5,
       image_url = $6, price = $7, is_free = $8, category = $9,
       location_id = $10, updated_at = now()
 WHERE id = $1`,
		id, params.Name, params.Description, params.StartTime, params.EndTime,
		params.ImageURL, params.Price, params.IsFree, string(params.Category),
		params.LocationID,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, events.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.querier().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) Approve(ctx context.Context, ids []int64) ([]events.Event, error) {
	q := r.querier()

	// One statement, so concurrent approvals over disjoint id sets cannot lose
	// updates; re-approving is a no-op that still matches.
	if _, err := q.Exec(ctx, `
UPDATE events SET approved = true, updated_at = now()
 WHERE id = ANY($1) AND NOT approved`, ids); err != nil {
		return nil, fmt.Errorf("approve events: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT `+eventColumns+`
  FROM events e
  JOIN locations l ON l.id = e.location_id
 WHERE e.id = ANY($1)
 ORDER BY e.id ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("load approved events: %w", err)
	}
	defer rows.Close()

	approved := make([]events.Event, 0, len(ids))
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approved event: %w", err)
		}
		approved = append(approved, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approved events: %w", err)
	}
	return approved, nil
}

func (r *EventRepository) ExistsByExternal(ctx context.Context, externalID, externalSource string) (bool, error) {
	var exists bool
	err := r.querier().QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM events WHERE external_source = $1 AND external_id = $2
)`, externalSource, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check external event: %w", err)
	}
	return exists, nil
}

func (r *EventRepository) querier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanEvent(rows pgx.Rows) (events.Event, error) {
	var (
		event       events.Event
		description *string
		endTime     pgtype.Timestamptz
		imageURL    *string
		category    string
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz

		loc           locations.Location
		locAddress    *string
		locProvince   *string
		locPostalCode *string
		locCreatedAt  pgtype.Timestamptz
		locUpdatedAt  pgtype.Timestamptz
	)
	if err := rows.Scan(
		&event.ID,
		&event.Name,
		&description,
		&event.StartTime,
		&endTime,
		&imageURL,
		&event.Price,
		&event.IsFree,
		&category,
		&event.LocationID,
		&event.Approved,
		&event.CreatorID,
		&event.ExternalID,
		&event.ExternalSource,
		&createdAt,
		&updatedAt,
		&loc.ID,
		&loc.Name,
		&locAddress,
		&loc.City,
		&locProvince,
		&locPostalCode,
		&loc.Latitude,
		&loc.Longitude,
		&locCreatedAt,
		&locUpdatedAt,
	); err != nil {
		return events.Event{}, err
	}

	event.Description = derefString(description)
	event.EndTime = timePtr(endTime)
	event.ImageURL = derefString(imageURL)
	event.Category = events.Category(category)
	event.CreatedAt = timeValue(createdAt)
	event.UpdatedAt = timeValue(updatedAt)

	loc.Address = derefString(locAddress)
	loc.Province = derefString(locProvince)
	loc.PostalCode = derefString(locPostalCode)
	loc.CreatedAt = timeValue(locCreatedAt)
	loc.UpdatedAt = timeValue(locUpdatedAt)
	event.Location = &loc

	return event, nil
}
