package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cultureradar/server/internal/api/middleware"
	"github.com/cultureradar/server/internal/api/problem"
	"github.com/cultureradar/server/internal/auth"
	"github.com/cultureradar/server/internal/cache"
	"github.com/cultureradar/server/internal/domain/events"
	"github.com/cultureradar/server/internal/domain/locations"
	"github.com/cultureradar/server/internal/ingest"
	"github.com/cultureradar/server/internal/metrics"
)

const (
	problemValidation  = "https://cultureradar.ca/problems/validation-error"
	problemNotFound    = "https://cultureradar.ca/problems/not-found"
	problemForbidden   = "https://cultureradar.ca/problems/forbidden"
	problemConflict    = "https://cultureradar.ca/problems/conflict"
	problemServerError = "https://cultureradar.ca/problems/server-error"
)

const searchCachePrefix = "events:"

type EventsHandler struct {
	Search   *events.Service
	Approval *events.ApprovalService
	Ingester *ingest.Ingester
	Policy   auth.Policy
	Cache    *cache.Cache
	Env      string
}

func NewEventsHandler(search *events.Service, approval *events.ApprovalService, ingester *ingest.Ingester, policy auth.Policy, c *cache.Cache, env string) *EventsHandler {
	return &EventsHandler{
		Search:   search,
		Approval: approval,
		Ingester: ingester,
		Policy:   policy,
		Cache:    c,
		Env:      env,
	}
}

// PublicSearch serves the filtered, paginated public catalog.
func (h *EventsHandler) PublicSearch(w http.ResponseWriter, r *http.Request) {
	filters, page, coord, err := events.ParseSearchQuery(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	cacheKey := searchCachePrefix + "search:" + r.URL.RawQuery
	var cached events.Page
	if err := h.Cache.Get(r.Context(), cacheKey, &cached); err == nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := h.Search.Search(r.Context(), filters, page, coord)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}

	// Distance-augmented pages vary per caller coordinate; the raw query is
	// part of the key so they cache independently.
	_ = h.Cache.Set(r.Context(), cacheKey, result)
	writeJSON(w, http.StatusOK, result)
}

// PublicGet serves one event by id.
func (h *EventsHandler) PublicGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	event, err := h.Search.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// PublicUpcoming serves the next seven days of approved events, a bare list
// without the pagination envelope.
func (h *EventsHandler) PublicUpcoming(w http.ResponseWriter, r *http.Request) {
	cacheKey := searchCachePrefix + "upcoming"
	var cached []events.Event
	if err := h.Cache.Get(r.Context(), cacheKey, &cached); err == nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := h.Search.Upcoming(r.Context(), time.Now())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}

	_ = h.Cache.Set(r.Context(), cacheKey, result)
	writeJSON(w, http.StatusOK, result)
}

type locationPayload struct {
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	Province   string   `json:"province"`
	PostalCode string   `json:"postalCode"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

type eventPayload struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	StartTime   string           `json:"startTime"`
	EndTime     string           `json:"endTime"`
	ImageURL    string           `json:"imageUrl"`
	Price       *float64         `json:"price"`
	IsFree      bool             `json:"isFree"`
	Category    string           `json:"category"`
	LocationID  *int64           `json:"locationId"`
	Location    *locationPayload `json:"location"`
	Approved    bool             `json:"approved"`
}

// Create stores a new submission. Non-admin callers always produce a pending
// event regardless of the approved flag in the payload.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpCreateEvent, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	params, err := payload.toCreateParams()
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	actor := events.Actor{ID: claimUserID(claims), IsAdmin: auth.IsAdmin(claimRoles(claims))}
	event, err := h.Approval.Create(r.Context(), params, actor)
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	h.invalidateCache(r)
	writeJSON(w, http.StatusCreated, event)
}

// Update replaces the mutable fields of an event.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	if !h.Policy.Allowed(auth.OpUpdateEvent, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	params, err := payload.toUpdateParams()
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	actor := events.Actor{ID: claimUserID(claims), IsAdmin: auth.IsAdmin(claimRoles(claims))}
	event, err := h.Approval.Update(r.Context(), id, params, actor)
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	h.invalidateCache(r)
	writeJSON(w, http.StatusOK, event)
}

// Delete removes an event permanently.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpDeleteEvent, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	if err := h.Approval.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	h.invalidateCache(r)
	w.WriteHeader(http.StatusNoContent)
}

// Pending lists the moderation queue, newest submissions first.
func (h *EventsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpListPending, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	page := events.PageRequest{
		Page: parseQueryInt(r, "page", 0),
		Size: parseQueryInt(r, "size", 50),
	}
	result, err := h.Approval.Pending(r.Context(), page)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type approvePayload struct {
	IDs []int64 `json:"ids"`
}

// decodeApproveBody accepts either a bare JSON array of ids or an object with
// an "ids" field.
func decodeApproveBody(r *http.Request) ([]int64, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, nil
	}

	var payload approvePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload.IDs, nil
}

// Approve transitions the listed events to approved. Unknown ids are skipped
// without error and the response carries the events that exist.
func (h *EventsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpApproveEvents, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	ids, err := decodeApproveBody(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	approved, err := h.Approval.Approve(r.Context(), ids)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}

	metrics.EventsApprovedTotal.Add(float64(len(approved)))
	h.invalidateCache(r)
	writeJSON(w, http.StatusOK, approved)
}

// FetchExternal runs one ingestion pass synchronously and reports per-source
// counts.
func (h *EventsHandler) FetchExternal(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpFetchExternal, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	report := h.Ingester.RunOnce(r.Context())
	h.invalidateCache(r)
	writeJSON(w, http.StatusOK, report)
}

func (h *EventsHandler) invalidateCache(r *http.Request) {
	_ = h.Cache.Invalidate(r.Context(), searchCachePrefix)
}

func (p eventPayload) toCreateParams() (events.CreateParams, error) {
	start, err := events.ParseTimestamp("startTime", p.StartTime)
	if err != nil {
		return events.CreateParams{}, err
	}
	if start == nil {
		return events.CreateParams{}, events.ValidationError{Field: "startTime", Message: "is required"}
	}
	end, err := events.ParseTimestamp("endTime", p.EndTime)
	if err != nil {
		return events.CreateParams{}, err
	}

	params := events.CreateParams{
		Name:        p.Name,
		Description: p.Description,
		StartTime:   *start,
		EndTime:     end,
		ImageURL:    p.ImageURL,
		Price:       p.Price,
		IsFree:      p.IsFree,
		Category:    events.Category(strings.ToUpper(strings.TrimSpace(p.Category))),
		LocationID:  p.LocationID,
		Approved:    p.Approved,
	}
	if p.Location != nil {
		params.NewLocation = &locations.CreateParams{
			Name:       p.Location.Name,
			Address:    p.Location.Address,
			City:       p.Location.City,
			Province:   p.Location.Province,
			PostalCode: p.Location.PostalCode,
			Latitude:   p.Location.Latitude,
			Longitude:  p.Location.Longitude,
		}
	}
	return params, nil
}

func (p eventPayload) toUpdateParams() (events.UpdateParams, error) {
	start, err := events.ParseTimestamp("startTime", p.StartTime)
	if err != nil {
		return events.UpdateParams{}, err
	}
	if start == nil {
		return events.UpdateParams{}, events.ValidationError{Field: "startTime", Message: "is required"}
	}
	end, err := events.ParseTimestamp("endTime", p.EndTime)
	if err != nil {
		return events.UpdateParams{}, err
	}

	var locationID int64
	if p.LocationID != nil {
		locationID = *p.LocationID
	}
	return events.UpdateParams{
		Name:        p.Name,
		Description: p.Description,
		StartTime:   *start,
		EndTime:     end,
		ImageURL:    p.ImageURL,
		Price:       p.Price,
		IsFree:      p.IsFree,
		Category:    events.Category(strings.ToUpper(strings.TrimSpace(p.Category))),
		LocationID:  locationID,
	}, nil
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var validationErr events.ValidationError
	var locValidationErr locations.ValidationError
	switch {
	case errors.Is(err, events.ErrNotFound), errors.Is(err, locations.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problemNotFound, "Not found", err, env)
	case errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", err, env)
	case errors.Is(err, events.ErrConflict):
		problem.Write(w, r, http.StatusConflict, problemConflict, "Conflict", err, env)
	case errors.As(err, &validationErr):
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, env,
			problem.WithErrors(map[string]interface{}{validationErr.Field: validationErr.Message}))
	case errors.As(err, &locValidationErr):
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, env,
			problem.WithErrors(map[string]interface{}{locValidationErr.Field: locValidationErr.Message}))
	default:
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, env)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	if raw == "" {
		return 0, events.ValidationError{Field: "id", Message: "missing"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, events.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func claimRoles(claims *auth.Claims) []string {
	if claims == nil {
		return nil
	}
	return claims.Roles
}

func claimUserID(claims *auth.Claims) int64 {
	if claims == nil {
		return 0
	}
	return claims.UserID()
}
