package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/goodtune/trackgate/internal/timeular"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ActivityClient is the subset of the upstream client the handlers need.
type ActivityClient interface {
	ListActivities(ctx context.Context, s timeular.Session) (timeular.ActivitiesResponse, error)
	GetActivity(ctx context.Context, s timeular.Session, id string) (timeular.Activity, error)
	CreateActivity(ctx context.Context, s timeular.Session, req timeular.ActivityRequest) (timeular.Activity, error)
	EditActivity(ctx context.Context, s timeular.Session, id string, req timeular.EditActivityRequest) (timeular.Activity, error)
	DeleteActivity(ctx context.Context, s timeular.Session, id string) (timeular.DeleteResponse, error)
}

// ActivityHandler handles the activity routes. The session and logger are
// fixed at construction and shared read-only by all requests.
type ActivityHandler struct {
	client  ActivityClient
	session timeular.Session
	logger  zerolog.Logger
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(client ActivityClient, session timeular.Session, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		client:  client,
		session: session,
		logger:  logger.With().Str("handler", "activity").Logger(),
	}
}

// createActivityBody requires all three fields to be present.
type createActivityBody struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	Integration *string `json:"integration"`
}

// upstreamContext detaches the upstream call from the inbound connection so
// it runs to completion even if the caller goes away.
func upstreamContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *ActivityHandler) log(r *http.Request) *zerolog.Logger {
	l := h.logger.With().Str("request_id", RequestIDFromContext(r.Context())).Logger()
	return &l
}

// List returns all activities.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	activities, err := h.client.ListActivities(upstreamContext(r), h.session)
	if err != nil {
		h.log(r).Error().Err(err).Msg("Get activities failed")
		writeClientError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}

// Get returns a single activity by ID.
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	activity, err := h.client.GetActivity(upstreamContext(r), h.session, id)
	if err != nil {
		h.log(r).Error().Err(err).Str("id", id).Msg("Get activity failed")
		writeClientError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

// Create creates a new activity.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createActivityBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		body.Name == nil || body.Color == nil || body.Integration == nil {
		writeText(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	req := timeular.ActivityRequest{
		Name:        *body.Name,
		Color:       *body.Color,
		Integration: *body.Integration,
	}
	h.log(r).Info().
		Str("name", req.Name).
		Str("color", req.Color).
		Str("integration", req.Integration).
		Msg("Creating activity")

	activity, err := h.client.CreateActivity(upstreamContext(r), h.session, req)
	if err != nil {
		h.log(r).Error().Err(err).Msg("Create activity failed")
		writeClientError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

// Edit applies a partial update to an activity.
func (h *ActivityHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body *timeular.EditActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeText(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	req := *body

	event := h.log(r).Info().Str("id", id)
	if req.Name != nil {
		event = event.Str("name", *req.Name)
	}
	if req.Color != nil {
		event = event.Str("color", *req.Color)
	}
	event.Msg("Editing activity")

	activity, err := h.client.EditActivity(upstreamContext(r), h.session, id, req)
	if err != nil {
		h.log(r).Error().Err(err).Str("id", id).Msg("Edit activity failed")
		writeClientError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

// Delete deletes an activity.
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.log(r).Info().Str("id", id).Msg("Deleting activity")

	result, err := h.client.DeleteActivity(upstreamContext(r), h.session, id)
	if err != nil {
		h.log(r).Error().Err(err).Str("id", id).Msg("Delete activity failed")
		writeClientError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Health reports liveness without touching the upstream API.
func Health(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "OK")
}
