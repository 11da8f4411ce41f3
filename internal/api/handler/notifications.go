package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pedalhaus/clubnotify/internal/api/respond"
	"github.com/pedalhaus/clubnotify/internal/notify"
)

type createNotificationRequest struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	Link         string `json:"link"`
	ScheduledFor string `json:"scheduled_for"` // RFC3339; empty = default announcement time from event
	TargetType   string `json:"target_type"`
	TargetID     string `json:"target_id"`
	Category     string `json:"category"`
	EventID      string `json:"event_id"`
	CreatedBy    string `json:"created_by"`
}

// CreateNotification schedules a notification (admin flow).
// @Summary Schedule a notification
// @Description Creates an unsent scheduled notification. When scheduled_for is empty and event_id is set, the default announcement time is computed from the event start. Authenticated by shared secret.
// @Tags notifications
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Router /notifications [post]
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	if !h.checkDispatchSecret(w, r) {
		return
	}

	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}

	n, errCode, errMsg := h.validateCreate(r, req)
	if errCode != "" {
		status := http.StatusBadRequest
		switch errCode {
		case "EVENT_NOT_FOUND":
			status = http.StatusNotFound
		case "NO_VALID_TIME":
			status = http.StatusUnprocessableEntity
		}
		respond.WriteError(w, status, errCode, errMsg)
		return
	}

	if err := h.store.CreateNotification(r.Context(), n); err != nil {
		h.logger.Error("create notification failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "CREATE_FAILED",
			"could not create notification")
		return
	}

	respond.WriteJSONObject(w, http.StatusCreated, map[string]interface{}{
		"id":            n.ID,
		"scheduled_for": n.ScheduledFor.UTC().Format(time.RFC3339),
		"target_type":   string(n.Target.Type),
		"category":      string(n.Category),
		"sent":          false,
	})
}

// validateCreate checks the request against the target pairing rules and
// fills in defaults. Returns an error code + message when invalid.
func (h *Handler) validateCreate(r *http.Request, req createNotificationRequest) (*notify.Notification, string, string) {
	if req.Title == "" || req.Body == "" {
		return nil, "MISSING_FIELDS", "title and body are required"
	}

	target := notify.Target{Type: notify.TargetType(req.TargetType), ID: req.TargetID}
	if !target.Type.Valid() {
		return nil, "INVALID_TARGET", "unknown target_type"
	}
	if target.Type.NeedsID() {
		if _, err := uuid.Parse(target.ID); err != nil {
			return nil, "INVALID_TARGET", "target_type requires a valid target_id"
		}
	} else if target.ID != "" {
		return nil, "INVALID_TARGET", "target_id is forbidden for target_type=all"
	}

	category := notify.Category(req.Category)
	if !category.Valid() {
		return nil, "INVALID_CATEGORY", "unknown category"
	}

	if req.EventID != "" {
		if _, err := uuid.Parse(req.EventID); err != nil {
			return nil, "INVALID_EVENT", "event_id must be a valid id"
		}
	}
	if _, err := uuid.Parse(req.CreatedBy); err != nil {
		return nil, "INVALID_CREATOR", "created_by must be a valid user id"
	}

	var scheduledFor time.Time
	switch {
	case req.ScheduledFor != "":
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			return nil, "INVALID_TIME", "scheduled_for must be RFC3339"
		}
		scheduledFor = t
	case req.EventID != "":
		startsAt, err := h.store.EventStartsAt(r.Context(), req.EventID)
		if errors.Is(err, notify.ErrEventNotFound) {
			return nil, "EVENT_NOT_FOUND", "event does not exist"
		}
		if err != nil {
			h.logger.Error("event lookup failed", "event_id", req.EventID, "error", err)
			return nil, "INVALID_EVENT", "event lookup failed"
		}
		t, ok := notify.AnnouncementTime(time.Now(), startsAt, h.loc)
		if !ok {
			return nil, "NO_VALID_TIME", "event starts too soon to schedule an announcement"
		}
		scheduledFor = t
	default:
		return nil, "MISSING_TIME", "scheduled_for or event_id is required"
	}

	return &notify.Notification{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Body:         req.Body,
		Link:         req.Link,
		ScheduledFor: scheduledFor,
		Target:       target,
		Category:     category,
		EventID:      req.EventID,
		CreatedBy:    req.CreatedBy,
	}, "", ""
}

// SchedulePreview computes the default announcement and reminder times for
// an event start.
// @Summary Preview default schedule times
// @Description Returns the computed announcement time (null when no valid time exists) and default reminder times for an event starting at starts_at.
// @Tags notifications
// @Produce json
// @Param starts_at query string true "Event start (RFC3339)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /notifications/schedule-preview [get]
func (h *Handler) SchedulePreview(w http.ResponseWriter, r *http.Request) {
	startsAt, err := time.Parse(time.RFC3339, r.URL.Query().Get("starts_at"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_TIME", "starts_at must be RFC3339")
		return
	}

	now := time.Now()
	var announce *string
	if t, ok := notify.AnnouncementTime(now, startsAt, h.loc); ok {
		s := t.UTC().Format(time.RFC3339)
		announce = &s
	}

	reminders := []string{}
	for _, t := range notify.DefaultReminderTimes(startsAt, now) {
		reminders = append(reminders, t.UTC().Format(time.RFC3339))
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"announcement": announce,
		"reminders":    reminders,
	})
}
