package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pedalhaus/clubnotify/internal/api/respond"
	"github.com/pedalhaus/clubnotify/internal/notify"
)

// VAPIDKey returns the public key clients subscribe with.
// @Summary Get VAPID public key
// @Tags push
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} respond.ErrorResponse
// @Router /push/vapid-key [get]
func (h *Handler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidKey == "" {
		respond.WriteError(w, http.StatusServiceUnavailable, "PUSH_DISABLED",
			"push delivery is not configured")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{
		"publicKey": h.vapidKey,
	})
}

type subscribeRequest struct {
	UserID   string `json:"user_id"`
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe registers a push subscription for a user.
// @Summary Register push subscription
// @Tags push
// @Accept json
// @Produce json
// @Success 201 {object} map[string]string
// @Failure 400 {object} respond.ErrorResponse
// @Router /push/subscriptions [post]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_USER", "user_id must be a valid id")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_FIELDS",
			"endpoint and keys are required")
		return
	}

	sub := notify.Subscription{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.store.SaveSubscription(r.Context(), sub); err != nil {
		h.logger.Error("save subscription failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "SAVE_FAILED",
			"could not save subscription")
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, map[string]string{"id": sub.ID})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe removes a push subscription by endpoint. Idempotent.
// @Summary Remove push subscription
// @Tags push
// @Accept json
// @Produce json
// @Success 204 "removed"
// @Failure 400 {object} respond.ErrorResponse
// @Router /push/subscriptions [delete]
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "endpoint is required")
		return
	}
	if err := h.store.DeleteSubscriptionByEndpoint(r.Context(), req.Endpoint); err != nil {
		h.logger.Error("delete subscription failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DELETE_FAILED",
			"could not delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
