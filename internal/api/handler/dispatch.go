package handler

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pedalhaus/clubnotify/internal/api/respond"
)

// requestSecret extracts the caller's shared secret from the Authorization
// Bearer header or, failing that, the X-Dispatch-Secret header.
func requestSecret(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Dispatch-Secret")
}

// secretsMatch compares two secrets in constant time. Hashing first keeps
// the comparison length-independent.
func secretsMatch(got, want string) bool {
	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}

// checkDispatchSecret enforces the trigger contract: a missing server-side
// secret is a configuration error (500); a missing or wrong caller secret is
// rejected before any resolution work begins (401). Returns false after
// writing the error response.
func (h *Handler) checkDispatchSecret(w http.ResponseWriter, r *http.Request) bool {
	if h.cfg.DispatchSecret == "" {
		h.logger.Error("DISPATCH_SECRET is not configured")
		respond.WriteError(w, http.StatusInternalServerError, "NOT_CONFIGURED",
			"dispatch secret is not configured")
		return false
	}
	if !secretsMatch(requestSecret(r), h.cfg.DispatchSecret) {
		respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED",
			"missing or invalid dispatch secret")
		return false
	}
	return true
}

// Dispatch runs one delivery pass over due notifications.
// @Summary Dispatch due notifications
// @Description Processes due, unsent notifications: resolves audiences, sends push with email fallback, and marks them sent. Authenticated by shared secret.
// @Tags dispatch
// @Produce json
// @Param Authorization header string false "Bearer <secret>"
// @Param X-Dispatch-Secret header string false "Shared secret"
// @Success 200 {object} notify.Summary
// @Failure 401 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /dispatch [post]
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !h.checkDispatchSecret(w, r) {
		return
	}

	summary, err := h.dispatcher.Run(r.Context())
	if err != nil {
		h.logger.Error("dispatch run failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DISPATCH_FAILED",
			"dispatch run failed")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, summary)
}
