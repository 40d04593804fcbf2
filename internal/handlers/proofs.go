package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/LucsL0pes/mini-gymatch/internal/middleware"
	"github.com/LucsL0pes/mini-gymatch/internal/services"
	"github.com/LucsL0pes/mini-gymatch/internal/upload"
	"github.com/LucsL0pes/mini-gymatch/internal/utils"
)

// MaxRequestSize bounds body buffering before the multipart decoder runs.
// The slack on top of the upload ceiling covers multipart framing overhead;
// the per-file limit is enforced by the policy guard afterwards.
const MaxRequestSize = upload.MaxSize + 1<<20

type ProofHandler struct {
	service services.ProofService
	logger  *utils.Logger
}

func NewProofHandler(service services.ProofService, logger *utils.Logger) *ProofHandler {
	return &ProofHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ProofHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		h.respondError(w, utils.NewUnauthorizedError("unauthorized"))
		return
	}

	// Reject oversized requests early, then cap accumulation for the rest.
	if r.ContentLength > MaxRequestSize {
		h.respondError(w, utils.NewBadRequestError("file too large (limit 6MB)"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, utils.NewBadRequestError("file too large (limit 6MB)"))
			return
		}
		h.respondError(w, utils.NewBadRequestError("could not read request body"))
		return
	}

	resp, err := h.service.SubmitProof(r.Context(), userID, body, r.Header.Get("Content-Type"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ProofHandler) ProofStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		h.respondError(w, utils.NewUnauthorizedError("unauthorized"))
		return
	}

	resp, err := h.service.ProofStatus(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ProofHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *ProofHandler) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch e := err.(type) {
	case *utils.AppError:
		status = e.StatusCode
		message = e.Message
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	h.logger.Error("Request error", "status", status, "error", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
