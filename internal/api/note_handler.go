package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/digestly/digestly-api/internal/api/shared"
	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/service"
	"github.com/digestly/digestly-api/internal/store"
)

// idempotencyKeyHeader carries the client's dedupe key for note creation.
const idempotencyKeyHeader = "Idempotency-Key"

// maxListLimit caps the page size a client can request.
const maxListLimit = 200

// NoteHandler handles note-related HTTP requests
type NoteHandler struct {
	noteService service.NoteService
}

// NewNoteHandler creates a new NoteHandler
func NewNoteHandler(noteService service.NoteService) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
	}
}

// CreateNote handles POST /api/notes requests. The note is stored in queued
// status and summarized in the background, so the response is 202 Accepted.
// Repeating a request with the same Idempotency-Key returns the original
// note with 200 instead of creating a duplicate.
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipalFromContext(w, r)
	if !ok {
		return
	}

	// Parse request body
	var req CreateNoteRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	// Validate request
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	var idempotencyKey *string
	if key := r.Header.Get(idempotencyKeyHeader); key != "" {
		idempotencyKey = &key
	}

	note, created, err := h.noteService.CreateNote(r.Context(), principal.UserID, req.RawText, idempotencyKey)
	if err != nil {
		slog.Error("failed to create note", "error", err, "user_id", principal.UserID)
		HandleAPIError(w, r, err, "Failed to create note")
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}

	shared.RespondWithJSON(w, r, status, noteToResponse(note))
}

// GetNote handles GET /api/notes/{id} requests.
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipalFromContext(w, r)
	if !ok {
		return
	}

	noteID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	note, err := h.noteService.GetNoteForPrincipal(r.Context(), principal, noteID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, noteToResponse(note))
}

// ListNotes handles GET /api/notes requests. Always scoped to the caller's
// own notes, regardless of role.
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipalFromContext(w, r)
	if !ok {
		return
	}

	filter, err := parseNoteFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	notes, err := h.noteService.ListNotes(r.Context(), principal.UserID, filter)
	if err != nil {
		slog.Error("failed to list notes", "error", err, "user_id", principal.UserID)
		HandleAPIError(w, r, err, "Failed to list notes")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, notesToResponse(notes))
}

// ListAllNotes handles GET /api/notes/all requests (admin only).
func (h *NoteHandler) ListAllNotes(w http.ResponseWriter, r *http.Request) {
	filter, err := parseNoteFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	notes, err := h.noteService.ListAllNotes(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list all notes", "error", err)
		HandleAPIError(w, r, err, "Failed to list notes")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, notesToResponse(notes))
}

// ListNotesGroupedByUser handles GET /api/notes/grouped-by-user requests
// (admin only).
func (h *NoteHandler) ListNotesGroupedByUser(w http.ResponseWriter, r *http.Request) {
	statusFilter, err := parseStatusParam(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	groups, err := h.noteService.ListNotesGroupedByUser(r.Context(), statusFilter)
	if err != nil {
		slog.Error("failed to list notes grouped by user", "error", err)
		HandleAPIError(w, r, err, "Failed to list notes")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, groupedToResponse(groups))
}

// parseNoteFilter reads the status, limit, and offset query parameters.
func parseNoteFilter(r *http.Request) (store.NoteFilter, error) {
	var filter store.NoteFilter

	status, err := parseStatusParam(r)
	if err != nil {
		return filter, err
	}
	filter.Status = status

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return filter, fmt.Errorf("%w: limit must be between 1 and %d",
				domain.ErrValidation, maxListLimit)
		}
		filter.Limit = limit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("%w: offset must be non-negative", domain.ErrValidation)
		}
		filter.Offset = offset
	}

	return filter, nil
}

// parseStatusParam reads the optional status query parameter.
func parseStatusParam(r *http.Request) (*domain.NoteStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}

	status := domain.NoteStatus(raw)
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, raw)
	}
	return &status, nil
}
