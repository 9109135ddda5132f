package document

import (
	"net/http"

	"bookshelf/internal/httpx"
	"bookshelf/internal/library"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type documentResponse struct {
	Exists   bool              `json:"exists"`
	Library  []library.Entry   `json:"library"`
	Cabinets []library.Cabinet `json:"cabinets"`
}

type patchReq struct {
	Library  *[]library.Entry   `json:"library" validate:"omitempty,dive"`
	Cabinets *[]library.Cabinet `json:"cabinets" validate:"omitempty,dive"`
}

// GetLibrary handles GET /v1/me/library
func (h *HTTPHandler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.Unauthorized(w, r, "")
		return
	}

	snap, exists, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httpx.InternalError(w, r)
		return
	}

	httpx.JSONSuccess(w, r, documentResponse{
		Exists:   exists,
		Library:  snap.Library,
		Cabinets: snap.Cabinets,
	}, nil)
}

// PatchLibrary handles PATCH /v1/me/library. Only the fields present in the
// body replace the stored ones.
func (h *HTTPHandler) PatchLibrary(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.Unauthorized(w, r, "")
		return
	}

	var req patchReq
	if !httpx.DecodeJSON(w, r, &req, false) {
		return
	}

	patch := Patch{Library: req.Library, Cabinets: req.Cabinets}
	if patch.IsEmpty() {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Nothing to update", nil)
		return
	}

	if !httpx.Validate(w, r, req) {
		return
	}

	snap, err := h.service.Merge(r.Context(), userID, patch)
	if err != nil {
		httpx.InternalError(w, r)
		return
	}

	httpx.JSONSuccess(w, r, documentResponse{
		Exists:   true,
		Library:  snap.Library,
		Cabinets: snap.Cabinets,
	}, nil)
}
