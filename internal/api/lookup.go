package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/eventsite/registry/internal/model"
)

// LookupHandler resolves product metadata for the admin item form.
type LookupHandler struct {
	Source MetadataSource
}

type lookupRequest struct {
	URL string `json:"url"`
}

type lookupResponse struct {
	Price    model.Price `json:"price"`
	ImageURL *string     `json:"imageUrl"`
	Message  string      `json:"message"`
}

// Lookup handles POST /api/admin/price-lookup.
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		jsonError(w, http.StatusBadRequest, "url required")
		return
	}

	m := h.Source.Extract(r.Context(), url)
	if m.Empty() {
		slog.Warn("price lookup found nothing", "url", url)
		jsonResponse(w, http.StatusNotFound, map[string]string{
			"error":   "could not determine price or image",
			"message": "Could not determine price or image. Please enter them manually.",
		})
		return
	}

	resp := lookupResponse{Price: model.NewPrice(m.Price)}
	if m.ImageURL != "" {
		resp.ImageURL = &m.ImageURL
	}
	switch {
	case m.Price.Valid && resp.ImageURL != nil:
		resp.Message = "Found price and image."
	case m.Price.Valid:
		resp.Message = "Found price; image not found."
	default:
		resp.Message = "Found image; price not found."
	}

	slog.Info("price lookup", "url", url, "price", m.Price.Valid, "image", resp.ImageURL != nil)
	jsonResponse(w, http.StatusOK, resp)
}
