package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eventsite/registry/internal/imaging"
	"github.com/eventsite/registry/internal/model"
	"github.com/eventsite/registry/internal/store"
)

// RegistryHandler handles the public registry and its administration.
type RegistryHandler struct {
	DB *sql.DB
}

type createItemRequest struct {
	Name           string              `json:"name"`
	Link           string              `json:"link"`
	Price          decimal.NullDecimal `json:"price"`
	ImageURL       string              `json:"imageUrl"`
	QuantityNeeded *int                `json:"quantityNeeded"`
}

type updateItemRequest struct {
	Name           *string       `json:"name"`
	Link           *string       `json:"link"`
	Price          optionalPrice `json:"price"`
	ImageURL       *string       `json:"imageUrl"`
	QuantityNeeded *int          `json:"quantityNeeded"`
}

// optionalPrice tells an absent price apart from an explicit null, which
// clears the stored price.
type optionalPrice struct {
	set   bool
	value decimal.NullDecimal
}

func (p *optionalPrice) UnmarshalJSON(data []byte) error {
	p.set = true
	return p.value.UnmarshalJSON(data)
}

func (p optionalPrice) update() *decimal.NullDecimal {
	if !p.set {
		return nil
	}
	return &p.value
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type claimResponse struct {
	Message string `json:"message"`
	*model.ClaimResult
}

// List handles GET /api/registry.
func (h *RegistryHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" {
		parsed, err := model.ParseStatus(status)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid status")
			return
		}
		status = parsed
	}

	items, err := store.ListItems(r.Context(), h.DB, status)
	if err != nil {
		slog.Error("failed to list registry items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list registry items")
		return
	}
	if items == nil {
		items = []model.RegistryItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/registry/{itemId}.
func (h *RegistryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get registry item", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get registry item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Claim handles POST /api/registry/claim/{itemId}.
func (h *RegistryHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	source := sourceAddress(r)
	result, err := store.ClaimItem(r.Context(), h.DB, id, source)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case errors.Is(err, store.ErrAlreadyFulfilled):
		slog.Warn("claim rejected", "item", id, "source", source)
		jsonError(w, http.StatusConflict, "item already claimed or fulfilled")
		return
	case err != nil:
		slog.Error("failed to claim registry item", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to claim item")
		return
	}

	slog.Info("registry item claimed",
		"item", id,
		"status", result.Status,
		"claimed", result.QuantityClaimed,
		"needed", result.QuantityNeeded,
		"source", source,
	)
	jsonResponse(w, http.StatusOK, claimResponse{
		Message:     "Thank you! The item has been reserved.",
		ClaimResult: result,
	})
}

// Create handles POST /api/admin/registry.
func (h *RegistryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Link = strings.TrimSpace(req.Link)
	if req.Name == "" || req.Link == "" {
		jsonError(w, http.StatusBadRequest, "name and link required")
		return
	}

	quantity := 1
	if req.QuantityNeeded != nil {
		quantity = *req.QuantityNeeded
	}
	if quantity < 1 {
		jsonError(w, http.StatusBadRequest, "quantityNeeded must be at least 1")
		return
	}

	if req.Price.Valid && req.Price.Decimal.IsNegative() {
		jsonError(w, http.StatusBadRequest, "price cannot be negative")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req.Name, req.Link, req.Price, strings.TrimSpace(req.ImageURL), quantity)
	if err != nil {
		slog.Error("failed to create registry item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create registry item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("registry item created", "user", claims.Username, "item", item.ID, "name", item.Name)
	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/admin/registry/{itemId}.
func (h *RegistryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, id, store.ItemUpdate{
		Name:           req.Name,
		Link:           req.Link,
		Price:          req.Price.update(),
		ImageURL:       req.ImageURL,
		QuantityNeeded: req.QuantityNeeded,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case errors.Is(err, store.ErrQuantityBelowClaimed):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("failed to update registry item", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update registry item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("registry item updated", "user", claims.Username, "item", id)
	jsonResponse(w, http.StatusOK, item)
}

func (req *updateItemRequest) validate() string {
	if req.Name != nil {
		*req.Name = strings.TrimSpace(*req.Name)
		if *req.Name == "" {
			return "name cannot be empty"
		}
	}
	if req.Link != nil {
		*req.Link = strings.TrimSpace(*req.Link)
		if *req.Link == "" {
			return "link cannot be empty"
		}
	}
	if req.Price.value.Valid && req.Price.value.Decimal.IsNegative() {
		return "price cannot be negative"
	}
	if req.ImageURL != nil {
		*req.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.QuantityNeeded != nil && *req.QuantityNeeded < 1 {
		return "quantityNeeded must be at least 1"
	}
	return ""
}

// SetStatus handles PUT /api/admin/registry/{itemId}/status.
func (h *RegistryHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := model.ParseStatus(req.Status)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	item, err := store.SetItemStatus(r.Context(), h.DB, id, status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		slog.Error("failed to set registry item status", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to set status")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("registry item status forced",
		"user", claims.Username,
		"item", id,
		"status", item.Status,
		"claimed", item.QuantityClaimed,
	)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/admin/registry/{itemId}.
func (h *RegistryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	err := store.DeleteItem(r.Context(), h.DB, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		slog.Error("failed to delete registry item", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete registry item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("registry item deleted", "user", claims.Username, "item", id)
	jsonMessage(w, http.StatusOK, "item deleted")
}

// Claims handles GET /api/admin/registry/{itemId}/claims.
func (h *RegistryHandler) Claims(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get registry item", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get registry item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	attempts, err := store.ListClaimAttempts(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to list claim attempts", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	if attempts == nil {
		attempts = []model.ClaimAttempt{}
	}
	jsonResponse(w, http.StatusOK, attempts)
}

// UploadImage handles PUT /api/admin/registry/{itemId}/image.
func (h *RegistryHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	// Leave room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+64<<10)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			jsonError(w, http.StatusBadRequest, "image must be JPEG, PNG, or WebP")
			return
		}
		jsonError(w, http.StatusBadRequest, "could not process image")
		return
	}

	imageURL := fmt.Sprintf("/api/registry/%d/image", id)
	err = store.SetItemImage(r.Context(), h.DB, id, photo.Data, photo.MIME, imageURL)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		slog.Error("failed to save item image", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil || item == nil {
		jsonError(w, http.StatusInternalServerError, "failed to get registry item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("registry item image uploaded",
		"user", claims.Username,
		"item", id,
		"width", photo.Width,
		"height", photo.Height,
		"bytes", len(photo.Data),
	)
	jsonResponse(w, http.StatusOK, item)
}

// GetImage handles GET /api/registry/{itemId}/image.
func (h *RegistryHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item image", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
