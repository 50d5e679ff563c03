package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/api/response"
	"github.com/metamapa/mapgateway/internal/collection"
	"github.com/metamapa/mapgateway/internal/marker"
)

// CatalogHandler serves the data that fills the filter panel.
type CatalogHandler struct {
	collections CollectionCatalog
	icons       *marker.IconSet
	logger      zerolog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(collections CollectionCatalog, icons *marker.IconSet, logger zerolog.Logger) *CatalogHandler {
	if icons == nil {
		icons = marker.DefaultIconSet()
	}
	return &CatalogHandler{collections: collections, icons: icons, logger: logger}
}

// ListCollections handles GET /v1/collections.
func (h *CatalogHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	items, err := h.collections.List(r.Context())
	if err != nil {
		if errors.Is(err, collection.ErrSourceUnavailable) {
			response.ServiceUnavailable(w, r, "collections are unavailable")
			return
		}
		h.logger.Error().Err(err).Msg("failed to list collections")
		response.InternalError(w, r, "failed to list collections")
		return
	}

	out := models.CollectionList{Items: make([]models.Collection, 0, len(items))}
	for _, c := range items {
		out.Items = append(out.Items, toCollection(c))
	}
	response.JSON(w, r, http.StatusOK, out)
}

// InvalidateCollections handles POST /v1/admin/collections:invalidate - the
// next listing goes to the core backend.
func (h *CatalogHandler) InvalidateCollections(w http.ResponseWriter, r *http.Request) {
	h.collections.Invalidate()
	h.logger.Info().Str("by", GetUserID(r.Context())).Msg("collection cache invalidated")
	response.NoContent(w, r)
}

// ListCategories handles GET /v1/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	out := models.CategoryList{
		Items:       make([]models.Category, 0, len(marker.Categories)),
		DefaultIcon: h.icons.Default(),
	}
	for _, c := range marker.Categories {
		out.Items = append(out.Items, models.Category{
			Key:   string(c),
			Label: c.Label(),
			Icon:  h.icons.Icon(c),
		})
	}
	response.JSON(w, r, http.StatusOK, out)
}
