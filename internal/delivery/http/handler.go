package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/msrptw/backend/internal/domain"
	"github.com/msrptw/backend/internal/infrastructure/export"
	"github.com/msrptw/backend/internal/usecase"
)

// DefaultHistoryDays is the range served when a request gives no dates
const DefaultHistoryDays = 30

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	prices *usecase.PriceService
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(prices *usecase.PriceService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{prices: prices, logger: logger, now: time.Now}
}

// previewRequest is a raw listing plus the category to classify it in
type previewRequest struct {
	domain.RawListing
	Category string `json:"category" binding:"required"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "msrptw-backend",
		"version": "1.0.0",
	})
}

// GetTaxonomy returns every category with its parts and aliases
func (h *Handler) GetTaxonomy(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	categories, err := h.prices.Taxonomy(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetSources returns all retailers
func (h *Handler) GetSources(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	sources, err := h.prices.Sources(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// ListProducts returns products filtered by ?source=, ?category= (names) and ?classified=
func (h *Handler) ListProducts(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	ctx := c.Request.Context()

	var filter domain.ProductFilter

	if name := c.Query("source"); name != "" {
		sources, err := h.prices.Sources(ctx)
		if err != nil {
			h.respondError(c, err)
			return
		}
		for _, s := range sources {
			if s.Name == name {
				filter.SourceID = s.ID
			}
		}
		if filter.SourceID == 0 {
			h.respondError(c, fmt.Errorf("%w: source %q", domain.ErrNotFound, name))
			return
		}
	}

	if name := c.Query("category"); name != "" {
		category, err := h.prices.Category(ctx, name)
		if err != nil {
			h.respondError(c, err)
			return
		}
		filter.CategoryID = category.ID
	}

	if raw := c.Query("classified"); raw != "" {
		classified, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: classified must be true or false", domain.ErrInvalidRequest))
			return
		}
		filter.Classified = &classified
	}

	products, err := h.prices.Products(ctx, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// GetPriceHistory returns the observations of one product between ?from= and ?to=
func (h *Handler) GetPriceHistory(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, fmt.Errorf("%w: product id must be a positive integer", domain.ErrInvalidRequest))
		return
	}

	from, to, err := h.dateRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	observations, err := h.prices.PriceHistory(c.Request.Context(), id, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"productId":    id,
		"from":         from.Format(domain.DateLayout),
		"to":           to.Format(domain.DateLayout),
		"observations": observations,
	})
}

// ExportPrices streams the price rows between ?from= and ?to= as an xlsx attachment
func (h *Handler) ExportPrices(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	from, to, err := h.dateRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows, err := h.prices.ExportRows(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rows); err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("prices_%s_%s.xlsx", from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// PreviewListing parses and auto-classifies a posted listing without storing it
func (h *Handler) PreviewListing(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	if req.ExternalID == "" {
		req.ExternalID = "preview"
	}

	result, err := h.prices.PreviewListing(c.Request.Context(), &req.RawListing, req.Category)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// dateRange reads ?from= and ?to= as YYYY-MM-DD. A missing to is today and
// a missing from is DefaultHistoryDays before to.
func (h *Handler) dateRange(c *gin.Context) (time.Time, time.Time, error) {
	to := domain.Day(h.now())
	if raw := c.Query("to"); raw != "" {
		t, err := time.ParseInLocation(domain.DateLayout, raw, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", domain.ErrInvalidRequest)
		}
		to = t
	}

	from := to.AddDate(0, 0, -DefaultHistoryDays)
	if raw := c.Query("from"); raw != "" {
		t, err := time.ParseInLocation(domain.DateLayout, raw, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", domain.ErrInvalidRequest)
		}
		from = t
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from is after to", domain.ErrInvalidRequest)
	}
	return from, to, nil
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.prices != nil {
		return true
	}
	c.JSON(http.StatusNotImplemented, gin.H{"error": "price service not configured"})
	return false
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrParse):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
