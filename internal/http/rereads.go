package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/services"
)

// RereadsController records repeated completions of a catalog book.
type RereadsController struct {
	reconciler     ImportReconciler
	skipDuplicates bool
	logger         *zap.Logger
}

func NewRereadsController(reconciler ImportReconciler, skipDuplicates bool, logger *zap.Logger) *RereadsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RereadsController{reconciler: reconciler, skipDuplicates: skipDuplicates, logger: logger}
}

// RereadRequest is the request body for POST /api/books/:id/rereads.
type RereadRequest struct {
	CompletedDates []string `json:"completed_dates" binding:"required"`
	Rating         *int     `json:"rating"`
	Review         string   `json:"review"`
	SkipDuplicates *bool    `json:"skip_duplicates"`
}

// Create handles POST /api/books/:id/rereads
func (rc *RereadsController) Create(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RereadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "completed_dates is required")
		return
	}
	if len(req.CompletedDates) == 0 {
		respondBadRequest(c, "completed_dates is required")
		return
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		respondBadRequest(c, "rating must be between 1 and 5")
		return
	}

	dates := make([]time.Time, 0, len(req.CompletedDates))
	for _, raw := range req.CompletedDates {
		d, err := importers.ParseDate(raw)
		if err != nil {
			respondBadRequest(c, "invalid completion date: "+raw)
			return
		}
		dates = append(dates, d)
	}

	opts := services.RereadOptions{
		Rating:         req.Rating,
		Review:         req.Review,
		SkipDuplicates: rc.skipDuplicates,
	}
	if req.SkipDuplicates != nil {
		opts.SkipDuplicates = *req.SkipDuplicates
	}

	summary, err := rc.reconciler.Reread(c.Request.Context(), bookID, dates, opts)
	if err != nil {
		if errors.Is(err, services.ErrNoCatalogEntry) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, rc.logger, err, "import rereads")
		return
	}

	c.JSON(http.StatusCreated, summary)
}
