package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/services"
)

// HistoryController exposes the stored reading history of catalog books.
type HistoryController struct {
	history BookHistoryReader
	logger  *zap.Logger
}

func NewHistoryController(history BookHistoryReader, logger *zap.Logger) *HistoryController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryController{history: history, logger: logger}
}

// GetSessions handles GET /api/books/:id/sessions
func (hc *HistoryController) GetSessions(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	history, err := hc.history.History(c.Request.Context(), bookID)
	if err != nil {
		if errors.Is(err, services.ErrNoCatalogEntry) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, hc.logger, err, "load reading history")
		return
	}

	c.JSON(http.StatusOK, history)
}
