package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"luckydraw/internal/models"
	"luckydraw/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/google/logger"
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service *services.LotteryService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.SaveSettings)
	api.GET("/session", h.GetSession)
	api.POST("/session/acknowledge", h.Acknowledge)
	api.POST("/spin", h.Spin)
	api.POST("/reset", h.Reset)
	api.GET("/winners", h.GetHistory)
	api.DELETE("/winners", h.ClearHistory)
	api.POST("/winners/search", h.Search)
	api.DELETE("/winners/search", h.ClearSearch)
	api.POST("/winners/next", h.NextPage)
	api.POST("/winners/prev", h.PreviousPage)
	api.GET("/winners/export", h.ExportWinnersCSV)
}

// Health reports liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSettings returns the active settings.
func (h *HTTPHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Settings())
}

// SaveSettings replaces the settings wholesale.
func (h *HTTPHandler) SaveSettings(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SaveSettings(c.Request.Context(), settings); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.service.Settings())
}

// GetSession returns the draw session.
func (h *HTTPHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Session())
}

// Acknowledge closes the winner modal.
func (h *HTTPHandler) Acknowledge(c *gin.Context) {
	h.service.Acknowledge()
	c.JSON(http.StatusOK, h.service.Session())
}

// Spin starts a draw. The result is available from GetSession once settled.
func (h *HTTPHandler) Spin(c *gin.Context) {
	if err := h.service.Spin(); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.service.Session())
}

// Reset clears the session and winner history.
func (h *HTTPHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.service.Session())
}

// GetHistory returns the active history page; ?page= jumps to a page.
func (h *HTTPHandler) GetHistory(c *gin.Context) {
	pageStr, ok := c.GetQuery("page")
	if !ok {
		c.JSON(http.StatusOK, h.service.History())
		return
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	c.JSON(http.StatusOK, h.service.GoToPage(page))
}

// ClearHistory deletes every winner record.
func (h *HTTPHandler) ClearHistory(c *gin.Context) {
	if err := h.service.ClearHistory(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.service.History())
}

type searchRequest struct {
	Query string `json:"query" form:"query"`
}

// Search filters the history by padded-number substring.
func (h *HTTPHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.service.Search(req.Query))
}

// ClearSearch drops the history filter.
func (h *HTTPHandler) ClearSearch(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.ClearSearch())
}

// NextPage moves the history forward one page.
func (h *HTTPHandler) NextPage(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.NextPage())
}

// PreviousPage moves the history back one page.
func (h *HTTPHandler) PreviousPage(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.PreviousPage())
}

// winnerRow is one line of the CSV export.
type winnerRow struct {
	Number    string `csv:"number"`
	Timestamp string `csv:"timestamp"`
}

// ExportWinnersCSV handles the request to download the winner history as a CSV file.
func (h *HTTPHandler) ExportWinnersCSV(c *gin.Context) {
	settings := h.service.Settings()
	winners := h.service.Winners()
	rows := make([]*winnerRow, 0, len(winners))
	for _, w := range winners {
		rows = append(rows, &winnerRow{
			Number:    settings.Pad(w.Number),
			Timestamp: w.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	body, err := gocsv.MarshalString(&rows)
	if err != nil {
		logger.Infof("Error writing CSV: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}

	c.Header("Content-Disposition", "attachment;filename=winners.csv")
	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Data(http.StatusOK, "text/csv; charset=utf-8", append([]byte("\xef\xbb\xbf"), body...))
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSpinning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidSettings):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
