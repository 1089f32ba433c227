package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"campuswatt/internal/models"
	"campuswatt/internal/service"
	"campuswatt/internal/utils"
)

const (
	defaultPage  = 1
	defaultLimit = 50
)

// QueryService is what the controller needs from the query layer; the
// concrete implementation lives in internal/service.
type QueryService interface {
	History(ctx context.Context, nodeID, start, end string, page, limit int) (models.HistoryPage, error)
	LatestStatus(ctx context.Context) ([]models.NodeStatus, error)
	CampusSummary(ctx context.Context) (models.CampusSummaryResponse, error)
	CostSummary(ctx context.Context, tariffRate float64) (models.CostSummaryResponse, error)
}

// DataController handles HTTP requests for the query views.
type DataController struct {
	service QueryService
	log     *slog.Logger
}

// NewDataController creates a new DataController.
func NewDataController(service QueryService, logger *slog.Logger) *DataController {
	return &DataController{service: service, log: logger}
}

// HandleNodeHistory serves GET /api/nodes/{node_id}/data.
// Query params: start (default -1h), end (optional), page (default 1),
// limit (default 50). Page/limit outside their contract are rejected, not
// clamped.
func (c *DataController) HandleNodeHistory(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]
	query := r.URL.Query()

	start := query.Get("start")
	end := query.Get("end")

	page, err := intParam(query.Get("page"), defaultPage)
	if err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidFormat, "page must be an integer", nil, http.StatusBadRequest))
		return
	}
	limit, err := intParam(query.Get("limit"), defaultLimit)
	if err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidFormat, "limit must be an integer", nil, http.StatusBadRequest))
		return
	}

	result, err := c.service.History(r.Context(), nodeID, start, end, page, limit)
	if err != nil {
		var inputErr *service.InputError
		if errors.As(err, &inputErr) {
			utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeValidationFailed, inputErr.Msg, nil, http.StatusBadRequest))
			return
		}
		c.internalError(w, "history", err)
		return
	}
	if result.Total == 0 {
		msg := fmt.Sprintf("No data found for node '%s' in the specified time range.", nodeID)
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeNotFound, msg, nil, http.StatusNotFound))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, result)
}

// HandleNodesStatus serves GET /api/nodes/status.
func (c *DataController) HandleNodesStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := c.service.LatestStatus(r.Context())
	if err != nil {
		c.internalError(w, "latest status", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, statuses)
}

// HandleCampusSummary serves GET /api/campus/summary.
func (c *DataController) HandleCampusSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.service.CampusSummary(r.Context())
	if err != nil {
		c.internalError(w, "campus summary", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// HandleCampusCost serves GET /api/campus/cost?tariff_rate=8.0.
func (c *DataController) HandleCampusCost(w http.ResponseWriter, r *http.Request) {
	tariff := service.DefaultTariffRate
	if raw := r.URL.Query().Get("tariff_rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeValidationFailed, "tariff_rate must be a positive number", nil, http.StatusBadRequest))
			return
		}
		tariff = parsed
	}

	costs, err := c.service.CostSummary(r.Context(), tariff)
	if err != nil {
		c.internalError(w, "cost summary", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, costs)
}

func (c *DataController) internalError(w http.ResponseWriter, op string, err error) {
	c.log.Error("unexpected error", "op", op, "err", err)
	utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, "internal server error", nil, http.StatusInternalServerError))
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
