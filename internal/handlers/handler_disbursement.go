package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
)

// disbursementHandler handles HTTP requests related to disbursements.
type disbursementHandler struct {
	disbursementService portssvc.DisbursementSvcFacade
}

func newDisbursementHandler(ds portssvc.DisbursementSvcFacade) *disbursementHandler {
	return &disbursementHandler{disbursementService: ds}
}

// RegisterDisbursementRoutes registers the disbursement and batch routes under an
// entity-scoped group (the group path must declare :entityID).
func RegisterDisbursementRoutes(rg *gin.RouterGroup, disbursementService portssvc.DisbursementSvcFacade) {
	h := newDisbursementHandler(disbursementService)

	disbursements := rg.Group("/disbursements")
	{
		disbursements.POST("", h.createDisbursement)
		disbursements.GET("", h.listDisbursements)
		disbursements.GET("/:number", h.getDisbursement)
		disbursements.PUT("/:number", h.editDisbursement)
		disbursements.POST("/:number/actions", h.requestAction)
	}

	rg.GET("/batches/:batchNumber/disbursements", h.listBatchDisbursements)
}

// actorAndLogger resolves the authenticated actor or aborts with 401.
func actorAndLogger(c *gin.Context) (string, *slog.Logger, bool) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	actor, ok := middleware.GetActorEmailFromContext(c)
	if !ok {
		logger.Error("Actor not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", logger, false
	}
	return actor, logger.With(slog.String("entity_id", c.Param("entityID"))), true
}

func parseNumber(c *gin.Context) (int64, bool) {
	n, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Disbursement number must be a positive integer"})
		return 0, false
	}
	return n, true
}

func (h *disbursementHandler) createDisbursement(c *gin.Context) {
	actor, logger, ok := actorAndLogger(c)
	if !ok {
		return
	}

	var req dto.CreateDisbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateDisbursement", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	req.EntityID = c.Param("entityID")

	created, err := h.disbursementService.CreateDisbursement(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, logger, err, "Failed to create disbursement")
		return
	}

	logger.Info("Disbursements created", slog.Int("count", len(created)))
	c.JSON(http.StatusCreated, dto.ToDisbursementResponses(created))
}

func (h *disbursementHandler) getDisbursement(c *gin.Context) {
	_, logger, ok := actorAndLogger(c)
	if !ok {
		return
	}
	number, ok := parseNumber(c)
	if !ok {
		return
	}

	d, err := h.disbursementService.GetDisbursement(c.Request.Context(), c.Param("entityID"), number, c.Query("disbursementType"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve disbursement")
		return
	}
	c.JSON(http.StatusOK, dto.ToDisbursementResponse(d))
}

func (h *disbursementHandler) listDisbursements(c *gin.Context) {
	_, logger, ok := actorAndLogger(c)
	if !ok {
		return
	}

	var params dto.ListDisbursementsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for ListDisbursements", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	resp, err := h.disbursementService.ListDisbursements(c.Request.Context(), c.Param("entityID"), params)
	if err != nil {
		respondError(c, logger, err, "Failed to list disbursements")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *disbursementHandler) listBatchDisbursements(c *gin.Context) {
	_, logger, ok := actorAndLogger(c)
	if !ok {
		return
	}

	var params dto.ListDisbursementsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for ListBatchDisbursements", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	resp, err := h.disbursementService.ListBatchDisbursements(c.Request.Context(), c.Param("entityID"), c.Param("batchNumber"), params)
	if err != nil {
		respondError(c, logger, err, "Failed to list batch disbursements")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *disbursementHandler) requestAction(c *gin.Context) {
	actor, logger, ok := actorAndLogger(c)
	if !ok {
		return
	}
	number, ok := parseNumber(c)
	if !ok {
		return
	}

	var req dto.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RequestAction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	req.EntityID = c.Param("entityID")
	req.DisbursementNumber = number
	req.Origin = dto.OriginInteractive

	logger = logger.With(slog.Int64("disbursement_number", number), slog.String("action", req.Action))
	d, err := h.disbursementService.RequestAction(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, logger, err, "Failed to apply action")
		return
	}

	logger.Info("Action applied", slog.String("state", string(d.State.State)))
	c.JSON(http.StatusOK, dto.ToDisbursementResponse(d))
}

func (h *disbursementHandler) editDisbursement(c *gin.Context) {
	actor, logger, ok := actorAndLogger(c)
	if !ok {
		return
	}
	number, ok := parseNumber(c)
	if !ok {
		return
	}

	// Path values are set before binding so the required checks see them.
	req := dto.EditDisbursementRequest{EntityID: c.Param("entityID"), DisbursementNumber: number}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for EditDisbursement", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	req.EntityID = c.Param("entityID")
	req.DisbursementNumber = number

	d, applied, err := h.disbursementService.EditDisbursement(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, logger, err, "Failed to edit disbursement")
		return
	}

	logger.Info("Edit processed", slog.Int64("disbursement_number", number), slog.Bool("applied", applied))
	c.JSON(http.StatusOK, dto.EditDisbursementResponse{Success: applied, Disbursement: dto.ToDisbursementResponse(d)})
}
