package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tollgate-service/internal/config"
	"tollgate-service/internal/domain/toll"
	"tollgate-service/internal/service"
)

type Handler struct {
	tollService *service.TollService
	config      *config.Config
	log         zerolog.Logger
}

func NewHandler(
	tollService *service.TollService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		tollService: tollService,
		config:      cfg,
		log:         log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/passages", h.createPassageEvent)
		public.GET("/accounts/:plate", h.getAccount)
		public.GET("/transactions", h.listTransactions)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/accounts", h.createAccount)
		protected.POST("/accounts/:plate/topup", h.topUpAccount)
	}
}

func (h *Handler) createPassageEvent(c *gin.Context) {
	var payload toll.PassageEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	event, err := h.tollService.ProcessPassageEvent(c.Request.Context(), &payload)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "ok",
		"event":  event,
	})
}

type createAccountRequest struct {
	OwnerName   string          `json:"owner_name"`
	Phone       string          `json:"phone"`
	Plate       string          `json:"plate"`
	VehicleType string          `json:"vehicle_type"`
	Balance     decimal.Decimal `json:"balance"`
}

func (h *Handler) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	acct := &toll.Account{
		OwnerName:   req.OwnerName,
		Phone:       req.Phone,
		Plate:       req.Plate,
		VehicleType: toll.VehicleType(req.VehicleType),
		Balance:     req.Balance,
	}
	created, err := h.tollService.RegisterAccount(c.Request.Context(), acct)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(created))
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) topUpAccount(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	acct, err := h.tollService.TopUp(c.Request.Context(), c.Param("plate"), req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(acct))
}

func (h *Handler) getAccount(c *gin.Context) {
	acct, err := h.tollService.GetAccount(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(acct))
}

func (h *Handler) listTransactions(c *gin.Context) {
	var plateQuery *string
	if plate := strings.TrimSpace(c.Query("plate")); plate != "" {
		plateQuery = &plate
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	txs, err := h.tollService.ListTransactions(c.Request.Context(), plateQuery, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(txs))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
