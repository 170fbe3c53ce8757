package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/service"
	"github.com/SvetlanaSumets11/CarRental/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
	now          func() time.Time
}

func NewOrderHandler(orderService *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
		now:          time.Now,
	}
}

func (h *OrderHandler) Register(r gin.IRouter) {
	r.POST("/orders/", h.CreateOrder)
	r.GET("/orders/", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.PUT("/orders/:id", h.UpdateOrder)
	r.DELETE("/orders/:id", h.DeleteOrder)
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	req, ok := h.bindOrder(c)
	if !ok {
		return
	}
	requestID := c.GetString(middleware.RequestIDKey)

	order, err := h.orderService.CreateOrder(c.Request.Context(), req, requestID)
	if err != nil {
		h.fail(c, "Failed to create order", err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get order", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var customerID *int64
	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
			return
		}
		customerID = &id
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), customerID)
	if err != nil {
		h.fail(c, "Failed to list orders", err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	req, ok := h.bindOrder(c)
	if !ok {
		return
	}
	requestID := c.GetString(middleware.RequestIDKey)

	order, err := h.orderService.UpdateOrder(c.Request.Context(), c.Param("id"), req, requestID)
	if err != nil {
		h.fail(c, "Failed to update order", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	requestID := c.GetString(middleware.RequestIDKey)

	if err := h.orderService.DeleteOrder(c.Request.Context(), c.Param("id"), requestID); err != nil {
		h.fail(c, "Failed to delete order", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) bindOrder(c *gin.Context) (domain.OrderRequest, bool) {
	var req domain.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return req, false
	}
	if err := req.Validate(h.now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid order",
			"details": err.Error(),
		})
		return req, false
	}
	return req, true
}

func (h *OrderHandler) fail(c *gin.Context, msg string, err error) {
	writeError(c, h.logger, msg, err)
}
